// Package predictor turns form input into a nutritional-status label using a
// loaded network.
package predictor

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kartoza/stunting-predictor/internal/nn"
)

// Result is a successful classification.
type Result struct {
	Status        Status
	Probabilities []float64 // indexed by Status
	Features      []float64 // normalized input row
}

// Label returns the class label of the result.
func (r Result) Label() string {
	return r.Status.String()
}

func (r Result) clone() Result {
	r.Probabilities = append([]float64(nil), r.Probabilities...)
	r.Features = append([]float64(nil), r.Features...)
	return r
}

// Predict classifies one child. It never panics: bad input is reported as a
// KindInvalidInput *Error and anything going wrong in the network as KindComputation.
func Predict(params *nn.Parameters, ageMonths float64, sexLabel string, heightCm float64) (Result, error) {
	sex, err := ParseSex(sexLabel)
	if err != nil {
		return Result{}, invalidInput(FieldSex, err)
	}
	if err := checkRange(FieldAge, "Umur", "bulan", ageMonths, MaxAgeMonths); err != nil {
		return Result{}, err
	}
	if err := checkRange(FieldHeight, "Tinggi Badan", "cm", heightCm, MaxHeightCm); err != nil {
		return Result{}, err
	}
	if params == nil {
		return Result{}, computation(fmt.Errorf("model not loaded"))
	}

	x := Features(ageMonths, sex, heightCm)
	probs, err := params.Forward(x)
	if err != nil {
		return Result{}, computation(err)
	}
	if len(probs) != NumClasses {
		return Result{}, computation(fmt.Errorf("model has %d output classes, want %d", len(probs), NumClasses))
	}
	if !nn.Finite(probs) {
		return Result{}, computation(fmt.Errorf("softmax overflow"))
	}

	return Result{
		Status:        Status(nn.ArgMax(probs)),
		Probabilities: probs,
		Features:      x,
	}, nil
}

// Options configures a Predictor.
type Options struct {
	// CacheSize is the number of results kept in memory. Zero disables caching.
	CacheSize int
}

type cacheKey struct {
	age    float64
	sex    string
	height float64
}

// Predictor binds loaded parameters to Predict, optionally memoizing results.
type Predictor struct {
	params *nn.Parameters
	cache  *lru.Cache[cacheKey, Result]
}

// New creates a Predictor. The parameters must take 3 features and produce NumClasses outputs.
func New(params *nn.Parameters, opts Options) (*Predictor, error) {
	if params == nil {
		return nil, fmt.Errorf("parameters are required")
	}
	features, _, _, classes := params.Dims()
	if features != 3 {
		return nil, fmt.Errorf("model takes %d features, want 3", features)
	}
	if classes != NumClasses {
		return nil, fmt.Errorf("model has %d output classes, want %d", classes, NumClasses)
	}
	if opts.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must not be negative")
	}

	p := &Predictor{params: params}
	if opts.CacheSize > 0 {
		cache, err := lru.New[cacheKey, Result](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// Predict classifies one child; see the package-level Predict.
func (p *Predictor) Predict(ageMonths float64, sexLabel string, heightCm float64) (Result, error) {
	key := cacheKey{age: ageMonths, sex: sexLabel, height: heightCm}
	if p.cache != nil {
		if r, ok := p.cache.Get(key); ok {
			return r.clone(), nil
		}
	}

	r, err := Predict(p.params, ageMonths, sexLabel, heightCm)
	if err != nil {
		return Result{}, err
	}
	if p.cache != nil {
		p.cache.Add(key, r.clone())
	}
	return r, nil
}

// Message returns the label on success, or the card text for the error.
func (p *Predictor) Message(ageMonths float64, sexLabel string, heightCm float64) string {
	r, err := p.Predict(ageMonths, sexLabel, heightCm)
	if err != nil {
		return MessageFor(err)
	}
	return r.Label()
}

// Parameters returns the network the predictor evaluates.
func (p *Predictor) Parameters() *nn.Parameters {
	return p.params
}

// CacheLen reports how many results are memoized.
func (p *Predictor) CacheLen() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}
