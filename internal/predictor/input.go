package predictor

import (
	"errors"
	"fmt"
	"math"
)

// Normalization divisors fixed by the ranges of the training data.
const (
	MaxAgeMonths = 60.0
	MaxHeightCm  = 127.9
)

// Field names used in input errors.
const (
	FieldAge    = "age_months"
	FieldSex    = "sex"
	FieldHeight = "height_cm"
)

// Sex is the child's sex as encoded for the network.
type Sex int

const (
	Male   Sex = iota // "Laki-laki"
	Female            // "Perempuan"
)

var sexLabels = [...]string{
	Male:   "Laki-laki",
	Female: "Perempuan",
}

// ErrInvalidSex is returned by ParseSex for any label other than the two known ones.
var ErrInvalidSex = errors.New("Jenis Kelamin harus 'Laki-laki' atau 'Perempuan'")

// ParseSex maps a form label onto Sex.
func ParseSex(label string) (Sex, error) {
	switch label {
	case sexLabels[Male]:
		return Male, nil
	case sexLabels[Female]:
		return Female, nil
	default:
		return 0, ErrInvalidSex
	}
}

// SexLabels returns the accepted labels in code order.
func SexLabels() []string {
	return append([]string(nil), sexLabels[:]...)
}

func (s Sex) String() string {
	if s < Male || s > Female {
		return fmt.Sprintf("Sex(%d)", int(s))
	}
	return sexLabels[s]
}

// Code is the numeric value fed to the network.
func (s Sex) Code() float64 {
	return float64(s)
}

// Features builds the normalized input row [age/60, sex, height/127.9].
func Features(ageMonths float64, sex Sex, heightCm float64) []float64 {
	return []float64{
		ageMonths / MaxAgeMonths,
		sex.Code(),
		heightCm / MaxHeightCm,
	}
}

// checkRange validates a numeric form value against [0, max].
func checkRange(field, name, unit string, v, max float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > max {
		return invalidInput(field, fmt.Errorf("%s harus antara 0 dan %g %s", name, max, unit))
	}
	return nil
}
