package models

// PredictRequest is the body of POST /api/predict and each websocket frame.
// Numeric fields are pointers so a missing or null value is not read as 0.
type PredictRequest struct {
	AgeMonths *float64 `json:"age_months"`
	Sex       string   `json:"sex"`
	HeightCm  *float64 `json:"height_cm"`
}

// PredictResponse carries either a classification or an error.
// Message is always the text shown on the result card.
type PredictResponse struct {
	ID            string             `json:"id"`
	Label         string             `json:"label,omitempty"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Features      []float64          `json:"features,omitempty"`
	Message       string             `json:"message"`

	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

// Range describes the accepted interval of a numeric input
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
	Unit string  `json:"unit"`
}

// ModelInfo describes the loaded network
type ModelInfo struct {
	Features int      `json:"features"`
	Hidden1  int      `json:"hidden1"`
	Hidden2  int      `json:"hidden2"`
	Classes  []string `json:"classes"`
}

// InfoResponse is returned by GET /api/info
type InfoResponse struct {
	Version   string           `json:"version"`
	Model     ModelInfo        `json:"model"`
	Inputs    map[string]Range `json:"inputs"`
	SexLabels []string         `json:"sex_labels"`
}
