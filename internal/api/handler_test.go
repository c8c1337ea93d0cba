package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/kartoza/stunting-predictor/internal/config"
	"github.com/kartoza/stunting-predictor/internal/models"
	"github.com/kartoza/stunting-predictor/internal/nn/nntest"
	"github.com/kartoza/stunting-predictor/internal/predictor"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	pred, err := predictor.New(nntest.Parameters(t), predictor.Options{CacheSize: 8})
	if err != nil {
		t.Fatalf("Failed to create predictor: %v", err)
	}
	cfg := config.Default()
	cfg.Version = "test"
	return NewHandler(pred, cfg, nil)
}

func newTestRouter(t *testing.T) *mux.Router {
	r := mux.NewRouter()
	newTestHandler(t).RegisterRoutes(r)
	return r
}

func postPredict(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", response["status"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest("GET", "/info", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response models.InfoResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode info: %v", err)
	}

	if response.Version != "test" {
		t.Errorf("Expected version 'test', got '%v'", response.Version)
	}
	if response.Model.Features != nntest.Features || response.Model.Hidden1 != nntest.Hidden1 {
		t.Errorf("Unexpected model dims %+v", response.Model)
	}
	if len(response.Model.Classes) != 4 || response.Model.Classes[3] != "Tinggi" {
		t.Errorf("Unexpected classes %v", response.Model.Classes)
	}
	if response.Inputs[predictor.FieldHeight].Max != 127.9 {
		t.Errorf("Expected height max 127.9, got %v", response.Inputs[predictor.FieldHeight].Max)
	}
	if len(response.SexLabels) != 2 {
		t.Errorf("Expected 2 sex labels, got %v", response.SexLabels)
	}
}

func TestPredictEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := postPredict(r, `{"age_months":24,"sex":"Perempuan","height_cm":85.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.PredictResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.ID == "" {
		t.Error("Expected a prediction ID")
	}
	if resp.Kind != "" || resp.Error != "" {
		t.Errorf("Unexpected error %s: %s", resp.Kind, resp.Error)
	}

	valid := false
	for _, l := range predictor.Labels() {
		if resp.Label == l {
			valid = true
		}
	}
	if !valid {
		t.Errorf("Unexpected label %q", resp.Label)
	}
	if resp.Message != resp.Label {
		t.Errorf("Expected message %q, got %q", resp.Label, resp.Message)
	}

	sum := 0.0
	for _, p := range resp.Probabilities {
		sum += p
	}
	if len(resp.Probabilities) != 4 || math.Abs(sum-1) > 1e-6 {
		t.Errorf("Expected 4 probabilities summing to 1, got %v", resp.Probabilities)
	}
	if len(resp.Features) != 3 || resp.Features[1] != 1 {
		t.Errorf("Unexpected features %v", resp.Features)
	}
}

func TestPredictEndpointInvalidSex(t *testing.T) {
	r := newTestRouter(t)

	w := postPredict(r, `{"age_months":24,"sex":"Unknown","height_cm":85.5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var resp models.PredictResponse
	json.NewDecoder(w.Body).Decode(&resp)

	if resp.Kind != "invalid_input" {
		t.Errorf("Expected kind invalid_input, got %q", resp.Kind)
	}
	if resp.Field != predictor.FieldSex {
		t.Errorf("Expected field sex, got %q", resp.Field)
	}
	if !strings.HasPrefix(resp.Message, "Error:") {
		t.Errorf("Expected message starting with 'Error:', got %q", resp.Message)
	}
	if resp.Label != "" {
		t.Errorf("Expected no label, got %q", resp.Label)
	}
}

func TestPredictEndpointOutOfRange(t *testing.T) {
	r := newTestRouter(t)

	w := postPredict(r, `{"age_months":61,"sex":"Laki-laki","height_cm":85.5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var resp models.PredictResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Field != predictor.FieldAge {
		t.Errorf("Expected field age_months, got %q", resp.Field)
	}
}

func TestPredictEndpointBadJSON(t *testing.T) {
	r := newTestRouter(t)

	w := postPredict(r, `{"age_months":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var resp models.PredictResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Kind != "invalid_input" || resp.Error == "" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestPredictEndpointTooLarge(t *testing.T) {
	r := newTestRouter(t)

	body := `{"sex":"` + strings.Repeat("x", 2*wsReadLimit) + `"}`
	w := postPredict(r, body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
}

func TestPredictEndpointComputationError(t *testing.T) {
	a := nntest.Arrays()
	a["W2"].Zero()
	a["b2"].Apply(func(_, _ int, _ float64) float64 { return 10 }, a["b2"])
	a["W3"].Apply(func(_, _ int, _ float64) float64 { return 1000 }, a["W3"])

	pred, err := predictor.New(nntest.FromArrays(t, a), predictor.Options{})
	if err != nil {
		t.Fatalf("Failed to create predictor: %v", err)
	}
	r := mux.NewRouter()
	NewHandler(pred, config.Default(), nil).RegisterRoutes(r)

	w := postPredict(r, `{"age_months":12,"sex":"Laki-laki","height_cm":70}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}

	var resp models.PredictResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Kind != "computation" {
		t.Errorf("Expected kind computation, got %q", resp.Kind)
	}
	if !strings.HasPrefix(resp.Message, "Terjadi kesalahan:") {
		t.Errorf("Unexpected message %q", resp.Message)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// A valid request, a bad frame and an invalid input; the connection survives all three
	frames := []struct {
		body     string
		wantKind string
	}{
		{`{"age_months":36,"sex":"Laki-laki","height_cm":95}`, ""},
		{`not json`, "invalid_input"},
		{`{"age_months":36,"sex":"L","height_cm":95}`, "invalid_input"},
	}

	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f.body)); err != nil {
			t.Fatalf("Failed to write frame: %v", err)
		}

		var resp models.PredictResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("Failed to read reply: %v", err)
		}
		if resp.Kind != f.wantKind {
			t.Errorf("Frame %q: expected kind %q, got %q", f.body, f.wantKind, resp.Kind)
		}
		if resp.Message == "" {
			t.Errorf("Frame %q: expected a message", f.body)
		}
	}
}

func TestPredictMatchesMatrixLabel(t *testing.T) {
	h := newTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	w := postPredict(r, `{"age_months":0,"sex":"Laki-laki","height_cm":0}`)
	var resp models.PredictResponse
	json.NewDecoder(w.Body).Decode(&resp)

	want, err := predictor.Predict(h.pred.Parameters(), 0, "Laki-laki", 0)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if resp.Label != want.Label() {
		t.Errorf("Expected %s, got %s", want.Label(), resp.Label)
	}
	best := want.Probabilities[want.Status]
	if resp.Probabilities[resp.Label] != best {
		t.Errorf("Expected probability %v for %s, got %v", best, resp.Label, resp.Probabilities[resp.Label])
	}
}

func TestPredictEndpointMissingNumber(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"null age", `{"age_months":null,"sex":"Laki-laki","height_cm":80}`, predictor.FieldAge},
		{"missing age and height", `{"sex":"Perempuan"}`, predictor.FieldAge},
		{"null height", `{"age_months":24,"sex":"Perempuan","height_cm":null}`, predictor.FieldHeight},
		{"missing height", `{"age_months":24,"sex":"Perempuan"}`, predictor.FieldHeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postPredict(r, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}

			var resp models.PredictResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Kind != "invalid_input" {
				t.Errorf("Expected kind invalid_input, got %q", resp.Kind)
			}
			if resp.Field != tt.field {
				t.Errorf("Expected field %s, got %q", tt.field, resp.Field)
			}
			if resp.Label != "" {
				t.Errorf("Expected no label, got %q", resp.Label)
			}
			if !strings.Contains(resp.Message, "harus berupa angka") {
				t.Errorf("Unexpected message %q", resp.Message)
			}
		})
	}
}

func TestWebSocketMissingNumber(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	frames := []struct {
		body  string
		field string
	}{
		{`{"age_months":null,"sex":"Laki-laki","height_cm":80}`, predictor.FieldAge},
		{`{"age_months":12,"sex":"Laki-laki"}`, predictor.FieldHeight},
	}

	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f.body)); err != nil {
			t.Fatalf("Failed to write frame: %v", err)
		}

		var resp models.PredictResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("Failed to read reply: %v", err)
		}
		if resp.Kind != "invalid_input" || resp.Field != f.field {
			t.Errorf("Frame %q: expected invalid_input on %s, got %q on %q", f.body, f.field, resp.Kind, resp.Field)
		}
		if resp.Label != "" {
			t.Errorf("Frame %q: expected no label, got %q", f.body, resp.Label)
		}
	}
}
