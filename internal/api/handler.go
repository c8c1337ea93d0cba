package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/kartoza/stunting-predictor/internal/config"
	"github.com/kartoza/stunting-predictor/internal/models"
	"github.com/kartoza/stunting-predictor/internal/predictor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// wsReadLimit caps a single websocket frame
	wsReadLimit = 4096
	wsPongWait  = 60 * time.Second
	wsWriteWait = 10 * time.Second
)

// Handler provides HTTP API endpoints
type Handler struct {
	pred     *predictor.Predictor
	cfg      config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler
func NewHandler(pred *predictor.Predictor, cfg config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pred:   pred,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/kartoza/stunting-predictor/internal/api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Prediction
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/ws", h.handleWebSocket).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server and model information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := models.InfoResponse{
		Version: h.cfg.Version,
		Model: models.ModelInfo{
			Classes: predictor.Labels(),
		},
		Inputs: map[string]models.Range{
			predictor.FieldAge:    {Min: 0, Max: predictor.MaxAgeMonths, Step: 1, Unit: "bulan"},
			predictor.FieldHeight: {Min: 0, Max: predictor.MaxHeightCm, Step: 0.1, Unit: "cm"},
		},
		SexLabels: predictor.SexLabels(),
	}
	if h.pred != nil {
		f, h1, h2, _ := h.pred.Parameters().Dims()
		info.Model.Features, info.Model.Hidden1, info.Model.Hidden2 = f, h1, h2
	}
	respondJSON(w, http.StatusOK, info)
}

// handlePredict classifies one request body
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, wsReadLimit)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondJSON(w, http.StatusBadRequest, invalidRequest(err))
		return
	}

	resp := h.predict(r.Context(), req)
	respondJSON(w, statusFor(resp), resp)
}

// predict runs the predictor inside a span and builds the wire response
func (h *Handler) predict(ctx context.Context, req models.PredictRequest) models.PredictResponse {
	_, span := h.tracer.Start(ctx, "predict", trace.WithAttributes(
		attribute.String("input.sex", req.Sex),
	))
	defer span.End()

	resp := models.PredictResponse{ID: uuid.New().String()}

	if h.pred == nil {
		err := errors.New("model not loaded")
		resp.Error, resp.Kind = err.Error(), predictor.KindComputation.String()
		resp.Message = predictor.MessageFor(err)
		span.SetStatus(codes.Error, err.Error())
		return resp
	}

	age, height, err := requestValues(req)
	if err == nil {
		span.SetAttributes(
			attribute.Float64("input.age_months", age),
			attribute.Float64("input.height_cm", height),
		)
	}

	var result predictor.Result
	if err == nil {
		result, err = h.pred.Predict(age, req.Sex, height)
	}
	if err != nil {
		resp.Message = predictor.MessageFor(err)
		resp.Error = err.Error()
		resp.Kind = predictor.KindComputation.String()

		var pe *predictor.Error
		if errors.As(err, &pe) {
			resp.Kind = pe.Kind.String()
			resp.Field = pe.Field
			resp.Error = pe.Err.Error()
		}
		span.SetAttributes(attribute.String("error.kind", resp.Kind))
		span.SetStatus(codes.Error, resp.Error)

		if resp.Kind == predictor.KindComputation.String() {
			h.logger.Error("prediction failed", zap.String("id", resp.ID), zap.Error(err))
		} else {
			h.logger.Debug("prediction rejected", zap.String("id", resp.ID), zap.String("field", resp.Field), zap.Error(err))
		}
		return resp
	}

	labels := predictor.Labels()
	resp.Label = result.Label()
	resp.Message = resp.Label
	resp.Features = result.Features
	resp.Probabilities = make(map[string]float64, len(labels))
	for i, p := range result.Probabilities {
		resp.Probabilities[labels[i]] = p
	}
	span.SetAttributes(attribute.String("result.label", resp.Label))
	return resp
}

// requestValues unwraps the numeric fields; a missing or null one is invalid input
func requestValues(req models.PredictRequest) (age, height float64, err error) {
	if req.AgeMonths == nil {
		return 0, 0, predictor.InvalidInput(predictor.FieldAge, errors.New("Umur harus berupa angka"))
	}
	if req.HeightCm == nil {
		return 0, 0, predictor.InvalidInput(predictor.FieldHeight, errors.New("Tinggi Badan harus berupa angka"))
	}
	return *req.AgeMonths, *req.HeightCm, nil
}

// invalidRequest builds the response for a body that is not a predict request
func invalidRequest(err error) models.PredictResponse {
	pe := predictor.InvalidInput("", errors.New("request tidak valid"))
	return models.PredictResponse{
		ID:      uuid.New().String(),
		Error:   "invalid request body: " + err.Error(),
		Kind:    pe.Kind.String(),
		Message: pe.UserMessage(),
	}
}

// statusFor maps the error kind of a response onto an HTTP status
func statusFor(resp models.PredictResponse) int {
	switch resp.Kind {
	case "":
		return http.StatusOK
	case predictor.KindInvalidInput.String():
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleWebSocket answers each predict request frame with a predict response.
// Errors, including malformed frames, are replied in-band.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var resp models.PredictResponse
		var req models.PredictRequest
		if err := json.Unmarshal(data, &req); err != nil {
			resp = invalidRequest(err)
		} else {
			resp = h.predict(r.Context(), req)
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}
