package trip

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner/internal/api"
	"github.com/FACorreiaa/go-trip-planner/internal/api/generation"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ChatHandler(w http.ResponseWriter, r *http.Request)
	ProgressHandler(w http.ResponseWriter, r *http.Request)
	GetSessionHandler(w http.ResponseWriter, r *http.Request)
	DeleteSessionHandler(w http.ResponseWriter, r *http.Request)
	GetItineraryHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatHandler accepts one chat turn. A missing session_id starts a new
// session; the assigned ID comes back in the response.
func (h *HandlerImpl) ChatHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "Chat")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ChatHandler"))

	var req chatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.ErrorContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		span.SetStatus(codes.Error, "Empty message")
		api.ErrorResponse(w, r, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	span.SetAttributes(attribute.String("session.id", req.SessionID))

	resp, err := h.service.HandleMessage(ctx, req.SessionID, req.Message)
	if err != nil {
		l.ErrorContext(ctx, "Chat turn failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Chat turn failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process message")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// ProgressHandler returns the latest snapshot for a running or recently
// finished generation.
func (h *HandlerImpl) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "Progress")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ProgressHandler"))

	generationID := r.URL.Query().Get("generationId")
	if generationID == "" {
		span.SetStatus(codes.Error, "Missing generationId")
		api.ErrorResponse(w, r, http.StatusBadRequest, "generationId query parameter is required")
		return
	}
	span.SetAttributes(attribute.String("generation.id", generationID))

	snapshot, err := h.service.GetProgress(generationID)
	if err != nil {
		if errors.Is(err, generation.ErrProgressNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Unknown or expired generation")
			return
		}
		l.ErrorContext(ctx, "Progress lookup failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Progress lookup failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch progress")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, snapshot)
}

func (h *HandlerImpl) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("TripHandler").Start(r.Context(), "GetSession")
	defer span.End()

	sessionID := chi.URLParam(r, "sessionID")
	span.SetAttributes(attribute.String("session.id", sessionID))

	state, ok := h.service.GetSession(sessionID)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "Session not found or expired")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, state)
}

func (h *HandlerImpl) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("TripHandler").Start(r.Context(), "DeleteSession")
	defer span.End()

	sessionID := chi.URLParam(r, "sessionID")
	span.SetAttributes(attribute.String("session.id", sessionID))

	h.service.ClearSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HandlerImpl) GetItineraryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "GetItinerary")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetItineraryHandler"))

	itineraryID, err := uuid.Parse(chi.URLParam(r, "itineraryID"))
	if err != nil {
		span.SetStatus(codes.Error, "Invalid itinerary ID")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid itinerary ID")
		return
	}
	span.SetAttributes(attribute.String("itinerary.id", itineraryID.String()))

	itinerary, err := h.service.GetItinerary(ctx, itineraryID)
	if err != nil {
		if errors.Is(err, ErrItineraryNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Itinerary not found")
			return
		}
		l.ErrorContext(ctx, "Itinerary lookup failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary lookup failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch itinerary")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, itinerary)
}
