package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/room-booking/internal/application"
)

type suggestionService interface {
	Suggest(ctx context.Context, params application.SuggestParams) ([]application.ActivitySuggestion, error)
}

type SuggestionHandler struct {
	service   suggestionService
	responder responder
	logger    *slog.Logger
}

func NewSuggestionHandler(service suggestionService, logger *slog.Logger) *SuggestionHandler {
	base := defaultLogger(logger)
	return &SuggestionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SuggestionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req suggestRequest
	if err := decodeJSON(r, &req); err != nil {
		handlerLogger(r.Context(), h.logger, "SuggestionHandler", "Suggest").WarnContext(r.Context(), "failed to decode suggestion request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	fe := fieldErrors{}
	params := application.SuggestParams{
		Principal: principal,
		Date:      fe.date("date", req.Date),
		Text:      req.Text,
	}
	for i, a := range req.Activities {
		prefix := "activities[" + strconv.Itoa(i) + "]."
		params.Activities = append(params.Activities, application.ActivityRequest{
			Name:              a.Name,
			Start:             fe.timeOfDay(prefix+"start_time", a.StartTime),
			End:               fe.timeOfDay(prefix+"end_time", a.EndTime),
			ParticipantCount:  a.ParticipantCount,
			RequiredAmenities: a.RequiredAmenities,
		})
	}
	if err := fe.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	suggestions, err := h.service.Suggest(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]suggestionDTO, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionDTO{
			Activity:   toActivityDTO(s.Activity),
			Rooms:      toRoomDTOs(s.Rooms),
			Confidence: s.Confidence,
			Ranked:     s.Ranked,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestResponse{Suggestions: out})
}

type suggestRequest struct {
	Date       string        `json:"date"`
	Text       string        `json:"text"`
	Activities []activityDTO `json:"activities"`
}

type activityDTO struct {
	Name              string   `json:"name"`
	StartTime         string   `json:"start_time"`
	EndTime           string   `json:"end_time"`
	ParticipantCount  int      `json:"participant_count"`
	RequiredAmenities []string `json:"required_amenities,omitempty"`
}

func toActivityDTO(a application.ActivityRequest) activityDTO {
	return activityDTO{
		Name:              a.Name,
		StartTime:         a.Start.String(),
		EndTime:           a.End.String(),
		ParticipantCount:  a.ParticipantCount,
		RequiredAmenities: a.RequiredAmenities,
	}
}

type suggestResponse struct {
	Suggestions []suggestionDTO `json:"suggestions"`
}

type suggestionDTO struct {
	Activity   activityDTO `json:"activity"`
	Rooms      []roomDTO   `json:"rooms"`
	Confidence float64     `json:"confidence,omitempty"`
	Ranked     bool        `json:"ranked"`
}
