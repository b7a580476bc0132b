package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Rooms       *RoomHandler
	Users       *UserHandler
	Bookings    *BookingHandler
	Invitations *InvitationHandler
	Suggestions *SuggestionHandler
	Hub         *NotificationHub
	Logger      *slog.Logger
	Middleware  []func(http.Handler) http.Handler
}

// NewRouter registers every route. All routes but /healthz require an
// acting user; middleware wraps the whole mux, outermost first.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	requirePrincipal := RequirePrincipal(cfg.Logger, false)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, requirePrincipal(fn))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if h := cfg.Bookings; h != nil {
		handle("POST /availability", h.CheckAvailability)
		handle("GET /bookings", h.List)
		handle("POST /bookings", h.Create)
		handle("POST /bookings/batch", h.CommitBatch)
		handle("GET /bookings/{id}", h.Get)
		handle("PATCH /bookings/{id}", h.Update)
		handle("DELETE /bookings/{id}", h.Delete)
		handle("POST /bookings/{id}/cancel", h.Cancel)
		handle("POST /bookings/{id}/approve", h.Approve)
		handle("POST /bookings/{id}/reject", h.Reject)
	}

	if h := cfg.Invitations; h != nil {
		handle("GET /bookings/{id}/invitations", h.ListForBooking)
		handle("GET /invitations", h.List)
		handle("GET /invitations/counts", h.Counts)
		handle("POST /invitations/{id}/respond", h.Respond)
		handle("PATCH /invitations/{id}/read", h.MarkRead)
		handle("POST /invitations/read-all", h.MarkAllRead)
	}

	if cfg.Hub != nil {
		mux.Handle("GET /invitations/stream", RequirePrincipal(cfg.Logger, true)(http.HandlerFunc(cfg.Hub.ServeWS)))
	}

	if h := cfg.Suggestions; h != nil {
		handle("POST /suggestions", h.Suggest)
	}

	if h := cfg.Rooms; h != nil {
		handle("GET /rooms", h.List)
		handle("POST /rooms", h.Create)
		handle("GET /rooms/{id}", h.Get)
		handle("PUT /rooms/{id}", h.Update)
		handle("DELETE /rooms/{id}", h.Delete)
		handle("PATCH /rooms/{id}/availability", h.SetAvailability)
	}

	if h := cfg.Users; h != nil {
		handle("GET /users", h.List)
		handle("POST /users", h.Create)
		handle("GET /users/{id}", h.Get)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
