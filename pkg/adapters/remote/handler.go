package remote

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/aretw0/notetaker/pkg/core"
)

const (
	writeWait   = 5 * time.Second
	eventsRoute = "/notes/events/{type}"
)

// HandlerConfig holds the configuration for the HTTP handler.
type HandlerConfig struct {
	Token   string // when set, every request must carry it as a bearer token
	Logger  *slog.Logger
	Metrics *Metrics // optional
}

type handler struct {
	svc      core.RemoteService
	config   HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler exposes svc over HTTP using the protocol spoken by Client.
func NewHandler(svc core.RemoteService, config HandlerConfig) http.Handler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	h := &handler{
		svc:    svc,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	r := mux.NewRouter()
	r.Use(h.logRequests, h.authenticate)

	r.Methods(http.MethodGet).Path("/notes").HandlerFunc(h.list)
	r.Methods(http.MethodPost).Path("/notes").HandlerFunc(h.create)
	r.Methods(http.MethodPut).Path("/notes/{id}").HandlerFunc(h.update)
	r.Methods(http.MethodDelete).Path("/notes/{id}").HandlerFunc(h.delete)
	r.Methods(http.MethodGet).Path(eventsRoute).HandlerFunc(h.events)
	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		h.config.Metrics.observeRequest(r, m.Code, m.Duration)
		h.config.Logger.Info("handled", "method", r.Method, "url", r.URL, "duration", m.Duration, "status", m.Code)
	})
}

func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.Token != "" {
			want := "Bearer " + h.config.Token
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				writeError(w, http.StatusUnauthorized, errors.New("missing or invalid token"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if notes == nil {
		notes = []core.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := h.svc.Create(r.Context(), body.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], body.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedBody{ID: id})
}

// events streams one push type over a websocket. The subscription is taken
// before the upgrade, so everything committed after the handshake is delivered.
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	t := core.EventType(mux.Vars(r)["type"])

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.svc.Subscribe(ctx, t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.config.Logger.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	h.config.Metrics.streamOpened(t)
	defer h.config.Metrics.streamClosed(t)

	// The client never sends data; reading only detects it going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case e, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				h.config.Logger.Error("failed to push", "type", t, "id", e.ID, "err", err)
				return
			}
			h.config.Metrics.eventPushed(t)
		}
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrEmptyID), errors.Is(err, core.ErrEmptyText), errors.Is(err, core.ErrUnsupportedEvent):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.config.Logger.Error("request failed", "method", r.Method, "url", r.URL, "err", err)
	}
	writeError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
