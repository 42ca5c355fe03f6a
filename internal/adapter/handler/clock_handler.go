package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/adapter/clock"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

type TimeResponse struct {
	CurrentTime int64 `json:"current_time"`
}

type AdvanceRequest struct {
	ToTime int64 `json:"to_time"`
}

type TickRequest struct {
	Delta int64 `json:"delta"`
}

type ResetRequest struct {
	Time int64 `json:"time"`
}

type AutoRequest struct {
	IntervalSeconds float64 `json:"interval_seconds"`
	Delta           int64   `json:"delta"`
}

type AutoResponse struct {
	Status          string  `json:"status"`
	IntervalSeconds float64 `json:"interval_seconds,omitempty"`
	Delta           int64   `json:"delta,omitempty"`
}

// ClockHandler exposes a simulation clock over HTTP and streams every time
// change to websocket subscribers.
type ClockHandler struct {
	clock    *clock.SimulationClock
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewClockHandler(c *clock.SimulationClock, logger *zap.Logger) *ClockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClockHandler{
		clock: c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *ClockHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(requestLogging(h.logger))
		r.Get("/time", h.Time)
		r.Post("/advance", h.Advance)
		r.Post("/tick", h.Tick)
		r.Post("/reset", h.Reset)
		r.Post("/start_auto", h.StartAuto)
		r.Post("/stop_auto", h.StopAuto)
		r.Get("/status", h.Status)
	})
	// the upgrade needs the raw ResponseWriter
	r.Get("/ws", h.Stream)

	return r
}

func (h *ClockHandler) Time(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TimeResponse{CurrentTime: h.clock.Now()})
}

func (h *ClockHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.clock.Advance(req.ToTime); err != nil {
		writeClockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TimeResponse{CurrentTime: h.clock.Now()})
}

// Tick treats an empty body as a single-unit tick.
func (h *ClockHandler) Tick(w http.ResponseWriter, r *http.Request) {
	req := TickRequest{Delta: 1}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	now, err := h.clock.Tick(req.Delta)
	if err != nil {
		writeClockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TimeResponse{CurrentTime: now})
}

func (h *ClockHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	h.clock.Reset(req.Time)
	writeJSON(w, http.StatusOK, TimeResponse{CurrentTime: h.clock.Now()})
}

func (h *ClockHandler) StartAuto(w http.ResponseWriter, r *http.Request) {
	req := AutoRequest{IntervalSeconds: 1, Delta: 1}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	interval := time.Duration(req.IntervalSeconds * float64(time.Second))
	if err := h.clock.StartAuto(interval, req.Delta); err != nil {
		writeClockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AutoResponse{
		Status:          "auto started",
		IntervalSeconds: req.IntervalSeconds,
		Delta:           req.Delta,
	})
}

func (h *ClockHandler) StopAuto(w http.ResponseWriter, r *http.Request) {
	h.clock.StopAuto()
	writeJSON(w, http.StatusOK, AutoResponse{Status: "auto stopped"})
}

func (h *ClockHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.clock.Status())
}

// Stream pushes the current time on connect and after every change until
// the client goes away.
func (h *ClockHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.clock.Subscribe()
	defer cancel()

	// drain client frames so close and pong control messages are processed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(t int64) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(TimeResponse{CurrentTime: t})
	}
	if err := send(h.clock.Now()); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case t, ok := <-updates:
			if !ok {
				return
			}
			if err := send(t); err != nil {
				h.logger.Debug("Websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func writeClockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clock.ErrNotIncreasing), errors.Is(err, clock.ErrInvalidAuto):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// decodeOptional leaves v untouched when the request has no body.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
