package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/logger"
	"github.com/teranos/promanage/version"
)

// HandleSchedule triggers a scheduling run and returns the scheduled items in slot order.
// With ?dry_run=true the plan is computed but nothing is written.
func (s *Server) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logger.LoggerFromContext(r.Context(), s.logger)

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	if dryRun {
		result, err := s.service.Preview(r.Context())
		if err != nil {
			writeWrappedError(w, log, err, "Scheduling preview failed")
			return
		}
		writeJSON(w, http.StatusOK, newScheduleResponse(result))
		return
	}

	if limiter := s.rateLimiter(); limiter != nil && !limiter.Allow() {
		err := errors.WithDetailf(errors.ErrRateLimited,
			"server.schedule_runs_per_minute = %d", s.config().Server.ScheduleRunsPerMinute)
		writeWrappedError(w, log, err, "Scheduling run rejected")
		return
	}

	result, err := s.service.Run(r.Context())
	if err != nil {
		writeWrappedError(w, log, err, "Scheduling run failed")
		return
	}
	writeJSON(w, http.StatusOK, newScheduleResponse(result))
}

// HandleAll lists every work item ordered by id
func (s *Server) HandleAll(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	items, err := s.catalog.LoadAll(r.Context())
	if err != nil {
		writeWrappedError(w, logger.LoggerFromContext(r.Context(), s.logger), err, "Failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleAdd creates a work item. Its status is always PENDING regardless of the body.
func (s *Server) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req item.WorkItem
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	created, err := s.catalog.Add(r.Context(), req)
	if err != nil {
		writeWrappedError(w, logger.LoggerFromContext(r.Context(), s.logger), err, "Failed to add item")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleRuns lists recent scheduling runs, newest first
func (s *Server) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := DefaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be a positive integer, got %q", raw))
			return
		}
		limit = n
	}

	runs, err := s.catalog.ListRuns(r.Context(), limit)
	if err != nil {
		writeWrappedError(w, logger.LoggerFromContext(r.Context(), s.logger), err, "Failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleMaxProfit answers the best schedule over the largest deadline without persisting it
func (s *Server) HandleMaxProfit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	result, err := s.service.MaxProfit(r.Context())
	if err != nil {
		writeWrappedError(w, logger.LoggerFromContext(r.Context(), s.logger), err, "Max profit query failed")
		return
	}
	writeJSON(w, http.StatusOK, newScheduleResponse(result))
}

// HandleHealth serves health check endpoint with version info
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	health := HealthResponse{
		Status:        "ok",
		State:         s.getState().String(),
		Version:       info.Version,
		Commit:        info.CommitHash,
		BuildTime:     info.BuildTime,
		UptimeSeconds: int64(s.timeNow().Sub(s.startedAt) / time.Second),
		Clients:       s.hub.Count(),
	}
	if mem, err := s.memStats(); err == nil {
		health.Memory = mem
	} else {
		s.logger.Debugw("Memory stats unavailable", logger.FieldError, err)
	}

	status := http.StatusOK
	if s.getState() != ServerStateRunning {
		health.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// HandleScheduleWebSocket streams a RunEvent for every persisted run
func (s *Server) HandleScheduleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	id := logger.RequestIDFromContext(r.Context())
	if id == "" {
		id = fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano())
	}
	client := newClient(s.hub, conn, id)
	if !s.hub.register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
