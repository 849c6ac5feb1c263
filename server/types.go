package server

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/schedule"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100

	// DefaultShutdownTimeout bounds graceful shutdown when the config sets none
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultRunsLimit caps GET /api/projects/runs without ?limit
	DefaultRunsLimit = 20
)

// ServerState represents the server lifecycle state
type ServerState int32

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

func (s ServerState) String() string {
	switch s {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ScheduleResponse is the payload of a scheduling run or query.
// SelectedProjects are in slot order.
type ScheduleResponse struct {
	SelectedProjects []item.WorkItem `json:"selectedProjects"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
	RunID            string          `json:"runId,omitempty"`
	Capacity         int             `json:"capacity"`
	TrendHigh        bool            `json:"trendHigh"`
	DryRun           bool            `json:"dryRun,omitempty"`
}

func newScheduleResponse(r *schedule.Result) ScheduleResponse {
	selected := r.Scheduled
	if selected == nil {
		selected = []item.WorkItem{}
	}
	return ScheduleResponse{
		SelectedProjects: selected,
		TotalProfit:      r.Total,
		RunID:            r.Run.ID,
		Capacity:         r.Plan.Capacity,
		TrendHigh:        r.Run.TrendHigh,
		DryRun:           r.DryRun,
	}
}

// RunEvent is pushed to /ws/schedule clients after every persisted run
type RunEvent struct {
	Type             string          `json:"type"`
	Run              schedule.Run    `json:"run"`
	SelectedProjects []item.WorkItem `json:"selectedProjects"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
}

func newRunEvent(r schedule.Result) RunEvent {
	selected := r.Scheduled
	if selected == nil {
		selected = []item.WorkItem{}
	}
	return RunEvent{
		Type:             "schedule_run",
		Run:              r.Run,
		SelectedProjects: selected,
		TotalProfit:      r.Total,
	}
}

// HealthResponse is served by /health
type HealthResponse struct {
	Status        string        `json:"status"`
	State         string        `json:"server_state"`
	Version       string        `json:"version"`
	Commit        string        `json:"commit"`
	BuildTime     string        `json:"build_time"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Clients       int           `json:"clients"`
	Memory        *MemoryStatus `json:"memory,omitempty"`
}

// MemoryStatus reports host memory in bytes
type MemoryStatus struct {
	TotalBytes     uint64 `json:"total_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}
