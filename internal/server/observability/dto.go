// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

// StatusResponse é retornado por GET /api/v1/status.
type StatusResponse struct {
	Status           string        `json:"status"`
	Uptime           string        `json:"uptime"`
	Version          string        `json:"version"`
	Go               string        `json:"go"`
	BetsStored       int64         `json:"bets_stored"`
	ActiveSessions   int           `json:"active_sessions"`
	AgenciesDone     int           `json:"agencies_done"`
	RequiredAgencies int           `json:"required_agencies"`
	DrawComplete     bool          `json:"draw_complete"`
	Stats            *RuntimeStats `json:"stats,omitempty"`
}

// RuntimeStats são as métricas de processo e de máquina coletadas pelo monitor.
type RuntimeStats struct {
	GoRoutines       int     `json:"goroutines"`
	HeapAllocMB      float64 `json:"heap_alloc_mb"`
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryPercent    float64 `json:"memory_percent"`
	DiskUsagePercent float64 `json:"disk_usage_percent"`
	LoadAverage      float64 `json:"load_average"`
}

// SessionSummary é uma sessão ativa na lista de GET /api/v1/sessions.
type SessionSummary struct {
	SessionID    uint64 `json:"session_id"`
	Agency       int    `json:"agency,omitempty"` // 0 até o handshake completar
	RemoteAddr   string `json:"remote_addr"`
	State        string `json:"state"` // handshake | receiving | serving_winners
	StartedAt    string `json:"started_at"`
	LastActivity string `json:"last_activity"`
	Batches      int64  `json:"batches"`
	Bets         int64  `json:"bets"`
}

// SessionHistoryEntry é uma sessão finalizada, mantida em ring in-memory.
type SessionHistoryEntry struct {
	SessionID  uint64 `json:"session_id"`
	Agency     int    `json:"agency,omitempty"`
	RemoteAddr string `json:"remote_addr"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
	Batches    int64  `json:"batches"`
	Bets       int64  `json:"bets"`

	// Outcome: end | winners_served | winners_refused | disconnect |
	// protocol_error | parse_error | io_error | shutdown
	Outcome string `json:"outcome"`
}

// SessionsResponse é retornado por GET /api/v1/sessions.
type SessionsResponse struct {
	Active []SessionSummary      `json:"active"`
	Recent []SessionHistoryEntry `json:"recent"`
}

// AgencySummary agrega os números de uma agência em GET /api/v1/agencies.
type AgencySummary struct {
	Agency          int    `json:"agency"`
	Sessions        int64  `json:"sessions"`
	BatchesStored   int64  `json:"batches_stored"`
	BetsStored      int64  `json:"bets_stored"`
	RejectedBatches int64  `json:"rejected_batches"`
	EndReceived     bool   `json:"end_received"`
	EndAt           string `json:"end_at,omitempty"`
	WinnersServed   int64  `json:"winners_served"`
	LastSeen        string `json:"last_seen"`
}

// EventEntry representa um evento operacional no ring buffer.
type EventEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"` // info | warn | error
	Type      string `json:"type"`  // session_open | batch_stored | batch_rejected | end | winners_served | protocol_error | shutdown | archive | log
	Agency    int    `json:"agency,omitempty"`
	Session   uint64 `json:"session,omitempty"`
	Message   string `json:"message"`
}
