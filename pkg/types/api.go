package types

// AcquireRequest asks for exclusive use of one slot able to serve Model.
type AcquireRequest struct {
	// Model identifier as reported by the backends' /v1/models.
	// example: llama-3.1-8b
	Model string `json:"model" example:"llama-3.1-8b"`
}

// AcquireResponse carries the granted server. The caller must POST it to
// /release exactly once when done.
type AcquireResponse struct {
	// Base URL of the granted server.
	// example: http://10.0.0.5:8000
	URL string `json:"url" example:"http://10.0.0.5:8000"`
}

// ReleaseRequest returns a slot obtained from /acquire.
type ReleaseRequest struct {
	// example: http://10.0.0.5:8000
	URL string `json:"url" example:"http://10.0.0.5:8000"`
}

// ConcurrencyRequest sets the per-server slot count. Values below 1 become 1.
type ConcurrencyRequest struct {
	// example: 4
	MaxConcurrency int `json:"max_concurrency" example:"4"`
}

// ConcurrencyResponse reports the effective per-server slot count.
type ConcurrencyResponse struct {
	// example: 4
	MaxConcurrency int `json:"max_concurrency" example:"4"`
}

// ModelsResponse wraps the union of all server catalogs returned by GET /models.
type ModelsResponse struct {
	// Sorted model identifiers.
	Models []string `json:"models"`
}

// ServerURLResponse is returned by GET /servers/{index}.
type ServerURLResponse struct {
	// Position in the configured server list, starting at 0.
	// example: 0
	Index int `json:"index" example:"0"`
	// example: http://10.0.0.5:8000
	URL string `json:"url" example:"http://10.0.0.5:8000"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Backend servers in configuration order.
	Servers []ServerStatus `json:"servers"`
	// Requests waiting for a slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Per-server slot capacity.
	// example: 1
	MaxConcurrency int `json:"max_concurrency" example:"1"`
	// Matching loop lifecycle: not_started, running or terminated.
	// example: running
	Dispatcher string `json:"dispatcher" example:"running"`
	// Slots granted across all servers.
	// example: 1
	ActiveRequests int `json:"active_requests" example:"1"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Time of the last completed manifest refresh (unix seconds, 0 if none).
	// example: 1700000000
	LastRefreshUnix int64 `json:"last_refresh_unix" example:"1700000000"`
}
