package types

// ServerStatus summarizes one backend server for /status.
type ServerStatus struct {
	// Base URL of the backend; also the value handed out by /acquire.
	// example: http://10.0.0.5:8000
	URL string `json:"url" example:"http://10.0.0.5:8000"`
	// Models the server reported in its last manifest refresh.
	// example: ["llama-3.1-8b","qwen2.5-7b"]
	Models []string `json:"models"`
	// Slots currently granted on this server.
	// example: 1
	ActiveRequests int `json:"active_requests" example:"1"`
	// Slot capacity of this server.
	// example: 2
	MaxConcurrency int `json:"max_concurrency" example:"2"`
	// Model pinned while the server has active requests; empty when idle.
	// example: llama-3.1-8b
	CurrentModel string `json:"current_model,omitempty" example:"llama-3.1-8b"`
}

// OpenAIModel is one entry of the OpenAI-compatible model list.
type OpenAIModel struct {
	ID      string `json:"id" example:"llama-3.1-8b"`
	Object  string `json:"object" example:"model"`
	OwnedBy string `json:"owned_by,omitempty" example:"inferpool"`
}

// OpenAIModelList is returned by GET /v1/models.
type OpenAIModelList struct {
	Object string        `json:"object" example:"list"`
	Data   []OpenAIModel `json:"data"`
}
