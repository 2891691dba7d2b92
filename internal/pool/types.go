package pool

import "sort"

// server is the mutable record for one backend. Only Pool methods touch it,
// always under Pool.mu.
type server struct {
	url            string
	models         map[string]struct{}
	active         int
	maxConcurrency int
	currentModel   string // "" when unpinned
}

func newServer(url string, maxConcurrency int) *server {
	return &server{
		url:            url,
		models:         map[string]struct{}{},
		maxConcurrency: maxConcurrency,
	}
}

func (s *server) busy() bool { return s.active >= s.maxConcurrency }

func (s *server) serves(modelID string) bool {
	_, ok := s.models[modelID]
	return ok
}

// accepts reports whether modelID may be placed here without swapping the
// model under in-flight requests.
func (s *server) accepts(modelID string) bool {
	return s.currentModel == "" || s.currentModel == modelID || s.active == 0
}

func (s *server) setModels(ids []string) {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	s.models = m
}

func (s *server) sortedModels() []string {
	out := make([]string, 0, len(s.models))
	for id := range s.models {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ServerStatus is a read-only projection of one server.
type ServerStatus struct {
	URL            string   `json:"url"`
	Models         []string `json:"models"`
	ActiveRequests int      `json:"active_requests"`
	MaxConcurrency int      `json:"max_concurrency"`
	CurrentModel   string   `json:"current_model,omitempty"`
}
