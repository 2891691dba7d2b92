// Package gateway forwards OpenAI-compatible requests to a backend granted by
// the broker and returns the slot once the exchange is over.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferpool/internal/httpapi"
	"inferpool/pkg/types"
)

// Leaser hands out and takes back backend slots.
type Leaser interface {
	Acquire(ctx context.Context, model string) (string, error)
	Release(url string) error
	AvailableModels() []string
}

const defaultMaxBodyBytes int64 = 8 << 20

// Gateway proxies inference calls.
type Gateway struct {
	leaser       Leaser
	base         context.Context
	log          zerolog.Logger
	transport    http.RoundTripper
	maxBodyBytes int64
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithLogger(l zerolog.Logger) Option { return func(g *Gateway) { g.log = l } }

// WithBaseContext ends queued requests with 503 once ctx is done.
func WithBaseContext(ctx context.Context) Option {
	return func(g *Gateway) {
		if ctx != nil {
			g.base = ctx
		}
	}
}

// WithTransport replaces the upstream round tripper (tests, custom TLS).
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) {
		if rt != nil {
			g.transport = rt
		}
	}
}

// WithMaxBodyBytes bounds request bodies; <= 0 keeps the default (8 MiB).
func WithMaxBodyBytes(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBodyBytes = n
		}
	}
}

func New(l Leaser, opts ...Option) *Gateway {
	g := &Gateway{
		leaser:       l,
		base:         context.Background(),
		log:          zerolog.Nop(),
		transport:    http.DefaultTransport,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mount registers the OpenAI-compatible routes on r.
func (g *Gateway) Mount(r chi.Router) {
	r.Get("/v1/models", g.handleModels)
	r.Post("/v1/chat/completions", g.handleProxy)
	r.Post("/v1/completions", g.handleProxy)
	r.Post("/v1/embeddings", g.handleProxy)
}

// handleModels godoc
// @Summary      List models (OpenAI format)
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  types.OpenAIModelList
// @Router       /v1/models [get]
func (g *Gateway) handleModels(w http.ResponseWriter, r *http.Request) {
	ids := g.leaser.AvailableModels()
	list := types.OpenAIModelList{Object: "list", Data: make([]types.OpenAIModel, 0, len(ids))}
	for _, id := range ids {
		list.Data = append(list.Data, types.OpenAIModel{ID: id, Object: "model", OwnedBy: "inferpool"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// handleProxy godoc
// @Summary      Forward an inference request
// @Description  Waits for a free slot on a server that serves the requested model, forwards the request unchanged and streams the response back.
// @Tags         gateway
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /v1/chat/completions [post]
func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBodyBytes))
	if err != nil {
		httpapi.WriteJSONError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		httpapi.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if probe.Model == "" {
		httpapi.WriteJSONError(w, http.StatusBadRequest, "model is required")
		return
	}

	reqID := middleware.GetReqID(r.Context())
	if reqID == "" {
		reqID = uuid.NewString()
	}
	logger := g.log.With().Str("request_id", reqID).Str("model", probe.Model).Logger()

	queued := time.Now()
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(g.base, cancel)
	backend, err := g.leaser.Acquire(ctx, probe.Model)
	stop()
	cancel()
	if err != nil {
		switch {
		case r.Context().Err() != nil:
			logger.Info().Dur("waited", time.Since(queued)).Msg("client gave up while queued")
			upstreamTotal.WithLabelValues("abandoned").Inc()
		case g.base.Err() != nil:
			upstreamTotal.WithLabelValues("shutdown").Inc()
			httpapi.WriteJSONError(w, http.StatusServiceUnavailable, "server shutting down")
		default:
			httpapi.WriteJSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	defer func() {
		if err := g.leaser.Release(backend); err != nil {
			logger.Error().Err(err).Str("server", backend).Msg("release failed")
		}
	}()
	queueWait.Observe(time.Since(queued).Seconds())

	target, err := url.Parse(backend)
	if err != nil {
		httpapi.WriteJSONError(w, http.StatusBadGateway, "invalid backend url")
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))

	start := time.Now()
	outcome := "ok"
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Set("X-Request-ID", reqID)
		},
		Transport:     g.transport,
		FlushInterval: -1, // stream tokens as they arrive
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode >= 500 {
				outcome = "upstream_error"
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			outcome = "transport_error"
			logger.Warn().Err(err).Str("server", backend).Msg("upstream request failed")
			httpapi.WriteJSONError(w, http.StatusBadGateway, "backend unavailable")
		},
	}
	logger.Debug().Str("server", backend).Str("path", r.URL.Path).Msg("forwarding")
	rp.ServeHTTP(w, r)
	upstreamTotal.WithLabelValues(outcome).Inc()
	upstreamDuration.Observe(time.Since(start).Seconds())
	logger.Info().Str("server", backend).Str("outcome", outcome).Dur("dur", time.Since(start)).Msg("exchange done")
}
