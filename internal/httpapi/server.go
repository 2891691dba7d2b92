package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferpool/internal/broker"
	"inferpool/internal/pool"
	"inferpool/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	AvailableModels() []string
	Status() types.StatusResponse
	Acquire(ctx context.Context, model string) (string, error)
	Release(url string) error
	Refresh(ctx context.Context) []string
	ServerURL(i int) (string, bool)
	SetMaxConcurrency(n int) int
	Ready() bool
}

// Mounter adds extra routes (the OpenAI gateway) to the router.
type Mounter interface {
	Mount(r chi.Router)
}

func NewMux(svc Service, extra ...Mounter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Get("/models", h.models)
	r.Get("/status", h.status)
	r.Get("/servers/{index}", h.serverURL)
	r.Post("/acquire", h.acquire)
	r.Post("/release", h.release)
	r.Post("/refresh", h.refresh)
	r.Put("/concurrency", h.concurrency)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no models"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	for _, m := range extra {
		m.Mount(r)
	}
	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// models godoc
// @Summary      List servable models
// @Description  Union of the model ids advertised by all backend servers, sorted.
// @Tags         pool
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: h.svc.AvailableModels()})
}

// status godoc
// @Summary      Pool status
// @Tags         pool
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// serverURL godoc
// @Summary      Look up a server by position
// @Tags         pool
// @Produce      json
// @Param        index  path      int  true  "Position in the configured server list"
// @Success      200    {object}  types.ServerURLResponse
// @Failure      400    {object}  types.ErrorResponse
// @Failure      404    {object}  types.ErrorResponse
// @Router       /servers/{index} [get]
func (h *handlers) serverURL(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	url, ok := h.svc.ServerURL(i)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "no server at that index")
		return
	}
	writeJSON(w, http.StatusOK, types.ServerURLResponse{Index: i, URL: url})
}

// acquire godoc
// @Summary      Acquire a slot
// @Description  Blocks until a server that serves the model has a free slot. The caller must POST /release with the returned url when done.
// @Tags         pool
// @Accept       json
// @Produce      json
// @Param        timeout_ms  query     int                  false  "Maximum wait in milliseconds; omitted or 0 uses the server default"
// @Param        body        body      types.AcquireRequest true   "Model to acquire"
// @Success      200         {object}  types.AcquireResponse
// @Failure      400         {object}  types.ErrorResponse
// @Failure      415         {object}  types.ErrorResponse
// @Failure      429         {object}  types.ErrorResponse
// @Failure      503         {object}  types.ErrorResponse
// @Router       /acquire [post]
func (h *handlers) acquire(w http.ResponseWriter, r *http.Request) {
	var req types.AcquireRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		WriteJSONError(w, http.StatusBadRequest, "model is required")
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	logStart(r, lvl, "acquire start", req.Model)

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	wait, err := acquireWait(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if wait > 0 {
		var cancelWait context.CancelFunc
		ctx, cancelWait = context.WithTimeout(ctx, wait)
		defer cancelWait()
	}

	url, err := h.svc.Acquire(ctx, req.Model)
	if err != nil {
		switch {
		case r.Context().Err() != nil:
			// client went away; nothing to write
			return
		case serverBaseCtx.Err() != nil:
			WriteJSONError(w, http.StatusServiceUnavailable, "server shutting down")
			logEnd(r, lvl, "acquire end", http.StatusServiceUnavailable, start, err)
		case errors.Is(err, context.DeadlineExceeded):
			IncrementBackpressure("acquire_timeout")
			WriteJSONError(w, http.StatusTooManyRequests, "no slot became available in time")
			logEnd(r, lvl, "acquire end", http.StatusTooManyRequests, start, err)
		default:
			status := errorStatus(err)
			WriteJSONError(w, status, err.Error())
			logEnd(r, lvl, "acquire end", status, start, err)
		}
		return
	}
	// The grant raced a disconnect: the client will never see the url.
	if r.Context().Err() != nil {
		_ = h.svc.Release(url)
		return
	}
	writeJSON(w, http.StatusOK, types.AcquireResponse{URL: url})
	logEnd(r, lvl, "acquire end", http.StatusOK, start, nil)
}

// release godoc
// @Summary      Release a slot
// @Tags         pool
// @Accept       json
// @Param        body  body  types.ReleaseRequest  true  "Server url returned by /acquire"
// @Success      204
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /release [post]
func (h *handlers) release(w http.ResponseWriter, r *http.Request) {
	var req types.ReleaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		WriteJSONError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := h.svc.Release(req.URL); err != nil {
		WriteJSONError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// refresh godoc
// @Summary      Refresh manifests
// @Description  Re-reads every server's model list and returns the resulting union.
// @Tags         pool
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /refresh [post]
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: h.svc.Refresh(ctx)})
}

// concurrency godoc
// @Summary      Set per-server slot capacity
// @Description  Values below 1 are clamped to 1. Shrinking never evicts active requests.
// @Tags         pool
// @Accept       json
// @Produce      json
// @Param        body  body      types.ConcurrencyRequest  true  "New capacity"
// @Success      200   {object}  types.ConcurrencyResponse
// @Failure      400   {object}  types.ErrorResponse
// @Router       /concurrency [put]
func (h *handlers) concurrency(w http.ResponseWriter, r *http.Request) {
	var req types.ConcurrencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, types.ConcurrencyResponse{MaxConcurrency: h.svc.SetMaxConcurrency(req.MaxConcurrency)})
}

// decodeJSON enforces the content type and body limit and decodes into v. It
// writes the error response itself and reports whether the handler may go on.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// oversize bodies get the same answer as malformed ones
		WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// acquireWait returns the wait bound for /acquire: a positive ?timeout_ms=
// when given, otherwise the configured default (0 waits indefinitely).
func acquireWait(r *http.Request) (time.Duration, error) {
	v := r.URL.Query().Get("timeout_ms")
	if v == "" {
		return acquireTimeout, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, errors.New("timeout_ms must be a non-negative integer")
	}
	if ms == 0 {
		return acquireTimeout, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var he HTTPError
	switch {
	case errors.Is(err, pool.ErrUnknownServer):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrModelRequired):
		return http.StatusBadRequest
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}
