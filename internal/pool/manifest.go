package pool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ManifestSource reports which models a server can currently serve.
type ManifestSource interface {
	FetchModels(ctx context.Context, baseURL string) ([]string, error)
}

// maxManifestBytes bounds the /v1/models body we are willing to decode.
const maxManifestBytes = 4 << 20

// HTTPManifestClient queries the OpenAI-compatible GET {url}/v1/models endpoint.
type HTTPManifestClient struct {
	httpClient *http.Client
}

// NewHTTPManifestClient wraps client, or builds one with short dial timeouts
// when client is nil. Deadlines come from the per-call context.
func NewHTTPManifestClient(client *http.Client) *HTTPManifestClient {
	if client == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		client = &http.Client{Transport: tr}
	}
	return &HTTPManifestClient{httpClient: client}
}

type modelsResponse struct {
	Data []struct {
		ID *string `json:"id"`
	} `json:"data"`
}

// FetchModels returns the model ids listed by baseURL. A missing "data" key is
// an empty catalog; an entry without an id is malformed.
func (c *HTTPManifestClient) FetchModels(ctx context.Context, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError{code: resp.StatusCode}
	}
	var body modelsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestBytes)).Decode(&body); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		if m.ID == nil {
			return nil, errors.New("model entry without id")
		}
		ids = append(ids, *m.ID)
	}
	return ids, nil
}
