package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/joao-fontenele/partsmarket/internal/httpx"
)

// forwardedHeaders are copied from the client request to the upstream service.
var forwardedHeaders = []string{
	"Content-Type",
	"Accept",
	httpx.UserIDHeader,
	httpx.SessionKeyHeader,
}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// ForwardRequest replays r against path on the upstream, keeping the query
// string and the identity headers.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if ip := clientIP(r); ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	return p.client.Do(req)
}
