package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/partsmarket/internal/httpx"
)

// Handler fronts the catalog, inventory and orders services. Catalog and
// inventory routes are published under a service prefix that is stripped
// before forwarding; order routes pass through unchanged.
type Handler struct {
	catalogProxy   *ServiceProxy
	inventoryProxy *ServiceProxy
	ordersProxy    *ServiceProxy
	logger         *slog.Logger
}

func NewHandler(catalogProxy, inventoryProxy, ordersProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		catalogProxy:   catalogProxy,
		inventoryProxy: inventoryProxy,
		ordersProxy:    ordersProxy,
		logger:         logger,
	}
}

// Routes registers the public surface on mux. wrap decorates each handler,
// typically with route tagging for traces.
func (h *Handler) Routes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/catalog/", wrap(h.HandleCatalog))
	mux.HandleFunc("/inventory/", wrap(h.HandleInventory))
	mux.HandleFunc("/orders", wrap(h.HandleOrders))
	mux.HandleFunc("/orders/", wrap(h.HandleOrders))
	mux.HandleFunc("/suppliers/", wrap(h.HandleOrders))
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.catalogProxy, strings.TrimPrefix(r.URL.Path, "/catalog"))
}

func (h *Handler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.inventoryProxy, strings.TrimPrefix(r.URL.Path, "/inventory"))
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		httpx.WriteError(w, h.logger, http.StatusBadGateway, "bad_gateway", "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}
