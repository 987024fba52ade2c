package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/entitycache/api/transport"
	"github.com/fastygo/entitycache/internal/infrastructure/monitor"
	"github.com/fastygo/entitycache/pkg/httpcontext"
)

// HealthSource reports dependency status.
type HealthSource interface {
	GetStatus() monitor.Status
	IsOnline() bool
}

// CacheSizer reports how many objects are tracked.
type CacheSizer interface {
	Len() int
}

type HealthHandler struct {
	baseHandler
	monitor HealthSource
	cache   CacheSizer
}

func NewHealthHandler(mon HealthSource, cache CacheSizer, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		cache:       cache,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]any{
		"timestamp": time.Now().UTC(),
		"tiers":     status.Tiers,
		"buffer": map[string]any{
			"online": status.Buffer,
			"size":   status.BufferSize,
		},
		"last_check": status.LastCheck,
	}
	if h.cache != nil {
		payload["cached_objects"] = h.cache.Len()
	}

	if h.monitor.IsOnline() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
