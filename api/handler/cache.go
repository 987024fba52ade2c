package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/pkg/httpcontext"
	appLogger "github.com/fastygo/entitycache/pkg/logger"
	"github.com/fastygo/entitycache/usecase/objects"
)

// CacheHandler exposes cache administration. Mutations need an authenticated subject.
type CacheHandler struct {
	baseHandler
	manager *objects.Manager
}

func NewCacheHandler(manager *objects.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{
		baseHandler: newBaseHandler(adapter, logger),
		manager:     manager,
	}
}

// @Summary Cache statistics
// @Tags cache
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) Stats(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.manager.Cache().Stats())
}

// @Summary Evict one object
// @Tags cache
// @Router /api/v1/cache/{id} [delete]
func (h *CacheHandler) Evict(ctx *fasthttp.RequestCtx) {
	if !h.authorized(ctx) {
		return
	}
	id := pathParam(ctx, "id")
	if !h.manager.Untrack(id) {
		h.respondError(ctx, domain.ObjectNotFound("", id))
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Drop every cached object
// @Tags cache
// @Router /api/v1/cache/reset [post]
func (h *CacheHandler) Reset(ctx *fasthttp.RequestCtx) {
	if !h.authorized(ctx) {
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int{"dropped": h.manager.Reset()})
}

// @Summary Persist modified objects
// @Tags cache
// @Router /api/v1/cache/flush [post]
func (h *CacheHandler) Flush(ctx *fasthttp.RequestCtx) {
	if !h.authorized(ctx) {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.manager.Flush(stdCtx)
	if err != nil {
		appLogger.WithRequestID(stdCtx, h.logger).Warn("flush incomplete", zap.Int("failed", res.Failed), zap.Error(err))
	}
	h.respondSuccess(ctx, http.StatusOK, res)
}

func (h *CacheHandler) authorized(ctx *fasthttp.RequestCtx) bool {
	if string(ctx.Request.Header.Peek(httpcontext.HeaderSubject)) == "" {
		h.respondError(ctx, domain.ErrUnauthorized)
		return false
	}
	return true
}
