package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/entitycache/api/handler"
)

type Handlers struct {
	Objects *apiHandler.ObjectHandler
	Cache   *apiHandler.CacheHandler
	Health  *apiHandler.HealthHandler
}

// New wires the API. identity runs on every /api route and resolves the request subject.
func New(handlers Handlers, identity func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	if identity == nil {
		identity = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	r.GET("/api/v1/objects/{type}", identity(handlers.Objects.List))
	r.POST("/api/v1/objects/{type}", identity(handlers.Objects.Create))
	r.POST("/api/v1/objects/{type}/batch", identity(handlers.Objects.Batch))
	r.GET("/api/v1/objects/{type}/{id}", identity(handlers.Objects.Get))
	r.PUT("/api/v1/objects/{type}/{id}", identity(handlers.Objects.Update))
	r.DELETE("/api/v1/objects/{type}/{id}", identity(handlers.Objects.Delete))

	r.GET("/api/v1/cache/stats", identity(handlers.Cache.Stats))
	r.POST("/api/v1/cache/reset", identity(handlers.Cache.Reset))
	r.POST("/api/v1/cache/flush", identity(handlers.Cache.Flush))
	r.DELETE("/api/v1/cache/{id}", identity(handlers.Cache.Evict))

	return r
}
