// Package router wires gin routes for the billing API.
package router

import (
	"net/http"

	"github.com/clubledger/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	health     gin.HandlerFunc
	metrics    http.Handler
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithHealthHandler sets the handler behind GET /health
func WithHealthHandler(h gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.health = h
	}
}

// WithMetricsHandler exposes the handler behind GET /metrics
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(r *Router) {
		r.metrics = h
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	if r.health != nil {
		r.engine.GET("/health", r.health)
	}
	if r.metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(r.metrics))
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// NewEngine builds a gin engine with request logging and panic
// recovery attached.
func NewEngine(log *zap.Logger, trustedProxies []string) (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(logger.GinMiddleware(log), logger.Recovery(log))
	if err := engine.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	return engine, nil
}
