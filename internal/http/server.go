package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/config"
	"github.com/jmehdipour/topic-notifier/internal/http/middleware"
	"github.com/jmehdipour/topic-notifier/internal/metrics"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the services behind the routes.
type Deps struct {
	Users         repository.UsersRepository
	Subscriptions SubscriptionLister
	Toggler       Toggler
	Articles      ArticlePublisher
	Deliveries    DeliveryLister
	Redis         *redis.Client
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	authMW := middleware.APIKeyMiddleware(d.Users)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:user:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/courses/subscribe/:slug", toggleHandler(d.Toggler.ToggleCourse))
	v1.POST("/degrees/subscribe/:slug", toggleHandler(d.Toggler.ToggleDegree))
	v1.POST("/courses/:slug/articles", publishArticleHandler(d.Articles))
	v1.GET("/subscriptions", listSubscriptionsHandler(d.Subscriptions))
	v1.GET("/reports/deliveries", listDeliveriesHandler(d.Deliveries))

	return &Server{e: e, log: log}
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
