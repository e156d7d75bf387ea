package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	chatdomain "github.com/parleylabs/parley/internal/chat/domain"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/observability"
	obsmiddleware "github.com/parleylabs/parley/internal/observability/logger"
	obsmetrics "github.com/parleylabs/parley/internal/observability/metrics"
	obstracing "github.com/parleylabs/parley/internal/observability/tracing"
	orderdomain "github.com/parleylabs/parley/internal/order/domain"
	paymentdomain "github.com/parleylabs/parley/internal/payment/domain"
	"github.com/parleylabs/parley/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	accountSvc accountdomain.Service
	chatSvc    chatdomain.Service
	orderSvc   orderdomain.Service
	paymentSvc paymentdomain.Service
	msgLimiter *ratelimit.MessageLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	AccountSvc accountdomain.Service
	ChatSvc    chatdomain.Service
	OrderSvc   orderdomain.Service
	PaymentSvc paymentdomain.Service
	MsgLimiter *ratelimit.MessageLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		accountSvc: p.AccountSvc,
		chatSvc:    p.ChatSvc,
		orderSvc:   p.OrderSvc,
		paymentSvc: p.PaymentSvc,
		msgLimiter: p.MsgLimiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.engine.Use(svc.CORS())
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Accounts --------
	api.GET("/user/:externalId", s.GetUser)

	// -------- Chat --------
	api.POST("/messages", s.MessageRateLimit(), s.PostMessage)
	api.GET("/messages/:externalId", s.GetMessages)
	api.POST("/images", s.MessageRateLimit(), s.PostImage)

	// -------- Payments --------
	api.POST("/create-order", s.CreateOrder)
	api.POST("/verify-payment", s.VerifyPayment)
	api.GET("/payments/:externalId", s.ListPayments)

	// -------- Reconciliation --------
	api.GET("/admin/reconciliation/orphan-upgrades", s.ListOrphanUpgrades)
}
