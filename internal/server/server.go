package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountingdomain "github.com/smallbiznis/patronage/internal/accounting/domain"
	"github.com/smallbiznis/patronage/internal/config"
	identitydomain "github.com/smallbiznis/patronage/internal/identity/domain"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/patronage/internal/observability/metrics"
	"github.com/smallbiznis/patronage/internal/scheduler"
	snapshotdomain "github.com/smallbiznis/patronage/internal/snapshot/domain"
	subscriptiondomain "github.com/smallbiznis/patronage/internal/subscription/domain"
	"github.com/smallbiznis/patronage/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authn           identitydomain.Authenticator
	ledgerSvc       ledgerdomain.Service
	accountingSvc   accountingdomain.Service
	subscriptionSvc subscriptiondomain.Service
	snapshotSvc     snapshotdomain.Service
	scheduler       *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Authn           identitydomain.Authenticator
	LedgerSvc       ledgerdomain.Service
	AccountingSvc   accountingdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	SnapshotSvc     snapshotdomain.Service
	Scheduler       *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authn:           p.Authn,
		ledgerSvc:       p.LedgerSvc,
		accountingSvc:   p.AccountingSvc,
		subscriptionSvc: p.SubscriptionSvc,
		snapshotSvc:     p.SnapshotSvc,
		scheduler:       p.Scheduler,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.AuthRequired())

	v1.GET("/balance", s.GetBalance)
	v1.GET("/treasury", s.GetTreasury)

	v1.POST("/deposits/confirm", s.ConfirmDeposit)
	v1.POST("/withdrawals", s.Withdraw)

	v1.POST("/subscriptions", s.CreateSubscription)
	v1.GET("/subscriptions", s.ListSubscriptions)
	v1.GET("/subscriptions/:id", s.GetSubscriptionByID)
	v1.DELETE("/subscriptions/:id", s.CancelSubscription)

	v1.POST("/billing/run", s.RunBillingCycle)

	v1.GET("/snapshot", s.GetSnapshot)
	v1.POST("/snapshot/restore", s.RestoreSnapshot)
}

// RequestID tags every request context with an id so handler logs can be
// correlated. An id supplied by the caller wins over a generated one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxlogger.ContextWithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
