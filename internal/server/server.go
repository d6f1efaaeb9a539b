package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kudibooks/kudibooks/internal/actorctx"
	"github.com/kudibooks/kudibooks/internal/audit"
	auditdomain "github.com/kudibooks/kudibooks/internal/audit/domain"
	"github.com/kudibooks/kudibooks/internal/cache"
	"github.com/kudibooks/kudibooks/internal/companytax"
	companytaxdomain "github.com/kudibooks/kudibooks/internal/companytax/domain"
	"github.com/kudibooks/kudibooks/internal/config"
	"github.com/kudibooks/kudibooks/internal/expense"
	ledgermodule "github.com/kudibooks/kudibooks/internal/ledger"
	ledgerdomain "github.com/kudibooks/kudibooks/internal/ledger/domain"
	"github.com/kudibooks/kudibooks/internal/observability"
	"github.com/kudibooks/kudibooks/internal/payrolltax"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	"github.com/kudibooks/kudibooks/internal/posting"
	postingdomain "github.com/kudibooks/kudibooks/internal/posting/domain"
	"github.com/kudibooks/kudibooks/internal/ratelimit"
	"github.com/kudibooks/kudibooks/internal/reference"
	referencedomain "github.com/kudibooks/kudibooks/internal/reference/domain"
	"github.com/kudibooks/kudibooks/internal/remittance"
	remittancedomain "github.com/kudibooks/kudibooks/internal/remittance/domain"
	"github.com/kudibooks/kudibooks/internal/sale"
	"github.com/kudibooks/kudibooks/internal/taxledger"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	observability.Module,
	audit.Module,
	cache.Module,
	ledgermodule.Module,
	sale.Module,
	expense.Module,
	companytax.Module,
	payrolltax.Module,
	taxledger.Module,
	posting.Module,
	remittance.Module,
	ratelimit.Module,
	reference.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Named("http")))
	r.Use(identityMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// identityMiddleware resolves the acting user for downstream handlers.
// Identity is terminated upstream; the gateway forwards the resolved
// user id.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if raw != "" {
			if id, err := snowflake.ParseString(raw); err == nil {
				ctx := actorctx.WithActor(c.Request.Context(), id)
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
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
	engine        *gin.Engine
	cfg           config.Config
	genID         *snowflake.Node
	ledgerRepo    ledgerdomain.Repository
	postingSvc    postingdomain.Service
	taxLedgerSvc  taxledgerdomain.Service
	companyTax    companytaxdomain.Engine
	payrollEngine payrolldomain.Engine
	payrollRepo   payrolldomain.Repository
	remittanceSvc remittancedomain.Service
	auditSvc      auditdomain.Service
	referenceRepo referencedomain.Repository
	limiter       *ratelimit.PostingLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	GenID         *snowflake.Node
	LedgerRepo    ledgerdomain.Repository
	PostingSvc    postingdomain.Service
	TaxLedgerSvc  taxledgerdomain.Service
	CompanyTax    companytaxdomain.Engine
	PayrollEngine payrolldomain.Engine
	PayrollRepo   payrolldomain.Repository
	RemittanceSvc remittancedomain.Service
	AuditSvc      auditdomain.Service
	ReferenceRepo referencedomain.Repository
	Limiter       *ratelimit.PostingLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		genID:         p.GenID,
		ledgerRepo:    p.LedgerRepo,
		postingSvc:    p.PostingSvc,
		taxLedgerSvc:  p.TaxLedgerSvc,
		companyTax:    p.CompanyTax,
		payrollEngine: p.PayrollEngine,
		payrollRepo:   p.PayrollRepo,
		remittanceSvc: p.RemittanceSvc,
		auditSvc:      p.AuditSvc,
		referenceRepo: p.ReferenceRepo,
		limiter:       p.Limiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Posting --------
	api.POST("/companies/:company_id/sales/:id/post", s.PostSale)
	api.POST("/companies/:company_id/expenses/:id/post", s.PostExpense)

	// -------- Tax ledger --------
	api.GET("/companies/:company_id/tax-ledger", s.ListTaxLedger)

	// -------- PAYE remittance --------
	api.GET("/companies/:company_id/paye/monthly", s.MonthlyPAYE)
	api.POST("/companies/:company_id/paye/remit", s.RemitPAYE)
	api.GET("/companies/:company_id/paye/export", s.ExportPAYE)

	// -------- Payroll --------
	api.POST("/companies/:company_id/payroll/compute", s.ComputePayroll)
	api.POST("/companies/:company_id/payroll/runs", s.RecordPayrollRun)
	api.GET("/companies/:company_id/tax-settings", s.GetTaxSettings)
	api.PUT("/companies/:company_id/tax-settings", s.UpdateTaxSettings)

	// -------- Reference data --------
	api.GET("/reference/wht-rates", s.ListWHTRates)
	api.GET("/reference/states", s.ListStates)

	// -------- Reports --------
	api.GET("/companies/:company_id/balance-sheet", s.BalanceSheet)
	api.GET("/companies/:company_id/profit-loss", s.ProfitAndLoss)
	api.GET("/companies/:company_id/ledger", s.ListLedgerEntries)
	api.GET("/companies/:company_id/cit", s.CITSummary)
	api.GET("/companies/:company_id/audit-logs", s.ListAuditLogs)
}
