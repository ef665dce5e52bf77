package transporthttp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"quorum/internal/drift"
	"quorum/internal/logger"
	"quorum/internal/report"
	"quorum/internal/signal"
	"quorum/internal/store"
	"quorum/internal/validate"

	"github.com/gin-gonic/gin"
)

// Server 提供信号评估与运维接口的 HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr     string
	Pipeline *signal.Pipeline
	Holder   *validate.SetHolder
	Runner   *validate.Runner
	Store    *store.GormStore
	Monitor  *drift.Monitor

	DriftWindow time.Duration
	// RunValidation 触发一轮完整验证（取数 + 池 + runner），由 app 装配。
	RunValidation func(ctx context.Context) (*validate.EligibleSet, error)
}

// NewServer 构建 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil || cfg.Holder == nil {
		return nil, errors.New("http server requires pipeline and eligible set holder")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/signal", handleSignal(cfg.Pipeline))
	api.GET("/strategies/eligible", handleEligible(cfg.Holder))
	api.POST("/outcomes", handleOutcome(cfg.Store))
	api.GET("/drift/:id", handleDrift(cfg))
	api.POST("/validate", handleValidate(cfg))
	api.GET("/validate/report", handleValidationReport(cfg.Holder))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type signalRequest struct {
	Pair string `json:"pair" binding:"required"`
}

func handleSignal(pipeline *signal.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decision, err := pipeline.Evaluate(c.Request.Context(), strings.ToUpper(strings.TrimSpace(req.Pair)))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, decision)
	}
}

func handleEligible(holder *validate.SetHolder) gin.HandlerFunc {
	return func(c *gin.Context) {
		set := holder.Load()
		if set == nil {
			c.JSON(http.StatusOK, gin.H{"version": 0, "strategies": []any{}})
			return
		}
		c.JSON(http.StatusOK, set)
	}
}

type outcomeRequest struct {
	SubjectID string    `json:"subject_id" binding:"required"`
	PnLPct    float64   `json:"pnl_pct"`
	ClosedAt  time.Time `json:"closed_at"`
}

// handleOutcome 录入已平仓结果，漂移扫描靠这些样本对照基线。
func handleOutcome(st *store.GormStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outcome store not configured"})
			return
		}
		var req outcomeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.ClosedAt.IsZero() {
			req.ClosedAt = time.Now().UTC()
		}
		out := drift.Outcome{SubjectID: req.SubjectID, PnLPct: req.PnLPct, ClosedAt: req.ClosedAt}
		if err := st.InsertOutcome(c.Request.Context(), out); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func handleDrift(cfg ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Store == nil || cfg.Monitor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "drift monitoring not configured"})
			return
		}
		id := strings.TrimSpace(c.Param("id"))
		base, ok, err := cfg.Store.LoadBaseline(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no baseline for subject " + id})
			return
		}
		window := cfg.DriftWindow
		if window <= 0 {
			window = 30 * 24 * time.Hour
		}
		now := time.Now().UTC()
		recent, err := cfg.Store.RecentOutcomes(c.Request.Context(), id, now.Add(-window))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cfg.Monitor.Evaluate(id, recent, base, now))
	}
}

func handleValidate(cfg ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.RunValidation == nil || cfg.Runner == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "validation trigger not configured"})
			return
		}
		if cfg.Runner.Running() {
			c.JSON(http.StatusConflict, gin.H{"error": "validation run already in flight"})
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if _, err := cfg.RunValidation(ctx); err != nil && !errors.Is(err, validate.ErrRunInFlight) {
				logger.Errorf("http-triggered validation failed: %v", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "validation started"})
	}
}

func handleValidationReport(holder *validate.SetHolder) gin.HandlerFunc {
	return func(c *gin.Context) {
		set := holder.Load()
		if set == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no validation run on record"})
			return
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := report.WalkForward(c.Writer, set); err != nil {
			logger.Errorf("render validation report failed: %v", err)
		}
	}
}

// requestLogger 记录接口调用，便于追踪人工触发的验证与查询。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http %s %s status=%d cost=%s client=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Truncate(time.Millisecond), c.ClientIP())
	}
}
