package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sibyl/internal/engine"
	"sibyl/internal/fallback"
	"sibyl/internal/plan"
)

// Server 对外唯一的 HTTP 入口。
type Server struct {
	addr     string
	eng      *engine.Engine
	pool     *fallback.Pool
	rulebook *plan.Registry
	router   *gin.Engine
}

type Config struct {
	Addr     string
	Engine   *engine.Engine
	Pool     *fallback.Pool
	Rulebook *plan.Registry
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:     cfg.Addr,
		eng:      cfg.Engine,
		pool:     cfg.Pool,
		rulebook: cfg.Rulebook,
		router:   router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api/v1")
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/providers", s.handleProviders)
	api.POST("/providers/reprobe", s.handleReprobe)
	api.GET("/rulebook", s.handleRulebook)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query 必填"})
		return
	}
	result := s.eng.Analyze(c.Request.Context(), req)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleProviders(c *gin.Context) {
	if s.pool == nil {
		c.JSON(http.StatusOK, gin.H{"providers": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": s.pool.Records()})
}

func (s *Server) handleReprobe(c *gin.Context) {
	if s.pool == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no fallback pool configured"})
		return
	}
	s.pool.Reprobe(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"providers": s.pool.Records()})
}

func (s *Server) handleRulebook(c *gin.Context) {
	if s.rulebook == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no rulebook configured"})
		return
	}
	dump, err := s.rulebook.Dump()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/yaml; charset=utf-8", []byte(dump))
}

// Handler 暴露路由，便于测试与外层复用。
func (s *Server) Handler() http.Handler { return s.router }

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
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
