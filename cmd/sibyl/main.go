package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"sibyl/internal/aggregate"
	sbcfg "sibyl/internal/config"
	"sibyl/internal/engine"
	"sibyl/internal/fallback"
	"sibyl/internal/gateway/binancex"
	"sibyl/internal/gateway/bybit"
	"sibyl/internal/gateway/gatex"
	"sibyl/internal/gateway/okx"
	"sibyl/internal/gateway/oracle"
	"sibyl/internal/gateway/websearch"
	"sibyl/internal/logger"
	"sibyl/internal/market"
	"sibyl/internal/memory"
	"sibyl/internal/plan"
	"sibyl/internal/planner"
	sbhttp "sibyl/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("SIBYL_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := sbcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetOracleWriter(nil)
	if cfg.App.OracleDump {
		f, err := setupOracleLogOutput(cfg.App.OracleLog)
		if err != nil {
			log.Fatalf("初始化模型日志失败: %v", err)
		}
		if f != nil {
			defer f.Close()
		}
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.EnableOraclePayloadDump(cfg.App.OracleDump)
	logger.Infof("✓ 配置加载成功（model=%s，listen=%s）", cfg.Oracle.Model, cfg.App.Listen)

	registry, err := plan.NewRegistry(cfg.Rulebook.Path, cfg.Rulebook.Watch)
	if err != nil {
		log.Fatalf("加载规划词表失败: %v", err)
	}

	source := bybit.New(bybit.Config{
		BaseURL:  cfg.Market.BaseURL,
		Category: cfg.Market.Category,
		Timeout:  time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
	})
	pool := buildPool(ctx, cfg.Fallback)

	provider := oracle.NewChatProvider(cfg.Oracle.Model, &oracle.ChatClient{
		BaseURL:      cfg.Oracle.BaseURL,
		APIKey:       cfg.Oracle.APIKey,
		Model:        cfg.Oracle.Model,
		Timeout:      time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		MaxRetries:   cfg.Oracle.MaxRetries,
		ExtraHeaders: cfg.Oracle.ExtraHeaders,
	})

	var searcher websearch.Searcher
	if cfg.Search.APIKey != "" {
		searcher = websearch.New(websearch.Config{
			BaseURL:    cfg.Search.BaseURL,
			APIKey:     cfg.Search.APIKey,
			Depth:      cfg.Search.Depth,
			MaxResults: cfg.Search.MaxResults,
			Topic:      cfg.Search.Topic,
			Timeout:    time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		})
	} else {
		logger.Warnf("未配置搜索 API Key，网页检索能力不可用")
	}

	store, err := memory.NewGormStore(cfg.Memory.DBPath)
	if err != nil {
		log.Fatalf("初始化记忆存储失败: %v", err)
	}

	oracleTimeout := time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second
	eng := engine.New(
		memory.NewContextBuilder(store, cfg.Memory.RecentLimit),
		store,
		planner.New(provider, registry, oracleTimeout),
		aggregate.New(source, pool, searcher, cfg.Aggregator.Concurrency),
		provider,
		oracleTimeout,
	)

	server, err := sbhttp.NewServer(sbhttp.Config{
		Addr:     cfg.App.Listen,
		Engine:   eng,
		Pool:     pool,
		Rulebook: registry,
	})
	if err != nil {
		log.Fatalf("初始化 HTTP 服务失败: %v", err)
	}
	logger.Infof("sibyl 启动，监听 %s", cfg.App.Listen)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

// buildPool 按配置装配备援报价池，全部禁用时返回 nil。
func buildPool(ctx context.Context, cfg sbcfg.FallbackConfig) *fallback.Pool {
	probeTimeout := time.Duration(cfg.ProbeTimeoutSeconds) * time.Second
	members := make([]fallback.Member, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		var provider market.QuoteProvider
		switch pc.ID {
		case "binance":
			provider = binancex.New(binancex.Config{ID: pc.ID, BaseURL: pc.BaseURL})
		case "okx":
			provider = okx.New(okx.Config{ID: pc.ID, BaseURL: pc.BaseURL})
		case "gate":
			provider = gatex.New(gatex.Config{ID: pc.ID, BaseURL: pc.BaseURL})
		default:
			logger.Warnf("忽略未知备援交易所 %q", pc.ID)
			continue
		}
		members = append(members, fallback.Member{Provider: provider, Priority: pc.Priority})
	}
	if len(members) == 0 {
		return nil
	}
	return fallback.New(ctx, probeTimeout, members...)
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func setupOracleLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetOracleWriter(f)
	return f, nil
}
