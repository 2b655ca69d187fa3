// 程序入口：读取配置、装配索引/加载器/缓存并启动 HTTP 服务；路由注册在 internal/api
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-api/internal/api"
	"parking-api/internal/cache"
	"parking-api/internal/config"
	"parking-api/internal/engine"
	"parking-api/internal/loader"
	"parking-api/internal/logger"
	"parking-api/internal/metrics"
	"parking-api/internal/middleware"
	"parking-api/internal/migrate"
	"parking-api/internal/spatial"
	"parking-api/internal/store"
	"parking-api/internal/utils"
)

const reloadTimeout = 5 * time.Minute

func main() {
	config.LoadEnvFiles()
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.Load()
	l.Debug("config_loaded", "source", cfg.LotSource, "cell_deg", cfg.CellDeg, "radius_m", cfg.RadiusMeters, "api_base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idx, err := spatial.New(cfg.CellDeg)
	if err != nil {
		l.Error("index_config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("index_ready", "cell_deg", idx.CellDeg())

	var src loader.Source
	switch cfg.LotSource {
	case config.SourcePostgres:
		db := openDB(ctx, cfg)
		defer db.Close()
		src = loader.DBSource{Store: store.AttachDB(db)}
	case config.SourceCSV:
		src = loader.CSVSource{Path: cfg.CSVPath, SkipInvalid: cfg.SkipInvalid}
	default:
		l.Error("lot_source_unknown", "source", cfg.LotSource)
		os.Exit(1)
	}
	ld := loader.New(idx, src)

	var results *cache.Results
	if cfg.CacheEnabled {
		rc := utils.OpenRedis(cfg.Redis)
		if rc == nil {
			l.Info("redis_disabled")
		} else {
			defer rc.Close()
			if err := rc.Ping(ctx).Err(); err != nil {
				l.Error("redis_ping_error", "err", err)
			} else {
				l.Info("redis_ping_ok")
			}
		}
		results = cache.NewResults(cache.NewLRU(cfg.CacheLRUSize, cfg.CacheTTL), rc, cfg.CacheTTL)
		ld.OnReload(func(int) { results.Purge() })
	}

	// 初始加载失败不退出：以空索引提供服务（nearest 返回 NOT_FOUND），等待下一次重载
	loadCtx, cancel := context.WithTimeout(ctx, reloadTimeout)
	if _, err := ld.Reload(loadCtx); err != nil {
		l.Warn("index_initial_load_failed", "source", src.Name())
	}
	cancel()

	if cfg.ReloadCron != "" {
		c, err := ld.Schedule(cfg.ReloadCron, reloadTimeout)
		if err != nil {
			l.Error("reload_schedule_error", "spec", cfg.ReloadCron, "err", err)
			os.Exit(1)
		}
		defer c.Stop()
		l.Info("reload_scheduled", "spec", cfg.ReloadCron)
	}

	eng := engine.New(idx, engine.WithRadius(cfg.RadiusMeters))
	svc := api.NewService(eng, idx, results, ld, api.Options{
		NotFoundStatus: cfg.NotFoundStatus,
		RadiusTunable:  cfg.RadiusTunable,
		AdminToken:     cfg.AdminToken,
		ReloadTimeout:  reloadTimeout,
	})
	router := api.BuildRoutes(svc, cfg.APIBase)
	router.Handle(cfg.APIBase+"/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.Use(logger.AccessMiddleware(l))

	var handler http.Handler = middleware.CORS(cfg.CORSOrigin)(router)
	if cfg.RateLimitEnabled {
		handler = middleware.RateLimit(cfg.RateLimitQPS)(handler)
	}
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if cfg.TLS.Enabled {
		if err := utils.EnsureSelfSignedCert(cfg.TLS.CertPath, cfg.TLS.KeyPath, "parking-api.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLS.CertPath, "lots", idx.Size())
		err = s.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr, "lots", idx.Size())
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}

// openDB 打开连接池并确保表结构；失败直接退出
func openDB(ctx context.Context, cfg config.Config) *sql.DB {
	l := logger.L()
	db, err := utils.OpenPostgres(cfg.Postgres)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	l.Info("db_open_ok")
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	return db
}
