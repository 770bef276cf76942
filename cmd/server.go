package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"jobhill/internal/api"
	"jobhill/internal/applications"
	"jobhill/internal/auth"
	"jobhill/internal/deferred"
	"jobhill/internal/ingest"
	"jobhill/internal/listing"
	"jobhill/internal/notifier"
	"jobhill/internal/preferences"
	"jobhill/internal/scheduler"
	"jobhill/internal/storage"
)

// AppConfig 应用配置，对应 config.yaml。
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Database    storage.Config    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Ingest      ingest.Config     `yaml:"ingest"`
	Scheduler   scheduler.Config  `yaml:"scheduler"`
	Redis       RedisConfig       `yaml:"redis"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// AuthConfig Admins 为可以触发手动抓取的用户 ID，为空时任何登录用户都可以。
type AuthConfig struct {
	Secret string   `yaml:"secret"`
	Issuer string   `yaml:"issuer"`
	Admins []string `yaml:"admins"`
}

// PreferencesConfig HideCompanyDelay 为隐藏公司的撤销窗口。
type PreferencesConfig struct {
	HideCompanyDelay string `yaml:"hide_company_delay"`
}

type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type RateLimitConfig struct {
	ReqPerSec float64 `yaml:"req_per_sec"`
	Burst     int     `yaml:"burst"`
}

// runner 是调度器对外暴露的能力。
type runner interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context) (int, error)
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// appDeps 组装好的运行时依赖。
type appDeps struct {
	handler http.Handler
	sched   runner
}

type depsBuilder func(AppConfig) (appDeps, func(), error)

func main() {
	once := flag.Bool("once", false, "run a single ingestion pass and exit")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Printf("load config error: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		created, err := runOnceManual(ctx, cfg, buildDeps)
		if err != nil {
			log.Printf("manual run error: %v", err)
			os.Exit(1)
		}
		log.Printf("manual run created %d jobs", created)
		return
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		log.Printf("init error: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           deps.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("listening on %s", srv.Addr)
	if err := runServer(ctx, srv, deps.sched, durationOr(cfg.Server.ShutdownTimeout, 5*time.Second)); err != nil {
		log.Printf("server error: %v", err)
	}
}

// runServer 启动调度与 HTTP 服务，ctx 取消后在 timeout 内优雅关闭。
func runServer(ctx context.Context, srv httpServer, sched runner, timeout time.Duration) error {
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("scheduler stopped: %v", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
	}
	return err
}

// runOnceManual 构建依赖后只执行一次抓取。
func runOnceManual(ctx context.Context, cfg AppConfig, build depsBuilder) (int, error) {
	deps, cleanup, err := build(cfg)
	if err != nil {
		return 0, err
	}
	defer cleanup()
	return deps.sched.RunOnce(ctx)
}

// buildDeps 打开存储并组装服务，cleanup 按依赖的逆序释放资源。
func buildDeps(cfg AppConfig) (appDeps, func(), error) {
	store, err := storage.Open(cfg.Database)
	if err != nil {
		return appDeps{}, func() {}, fmt.Errorf("init store: %w", err)
	}

	notif := notifier.Multi{notifier.NewLogNotifier(nil)}
	var closeRedis func() error
	if cfg.Redis.URL != "" {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := notifier.NewRedisClient(pingCtx, cfg.Redis.URL)
		cancel()
		if err != nil {
			log.Printf("redis notifier disabled: %v", err)
		} else {
			notif = append(notif, notifier.NewRedisNotifier(rdb, cfg.Redis.Channel))
			closeRedis = rdb.Close
		}
	}

	fetch := ingest.NewTableFetcher(cfg.Ingest, &http.Client{Timeout: 15 * time.Second})
	sched := scheduler.NewScheduler(fetch, store, notif, cfg.Scheduler)
	pending := deferred.New(10*time.Second, nil)

	var verifier api.TokenVerifier
	if cfg.Auth.Secret != "" {
		verifier = auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	} else {
		log.Printf("auth disabled: no jwt secret configured, all requests are anonymous")
	}

	handler := api.NewHandler(api.Deps{
		Listing:          listing.NewService(store),
		Preferences:      preferences.NewService(store, nil),
		Applications:     applications.NewService(store, nil),
		Scheduler:        sched,
		Deferred:         pending,
		Verifier:         verifier,
		Limiter:          api.NewUserLimiter(cfg.RateLimit.ReqPerSec, cfg.RateLimit.Burst),
		HideCompanyDelay: durationOr(cfg.Preferences.HideCompanyDelay, 5*time.Second),
		RefreshAdmins:    cfg.Auth.Admins,
	})

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := pending.Close(ctx); err != nil {
			log.Printf("flush pending actions: %v", err)
		}
		if closeRedis != nil {
			_ = closeRedis()
		}
		_ = store.Close()
	}
	return appDeps{handler: handler, sched: sched}, cleanup, nil
}

// loadConfig 读取 CONFIG_FILE（默认 config.yaml），文件不存在时使用默认值，再叠加环境变量。
func loadConfig() (AppConfig, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return AppConfig{}, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig, getenv func(string) string) {
	if v := getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			cfg.Database.Driver = storage.DriverPostgres
		}
	}
	if v := getenv("JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = storage.DriverSQLite
	}
	if cfg.Database.Driver == storage.DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = "data/jobhill.db"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "jobhill"
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
		return d
	}
	return fallback
}
