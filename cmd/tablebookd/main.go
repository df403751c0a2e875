package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/GrandCafeLabs/tablebook/internal/events"
	"github.com/GrandCafeLabs/tablebook/internal/httpapi"
	"github.com/GrandCafeLabs/tablebook/internal/menu"
	"github.com/GrandCafeLabs/tablebook/internal/previewcache"
	"github.com/GrandCafeLabs/tablebook/internal/store/gormstore"
	"github.com/GrandCafeLabs/tablebook/internal/zaplog"
	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagMenuDir          = "menu-dir"
	flagSessionKey       = "session-key"
	flagSessionIssuer    = "session-issuer"
	flagAllowedOrigins   = "allowed-origins"
	flagRedisAddr        = "redis-addr"
	flagAMQPURL          = "amqp-url"
	configKeyDatabaseURL = "database_url"
	configKeyListenAddr  = "listen_addr"
	configKeyMenuDir     = "menu_dir"
	configKeySessionKey  = "session_key"
	configKeyIssuer      = "session_issuer"
	configKeyOrigins     = "allowed_origins"
	configKeyRedisAddr   = "redis_addr"
	configKeyAMQPURL     = "amqp_url"
	defaultDatabaseURL   = "sqlite:///tmp/tablebook.db"
	defaultListenAddr    = ":9090"
	defaultMenuDir       = "static/menu_items"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	MenuDir        string
	SessionKey     string
	SessionIssuer  string
	AllowedOrigins string
	RedisAddr      string
	AMQPURL        string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tablebookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "tablebookd",
		Short:         "Restaurant table booking and checkout server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string (sqlite path or postgres URL)")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagMenuDir, defaultMenuDir, "menu catalog directory")
	cmd.Flags().String(flagSessionKey, "", "JWT session signing key")
	cmd.Flags().String(flagSessionIssuer, "tablebook", "JWT session issuer")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	cmd.Flags().String(flagRedisAddr, "", "redis address for the checkout preview cache (optional)")
	cmd.Flags().String(flagAMQPURL, "", "rabbitmq URL for operation events (optional)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL: "DATABASE_URL",
		configKeyListenAddr:  "LISTEN_ADDR",
		configKeyMenuDir:     "MENU_DIR",
		configKeySessionKey:  "SESSION_KEY",
		configKeyIssuer:      "SESSION_ISSUER",
		configKeyOrigins:     "ALLOWED_ORIGINS",
		configKeyRedisAddr:   "REDIS_ADDR",
		configKeyAMQPURL:     "AMQP_URL",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	flags := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeyMenuDir:     flagMenuDir,
		configKeySessionKey:  flagSessionKey,
		configKeyIssuer:      flagSessionIssuer,
		configKeyOrigins:     flagAllowedOrigins,
		configKeyRedisAddr:   flagRedisAddr,
		configKeyAMQPURL:     flagAMQPURL,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.MenuDir = viper.GetString(configKeyMenuDir)
	if cfg.MenuDir == "" {
		cfg.MenuDir = defaultMenuDir
	}
	cfg.SessionKey = viper.GetString(configKeySessionKey)
	cfg.SessionIssuer = viper.GetString(configKeyIssuer)
	cfg.AllowedOrigins = viper.GetString(configKeyOrigins)
	cfg.RedisAddr = viper.GetString(configKeyRedisAddr)
	cfg.AMQPURL = viper.GetString(configKeyAMQPURL)

	if cfg.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store := gormstore.New(gormDB)

	catalog, err := menu.Load(cfg.MenuDir)
	if err != nil {
		return fmt.Errorf("menu load: %w", err)
	}
	if len(catalog.Items()) == 0 {
		logger.Warn("menu catalog is empty", zap.String("dir", cfg.MenuDir))
	}

	previews, err := buildPreviewCache(ctx, cfg, logger)
	if err != nil {
		return err
	}

	operationLogger, closeEvents, err := buildOperationLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	service, err := tablebook.NewService(
		store,
		catalog,
		previews,
		time.Now,
		tablebook.WithOperationLogger(operationLogger),
	)
	if err != nil {
		return fmt.Errorf("service init: %w", err)
	}

	apiConfig := httpapi.Config{
		ListenAddr:        cfg.ListenAddr,
		AllowedOrigins:    httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		SessionSigningKey: cfg.SessionKey,
		SessionIssuer:     cfg.SessionIssuer,
	}
	if err := apiConfig.Validate(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	server := httpapi.NewServer(apiConfig, service, catalog, logger)
	return server.Run(ctx)
}

func buildPreviewCache(ctx context.Context, cfg *runtimeConfig, logger *zap.Logger) (tablebook.PreviewCache, error) {
	if cfg.RedisAddr == "" {
		return tablebook.NewMemoryPreviewCache(0, time.Now), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("preview cache on redis", zap.String("addr", cfg.RedisAddr))
	return previewcache.New(client, 0), nil
}

// buildOperationLogger always logs through zap and additionally publishes
// to RabbitMQ when an AMQP URL is configured.
func buildOperationLogger(cfg *runtimeConfig, logger *zap.Logger) (tablebook.OperationLogger, func(), error) {
	zapSink := zaplog.New(logger)
	if cfg.AMQPURL == "" {
		return zapSink, func() {}, nil
	}
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	publisher, err := events.NewPublisher(channel, logger)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	closeFn := func() {
		_ = channel.Close()
		_ = conn.Close()
	}
	return teeOperationLogger{zapSink, publisher}, closeFn, nil
}

// teeOperationLogger fans one operation record out to every sink.
type teeOperationLogger []tablebook.OperationLogger

func (tee teeOperationLogger) LogOperation(ctx context.Context, entry tablebook.OperationLog) {
	for _, sink := range tee {
		sink.LogOperation(ctx, entry)
	}
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "tablebook.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
