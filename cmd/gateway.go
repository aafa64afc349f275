// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/getcarrier/s3gw/pkg/credential"
	"github.com/getcarrier/s3gw/pkg/debug"
	"github.com/getcarrier/s3gw/pkg/env"
	"github.com/getcarrier/s3gw/pkg/gateway"
	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/multipart"
	"github.com/getcarrier/s3gw/pkg/platform"
	"github.com/getcarrier/s3gw/pkg/storage"
)

type GatewayServerOpts struct {
	IP        string
	HTTPPort  int
	DebugPort int
	LogLevel  string

	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioRegion    string
	MinioUseSSL    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PlatformURL     string
	PlatformToken   string
	PlatformTimeout time.Duration
	SessionSecret   string

	MoveMaxSize    string
	RateLimitRPS   float64
	RateLimitBurst int
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the S3 gateway server",
	Long: `Start the s3gw gateway that handles:
- S3-compatible bucket and object API with per-project isolation
- Signature v4 and session-based authentication
- Multipart uploads tracked in Redis
- Access key management API`,
	Run: runGatewayServer,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)

	f := gatewayCmd.Flags()
	f.String("ip", "0.0.0.0", "IP address to bind to")
	f.Int("http_port", 8082, "HTTP port for the gateway")
	f.Int("debug_port", 8085, "Debug HTTP port (metrics, pprof, health)")
	f.String("log_level", "info", "Log level (debug, info, warn, error, fatal)")

	f.String("storage_backend", "minio", "Storage backend (minio, memory)")
	f.String("minio_endpoint", "localhost:9000", "MinIO/S3 endpoint")
	f.String("minio_access_key", "", "MinIO access key (or set MINIO_ACCESS_KEY)")
	f.String("minio_secret_key", "", "MinIO secret key (use env var MINIO_SECRET_KEY)")
	f.String("minio_region", "us-east-1", "MinIO region")
	f.Bool("minio_use_ssl", false, "Use TLS for the MinIO connection")

	f.String("redis_addr", "", "Redis address for multipart upload state (empty: in-process store)")
	f.String("redis_password", "", "Redis password")
	f.Int("redis_db", 0, "Redis database number")

	f.String("platform_url", "", "Carrier platform API base URL (empty: in-memory registry for local runs)")
	f.String("platform_token", "", "Carrier platform API token (use env var PLATFORM_TOKEN)")
	f.Duration("platform_timeout", 5*time.Second, "Per-call timeout for platform API requests")
	f.String("session_secret", "", "HMAC secret for platform session tokens")

	f.String("move_max_size", "512MiB", "Maximum object size for server-side move and copy")
	f.Float64("rate_limit_rps", 0, "Requests per second limit (0: disabled)")
	f.Int("rate_limit_burst", 100, "Burst size for rate limiting")

	viper.BindPFlags(f)
}

func runGatewayServer(cmd *cobra.Command, args []string) {
	opts := loadGatewayOpts(cmd)

	if level, err := zerolog.ParseLevel(opts.LogLevel); err == nil && level != zerolog.NoLevel {
		logger.SetLevel(level)
	}

	debug.SetNotReady()

	if env.IsProduction() {
		if opts.PlatformURL == "" {
			logger.Fatal().Msg("platform_url is required in production")
		}
		if opts.StorageBackend == string(storage.TypeMemory) {
			logger.Fatal().Msg("memory storage backend is not allowed in production")
		}
		if opts.RedisAddr == "" {
			logger.Fatal().Msg("redis_addr is required in production")
		}
	}

	moveMaxSize, err := humanize.ParseBytes(opts.MoveMaxSize)
	if err != nil {
		logger.Fatal().Err(err).Str("move_max_size", opts.MoveMaxSize).Msg("invalid move_max_size")
	}

	backend, err := storage.New(storage.Config{
		Type:      storage.Type(opts.StorageBackend),
		Endpoint:  opts.MinioEndpoint,
		AccessKey: opts.MinioAccessKey,
		SecretKey: opts.MinioSecretKey,
		Region:    opts.MinioRegion,
		UseSSL:    opts.MinioUseSSL,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", opts.StorageBackend).Msg("failed to initialize storage backend")
	}
	defer backend.Close()

	var store multipart.Store
	if opts.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(cmd.Context()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_addr", opts.RedisAddr).Msg("failed to connect to Redis")
		}
		store = multipart.NewRedisStore(rdb)
		logger.Info().Str("redis_addr", opts.RedisAddr).Msg("multipart state in Redis")
	} else {
		store = multipart.NewMemoryStore()
		logger.Warn().Msg("multipart state in process memory, uploads do not survive restarts")
	}

	var (
		registry platform.Registry
		projects platform.Projects
	)
	if opts.PlatformURL != "" {
		client := platform.NewClient(opts.PlatformURL, opts.PlatformToken,
			platform.WithCallTimeout(opts.PlatformTimeout))
		registry = client
		projects = client
		logger.Info().Str("platform_url", opts.PlatformURL).Msg("using platform API")
	} else {
		mem := platform.NewMemory()
		registry = mem
		projects = mem
		logger.Warn().Msg("using in-memory platform registry, for local runs only")
	}

	sessions := platform.NewSessionService(opts.SessionSecret)
	credentials := credential.NewService(registry)
	tracker := multipart.NewTracker(store, backend)

	server := gateway.NewServer(cmd.Context(), gateway.Config{
		Backend:        backend,
		Tracker:        tracker,
		Credentials:    credentials,
		Projects:       projects,
		Sessions:       sessions,
		Registerer:     debug.Registry(),
		MoveMaxSize:    int64(moveMaxSize),
		RateLimitRPS:   opts.RateLimitRPS,
		RateLimitBurst: opts.RateLimitBurst,
	})
	defer server.Close()

	httpServer := startHTTPServer(server.Handler(), opts.IP, opts.HTTPPort)
	debugServer := startHTTPServer(debug.GetMux(), opts.IP, opts.DebugPort)

	debug.SetReady()
	waitForShutdown()
	debug.SetNotReady()

	httpServer.Shutdown(cmd.Context())
	debugServer.Shutdown(cmd.Context())
}

func loadGatewayOpts(cmd *cobra.Command) GatewayServerOpts {
	f := NewFlagLoader(cmd)

	secretKey := f.String("minio_secret_key")
	if secretKey == "" {
		secretKey = os.Getenv("MINIO_SECRET_KEY")
	}
	accessKey := f.String("minio_access_key")
	if accessKey == "" {
		accessKey = os.Getenv("MINIO_ACCESS_KEY")
	}
	platformToken := f.String("platform_token")
	if platformToken == "" {
		platformToken = os.Getenv("PLATFORM_TOKEN")
	}

	return GatewayServerOpts{
		IP:              f.String("ip"),
		HTTPPort:        f.Int("http_port"),
		DebugPort:       f.Int("debug_port"),
		LogLevel:        f.String("log_level"),
		StorageBackend:  f.String("storage_backend"),
		MinioEndpoint:   f.String("minio_endpoint"),
		MinioAccessKey:  accessKey,
		MinioSecretKey:  secretKey,
		MinioRegion:     f.String("minio_region"),
		MinioUseSSL:     f.Bool("minio_use_ssl"),
		RedisAddr:       f.String("redis_addr"),
		RedisPassword:   f.String("redis_password"),
		RedisDB:         f.Int("redis_db"),
		PlatformURL:     f.String("platform_url"),
		PlatformToken:   platformToken,
		PlatformTimeout: f.Duration("platform_timeout"),
		SessionSecret:   f.String("session_secret"),
		MoveMaxSize:     f.String("move_max_size"),
		RateLimitRPS:    f.Float64("rate_limit_rps"),
		RateLimitBurst:  f.Int("rate_limit_burst"),
	}
}

func startHTTPServer(handler http.Handler, ip string, port int) *http.Server {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("failed to create HTTP listener")
	}

	httpServer := &http.Server{Handler: handler}
	go func() {
		logger.Info().Str("http_addr", addr).Msg("Starting HTTP server")
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()
	return httpServer
}

func waitForShutdown() {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	<-stopChan
}
