// Package main provides the fleet registry server entry point: device-facing
// resolve/download endpoints under /File and the admin API under /api/v1.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openfleet/fleet-registry/pkg/audit"
	"github.com/openfleet/fleet-registry/pkg/blob"
	"github.com/openfleet/fleet-registry/pkg/cache"
	"github.com/openfleet/fleet-registry/pkg/ha"
	"github.com/openfleet/fleet-registry/pkg/lifecycle"
	"github.com/openfleet/fleet-registry/pkg/registry"
	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		blobDir      string
		tenancyModeS string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "", "Database type (postgres, mysql or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&blobDir, "blob-dir", "", "Directory for artifact payload storage")
	flag.StringVar(&tenancyModeS, "tenancy-mode", "", "Tenancy mode (single or merchant)")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if blobDir == "" {
		blobDir = envOrDefault("FLEET_BLOB_DIR", "/var/lib/fleet-registry/blobs")
	}
	if tenancyModeS == "" {
		tenancyModeS = envOrDefault("FLEET_TENANCY_MODE", string(tenancy.ModeMerchant))
	}
	tenancyMode := tenancy.TenancyMode(tenancyModeS)
	if tenancyMode != tenancy.ModeSingle && tenancyMode != tenancy.ModeMerchant {
		glog.Fatalf("Unknown tenancy mode: %q (expected single or merchant)", tenancyModeS)
	}

	logger.Info("starting fleet registry server",
		"listen", listenAddr,
		"blobDir", blobDir,
		"tenancyMode", tenancyMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	blobs, err := blob.NewFSStore(blobDir)
	if err != nil {
		glog.Fatalf("Failed to open blob store at %s: %v", blobDir, err)
	}

	types := registry.NewTypeStore(gormDB)
	versions := registry.NewVersionStore(gormDB, blobs)
	ledger := registry.NewLedger(gormDB)
	resolver := registry.NewResolver(gormDB)
	devices := registry.NewDeviceStore(gormDB)
	contents := lifecycle.NewContentStore(gormDB)
	workflow := lifecycle.NewWorkflow(gormDB, contents, versions, ledger)
	auditStore := audit.NewStore(gormDB)

	// Replicas racing through startup must not run AutoMigrate concurrently.
	haCfg := ha.ConfigFromEnv()
	migrate := func() error {
		for _, m := range []interface{ AutoMigrate() error }{types, versions, ledger, devices, contents, auditStore} {
			if err := m.AutoMigrate(); err != nil {
				return err
			}
		}
		return nil
	}
	if haCfg.MigrationLockEnabled {
		locker := ha.NewMigrationLocker(gormDB, haCfg.Identity)
		err = locker.WithLock(ctx, migrate)
	} else {
		err = migrate()
	}
	if err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	operators, err := setupOperatorExtractor(logger)
	if err != nil {
		glog.Fatalf("Failed to configure operator extraction: %v", err)
	}
	tenantMW := tenancy.NewMiddleware(tenancyMode, operators)

	cacheManager := cache.NewManager(cache.ConfigFromEnv())
	if cacheManager != nil {
		ledger.OnChange(cacheManager.OnLedgerChange)
		logger.Info("device read cache enabled")
	}

	auditCfg := audit.ConfigFromEnv()
	if auditCfg.Enabled {
		go audit.NewRetentionWorker(auditStore, auditCfg, logger).Run(ctx)
	}

	router := buildRouter(tenantMW, cacheManager, types, versions, ledger, resolver, devices, workflow, auditStore, auditCfg)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("fleet registry server ready", "listen", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("fleet registry server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}
	if dbType == "" {
		dbType = os.Getenv("DATABASE_TYPE")
		if dbType == "" {
			dbType = "postgres"
		}
	}

	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database type %q (expected postgres, mysql or sqlite)", dbType)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", dbType, err)
	}
	return gormDB, nil
}

// setupOperatorExtractor picks the operator identity source based on
// FLEET_AUTH_MODE: "header" (default) trusts X-Operator, "jwt" parses a
// Bearer token, verified when a public key is configured.
func setupOperatorExtractor(logger *slog.Logger) (tenancy.OperatorExtractor, error) {
	platformRole := envOrDefault("FLEET_PLATFORM_ROLE", "platform-operator")

	switch mode := os.Getenv("FLEET_AUTH_MODE"); mode {
	case "jwt":
		cfg := tenancy.JWTOperatorExtractorConfig{
			SubjectClaim:      envOrDefault("FLEET_JWT_SUBJECT_CLAIM", "sub"),
			RoleClaim:         envOrDefault("FLEET_JWT_ROLE_CLAIM", "role"),
			PlatformRoleValue: platformRole,
			PublicKeyPath:     os.Getenv("FLEET_JWT_PUBLIC_KEY_PATH"),
			Issuer:            os.Getenv("FLEET_JWT_ISSUER"),
			Audience:          os.Getenv("FLEET_JWT_AUDIENCE"),
			Logger:            logger,
		}
		extractor, err := tenancy.NewJWTOperatorExtractor(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("using JWT operator extraction",
			"subjectClaim", cfg.SubjectClaim,
			"roleClaim", cfg.RoleClaim,
			"hasPublicKey", cfg.PublicKeyPath != "")
		return extractor, nil
	case "header", "":
		if mode == "" {
			logger.Info("using default header-based operator extraction (X-Operator)")
		}
		return tenancy.HeaderOperatorExtractor(platformRole), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q (expected jwt, header, or empty)", mode)
	}
}

func buildRouter(
	tenantMW func(http.Handler) http.Handler,
	cacheManager *cache.Manager,
	types *registry.TypeStore,
	versions *registry.VersionStore,
	ledger *registry.Ledger,
	resolver *registry.Resolver,
	devices *registry.DeviceStore,
	workflow *lifecycle.Workflow,
	auditStore *audit.Store,
	auditCfg *audit.Config,
) chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", tenancy.MerchantHeader, tenancy.OperatorHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/File", func(r chi.Router) {
		r.Use(tenantMW)
		r.Mount("/", registry.NewDeviceRouter(resolver, versions, devices,
			cacheManager.ResolveMiddleware(), cacheManager.PayloadMiddleware()))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(tenantMW)
		r.Use(audit.Middleware(auditStore, auditCfg, nil))
		r.Mount("/", registry.NewAdminRouter(types, versions, ledger, devices))
		r.Mount("/lifecycle", lifecycle.NewRouter(workflow))
		r.Mount("/audit", audit.NewRouter(auditStore))
	})

	return router
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
