package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	tenantshandler "github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/handler"
	tenantsprov "github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/provisioning"
	tenantsrepo "github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/repo"
	tenantsservice "github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/deploy"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/dns"
	platformlogging "github.com/hostgrid-io/tenant-provisioner/platform/go/logging"
	platformmiddleware "github.com/hostgrid-io/tenant-provisioner/platform/go/middleware"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/persistence"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/retry"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/storage"
)

type config struct {
	Port             string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ProvisionTimeout time.Duration `env:"PROVISION_TIMEOUT" envDefault:"15m"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`

	Domain      string `env:"TENANT_DOMAIN,required"`
	ScratchRoot string `env:"SCRATCH_ROOT" envDefault:"/tmp/provisioner"`

	AWSRegion         string `env:"AWS_REGION" envDefault:"us-east-1"`
	ArtifactBucket    string `env:"ARTIFACT_BUCKET,required"`
	ArtifactEndpoint  string `env:"ARTIFACT_ENDPOINT"`
	ArtifactAccessKey string `env:"ARTIFACT_ACCESS_KEY"`
	ArtifactSecretKey string `env:"ARTIFACT_SECRET_KEY"`

	ApplicationName string `env:"EB_APPLICATION_NAME,required"`
	EnvironmentID   string `env:"EB_ENVIRONMENT_ID,required"`
	EnvironmentName string `env:"EB_ENVIRONMENT_NAME,required"`
	HostingEndpoint string `env:"EB_ENDPOINT,required"` // CNAME target for tenant subdomains

	HostedZoneID string `env:"HOSTED_ZONE_ID,required"`

	RunsDatabaseURL        string `env:"RUNS_DATABASE_URL,required"`
	TenantDatabaseHost     string `env:"TENANT_DB_HOST,required"`
	TenantDatabasePort     int    `env:"TENANT_DB_PORT" envDefault:"5432"`
	TenantDatabaseUser     string `env:"TENANT_DB_USER,required"`
	TenantDatabasePassword string `env:"TENANT_DB_PASSWORD,required"`
	TenantDatabaseName     string `env:"TENANT_DB_NAME" envDefault:"postgres"`

	PollMaxAttempts  int           `env:"DEPLOY_POLL_MAX_ATTEMPTS" envDefault:"30"`
	PollInitialDelay time.Duration `env:"DEPLOY_POLL_INITIAL_DELAY" envDefault:"2s"`
	PollMaxDelay     time.Duration `env:"DEPLOY_POLL_MAX_DELAY" envDefault:"30s"`
}

func (c config) tenantDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(c.TenantDatabaseUser),
		url.QueryEscape(c.TenantDatabasePassword),
		c.TenantDatabaseHost,
		c.TenantDatabasePort,
		c.TenantDatabaseName,
	)
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "provisioner-api",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := os.MkdirAll(cfg.ScratchRoot, 0o755); err != nil {
		logger.Fatal("create scratch root", zap.Error(err))
	}

	runsPool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.RunsDatabaseURL})
	if err != nil {
		logger.Fatal("init runs postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(runsPool)

	tenantPool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.tenantDatabaseURL()})
	if err != nil {
		logger.Fatal("init tenant postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(tenantPool)

	runRepo, err := tenantsrepo.NewPostgresRepository(ctx, runsPool)
	if err != nil {
		logger.Fatal("init run repository", zap.Error(err))
	}

	store, err := storage.NewClient(ctx, storage.Config{
		Bucket:    cfg.ArtifactBucket,
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.ArtifactEndpoint,
		AccessKey: cfg.ArtifactAccessKey,
		SecretKey: cfg.ArtifactSecretKey,
	})
	if err != nil {
		logger.Fatal("init artifact store client", zap.Error(err))
	}

	platform, err := deploy.NewClient(ctx, deploy.Config{
		Region:          cfg.AWSRegion,
		ApplicationName: cfg.ApplicationName,
		EnvironmentID:   cfg.EnvironmentID,
		EnvironmentName: cfg.EnvironmentName,
	})
	if err != nil {
		logger.Fatal("init deployment platform client", zap.Error(err))
	}

	dnsClient, err := dns.NewClient(ctx, cfg.AWSRegion, cfg.HostedZoneID)
	if err != nil {
		logger.Fatal("init dns client", zap.Error(err))
	}

	stages := tenantsservice.Stages{
		Locator: tenantsprov.NewArtifactLocator(store, platform, logger),
		Fetcher: tenantsprov.NewArtifactFetcher(store, logger),
		Vhost: tenantsprov.NewVhostWriter(tenantsprov.VhostParams{
			Domain:           cfg.Domain,
			DatabaseHost:     cfg.TenantDatabaseHost,
			DatabaseUser:     cfg.TenantDatabaseUser,
			DatabasePassword: cfg.TenantDatabasePassword,
			DatabasePort:     cfg.TenantDatabasePort,
		}),
		Database: tenantsprov.NewDatabaseProvisioner(tenantPool, cfg.TenantDatabaseUser, logger),
		Publisher: tenantsprov.NewDeploymentPublisher(store, platform, tenantsprov.PublisherConfig{
			Domain: cfg.Domain,
			Poll: retry.Config{
				MaxAttempts:  cfg.PollMaxAttempts,
				InitialDelay: cfg.PollInitialDelay,
				MaxDelay:     cfg.PollMaxDelay,
			},
		}, logger),
		DNS: tenantsprov.NewDNSRegistrar(dnsClient, cfg.HostingEndpoint, logger),
	}

	svc := tenantsservice.New(tenantsservice.Config{
		Domain:          cfg.Domain,
		ScratchRoot:     cfg.ScratchRoot,
		DatabaseHost:    cfg.TenantDatabaseHost,
		DatabasePort:    cfg.TenantDatabasePort,
		EnvironmentID:   cfg.EnvironmentID,
		EnvironmentName: cfg.EnvironmentName,
	}, stages, runRepo, logger)

	tenantHTTPHandler := tenantshandler.New(svc, logger)

	rootRouter := chi.NewRouter()
	rootRouter.Use(chimw.RequestID)
	rootRouter.Use(chimw.Recoverer)
	rootRouter.Use(platformmiddleware.DefaultCORS())
	rootRouter.Use(platformlogging.RequestLogger(logger))
	rootRouter.Use(platformmiddleware.RequestTrace)

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	apiRouter := chi.NewRouter()
	apiRouter.Group(func(r chi.Router) {
		// Overall run deadline; the publish poll respects context, so a
		// stuck backend cannot block a run forever.
		r.Use(chimw.Timeout(cfg.ProvisionTimeout))
		tenantHTTPHandler.Routes(r)
	})
	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ProvisionTimeout + time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting provisioner api", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
