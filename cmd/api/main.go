package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/comandas/api/internal/di"
	"github.com/comandas/api/internal/handlers"
	"github.com/comandas/api/internal/platform/auth"
	"github.com/comandas/api/internal/platform/config"
	pfirestore "github.com/comandas/api/internal/platform/firestore"
	"github.com/comandas/api/internal/platform/idempotency"
	"github.com/comandas/api/internal/platform/jobs"
	"github.com/comandas/api/internal/platform/observability"
	"github.com/comandas/api/internal/platform/secrets"
	"github.com/comandas/api/internal/platform/tenant"
	"github.com/comandas/api/internal/repositories"
	firestoreRepo "github.com/comandas/api/internal/repositories/firestore"
)

const printRateLimit = 3

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repository registry", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithLogger(logger.Named("services")),
	}

	var pubsubClient *pubsub.Client
	var eventsTopic *pubsub.Topic
	if projectID := strings.TrimSpace(cfg.PubSub.ProjectID); projectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		eventsTopic = pubsubClient.Topic(cfg.PubSub.EventsTopic)
		publisher, err := jobs.NewPubSubEventPublisher(eventsTopic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher))
	}
	defer func() {
		if eventsTopic != nil {
			eventsTopic.Stop()
		}
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}

	healthRepo, err := newHealthRepository(firestoreClient)
	if err != nil {
		logger.Warn("health: dependency probes unavailable", zap.Error(err))
	}
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(cfg, startedAt)),
		handlers.WithHealthRepository(healthRepo),
	)

	idempotencyMiddleware := idempotency.Middleware(
		idempotency.NewFirestoreStore(firestoreClient),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	middlewares := []func(http.Handler) http.Handler{
		tenant.Middleware(cfg.Locale.LocalHeader),
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
		idempotencyMiddleware,
	}

	tableHandlers := handlers.NewTableHandlers(container.Services.Tables, container.Services.Orders)
	orderHandlers := handlers.NewOrderHandlers(container.Services.Orders,
		handlers.WithPrintRateLimit(printRateLimit, time.Minute),
	)
	catalogHandlers := handlers.NewCatalogHandlers(container.Services.Catalog)
	promotionHandlers := handlers.NewPromotionHandlers(container.Services.Promotions)
	cashHandlers := handlers.NewCashHandlers(container.Services.Cash)
	internalHandlers := handlers.NewInternalHandlers(container.Services.Cash)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithTableRoutes(tableHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithPromotionRoutes(promotionHandlers.Routes),
		handlers.WithCashRoutes(cashHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	}
	if hmacMiddleware := buildHMACMiddleware(logger.Named("auth"), cfg); hmacMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(hmacMiddleware))
	} else {
		logger.Warn("auth: hmac secrets not configured; internal routes are unprotected")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("comandas api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := container.Close(closeCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newHealthRepository(client *firestore.Client) (repositories.HealthRepository, error) {
	if client == nil {
		return nil, errors.New("health: firestore client is required")
	}
	checks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := client.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		},
	}
	return repositories.NewDependencyHealthRepository(checks)
}

// buildHMACMiddleware guards the /internal surface with request signing. The
// secret named "internal" wins; a single configured secret is used as-is.
func buildHMACMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	secretValues := make(map[string]string)
	for key, value := range cfg.Security.HMAC.Secrets {
		if strings.TrimSpace(value) == "" {
			continue
		}
		secretValues[strings.ToLower(strings.TrimSpace(key))] = value
	}
	if len(secretValues) == 0 {
		return nil
	}

	secretName := "internal"
	if _, ok := secretValues[secretName]; !ok {
		if _, ok := secretValues["default"]; ok {
			secretName = "default"
		} else {
			for key := range secretValues {
				secretName = key
				break
			}
		}
	}

	provider := staticSecretProvider{secrets: secretValues}
	nonces := auth.NewInMemoryNonceStore()
	adapter := observability.NewPrintfAdapter(logger)
	validator := auth.NewHMACValidator(provider, nonces,
		auth.WithHMACLogger(adapter),
		auth.WithHMACHeaders(cfg.Security.HMAC.SignatureHeader, cfg.Security.HMAC.TimestampHeader, cfg.Security.HMAC.NonceHeader),
		auth.WithHMACClockSkew(cfg.Security.HMAC.ClockSkew),
		auth.WithHMACNonceTTL(cfg.Security.HMAC.NonceTTL),
	)

	return validator.RequireHMAC(secretName)
}

type staticSecretProvider struct {
	secrets map[string]string
}

func (p staticSecretProvider) GetSecret(_ context.Context, name string) (string, error) {
	if len(p.secrets) == 0 {
		return "", errors.New("auth: hmac secrets not configured")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", errors.New("auth: secret name required")
	}
	if secret, ok := p.secrets[key]; ok && secret != "" {
		return secret, nil
	}
	return "", errors.New("auth: secret not found")
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	projectID := strings.TrimSpace(os.Getenv("API_SECRET_PROJECT_ID"))
	if projectID == "" {
		projectID = strings.TrimSpace(os.Getenv("API_FIRESTORE_PROJECT_ID"))
	}
	fallbackPath := strings.TrimSpace(os.Getenv("API_SECRET_FALLBACK_FILE"))
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectID != "" {
		opts = append(opts, secrets.WithProject(projectID))
	}
	if credentialsFile := strings.TrimSpace(os.Getenv("API_SECRET_CREDENTIALS_FILE")); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
