package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-hub/domain/repository"
	"media-hub/infrastructure/cache"
	youtubeclient "media-hub/infrastructure/clients/youtube"
	"media-hub/infrastructure/configuration"
	"media-hub/infrastructure/logger"
	"media-hub/infrastructure/persistence"
	"media-hub/infrastructure/pubsub"
	"media-hub/infrastructure/realtime"
	"media-hub/infrastructure/secrets"
	"media-hub/infrastructure/servicebus"
	httpHandler "media-hub/interfaces/http"
	"media-hub/server"
	"media-hub/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App
	uploadCfg := configuration.C.Upload

	primaryDb, psqlDb, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
	}

	mongoDb, err := persistence.NewMongoDb(
		configuration.C.Database.Mongo.Host,
		configuration.C.Database.Mongo.Port,
		configuration.C.Database.Mongo.User,
		configuration.C.Database.Mongo.Password,
		configuration.C.Database.Mongo.Name,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - upload features disabled")
		mongoDb = nil
	} else if err := mongoDb.Ping(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - upload features disabled")
		mongoDb = nil
	} else {
		logger.GetLogger().Info("MongoDB connected successfully")
	}

	bindingDb, err := persistence.NewBindingDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MySQL not available - agent binding features disabled")
		bindingDb = nil
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - push snapshots disabled")
		pubSubClient = nil
	}

	azServiceBusClient, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - account events disabled")
		azServiceBusClient = nil
	}

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - snapshot cache disabled")
		redisClient = nil
	}

	var box secrets.Encryptor
	box, err = secrets.NewAESBox(configuration.C.Secrets.TokenKey)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Token encryption key missing or invalid - storing tokens unencrypted")
		box = secrets.Passthrough{}
	}

	// Repository wiring: use MSSQL in production, otherwise PostgreSQL.
	var userRepository repository.IUser
	var accountRepository repository.IAccount
	var uploadRepository repository.IUploadJob
	if psqlDb == nil {
		if err := persistence.EnsureAccountSchemaMSSQL(primaryDb); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring account schema (mssql)")
		}
		if err := persistence.EnsureUploadSchemaMSSQL(primaryDb); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring upload schema (mssql)")
		}
		userRepository = persistence.NewUserRepositoryMSSQL(primaryDb)
		accountRepository = persistence.NewAccountRepositoryMSSQL(primaryDb)
		uploadRepository = persistence.NewUploadRepositoryMSSQL(primaryDb)
	} else {
		if err := persistence.EnsureUploadSchema(psqlDb); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring upload schema")
		}
		userRepository = persistence.NewUserRepository(psqlDb)
		accountRepository = persistence.NewAccountRepository(psqlDb)
		uploadRepository = persistence.NewUploadRepository(psqlDb)
	}

	// Platform adapters
	platforms := map[string]repository.IPlatform{}
	if ytConfig, err := configuration.GetPlatformOAuthConfig("youtube"); err == nil && ytConfig.ClientID != "" {
		platforms["youtube"] = youtubeclient.NewYouTubeClient(ytConfig)
		logger.GetLogger().Info("YouTube platform adapter initialized")
	} else {
		logger.GetLogger().Warn("YouTube OAuth client not configured - uploads to YouTube disabled")
	}

	userUsecase := usecase.NewUserUsecase(userRepository)
	userHandler := httpHandler.NewUserHandler(userUsecase)

	credentialUsecase := usecase.NewCredentialUsecase(
		accountRepository, platforms, box,
		uploadCfg.RefreshMargin(), uploadCfg.RefreshFailureThreshold,
	)

	var projectorUsecase usecase.IProjectorUsecase
	var agentHandler httpHandler.IAgentHandler
	if bindingDb != nil {
		bindingRepository := persistence.NewBindingRepository(bindingDb)
		accountEvents := servicebus.NewAccountEvents(azServiceBusClient, configuration.C.ServiceBus.Queue)
		projectorUsecase = usecase.NewProjectorUsecase(bindingRepository, accountEvents)
		agentHandler = httpHandler.NewAgentHandler(projectorUsecase)
	}

	accountUsecase := usecase.NewAccountUsecase(accountRepository, platforms, credentialUsecase, projectorUsecase)
	accountHandler := httpHandler.NewAccountHandler(accountUsecase)

	statusHub := realtime.NewStatusHub()
	statusCache := cache.NewStatusCache(redisClient)
	statusPublisher := pubsub.NewStatusPublisher(pubSubClient, configuration.C.Pubsub.TopicPrefix)

	var uploadHandler httpHandler.IUploadHandler
	var referenceUsecase usecase.IReferenceUsecase
	var uploadUsecase usecase.IUploadUsecase
	if mongoDb != nil {
		referenceRepository := persistence.NewReferenceRepository(mongoDb)
		referenceUsecase = usecase.NewReferenceUsecase(referenceRepository, uploadCfg.ReferenceTTL()).
			WithJobGuard(uploadRepository)
		uploadUsecase = usecase.NewUploadUsecase(
			uploadRepository, accountRepository, referenceRepository,
			credentialUsecase, platforms,
			statusCache, statusPublisher, statusHub,
			uploadCfg,
		)
		statusUsecase := usecase.NewStatusUsecase(uploadUsecase, statusCache, uploadCfg)
		uploadHandler = httpHandler.NewUploadHandler(referenceUsecase, uploadUsecase, statusUsecase, statusHub)
	} else {
		logger.GetLogger().Info("MongoDB not available in this environment; upload feature disabled")
	}

	router := server.InitiateRouter(userHandler, uploadHandler, accountHandler, agentHandler, userRepository)

	// Background expired-reference sweep
	if referenceUsecase != nil {
		g.Go(func() error {
			ticker := time.NewTicker(uploadCfg.SweepInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					sweepCtx, cancelSweep := context.WithTimeout(ctx, 30*time.Second)
					if _, err := referenceUsecase.SweepExpired(sweepCtx); err != nil {
						logger.GetLogger().WithField("error", err).Warn("Reference sweep failed")
					}
					cancelSweep()
				}
			}
		})
	}

	// Background stall watchdog
	if uploadUsecase != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					checkCtx, cancelCheck := context.WithTimeout(ctx, 30*time.Second)
					if err := uploadUsecase.CheckStalled(checkCtx); err != nil {
						logger.GetLogger().WithField("error", err).Warn("Stall check failed")
					}
					cancelCheck()
				}
			}
		})
	}

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
			logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
			if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDatabase returns (primaryDB, psqlDB). In production primaryDB is
// MSSQL and psqlDB is nil; locally both point at PostgreSQL.
func InitiateDatabase() (*sql.DB, *sql.DB, error) {
	env := os.Getenv("ENV")
	if v := os.Getenv("DB_VENDOR"); v == "mssql" || env == "production" || env == "prod" {
		mssql, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			return nil, nil, err
		}
		return mssql, nil, nil
	}

	postgres, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to the local database")
		return nil, nil, err
	}
	return postgres, postgres, nil
}
