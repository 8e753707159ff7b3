package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/evently/evently-api/internal/app/controllers"
	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/app/services"
	"github.com/evently/evently-api/internal/config"
	"github.com/evently/evently-api/internal/platform/database"
	httpPlatform "github.com/evently/evently-api/internal/platform/http"
	"github.com/evently/evently-api/internal/platform/ws"
	"github.com/evently/evently-api/pkg/eventlog"
	"github.com/evently/evently-api/pkg/logger"
	storagepkg "github.com/evently/evently-api/pkg/storage"
	minioStorage "github.com/evently/evently-api/pkg/storage/minio"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.MustLoad()
	appLog := logger.New("app")

	var objectStorage storagepkg.Service
	if cfg.Storage.Enabled() {
		store, err := minioStorage.New(context.Background(), minioStorage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			log.Fatalf("storage initialization error: %v", err)
		}
		objectStorage = store
		appLog.Infow("object storage enabled", "bucket", cfg.Storage.Bucket, "endpoint", cfg.Storage.Endpoint)
	}

	var (
		teamRepo         repositories.TeamRepository
		eventRepo        repositories.EventRepository
		participantRepo  repositories.ParticipantRepository
		messageRepo      repositories.MessageRepository
		registrationRepo repositories.RegistrationRepository
		db               *gorm.DB
		dbClose          func() error
	)

	switch cfg.DBDriver {
	case "postgres":
		appLog.Infow("initializing postgres repositories with GORM")
		var err error
		db, err = database.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("database connection error: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("database handle retrieval error: %v", err)
		}
		dbClose = sqlDB.Close

		if teamRepo, err = repositories.NewGormTeamRepo(db); err != nil {
			log.Fatalf("team repository initialization error: %v", err)
		}
		if eventRepo, err = repositories.NewGormEventRepo(db); err != nil {
			log.Fatalf("event repository initialization error: %v", err)
		}
		if participantRepo, err = repositories.NewGormParticipantRepo(db); err != nil {
			log.Fatalf("participant repository initialization error: %v", err)
		}
		if messageRepo, err = repositories.NewGormMessageRepo(db); err != nil {
			log.Fatalf("message repository initialization error: %v", err)
		}
		if registrationRepo, err = repositories.NewGormRegistrationRepo(db); err != nil {
			log.Fatalf("registration repository initialization error: %v", err)
		}
	default:
		appLog.Infow("initializing in-memory repositories")
		teamRepo = repositories.NewInMemoryTeamRepo()
		eventRepo = repositories.NewInMemoryEventRepo()
		participantRepo = repositories.NewInMemoryParticipantRepo()
		messageRepo = repositories.NewInMemoryMessageRepo()
		registrationRepo = repositories.NewInMemoryRegistrationRepo(teamRepo, eventRepo)
	}

	if dbClose != nil {
		defer func() {
			if err := dbClose(); err != nil {
				appLog.Errorw("error closing database", "error", err)
			}
		}()
	}

	notifier := services.NewRegistrationNotifier(cfg.WebhookURL, cfg.WebhookToken, nil, appLog.Sub("webhook"))
	audit := eventlog.NewWriter(cfg.EventLogDir, appLog.Sub("eventlog"))

	bridge := services.NewRegistrationBridge(registrationRepo, eventRepo, participantRepo, objectStorage, notifier, appLog.Sub("bridge"))
	teamSvc := services.NewTeamService(teamRepo, eventRepo, participantRepo, bridge, cfg.AppURL, audit, appLog.Sub("teams"))
	chatSvc := services.NewChatService(messageRepo, participantRepo, objectStorage, appLog.Sub("chat"))
	presence := services.NewPresence()

	hub := ws.NewHub()
	go hub.Run()
	gateway := ws.NewGateway(hub, presence, teamSvc, chatSvc, participantRepo, cfg.JWTSecret, appLog.Sub("ws"))

	router := httpPlatform.NewRouter(httpPlatform.RouterConfig{
		TeamCtrl:  controllers.NewTeamController(teamSvc),
		ChatCtrl:  controllers.NewChatController(chatSvc, teamSvc, gateway),
		Gateway:   gateway,
		JWTSecret: cfg.JWTSecret,
		Logger:    appLog.Sub("http"),
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		appLog.Infow("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	appLog.Infow("shutting down")
	_ = srv.Shutdown(context.Background())
}
