package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	appmsg "github.com/Bonshal/swapspot/internal/app/messaging"
	authsvc "github.com/Bonshal/swapspot/internal/app/services/auth"
	domainauth "github.com/Bonshal/swapspot/internal/domain/auth"
	domainlisting "github.com/Bonshal/swapspot/internal/domain/listing"
	domainmsg "github.com/Bonshal/swapspot/internal/domain/messaging"
	domainuser "github.com/Bonshal/swapspot/internal/domain/user"
	"github.com/Bonshal/swapspot/internal/infra/broker/kafka"
	"github.com/Bonshal/swapspot/internal/infra/config"
	mongodb "github.com/Bonshal/swapspot/internal/infra/db/mongo"
	ginserver "github.com/Bonshal/swapspot/internal/infra/http/gin"
	"github.com/Bonshal/swapspot/internal/infra/obs"
	"github.com/Bonshal/swapspot/internal/infra/security"
	"github.com/Bonshal/swapspot/internal/infra/storage/memory"
	"github.com/Bonshal/swapspot/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, cleanup := buildApplication(ctx, cfg, logger)
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		app.manager.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	manager  *appmsg.Manager
	ready    func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func()) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var (
		users          domainuser.Repository
		sessions       domainauth.SessionStore
		listingGateway domainlisting.Gateway
		msgGateway     domainmsg.Gateway
		ready          = func() error { return nil }
	)

	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		users = mongodb.NewUserRepository(client.DB)
		sessions = mongodb.NewSessionStore(client.DB)
		listingGateway = mongodb.NewListingGateway(client.DB)
		msgGateway = mongodb.NewMessagingGateway(client.DB)
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		logger.Info("mongo backend ready", "db", cfg.MongoDB)
	} else {
		userRepo := memory.NewUserRepository()
		listingRepo := memory.NewListingRepository()
		backend := memory.NewMessagingBackend()
		backend.Users = userRepo
		backend.Listings = listingRepo

		users = userRepo
		sessions = memory.NewSessionStore()
		listingGateway = listingRepo
		msgGateway = backend
		logger.Info("running on in-memory backend; set MONGO_URI for persistence")
	}

	notifier := buildNotifier(cfg, logger, &cleanups)
	uploader := buildUploader(cfg, logger)

	manager := &appmsg.Manager{
		Gateway:      msgGateway,
		Notifier:     notifier,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
	}

	startBadgeConsumer(ctx, cfg, manager, logger, &cleanups)

	authService := &authsvc.Service{
		Users:      users,
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		Hook:       manager,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	if cfg.MongoURI == "" {
		seedDemoData(ctx, users, listingGateway, logger)
	}

	authMiddleware := ginserver.AuthMiddleware{Service: authService, Logger: logger}
	handlers := ginserver.Handlers{
		Auth: ginserver.AuthHandler{Service: authService, Logger: logger},
		Listing: &ginserver.ListingHandler{
			Gateway:  listingGateway,
			Uploader: uploader,
			Logger:   logger,
		},
		Messages:       &ginserver.MessageHandler{Manager: manager, Logger: logger},
		AuthMiddleware: authMiddleware.Handle,
	}

	return application{handlers: handlers, manager: manager, ready: ready}, cleanup
}

func buildNotifier(cfg config.Config, logger *slog.Logger, cleanups *[]func()) appmsg.Notifier {
	if len(cfg.KafkaBrokers) == 0 {
		return appmsg.NopNotifier{}
	}
	notifier, err := kafka.NewMessageNotifier(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
	if err != nil {
		logger.Warn("kafka producer unavailable, message events disabled", "error", err)
		return appmsg.NopNotifier{}
	}
	*cleanups = append(*cleanups, func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	})
	logger.Info("kafka message events enabled", "brokers", cfg.KafkaBrokers)
	return notifier
}

// startBadgeConsumer listens for message-sent events and nudges the receiving
// viewer's unread refresh ahead of the regular poll.
func startBadgeConsumer(ctx context.Context, cfg config.Config, manager *appmsg.Manager, logger *slog.Logger, cleanups *[]func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return
	}
	consumer, err := kafka.NewBadgeConsumer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, manager.RefreshViewer, logger)
	if err != nil {
		logger.Warn("badge consumer unavailable, relying on polling only", "error", err)
		return
	}
	*cleanups = append(*cleanups, func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("badge consumer close failed", "error", err)
		}
	})
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("badge consumer stopped", "error", err)
		}
	}()
}

func buildUploader(cfg config.Config, logger *slog.Logger) s3.Uploader {
	client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
	if err != nil {
		logger.Warn("object storage unavailable, photo uploads disabled", "error", err)
		return s3.NoopUploader{}
	}
	return client
}

// seedDemoData puts a seller, a buyer and a couple of listings into the
// in-memory backend so the API is explorable out of the box.
func seedDemoData(ctx context.Context, users domainuser.Repository, listings domainlisting.Gateway, logger *slog.Logger) {
	hasher := security.BcryptHasher{}
	hash, err := hasher.Hash("demo-password")
	if err != nil {
		logger.Error("cannot hash demo password", "error", err)
		return
	}

	now := time.Now()
	seller, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        "seller@example.com",
		Name:         "Demo Seller",
		PasswordHash: hash,
		CreatedAt:    now,
	})
	if err != nil {
		logger.Error("demo seller invalid", "error", err)
		return
	}
	seller.Rating = 4.8
	seller.MarkVerified(now)
	seller.Location = "Prague"

	buyer, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        "buyer@example.com",
		Name:         "Demo Buyer",
		PasswordHash: hash,
		CreatedAt:    now,
	})
	if err != nil {
		logger.Error("demo buyer invalid", "error", err)
		return
	}

	for _, user := range []*domainuser.User{seller, buyer} {
		if err := users.Save(ctx, user); err != nil {
			logger.Error("cannot seed user", "email", user.Email, "error", err)
			return
		}
	}

	demoListings := []domainlisting.Listing{
		{
			Title:          "Road bike, barely used",
			Description:    "Aluminium frame, one season of light commuting.",
			Price:          320,
			Location:       "Prague",
			Category:       "sports",
			Subcategory:    "cycling",
			Condition:      domainlisting.ConditionLikeNew,
			SellerID:       string(seller.ID),
			SellerName:     seller.Name,
			SellerRating:   seller.Rating,
			SellerVerified: seller.Verified,
		},
		{
			Title:          "Bookshelf, solid oak",
			Description:    "Five shelves, minor scratches on one side.",
			Price:          85,
			Location:       "Prague",
			Category:       "furniture",
			Condition:      domainlisting.ConditionGood,
			SellerID:       string(seller.ID),
			SellerName:     seller.Name,
			SellerRating:   seller.Rating,
			SellerVerified: seller.Verified,
		},
	}
	for _, item := range demoListings {
		created, err := listings.Create(ctx, item)
		if err != nil {
			logger.Error("cannot seed listing", "title", item.Title, "error", err)
			continue
		}
		logger.Info("demo listing ready", "listing_id", created.ID)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
