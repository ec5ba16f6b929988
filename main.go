package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"spark_server/config"
	"spark_server/routes"
	"spark_server/services"
	"spark_server/socket"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "spark_server").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	dynamoClient, err := services.InitializeDynamoDBClient(cfg.AWSRegion)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize DynamoDB client")
	}
	dynamoService := &services.DynamoService{Client: dynamoClient}
	logger.Info().Str("region", cfg.AWSRegion).Msg("DynamoDB client initialized")

	// Initialize services
	geoService := services.NewGeoService()
	scoreService := services.NewScoreService()
	cacheService := services.NewCacheService(dynamoService, logger)
	profileService := services.NewProfileService(dynamoService, geoService, logger)

	// Socket.IO server for push notifications and presence
	socketServer := socket.NewSocketServer(logger, profileService)
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("socket server stopped")
		}
	}()
	defer socketServer.Close()

	notificationService := &services.NotificationService{Server: socketServer, Logger: logger}
	interactionService := &services.InteractionService{Dynamo: dynamoService, Cache: cacheService, Logger: logger}
	chatService := &services.ChatService{Dynamo: dynamoService, Profiles: profileService, Notifier: notificationService, Logger: logger}
	matchService := &services.MatchService{
		Dynamo:       dynamoService,
		Interactions: interactionService,
		Profiles:     profileService,
		Chat:         chatService,
		Cache:        cacheService,
		Notifier:     notificationService,
		Logger:       logger,
	}
	discoveryService := services.NewDiscoveryService(dynamoService, profileService, interactionService, matchService, geoService, scoreService, cacheService, logger)
	discoveryService.QueueTarget = cfg.QueueTarget
	discoveryService.QueueMinUnseen = cfg.QueueMinUnseen
	discoveryService.PerRangeLimit = cfg.PerRangeLimit
	discoveryService.PageSize = cfg.PageSize
	discoveryService.CacheReads = cfg.CacheReads
	discoveryService.CacheTTL = cfg.CacheTTL

	cacheService.WarmFromDurable(context.Background())

	var s3Service *services.S3Service
	if cfg.S3Bucket != "" {
		s3Service, err = services.NewS3Service(context.Background(), cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize S3 service")
		}
	}

	// Initialize the router
	r := mux.NewRouter()
	r.Handle("/socket.io/", socketServer)

	routes.RegisterRoutes(r)
	routes.RegisterUserProfileRoutes(r, profileService)
	routes.RegisterDiscoveryRoutes(r, discoveryService)
	routes.RegisterInteractionRoutes(r, interactionService, matchService)
	routes.RegisterMatchRoutes(r, matchService)
	routes.RegisterChatRoutes(r, chatService)
	if s3Service != nil {
		routes.RegisterS3Routes(r, s3Service, profileService)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info().Str("addr", addr).Msg("starting server")
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
