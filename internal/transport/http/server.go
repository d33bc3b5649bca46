package http

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commentflow/internal/broadcast"
	"commentflow/internal/cache"
	"commentflow/internal/config"
	"commentflow/internal/database"
	"commentflow/internal/handler"
	appredis "commentflow/internal/redis"
	"commentflow/internal/repository"
	"commentflow/internal/service"
	"commentflow/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

// Run wires the whole service together and serves until SIGINT/SIGTERM.
// All dependencies are constructed here and passed down explicitly; nothing
// holds a package-level connection handle.
func Run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := appredis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	// Cache + broadcast
	commentCache := cache.NewCommentCache(redisClient.Client)
	publisher := broadcast.NewPublisher(redisClient.Client)
	hub := broadcast.NewHub()
	listener := broadcast.NewListener(redisClient.Client, hub)
	if err := listener.Start(ctx); err != nil {
		return fmt.Errorf("failed to start broadcast listener: %w", err)
	}
	defer listener.Stop()

	// Services
	userService := service.NewUserService(userRepo)
	authService := service.NewAuthService(userRepo, cfg)
	commentService := service.NewCommentService(commentRepo, userRepo, commentCache, publisher)

	var mediaHandler *handler.MediaHandler
	if mediaService, err := service.NewMediaService(ctx, cfg); err != nil {
		log.Printf("Avatar uploads disabled: %v", err)
	} else {
		mediaHandler = handler.NewMediaHandler(mediaService, userService)
	}

	router := NewRouter(RouterConfig{
		AuthHandler:    handler.NewAuthHandler(userService, authService),
		CommentHandler: handler.NewCommentHandler(commentService),
		MediaHandler:   mediaHandler,
		WSHandler:      ws.NewHandler(hub, cfg.JWTSecret, cfg.AllowedOrigins),
		JWTSecret:      cfg.JWTSecret,
	})

	srv := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("Received %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
