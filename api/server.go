package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rpupo63/post-studio-backend/config"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(db database.Database, c *viper.Viper) (Server, error) {
	jwtSecret := config.GetString(c, "JWT_SECRET", "")
	if jwtSecret == "" {
		return Server{}, errors.New("JWT_SECRET is required")
	}

	port := config.GetString(c, "PORT", "8080")
	address := fmt.Sprintf("0.0.0.0:%s", port)

	startupTime := time.Now()

	router := newRouter(db,
		withJWTSecret(jwtSecret),
		withAcceptedOrigins(config.GetStrings(c, "ACCEPTED_ORIGINS")),
		withStartupTime(startupTime),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  config.GetSeconds(c, "READ_TIMEOUT_SECONDS", 180),
		WriteTimeout: config.GetSeconds(c, "WRITE_TIMEOUT_SECONDS", 180),
		IdleTimeout:  config.GetSeconds(c, "IDLE_TIMEOUT_SECONDS", 180),
	}

	return Server{server, startupTime}, nil
}

type router struct {
	jwtSecret       string
	acceptedOrigins []string
	startupTime     time.Time
	serviceOptions  []services.Option
}

func withJWTSecret(secret string) func(*router) {
	return func(r *router) {
		r.jwtSecret = secret
	}
}

func withAcceptedOrigins(origins []string) func(*router) {
	return func(r *router) {
		r.acceptedOrigins = origins
	}
}

func withStartupTime(startupTime time.Time) func(*router) {
	return func(r *router) {
		r.startupTime = startupTime
	}
}

func withServiceOptions(opts ...services.Option) func(*router) {
	return func(r *router) {
		r.serviceOptions = append(r.serviceOptions, opts...)
	}
}

func newRouter(db database.Database, opts ...func(*router)) *chi.Mux {
	router := router{startupTime: time.Now()}
	for _, opt := range opts {
		opt(&router)
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(requestIDMiddleware)
	chiRouter.Use(LogInternalServerErrors)
	chiRouter.Use(httpLoggingMiddleware)
	chiRouter.Use(metricsMiddleware)
	chiRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.acceptedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers := initializeHandlers(db, router.startupTime, router.serviceOptions...)
	authMiddleware := newAuthMiddleware(router.jwtSecret)

	setupRoutes(chiRouter, handlers, authMiddleware)

	return chiRouter
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errChannel <- err
	}
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	gracefulCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefulCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
