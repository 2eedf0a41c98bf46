package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	configs "github.com/registraction/vip-services/configs"
	"github.com/registraction/vip-services/internal/vipsvc/captcha"
	"github.com/registraction/vip-services/internal/vipsvc/config"
	"github.com/registraction/vip-services/internal/vipsvc/db"
	handlers "github.com/registraction/vip-services/internal/vipsvc/handlers"
	"github.com/registraction/vip-services/internal/vipsvc/service"
	"github.com/registraction/vip-services/internal/vipsvc/store"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "vip"

func init() {
	configs.Logging(SERVICE_NAME + "_service")
	configs.LoadEnv(SERVICE_NAME)
}

func main() {
	configs.CreateUniqueInstance(SERVICE_NAME)
	cfg := config.Load()

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	migrator, err := db.NewMigrator(dbpool)
	if err != nil {
		log.Fatalf("Failed to init migrator: %v", err)
	}
	if err := migrator.Run(context.Background()); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	migrator.Close()

	directoryStore := store.NewDirectoryStore(dbpool)
	slotStore := store.NewSlotStore(dbpool)
	verifier := captcha.NewVerifier(cfg.RecaptchaSecret, cfg.RecaptchaMinScore)
	verifier.Endpoint = cfg.RecaptchaVerifyURL

	registrationService := service.NewRegistrationService(directoryStore, slotStore, verifier)

	// Setup router
	r := chi.NewRouter()
	c := configs.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(configs.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the registration form from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(registrationService, handlers.Options{
		SiteKey:   cfg.RecaptchaSiteKey,
		JWTSecret: cfg.JWTSecret,
	})
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
