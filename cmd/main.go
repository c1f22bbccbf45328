package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/auth"
	"github.com/portaprosoftware/fleet-compliance/internal/cache"
	"github.com/portaprosoftware/fleet-compliance/internal/config"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/handlers"
	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/middleware"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/portaprosoftware/fleet-compliance/internal/notify"
	"github.com/portaprosoftware/fleet-compliance/internal/spillkit"
	"github.com/portaprosoftware/fleet-compliance/internal/weather"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.SetupLogging(); err != nil {
		log.Fatalf("Invalid logging configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	cols := db.NewCollections(database)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		log.Fatalf("Failed to create auth service: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, using the development key")
	}

	if err := seedTemplates(ctx, cols.SpillKits, cfg.SpillKitCatalog); err != nil {
		log.WithError(err).Warn("Spill kit templates were not seeded")
	}
	if err := bootstrapOwner(ctx, cols.Users, authService, cfg.BootstrapOwner); err != nil {
		log.Fatalf("Failed to bootstrap owner account: %v", err)
	}

	publisher, err := notify.New(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
	if err != nil {
		log.WithError(err).Warn("MQTT broker unavailable, notifications disabled")
		publisher = notify.NopPublisher{}
	}
	defer publisher.Close()

	var lookup handlers.WeatherLookup
	if cfg.WeatherAPIURL != "" {
		lookup = weather.NewClient(cfg.WeatherAPIURL)
	}

	m := metrics.New()
	srv := newServer(cfg, cols, authService, publisher, lookup, m, func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("HTTP server failed: %v", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// newServer wires handlers and middleware into the API handler.
func newServer(
	cfg *config.Config,
	cols *db.Collections,
	authService *auth.Service,
	publisher notify.Publisher,
	lookup handlers.WeatherLookup,
	m *metrics.Metrics,
	ping func(ctx context.Context) error,
) http.Handler {
	store := cache.NewStore(cfg.CacheTTL)
	calendar := handlers.NewCalendar(cols.Settings, cfg.DefaultTimezone)

	s := &handlers.Server{
		Auth:        handlers.NewAuthHandler(authService, cols.Users),
		Vehicles:    handlers.NewVehicleHandler(cols.Vehicles, store, m),
		Maintenance: handlers.NewMaintenanceHandler(cols.Maintenance, cols.Vehicles, calendar, store, m, publisher, cfg.MaxLimit),
		Incidents:   handlers.NewIncidentHandler(cols.Incidents, store, m, publisher, lookup),
		SpillKits:   handlers.NewSpillKitHandler(cols.SpillKits, cols.Vehicles, calendar, store, m, publisher, lookup),
		Settings:    handlers.NewSettingsHandler(cols.Settings, calendar, store),
		Weather:     handlers.NewWeatherHandler(lookup),
		AuthMW:      middleware.NewAuthMiddleware(authService),
		Metrics:     m,
		Ping:        ping,
	}

	return middleware.Chain(s.Routes(),
		middleware.RequestLogger,
		middleware.Instrument(m),
		middleware.NewRateLimitMiddleware().RateLimit(cfg.RateLimitPerMinute, 60),
	)
}

// templateStore is the part of the spill kit collection seeding needs.
type templateStore interface {
	UpsertTemplate(ctx context.Context, tmpl models.SpillKitTemplate) error
}

// seedTemplates upserts the catalog templates by name.
func seedTemplates(ctx context.Context, store templateStore, path string) error {
	if path == "" {
		return nil
	}
	templates, err := spillkit.LoadCatalog(path)
	if err != nil {
		return err
	}
	for _, tmpl := range templates {
		if err := store.UpsertTemplate(ctx, tmpl); err != nil {
			return fmt.Errorf("upsert template %q: %w", tmpl.Name, err)
		}
	}
	log.WithFields(log.Fields{"templates": len(templates), "catalog": path}).Info("Spill kit templates seeded")
	return nil
}

// ownerStore is the part of the user collection bootstrapping needs.
type ownerStore interface {
	FindUsers(ctx context.Context, role models.Role) ([]models.User, error)
	InsertUser(ctx context.Context, user models.User) error
}

// bootstrapOwner creates the configured owner account when no owner exists
// yet. Registration requires an owner or admin, so without one nobody could
// sign up.
func bootstrapOwner(ctx context.Context, users ownerStore, svc *auth.Service, owner config.BootstrapOwner) error {
	if !owner.Enabled() {
		return nil
	}
	owners, err := users.FindUsers(ctx, models.RoleOwner)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	if len(owners) > 0 {
		return nil
	}
	if err := svc.ValidatePassword(owner.Password); err != nil {
		return err
	}
	hash, err := svc.HashPassword(owner.Password)
	if err != nil {
		return err
	}
	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     owner.Username,
		Email:        owner.Email,
		PasswordHash: hash,
		Role:         models.RoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			log.WithField("username", owner.Username).Warn("Bootstrap owner username or email is already taken")
			return nil
		}
		return err
	}
	log.WithField("username", owner.Username).Info("Bootstrap owner account created")
	return nil
}
