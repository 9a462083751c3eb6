// README: Entry point; loads config, wires stores and services, serves HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"roadside/internal/config"
	httptransport "roadside/internal/http"
	"roadside/internal/infra"
	"roadside/internal/maps"
	"roadside/internal/modules/booking"
	"roadside/internal/modules/discovery"
	"roadside/internal/modules/notify"
	"roadside/internal/modules/pricing"
	"roadside/internal/modules/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.NewTracerProvider(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	var verifier infra.TokenVerifier
	notifiers := notify.Multi{}
	hub := notify.NewHub(log)
	notifiers = append(notifiers, hub)

	if cfg.Firebase.ProjectID != "" {
		app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase: %v", err)
		}
		msgClient, err := infra.NewMessaging(ctx, app)
		if err != nil {
			log.Fatalf("firebase messaging: %v", err)
		}
		notifiers = append(notifiers, notify.NewFCM(msgClient, log))
		if cfg.Auth.Mode == "firebase" {
			if verifier, err = infra.NewFirebaseVerifier(ctx, app); err != nil {
				log.Fatalf("firebase auth: %v", err)
			}
		}
	}
	if cfg.Auth.Mode == "jwt" {
		verifier = infra.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	}

	var provider routing.Router
	switch cfg.Routing.Provider {
	case "google":
		provider, err = maps.NewRouteService(cfg.Routing.GoogleAPIKey, cfg.Routing.Timeout)
		if err != nil {
			log.Fatalf("google maps: %v", err)
		}
	default:
		provider = maps.NewOSRMClient(cfg.Routing.OSRMBaseURL, cfg.Routing.Timeout)
	}
	router := routing.NewCachedRouter(provider, redisClient, cfg.Routing.CacheTTL, log)
	routingSvc := routing.NewService(router, log)

	var index discovery.Index
	switch cfg.Discovery.Backend {
	case "memory":
		f, err := os.Open(cfg.Discovery.FixtureFile)
		if err != nil {
			log.Fatalf("mechanic fixtures: %v", err)
		}
		mechanics, err := discovery.LoadFixtures(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("mechanic fixtures: %v", err)
		}
		index = discovery.NewMemoryIndex(mechanics...)
		log.WithField("mechanics", len(mechanics)).Info("using in-memory mechanic index")
	default:
		mongoClient, err := infra.NewMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		store := discovery.NewStore(mongoClient.Database(cfg.Mongo.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Fatalf("mongo indexes: %v", err)
		}
		index = store
	}
	discoverySvc := discovery.NewService(index, cfg.Discovery.MaxDistanceMeters, cfg.Discovery.Limit, log)

	overrides, err := pricing.NewStore(dbPool).LoadOverrides(ctx)
	if err != nil {
		log.Fatalf("pricing overrides: %v", err)
	}
	pricingSvc := pricing.NewService(pricing.DefaultTable().Merge(overrides), cfg.Booking.Currency)

	bookingSvc := booking.NewService(booking.NewStore(dbPool), discoverySvc, routingSvc, pricingSvc, log, booking.Options{
		RouteConcurrency: cfg.Booking.RouteConcurrency,
		Notifier:         notifiers,
		NotifyTimeout:    cfg.Booking.NotifyTimeout,
	})

	handler, err := httptransport.NewRouter(httptransport.RouterDeps{
		Booking:  bookingSvc,
		Hub:      hub,
		Verifier: verifier,
		Log:      log,
	})
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	log.WithFields(logrus.Fields{
		"routing":     cfg.Routing.Provider,
		"discovery":   cfg.Discovery.Backend,
		"auth":        cfg.Auth.Mode,
		"concurrency": cfg.Booking.RouteConcurrency,
	}).Info("roadside-api starting")

	server := httptransport.NewServer(cfg.HTTP.Addr, handler, log)
	if err := server.Run(ctx, 15*time.Second); err != nil {
		log.WithError(err).Error("http server stopped")
	}

	hub.Close()
	bookingSvc.Wait()
	if err := shutdownTracing(context.Background()); err != nil {
		log.WithError(err).Warn("tracing shutdown")
	}
}
