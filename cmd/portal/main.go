package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goa-gov/sewa-connect/internal/adapters/civilregistry"
	"github.com/goa-gov/sewa-connect/internal/application"
	"github.com/goa-gov/sewa-connect/internal/audit"
	"github.com/goa-gov/sewa-connect/internal/catalog"
	"github.com/goa-gov/sewa-connect/internal/document"
	"github.com/goa-gov/sewa-connect/internal/identity"
	"github.com/goa-gov/sewa-connect/internal/payment"
	"github.com/goa-gov/sewa-connect/internal/policy"
	"github.com/goa-gov/sewa-connect/internal/router"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/config"
	"github.com/goa-gov/sewa-connect/internal/shared/database"
	"github.com/goa-gov/sewa-connect/internal/shared/events"
	"github.com/goa-gov/sewa-connect/internal/shared/metrics"
	secmiddleware "github.com/goa-gov/sewa-connect/internal/shared/middleware"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
	"github.com/goa-gov/sewa-connect/internal/stats"
	"github.com/goa-gov/sewa-connect/internal/storage"
)

// App holds all application dependencies
type App struct {
	Config   *config.Config
	DB       *database.DB
	Bus      *events.Bus
	Registry *civilregistry.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Database (required for the API surface; the server still starts
	// without it so health endpoints keep answering)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running in limited mode without database...")
	} else {
		app.DB = db
		defer db.Close()

		applied, err := database.Migrate(ctx, db.Pool)
		if err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
		for _, version := range applied {
			fmt.Printf("Applied migration: %s\n", version)
		}
	}

	// Event bus over EventStoreDB (optional)
	bus, err := events.NewBus(ctx, cfg.EventStore)
	if err != nil {
		fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
		fmt.Println("Running without event streaming and audit log...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("EventStoreDB event bus initialized")
	}

	// Legacy civil registry over SQL Server (optional)
	if cfg.Registry.Enabled {
		registry, err := civilregistry.New(ctx, cfg.Registry)
		if err != nil {
			fmt.Printf("Warning: Civil registry not available: %v\n", err)
			fmt.Println("Aadhaar submissions will be stored unverified...")
		} else {
			app.Registry = registry
			defer registry.Close()
			fmt.Println("Civil registry adapter initialized")
		}
	}

	store, err := storage.NewFilesystemStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize document store: %v\n", err)
		os.Exit(1)
	}

	engine := policy.NewEngine()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// Role-based entry routing lives at the root; a bearer token is
	// honored when present but never required here.
	routerHandler := router.NewHandler()
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalMiddleware(cfg.Auth))
		r.Mount("/", routerHandler.Routes())
		r.Get("/api/v1/session/route", routerHandler.SessionRoute)
	})

	r.NotFound(router.NotFound)

	if app.DB != nil {
		// Nil interface values, not typed nils, so the publish guards work.
		var eventBus events.EventBus
		if app.Bus != nil {
			eventBus = app.Bus
		}
		var verifier identity.RegistryVerifier
		if app.Registry != nil {
			verifier = app.Registry
		}

		identityRepo := identity.NewPostgresRepository(app.DB.Pool)
		identityService := identity.NewService(identityRepo, cfg.Auth, eventBus, verifier)
		identityHandler := identity.NewHandler(identityService, identityRepo, engine)

		catalogRepo := catalog.NewPostgresRepository(app.DB.Pool)
		catalogHandler := catalog.NewHandler(catalogRepo, engine)

		applicationRepo := application.NewPostgresRepository(app.DB.Pool)
		documentRepo := document.NewPostgresRepository(app.DB.Pool)
		paymentRepo := payment.NewPostgresRepository(app.DB.Pool)

		applicationService := application.NewService(applicationRepo, catalogRepo, store, payment.NewMockGateway(), eventBus)
		applicationHandler := application.NewHandler(applicationService, applicationRepo, documentRepo, paymentRepo, engine)

		documentHandler := document.NewHandler(documentRepo, applicationSource{applicationRepo}, catalogRepo, store, engine)

		statsRepo := stats.NewPostgresRepository(app.DB.Pool)
		statsHandler := stats.NewHandler(statsRepo, engine)

		// Session endpoints are public but rate limited per IP.
		authLimiter := secmiddleware.NewIPRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst)
		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Mount("/", identityHandler.AuthRoutes())
		})

		// Catalog reads are public; writes are policy checked inside.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(cfg.Auth))
			r.Mount("/api/v1/catalog", catalogHandler.Routes())
		})

		// Everything else requires a valid token.
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))

			r.Mount("/", identityHandler.Routes())
			r.Mount("/applications", applicationHandler.Routes())
			r.Mount("/applications/{applicationID}/documents", documentHandler.ApplicationRoutes())
			r.Mount("/documents", documentHandler.Routes())
			r.Mount("/stats", statsHandler.Routes())

			// Audit log lives in EventStoreDB (append-only by construction)
			if app.Bus != nil {
				auditRepo := audit.NewEventStoreRepository(app.Bus.Client())
				if err := auditRepo.Initialize(ctx); err != nil {
					fmt.Printf("Warning: Audit initialization failed: %v\n", err)
				}
				auditHandler := audit.NewHandler(auditRepo, engine)
				r.Mount("/audit", auditHandler.Routes())

				auditSubscriber := audit.NewSubscriber(auditRepo, app.Bus)
				if err := auditSubscriber.Start(ctx); err != nil {
					fmt.Printf("Warning: Audit subscriber failed to start: %v\n", err)
				} else {
					fmt.Println("Audit subscriber started")
				}
			}
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Goa Sewa Connect - Citizen Services Portal")
	fmt.Println("============================================")
	fmt.Printf("Environment:   %s\n", cfg.Server.Env)
	fmt.Printf("Server:        http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:           http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:        http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Document root: %s\n", cfg.Storage.Root)
	fmt.Printf("EventStore:    %s:%d\n", cfg.EventStore.Host, cfg.EventStore.Port)
	fmt.Printf("Registry:      enabled=%v\n", cfg.Registry.Enabled)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

// applicationSource adapts the application repository to the document
// module's lookup interface.
type applicationSource struct {
	repo application.Repository
}

func (a applicationSource) ApplicationOwner(ctx context.Context, id types.ID) (types.ID, types.ID, bool, error) {
	app, err := a.repo.FindByID(ctx, id)
	if err != nil {
		return "", "", false, err
	}
	return app.CitizenID, app.ServiceID, app.Status.IsTerminal(), nil
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.Registry != nil {
			if err := app.Registry.Health(r.Context()); err != nil {
				checks["civil_registry"] = "not ready: " + err.Error()
			} else {
				checks["civil_registry"] = "ready"
			}
		} else {
			checks["civil_registry"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Idempotency-Key, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
