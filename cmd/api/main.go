package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avolkov/moneyflow/internal/api/handlers"
	"github.com/avolkov/moneyflow/internal/api/middleware"
	"github.com/avolkov/moneyflow/internal/config"
	"github.com/avolkov/moneyflow/internal/domain"
	"github.com/avolkov/moneyflow/internal/logger"
	"github.com/avolkov/moneyflow/internal/remote"
	"github.com/avolkov/moneyflow/internal/txsync"
)

func main() {
	// Parse command-line flags
	var (
		port  = flag.String("port", "", "HTTP server port (overrides MONEYFLOW_PORT)")
		owner = flag.String("owner", os.Getenv("MONEYFLOW_OWNER_ID"), "Owner identity to serve (or set MONEYFLOW_OWNER_ID env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *owner == "" {
		log.Fatal().Msg("An owner identity is required (--owner or MONEYFLOW_OWNER_ID)")
	}

	ctx := context.Background()

	// Initialize the document store
	store, err := remote.NewFirestoreStore(ctx, cfg.ProjectID, cfg.CredentialsFile, cfg.Collection)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create firestore store")
	}
	defer store.Close()

	// Initialize the sync service and bind it to the owner identity
	svc := txsync.NewService(store, logger.WithComponent(log, "txsync"), txsync.Options{
		PageSize:        cfg.PageSize,
		RefreshInterval: cfg.RefreshInterval,
		ReconcileDelay:  cfg.ReconcileDelay,
	})
	defer svc.Close()

	svc.SignIn(*owner)

	// Warm the cache so the first screen load is served from memory
	warmCtx, cancelWarm := context.WithTimeout(ctx, 30*time.Second)
	if _, err := svc.FetchTransactions(warmCtx, domain.Filter{}, 0, true); err != nil {
		log.Warn().Err(err).Msg("Initial fetch failed, continuing with empty cache")
	}
	cancelWarm()

	// Initialize handlers
	transactionsHandler := handlers.NewTransactionsHandler(svc, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.ListTransactions(w, r)
		case http.MethodPost:
			transactionsHandler.CreateTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/more", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			transactionsHandler.FetchMore(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		// Extract transaction ID from path
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.GetTransaction(w, r, id)
		case http.MethodPut:
			transactionsHandler.UpdateTransaction(w, r, id)
		case http.MethodDelete:
			transactionsHandler.DeleteTransaction(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.Summary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.State(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Identity(*owner)(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Info().Str("port", cfg.Port).Str("owner_id", *owner).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
