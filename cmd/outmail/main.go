package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/recruitforge/outmail/internal/api/handlers"
	"github.com/recruitforge/outmail/internal/api/middleware"
	"github.com/recruitforge/outmail/internal/config"
	"github.com/recruitforge/outmail/internal/db"
	"github.com/recruitforge/outmail/internal/logging"
	"github.com/recruitforge/outmail/internal/mailer/factory"
	"github.com/recruitforge/outmail/internal/secrets"
	"github.com/recruitforge/outmail/internal/version"
)

func main() {
	configPath := os.Getenv("OUTMAIL_CONFIG")
	if configPath == "" {
		configPath = "outmail.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	cipher := secrets.NewAESCipher([]byte(cfg.EncryptionKey))

	providerFactory := factory.New(database, cipher, factory.OAuthCredentials{
		GoogleClientID:        cfg.Google.ClientID,
		GoogleClientSecret:    cfg.Google.ClientSecret,
		MicrosoftClientID:     cfg.Microsoft.ClientID,
		MicrosoftClientSecret: cfg.Microsoft.ClientSecret,
		MicrosoftTenantID:     cfg.Microsoft.TenantID,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(database))

		// Account management
		r.Post("/accounts", handlers.CreateAccountHandler(database, cipher))
		r.Get("/accounts", handlers.ListAccountsHandler(database))
		r.Post("/accounts/{id}/default", handlers.PromoteAccountHandler(database))
		r.Delete("/accounts/{id}", handlers.DeleteAccountHandler(database))

		// Outbound send
		r.Post("/send", handlers.SendHandler(providerFactory))

		// ESP sending domains
		r.Post("/accounts/{id}/domains", handlers.CreateDomainHandler(providerFactory))
		r.Get("/accounts/{id}/domains/{domainID}", handlers.GetDomainHandler(providerFactory))
		r.Post("/accounts/{id}/domains/{domainID}/verify", handlers.VerifyDomainHandler(providerFactory))
		r.Delete("/accounts/{id}/domains/{domainID}", handlers.DeleteDomainHandler(providerFactory))
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("🚀 Outmail %s starting on http://%s", version.Version, addr)
	log.Printf("📬 Send API: http://%s/api/send", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
