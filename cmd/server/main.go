package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"

	"github.com/insurancepro/marketing/internal/api"
	"github.com/insurancepro/marketing/internal/auth"
	"github.com/insurancepro/marketing/internal/config"
	"github.com/insurancepro/marketing/internal/dispatch"
	"github.com/insurancepro/marketing/internal/mailer"
	"github.com/insurancepro/marketing/internal/repository/postgres"
	"github.com/insurancepro/marketing/internal/service/campaign"
	"github.com/insurancepro/marketing/internal/service/contact"
	"github.com/insurancepro/marketing/internal/service/subscriber"
	"github.com/insurancepro/marketing/internal/token"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Token secret
	secret := []byte(cfg.Token.Secret)
	if len(secret) == 0 {
		// A random secret keeps the server usable, but every restart
		// invalidates all previously issued unsubscribe links.
		secret = token.NewRandomSecret()
		log.Println("WARNING: token.secret not set, generated a random one; unsubscribe links will break on restart")
	}
	codec := token.NewCodec(secret)

	// Services
	subRepo := postgres.NewSubscriberRepo(db)
	campRepo := postgres.NewCampaignRepo(db)
	contactRepo := postgres.NewContactRepo(db)
	adminRepo := postgres.NewAdminRepo(db)

	subscribers := subscriber.NewService(subRepo)
	campaigns := campaign.NewService(campRepo)
	contacts := contact.NewService(contactRepo)

	transport := mailer.NewSMTPTransport(cfg.SMTP)
	if !transport.Configured() {
		log.Println("WARNING: SMTP credentials not set, campaign sends will fail")
	}

	dispatcher := dispatch.New(
		campaigns, subscribers, codec, transport,
		cfg.Server.BaseURL, cfg.Dispatch.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis send queue (optional; sync sends work without it)
	var queue *dispatch.Queue
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable (%v), async sends disabled", err)
	} else {
		queue = dispatch.NewQueue(rdb, dispatcher)
		log.Println("Connected to Redis, async sends enabled")
	}
	defer rdb.Close()

	authManager := auth.NewManager(
		adminRepo,
		cfg.Auth.CookieName,
		time.Duration(cfg.Auth.SessionTTLMinutes)*time.Minute,
	)
	authManager.CleanupExpiredSessions(ctx)

	handlers := api.NewHandlers(subscribers, campaigns, contacts, dispatcher, queue, codec, authManager)
	server := api.NewServer(handlers, cfg.Server.AllowedOrigins)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
