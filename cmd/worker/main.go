// The worker binary consumes the Redis send queue and promotes scheduled
// campaigns. Run it alongside the server when async sends are enabled.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"

	"github.com/insurancepro/marketing/internal/config"
	"github.com/insurancepro/marketing/internal/dispatch"
	"github.com/insurancepro/marketing/internal/mailer"
	"github.com/insurancepro/marketing/internal/repository/postgres"
	"github.com/insurancepro/marketing/internal/service/campaign"
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
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	if cfg.Token.Secret == "" {
		// The worker must share the server's secret or its unsubscribe
		// links would be rejected by the server.
		log.Fatal("token.secret (or SECRET_KEY) is required for the worker")
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to ping Redis: %v", err)
	}
	log.Println("Connected to Redis")

	subscribers := subscriber.NewService(postgres.NewSubscriberRepo(db))
	campaigns := campaign.NewService(postgres.NewCampaignRepo(db))
	codec := token.NewCodec([]byte(cfg.Token.Secret))
	transport := mailer.NewSMTPTransport(cfg.SMTP)

	dispatcher := dispatch.New(
		campaigns, subscribers, codec, transport,
		cfg.Server.BaseURL, cfg.Dispatch.Workers,
	)
	queue := dispatch.NewQueue(rdb, dispatcher)
	scheduler := dispatch.NewScheduler(
		campaigns, queue,
		time.Duration(cfg.Dispatch.SchedulerIntervalSeconds)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	cancel()
	wg.Wait()
	log.Println("Worker stopped")
}
