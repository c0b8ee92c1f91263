package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"goldbot/internal/bot"
	"goldbot/internal/cache"
	"goldbot/internal/config"
	"goldbot/internal/economy"
	"goldbot/internal/jobs"
	"goldbot/internal/metrics"
	"goldbot/internal/moderation"
	"goldbot/internal/notify"
	"goldbot/internal/store"
	"goldbot/internal/votes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()
	if err := st.InitSchema(ctx); err != nil {
		log.Fatalf("store schema: %v", err)
	}

	c := cache.New(cfg.RedisURL, cfg.RedisDB)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		log.Fatalf("cache: %v", err)
	}

	// Wired in two steps: the bot needs the economy, the economy's
	// notifier needs the bot as its delivery sender.
	queue := notify.NewQueue(c.Redis(), nil)
	eco := economy.New(st, c, queue)
	mod := moderation.New(st, c)

	tgBot, err := bot.New(cfg.BotToken, st, c, eco, mod, cfg.AdminID)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}
	queue.SetSender(tgBot)

	proc := votes.NewProcessor(st, c, eco, queue, cfg.VoteCooldown)
	server := votes.NewServer(proc, cfg.VoteWebhookSecret, cfg.AdminJWTSecret, st)

	scheduler := jobs.NewScheduler(
		jobs.NetWorthJob(st, c, eco, cfg.NetWorthEvery, cfg.NetWorthStale),
	)
	scheduler.Start(ctx)

	go queue.Worker(ctx)

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			log.Printf("metrics: %v", err)
		}
	}()

	go func() {
		if err := server.Serve(cfg.WebhookAddr); err != nil {
			log.Printf("webhook: %v", err)
		}
	}()

	go tgBot.Start(ctx)

	<-ctx.Done()
	log.Printf("shutting down")
	os.Exit(0)
}
