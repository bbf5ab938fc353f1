package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	openai "github.com/sashabaranov/go-openai"

	"finapp-server/internal/chat"
	"finapp-server/internal/config"
	"finapp-server/internal/database"
	"finapp-server/internal/handler"
	"finapp-server/internal/middleware"
	"finapp-server/internal/queue"
	"finapp-server/internal/repository"
	"finapp-server/internal/router"
	"finapp-server/internal/service"
	"finapp-server/internal/sse"
	"finapp-server/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is absent; limiter degrades to pass-through

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	codes := repository.NewCodeRepo(db)
	keys := repository.NewAPIKeyRepo(db)
	categories := repository.NewCategoryRepo(db)
	entries := repository.NewEntryRepo(db)

	codec := utils.NewTokenCodec(cfg.AppName, cfg.AccessTokenKey, cfg.RefreshTokenKey, cfg.AccessTTLMin, cfg.RefreshTTLDays)
	authSvc := service.NewAuthService(users, tokens, codes, codec)

	registry := sse.NewRegistry()
	dispatcher := sse.NewDispatcher(registry, 4, 64)
	defer dispatcher.Close()

	publisher := queue.NewPublisher()
	go func() {
		if err := queue.StartEntriesConsumer(); err != nil {
			log.Printf("queue: consumer stopped: %v", err)
		}
	}()

	loc, err := time.LoadLocation(cfg.ChatTimezone)
	if err != nil {
		log.Printf("config: unknown timezone %q, falling back to UTC", cfg.ChatTimezone)
		loc = time.UTC
	}

	histories := chat.NewHistoryCache()
	toolbox := chat.NewToolbox(categories, entries, dispatcher, publisher, histories, loc, sse.EventEntriesCreated)

	oc := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	chatSvc := chat.NewService(openai.NewClientWithConfig(oc), cfg.OpenAIModel, histories, categories, toolbox, loc, cfg.ChatLocale)

	resolver := middleware.NewResolver(codec, codes, keys)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Resolver:  resolver,
		RateLimit: middleware.NewRateLimiter(cfg.RateLimit, rdb),
		Auth:      handler.NewAuthHandler(authSvc),
		User:      handler.NewUserHandler(cfg, users, authSvc),
		Category:  handler.NewCategoryHandler(categories, chatSvc),
		Entry:     handler.NewEntryHandler(entries, categories, dispatcher, publisher, loc),
		Dashboard: handler.NewDashboardHandler(entries, loc),
		Chat:      handler.NewChatHandler(users, chatSvc),
		SSE:       handler.NewSSEHandler(registry),
		Notify:    handler.NewNotifyHandler(dispatcher, registry),
	})

	go sweepLoop(authSvc, cfg.SweepInterval)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// sweepLoop purges expired refresh tokens on a fixed interval.
func sweepLoop(auth *service.AuthService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := auth.SweepExpiredTokens(ctx); err != nil {
			log.Printf("sweeper: %v", err)
		}
		cancel()
	}
}
