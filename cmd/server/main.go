package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shivansh1251/DoodleSync/internal/cache"
	"github.com/Shivansh1251/DoodleSync/internal/config"
	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/internal/handler"
	"github.com/Shivansh1251/DoodleSync/internal/hub"
	"github.com/Shivansh1251/DoodleSync/internal/presence"
	"github.com/Shivansh1251/DoodleSync/internal/registry"
	"github.com/Shivansh1251/DoodleSync/internal/repository"
	"github.com/Shivansh1251/DoodleSync/internal/service"
	"github.com/Shivansh1251/DoodleSync/pkg/database"
	pkglog "github.com/Shivansh1251/DoodleSync/pkg/log"
	"github.com/Shivansh1251/DoodleSync/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "doodlesync",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(cfg.DatabaseConfigFor())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate
	if err := database.AutoMigrate(db, &domain.RoomModel{}, &domain.ChatMessageModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Initialize repository
	store := repository.NewGormStore(db)

	// Initialize optional Redis chat cache
	var msgCache cache.MessageCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisMessageCache(cfg.RedisCacheConfig(), cfg.Redis.CachePrefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisCache.Close()
		msgCache = redisCache
		logger.Info().Msg("redis cache connected")
	}

	// Initialize document registry
	reg := registry.New(store, registry.Config{
		QueueSize:    cfg.Sync.WriteQueueSize,
		WriteRetries: cfg.Sync.WriteRetries,
		RetryBackoff: 250 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	})
	defer reg.Close()

	// Initialize presence tracker
	tracker := presence.NewTracker(cfg.Sync.ActivityWindow)
	defer tracker.Close()

	// Initialize hub
	h := hub.NewHub(cfg.WebSocket)
	go h.Run()

	// Initialize services
	historyService := service.NewHistoryService(store, msgCache, cfg.Redis.CacheTTL)
	roomService := service.NewRoomService(store, reg, msgCache, cfg.Sync.RoomListLimit)
	syncService := service.NewSyncService(h, reg, tracker, store, historyService, msgCache, service.SyncConfig{
		SettleDelay:  cfg.Sync.SettleDelay,
		HistoryLimit: cfg.Sync.HistoryLimit,
	})

	// Initialize handlers
	wsHandler := handler.NewWSHandler(h, syncService)
	httpHandler := handler.NewHTTPHandler(roomService, historyService, cfg.Sync.HistoryLimit)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	httpHandler.RegisterRoutes(r)
	r.GET("/ws", wsHandler.Handle)
	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Bool("redis", cfg.Redis.Enabled).Msg("doodlesync starting")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
