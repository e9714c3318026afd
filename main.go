package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/huddlelabs/huddle/api/rest"
	"github.com/huddlelabs/huddle/api/sse"
	"github.com/huddlelabs/huddle/audit"
	"github.com/huddlelabs/huddle/cache"
	"github.com/huddlelabs/huddle/config"
	dbadapter "github.com/huddlelabs/huddle/db"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/engine/badge"
	"github.com/huddlelabs/huddle/engine/tier"
	mw "github.com/huddlelabs/huddle/middleware"
	"github.com/huddlelabs/huddle/model"
	"github.com/huddlelabs/huddle/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Engine ----
	eng := engine.New(db, cfg.Engine.CASRetries, badge.DefaultMilestones, pubsub, logger)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	r.Use(audit.Middleware(auditSvc))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	memberH := apirest.NewMemberHandler(db, eng)
	actionH := apirest.NewActionHandler(db, eng)
	questH := apirest.NewQuestHandler(db, eng)
	badgeH := apirest.NewBadgeHandler(db, eng)
	storeH := apirest.NewStoreHandler(db, eng)
	rankH := apirest.NewRankingHandler(db, c, logger)
	analyticsH := apirest.NewAnalyticsHandler(db)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("leaderboard_refresh",
		time.Duration(cfg.Engine.LeaderboardRefreshS)*time.Second, func() {
			rankH.RefreshAll(context.Background())
		})
	sched.AddTicker("effect_prune",
		time.Duration(cfg.Engine.EffectPruneS)*time.Second, func() {
			if _, err := eng.Effects.Prune(context.Background(), time.Now().UTC()); err != nil {
				logger.Error("effect prune failed", zap.Error(err))
			}
		})

	adminH := apirest.NewAdminHandler(db, eng, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		// Per-community member surface. Actions and badges are the base
		// product; quests and the store are tier-gated route groups.
		commG := api.Group("/communities/:cid")
		commG.Use(mw.Auth(cfg.Security, c))
		commG.POST("/join", memberH.Join)
		commG.GET("/me", memberH.Me)
		commG.GET("/tier", memberH.Tier)
		commG.GET("/leaderboard", rankH.Top)

		actionsG := commG.Group("")
		actionsG.Use(apirest.RequireFeature(eng, tier.FeatureActions))
		actionsG.POST("/actions", actionH.Record)
		actionsG.GET("/actions", actionH.History)

		badgesG := commG.Group("")
		badgesG.Use(apirest.RequireFeature(eng, tier.FeatureBadges))
		badgesG.GET("/badges", badgeH.List)

		questsG := commG.Group("")
		questsG.Use(apirest.RequireFeature(eng, tier.FeatureQuests))
		questsG.GET("/quests", questH.List)
		questsG.POST("/quests/:id/claim", questH.Claim)

		storeG := commG.Group("")
		storeG.Use(apirest.RequireFeature(eng, tier.FeatureStore))
		storeG.GET("/store", storeH.List)
		storeG.POST("/store/:id/purchase", storeH.Purchase)
		storeG.POST("/store/:id/equip", storeH.Equip)
		storeG.POST("/store/unequip", storeH.Unequip)
		storeG.GET("/inventory", storeH.Inventory)
		storeG.POST("/inventory/:id/activate", storeH.Activate)

		analyticsG := commG.Group("")
		analyticsG.Use(apirest.RequireFeature(eng, tier.FeatureAnalytics))
		analyticsG.GET("/analytics", analyticsH.Summary)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.POST("/communities", adminH.CreateCommunity)
		adminG.PUT("/communities/:cid/tier", adminH.SetTier)
		adminG.POST("/communities/:cid/rewards", adminH.CreateReward)
		adminG.PUT("/rewards/:id", adminH.UpdateReward)
		adminG.DELETE("/rewards/:id", adminH.DeleteReward)
		adminG.POST("/communities/:cid/badges", adminH.CreateBadge)
		adminG.DELETE("/badges/:id", adminH.DeleteBadge)
		adminG.POST("/members/:id/badges", adminH.AwardBadge)
		adminG.POST("/communities/:cid/quests", adminH.CreateQuest)
		adminG.PUT("/quests/:id", adminH.UpdateQuest)
		adminG.DELETE("/quests/:id", adminH.DeleteQuest)
		adminG.POST("/communities/:cid/items", adminH.CreateItem)
		adminG.PUT("/items/:id", adminH.UpdateItem)
		adminG.DELETE("/items/:id", adminH.DeleteItem)
		adminG.POST("/members/:id/ban", adminH.BanMember)
		adminG.POST("/communities/:cid/leaderboard/refresh", rankH.Refresh)
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse/communities/:cid", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
