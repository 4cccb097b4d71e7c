package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/api"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/config"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/database"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

func main() {
	// .env необязателен (в production переменные задает платформа)
	envErr := godotenv.Load()

	cfg := config.Load()
	log := utils.InitLogger(cfg.LogLevel, cfg.IsProduction())
	if envErr != nil {
		log.Info("ℹ️ .env файл не найден, используем переменные окружения системы")
	} else {
		log.Info("✅ Переменные окружения загружены из .env файла")
	}
	log.Infof("📋 DATABASE_URL: %s", maskURL(cfg.DatabaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PostgreSQL обязателен: без него склад не может гарантировать остатки
	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ PostgreSQL connection failed: %v", err)
	}
	defer database.ClosePostgres(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Info("✅ Database migrations completed")

	// Redis опционален: кэш дашборда, блокировки партий, рассылка событий между инстансами
	var redisUtil *utils.RedisClient
	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
	if err != nil {
		log.Warnf("⚠️ Redis connection failed: %v", err)
		log.Warn("⚠️ Продолжаем без Redis: без кэша дашборда и распределенных блокировок")
	} else {
		defer database.CloseRedis(redisClient)
		redisUtil = utils.NewRedisClient(redisClient)
	}

	hub := api.NewHub()
	go hub.Run(ctx)

	var cache services.Cache
	var locker services.BatchLocker
	fanout := events.NewFanout()
	if redisUtil != nil {
		cache = redisUtil
		locker = redisUtil
		// дашборды получают события через Redis, чтобы видеть изменения всех инстансов
		fanout.Add(events.NewRedisPublisher(redisUtil))
		api.NewFeedRelay(redisUtil, hub).Start(ctx)
	} else {
		fanout.Add(hub)
	}

	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
			CACert:   cfg.KafkaCACert,
			Topic:    cfg.KafkaTopic,
		})
		if err != nil {
			log.Warnf("⚠️ Kafka publisher not started: %v", err)
		} else {
			defer kafkaPublisher.Close()
			fanout.Add(kafkaPublisher)
		}
	} else {
		log.Info("ℹ️ KAFKA_BROKERS не установлен, события склада в Kafka не публикуются")
	}

	dashboardService := services.NewDashboardService(db, cache, cfg.DashboardCacheTTL)
	fanout.Add(dashboardService)

	retrier := database.NewRetrier(cfg.TxMaxRetries, cfg.TxRetryBaseDelay)
	store := services.NewStore(db, retrier, fanout)
	itemService := services.NewItemService(store)
	bomService := services.NewBOMService(store)
	rollupService := services.NewCostRollupService(store)
	productionService := services.NewProductionService(store, locker)
	adjustmentService := services.NewAdjustmentService(store, cfg.PurchaseCostMethod)
	reportService := services.NewReportService(itemService, bomService)
	log.Infof("✅ Inventory services initialized (cost method: %s)", cfg.PurchaseCostMethod)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterDeps{
		Items:          api.NewItemController(itemService),
		BOM:            api.NewBOMController(bomService, rollupService),
		Production:     api.NewProductionController(productionService),
		Adjustments:    api.NewAdjustmentController(adjustmentService),
		Dashboard:      api.NewDashboardController(dashboardService, reportService),
		Hub:            hub,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Health: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	})

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logRuntimeStats(hub)
			}
		}
	}()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("🚀 Server starting on port %s", cfg.ServerPort)
		log.Infof("📡 API доступен на http://0.0.0.0:%s/api/v1", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("❌ Graceful shutdown failed: %v", err)
	}
}

// maskURL прячет пароль в строке подключения
func maskURL(raw string) string {
	idx := strings.Index(raw, "@")
	schemeIdx := strings.Index(raw, "://")
	if idx > 0 && schemeIdx > 0 && schemeIdx < idx {
		return raw[:schemeIdx+3] + "***@" + raw[idx+1:]
	}
	return raw
}

func logRuntimeStats(hub *api.Hub) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	utils.Logger().WithField("ws_clients", hub.GetClientsCount()).Infof(
		"💾 HeapAlloc=%.2f MB, Sys=%.2f MB, GC=%d, Goroutines=%d",
		float64(m.HeapAlloc)/1024/1024, float64(m.Sys)/1024/1024, m.NumGC, runtime.NumGoroutine())
}
