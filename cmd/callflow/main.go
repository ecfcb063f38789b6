package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/davicafu/callflow/internal/auth"
	"github.com/davicafu/callflow/internal/callevent/application"
	"github.com/davicafu/callflow/internal/callevent/domain"
	caConsumer "github.com/davicafu/callflow/internal/callevent/infra/inbound/events"
	caHttp "github.com/davicafu/callflow/internal/callevent/infra/inbound/http"
	caClickhouse "github.com/davicafu/callflow/internal/callevent/infra/outbound/analytics/clickhouse"
	caCache "github.com/davicafu/callflow/internal/callevent/infra/outbound/cache"
	caMongo "github.com/davicafu/callflow/internal/callevent/infra/outbound/db/mongodb"
	caPostgres "github.com/davicafu/callflow/internal/callevent/infra/outbound/db/postgre"
	caSqlite "github.com/davicafu/callflow/internal/callevent/infra/outbound/db/sqlite"
	"github.com/davicafu/callflow/internal/config"
	infraEvents "github.com/davicafu/callflow/internal/infra/events"
	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
	sharedCache "github.com/davicafu/callflow/internal/shared/platform/cache"
	"github.com/davicafu/callflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init()          // inicializa zap
	log := logger.Logger() // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	ctx := context.Background()
	cfg := config.LoadConfig()

	// ---------------- DB ----------------
	var repo domain.CallEventRepository
	var pingStore func(ctx context.Context) error

	switch cfg.DBDriver {
	case "postgres":
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := caPostgres.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		repo = caPostgres.NewCallEventRepoPostgres(db)
		pingStore = db.PingContext

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Disconnect(ctx)
		repo, err = caMongo.NewCallEventRepoMongoDB(ctx, client, cfg.MongoDB)
		if err != nil {
			log.Fatal("failed to initialize MongoDB", zap.Error(err))
		}
		pingStore = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}

	default: // sqlite
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()
		if err := caSqlite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		repo = caSqlite.NewCallEventRepoSQLite(db)
		pingStore = db.PingContext
	}

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
		cacheInstance = caCache.NewInMemoryCache(cfg.SeenTTL, 3*cfg.SeenTTL)
	} else {
		cacheInstance = caCache.NewRedisCache(rdb, cfg.SeenTTL)
		log.Info("✅ Redis conectado, cache habilitado")
	}

	// ---------------- Analytics ----------------
	var analytics domain.CallEventAnalytics
	if cfg.ClickHouseAddr != "" {
		chRepo, err := caClickhouse.NewCallEventAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analytics desactivado", zap.Error(err))
		} else {
			analytics = chRepo
		}
	}

	// ---------------- Consumer ----------------
	consumer := caConsumer.NewCallEventConsumer(
		repo, analytics, cacheInstance,
		cfg.ConsumerAttempts, cfg.ConsumerBackoff, int(cfg.SeenTTL.Seconds()),
		log,
	)

	// ---------------- Events ---------------
	var publisher sharedBus.EventPublisher
	checkQueue := func(ctx context.Context) error { return nil }

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como cola de eventos")

		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   domain.CallEventTopic,
		})
		defer writer.Close()
		publisher = infraEvents.NewKafkaPublisher(writer, log)

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    domain.CallEventTopic,
			GroupID:  cfg.KafkaGroupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		})
		defer reader.Close()

		infraEvents.NewConsumerAdapter(reader, consumer, log).Start(ctx)

		checkQueue = func(ctx context.Context) error {
			conn, err := kafka.DialContext(ctx, "tcp", cfg.KafkaBrokers[0])
			if err != nil {
				return err
			}
			return conn.Close()
		}
		// Un broker caído en el arranque no tumba el proceso: /ready lo
		// reporta hasta que vuelva a responder.
		if err := checkQueue(ctx); err != nil {
			log.Error("⚠️ Kafka no disponible en el arranque", zap.Error(err))
		}
	} else {
		log.Info("⚡️ Usando cola de eventos en memoria (canales de Go)")

		inMemoryBus := infraEvents.NewInMemoryEventBus(domain.CallEventTopic)
		publisher = inMemoryBus

		log.Info("🎧 Iniciando listener en memoria para eventos de llamada")
		caConsumer.BackgroundConsumerChan(ctx, inMemoryBus.Subscribe(10), consumer)
	}

	// --------------- Admisión --------------
	validator := application.NewValidator(repo, cacheInstance, cfg.ValidateTimeout, log)
	receiveHandler := application.NewReceiveCallEventHandler(publisher, cfg.PublishTimeout, log)

	commandBus := sharedBus.NewCommandBus()
	if err := commandBus.Register(application.ReceiveCallEventCommandName, receiveHandler); err != nil {
		log.Fatal("failed to register command handler", zap.Error(err))
	}

	service := application.NewCallEventService(validator, commandBus, log)

	// ---------------- HTTP ----------------
	handler := caHttp.NewCallEventHandler(service, log)
	router := gin.Default()
	caHttp.RegisterCallEventRoutes(router, handler, auth.TokenMiddleware(cfg.APITokens))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctxReady, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pingStore(ctxReady); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
			return
		}
		if err := checkQueue(ctxReady); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "queue unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
