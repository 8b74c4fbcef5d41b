package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"noteserver/backend/config"
	"noteserver/backend/internal/cache"
	"noteserver/backend/internal/collab"
	"noteserver/backend/internal/httpapi/handlers"
	"noteserver/backend/internal/store"
	"noteserver/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("mysql", cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	gormDB, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to open gorm connection: %v", err)
	}
	revisionLog := store.NewRevisionLog(gormDB)
	if err := revisionLog.Migrate(); err != nil {
		log.Fatalf("Failed to migrate revision log: %v", err)
	}

	// SyncProducer requires Return.Successes.
	kafkaCfg := sarama.NewConfig()
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("Failed to connect kafka: %v", err)
	}
	defer producer.Close()

	presenceCache := cache.NewRedisPresence(rdb)
	hub := ws.NewHub(presenceCache)
	snapshotStore := store.NewSnapshotStore(db)
	documentStore := store.NewDocumentStore(db)

	kafkaSem := collab.NewSemaphoreControl()
	wsSem := collab.NewSemaphoreControl()

	kafkaDispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		collab.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	svc := collab.NewRevisionService(snapshotStore, revisionLog, documentStore, kafkaDispatcher)
	manager := ws.NewManager(hub, svc, wsSem)
	docHandlers := handlers.NewDocumentHandlers(svc)

	if cfg.PeriodCheck.Interval > 0 {
		go periodCheck(context.Background(), presenceCache, svc, cfg.PeriodCheck.Interval)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "docid", "docId", "doc_id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	api := r.Group("/collab")
	api.GET("/ws", manager.WebSocketConnect)
	api.POST("/documents", docHandlers.CreateDocument)
	api.GET("/documents/:docID/content", docHandlers.GetDocumentContent)
	api.POST("/documents/:docID/snapshot", docHandlers.SaveSnapshot)
	api.GET("/documents/:docID/revisions", docHandlers.GetRevisions)

	_ = r.Run(fmt.Sprintf(":%d", cfg.Running.Port))
}

// periodCheck snapshots every document that still has an active presence
// room, so a crash loses at most one interval of revisions beyond the log.
func periodCheck(ctx context.Context, presence cache.PresenceCache, svc collab.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		docs, err := presence.GetDocuments(ctx)
		if err != nil {
			log.Printf("period check: list documents: %v", err)
			continue
		}
		for _, docID := range docs {
			if err := svc.SaveSnapshot(ctx, docID); err != nil {
				log.Printf("period check: snapshot doc=%s: %v", docID, err)
			}
		}
	}
}
