package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docuquery/internal/ai"
	"docuquery/internal/cache"
	"docuquery/internal/config"
	"docuquery/internal/model"
	mysqlClient "docuquery/internal/platform/mysql"
	rabbitmqClient "docuquery/internal/platform/rabbitmq"
	redisClient "docuquery/internal/platform/redis"
	"docuquery/internal/rag"
	"docuquery/internal/repository"
	"docuquery/internal/worker"
)

type App struct {
	Config         *config.Config
	MySQL          *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	QueryLogWorker *worker.QueryLogWorker
	RAG            *rag.Service

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.QueryLog{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		MySQL:     mysqlDB,
		StartedAt: time.Now(),
	}

	var answerCache rag.AnswerCache
	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		app.Redis = redisCli
		answerCache = cache.NewAnswerCache(redisCli, time.Duration(cfg.Redis.AnswerTTLSeconds)*time.Second)
	}

	var logSink rag.QueryLogSink
	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		app.MQConn = mqConn

		logRepo := repository.NewQueryLogRepository(mysqlDB)
		logWorker := worker.NewQueryLogWorker(mqConn, logRepo, cfg.RabbitMQ.QueryLogQueue)
		if err := logWorker.Start(ctx); err != nil {
			return nil, fmt.Errorf("start query log worker failed: %w", err)
		}
		app.QueryLogWorker = logWorker
		logSink = rabbitmqClient.NewQueryLogPublisher(mqConn, cfg.RabbitMQ.QueryLogQueue)
	}

	llmClient := ai.NewOpenAICompatibleClient()
	embedder := &ai.ClientEmbedder{
		Client: llmClient,
		Config: ai.EmbeddingConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.EmbeddingModel,
			Timeout: time.Duration(cfg.LLM.EmbeddingTimeoutSec) * time.Second,
		},
	}
	generator := &ai.ClientGenerator{
		Client: llmClient,
		Config: ai.ChatConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.CompleteTimeoutSec) * time.Second,
		},
	}

	catalog := make([]rag.SourceCatalogEntry, 0, len(cfg.Enrichment.Sources))
	for _, src := range cfg.Enrichment.Sources {
		catalog = append(catalog, rag.SourceCatalogEntry{
			Name:     src.Name,
			Keywords: src.Keywords,
			Content:  src.Content,
		})
	}
	enricher := rag.NewAutoEnricher(
		catalog,
		rag.KeywordMatcher{MinOverlap: cfg.Enrichment.MinKeywordOverlap},
		time.Duration(cfg.Enrichment.TimeoutMillis)*time.Millisecond,
	)

	app.RAG = rag.NewService(rag.Params{
		Documents:       repository.NewDocumentRepository(mysqlDB),
		Chunks:          repository.NewChunkRepository(mysqlDB),
		Index:           rag.NewMemoryIndex(),
		Embedder:        embedder,
		Generator:       generator,
		ChunkSize:       cfg.RAG.ChunkSize,
		ChunkOverlap:    cfg.RAG.ChunkOverlap,
		DefaultTopK:     cfg.RAG.DefaultTopK,
		MaxTopK:         cfg.RAG.MaxTopK,
		SimilarityFloor: cfg.RAG.SimilarityFloor,
		WeakThreshold:   cfg.RAG.WeakEvidenceThreshold,
		StrongThreshold: cfg.RAG.StrongEvidenceThreshold,
		Enricher:        enricher,
		LogSink:         logSink,
		Cache:           answerCache,
	})

	if err := app.RAG.LoadIndex(); err != nil {
		return nil, fmt.Errorf("rebuild vector index failed: %w", err)
	}
	log.Printf("vector index loaded")

	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.QueryLogWorker != nil {
		a.QueryLogWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
