package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grundbank/internal/ai"
	"grundbank/internal/config"
	"grundbank/internal/embedding"
	"grundbank/internal/ingest"
	"grundbank/internal/jobs"
	"grundbank/internal/model"
	mysqlClient "grundbank/internal/platform/mysql"
	rabbitmqClient "grundbank/internal/platform/rabbitmq"
	redisClient "grundbank/internal/platform/redis"
	"grundbank/internal/quota"
	"grundbank/internal/rag"
	"grundbank/internal/repository"
	"grundbank/internal/scrub"
	"grundbank/internal/style"
	"grundbank/internal/vectorindex"
	"grundbank/internal/vision"
	"grundbank/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Index     vectorindex.Index
	Embedder  embedding.Provider
	Publisher *rabbitmqClient.TaskPublisher
	Worker    *worker.IngestWorker
	Jobs      jobs.Store
	Styles    *style.Service
	RAG       *rag.Service

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.PoolOptions{})
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.Library{},
		&model.Document{},
		&model.Chunk{},
		&model.ImageAsset{},
		&model.Assistant{},
		&model.AssistantLibrary{},
		&model.Conversation{},
		&model.UserPreference{},
		&model.GlobalStyle{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	index, err := newIndex(cfg, mysqlDB)
	if err != nil {
		return nil, err
	}

	client := ai.NewOpenAICompatibleClient()
	chatCfg := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.DefaultModel}

	embedder, err := embedding.NewProvider(cfg, client, logger)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider failed: %w", err)
	}

	scrubCfg := ai.ChatConfig{BaseURL: cfg.Scrub.BaseURL, APIKey: cfg.Scrub.APIKey}
	if scrubCfg.BaseURL == "" {
		scrubCfg = chatCfg
	}
	scrubber := scrub.New(client, scrubCfg, cfg.Scrub.Model, cfg.Scrub.CardPrefix, logger)

	describer, err := vision.NewDescriber(cfg.Vision, chatCfg, client, logger)
	if err != nil {
		return nil, fmt.Errorf("init vision describer failed: %w", err)
	}

	docRepo := repository.NewDocumentRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	imageRepo := repository.NewImageAssetRepository(mysqlDB)
	libRepo := repository.NewLibraryRepository(mysqlDB)
	assistantRepo := repository.NewAssistantRepository(mysqlDB)
	convRepo := repository.NewConversationRepository(mysqlDB)
	prefRepo := repository.NewPreferenceRepository(mysqlDB)

	pipeline := ingest.NewPipeline(
		docRepo, chunkRepo, imageRepo,
		index, embedder, scrubber, describer,
		cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap,
		logger,
	)

	publisher := rabbitmqClient.NewTaskPublisher(mqConn, cfg.RabbitMQ.IngestQueue)
	ingestWorker := worker.NewIngestWorker(mqConn, pipeline, cfg.RabbitMQ.IngestQueue, logger)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	styleSvc := style.NewService(prefRepo)
	quotaSvc := quota.NewService(redisCli, cfg.Quota)
	jobStore := jobs.NewRedisStore(redisCli)

	ragSvc := rag.NewService(rag.Deps{
		Assistants:    assistantRepo,
		Libraries:     libRepo,
		Documents:     docRepo,
		Conversations: convRepo,
		Images:        imageRepo,
		Index:         index,
		Embedder:      embedder,
		Scrubber:      scrubber,
		Styles:        styleSvc,
		Quota:         quotaSvc,
		Client:        client,
		LLM:           cfg.LLM,
		Logger:        logger,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		MySQL:     mysqlDB,
		Redis:     redisCli,
		MQConn:    mqConn,
		Index:     index,
		Embedder:  embedder,
		Publisher: publisher,
		Worker:    ingestWorker,
		Jobs:      jobStore,
		Styles:    styleSvc,
		RAG:       ragSvc,
		StartedAt: time.Now(),
	}, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" || env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newIndex(cfg *config.Config, db *gorm.DB) (vectorindex.Index, error) {
	switch cfg.Index.Backend {
	case "chromem":
		return vectorindex.NewChromemIndex(cfg.Index.ChromemPath, true)
	case "mysql", "":
		return vectorindex.NewMySQLIndex(db), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.Worker != nil {
		a.Worker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
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
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
