package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/config"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/document"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/history"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/mqttx"
	syncpkg "github.com/Team-KimBanana/kimbanana-front-sub000/internal/sync"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/thumbnail"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 渲染任务等待的空闲窗口（兜底超时由配置提供）
const thumbnailIdleDelay = 200 * time.Millisecond

// Session 一个文档的协同编辑会话
// 显式持有并串起全部组件（文档存储、传输、结构处理器、缩略图缓存、
// 历史目录、恢复规划器），组件之间不共享任何环境全局状态。
type Session struct {
	config *config.Config
	logger *zap.Logger

	senderID    string
	store       *document.Store
	mqttClient  *mqttx.Client
	redisClient *redis.Client
	thumbs      *thumbnail.Cache
	transport   *syncpkg.Transport
	processor   *syncpkg.Processor
	apiClient   *history.APIClient
	catalog     *history.Catalog
	planner     *history.Planner
}

// NewSession 创建文档会话
// userID 来自外部鉴权协作方；renderer/uploader 是外部渲染与上传协作方。
func NewSession(
	cfg *config.Config,
	userID string,
	tokens history.TokenProvider,
	renderer thumbnail.Renderer,
	uploader thumbnail.Uploader,
	logger *zap.Logger,
) (*Session, error) {
	if cfg.Sync.PresentationID == "" {
		return nil, fmt.Errorf("presentation id is required")
	}

	senderID := uuid.NewString()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := document.NewStore()

	sched := thumbnail.NewScheduler(thumbnailIdleDelay, cfg.Sync.ThumbnailMaxDefer)
	thumbs := thumbnail.NewCache(
		cfg.Sync.PresentationID,
		thumbnail.NewRedisKVStore(redisClient),
		renderer,
		uploader,
		sched,
		cfg.Sync.ThumbnailCacheTTL,
		cfg.Sync.UploadQuietPeriod,
		logger,
	)

	// 每个会话独立的 MQTT client id，避免同一用户多开互踢
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-%s", cfg.MQTT.ClientID, senderID[:8])
	mqttClient := mqttx.NewClient(&mqttCfg, logger)

	transport := syncpkg.NewTransport(
		cfg.Sync.PresentationID,
		senderID,
		mqttClient,
		store,
		thumbs,
		cfg.Sync.TypingQuietPeriod,
		logger,
	)
	processor := syncpkg.NewProcessor(store, transport, thumbs, logger)

	apiClient := history.NewAPIClient(cfg.API.BaseURL, cfg.API.Timeout, tokens, logger)
	catalog := history.NewCatalog(apiClient, logger)
	planner := history.NewPlanner(cfg.Sync.PresentationID, userID, store, catalog, apiClient, logger)

	return &Session{
		config:      cfg,
		logger:      logger,
		senderID:    senderID,
		store:       store,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		thumbs:      thumbs,
		transport:   transport,
		processor:   processor,
		apiClient:   apiClient,
		catalog:     catalog,
		planner:     planner,
	}, nil
}

// Start 加载初始文档、建立传输并订阅
func (s *Session) Start(ctx context.Context) error {
	slides, err := s.apiClient.ListSlides(ctx, s.config.Sync.PresentationID)
	if err != nil {
		return fmt.Errorf("failed to load initial slides: %w", err)
	}
	current := s.store.ReplaceAll(slides)

	s.logger.Info("Initial document loaded",
		zap.String("presentation_id", s.config.Sync.PresentationID),
		zap.Int("slide_count", len(slides)),
		zap.String("current_slide", current),
	)

	if err := s.mqttClient.Connect(); err != nil {
		return err
	}
	if err := s.transport.Start(s.processor.Handle); err != nil {
		return err
	}

	// 首页缩略图可能落后于文档内容，启动时补一次
	if len(slides) > 0 {
		first := s.store.Slides()[0]
		if content, ok := s.store.Get(first.ID); ok {
			s.thumbs.ScheduleRender(first.ID, content, thumbnail.RenderOptions{IsFirst: true})
		}
	}
	return nil
}

// Stop 退订、断开传输并释放资源
func (s *Session) Stop(ctx context.Context) error {
	s.transport.Stop()
	s.mqttClient.Disconnect()
	s.thumbs.Close()
	if err := s.redisClient.Close(); err != nil {
		s.logger.Warn("Failed to close redis client", zap.Error(err))
	}
	s.logger.Info("Session stopped",
		zap.String("presentation_id", s.config.Sync.PresentationID),
	)
	return nil
}

// Store 文档存储（外部绘图/工具栏协作方读取文档状态）
func (s *Session) Store() *document.Store { return s.store }

// Transport 同步传输（外部编辑器驱动广播与打字保护）
func (s *Session) Transport() *syncpkg.Transport { return s.transport }

// Catalog 历史快照目录
func (s *Session) Catalog() *history.Catalog { return s.catalog }

// Planner 恢复规划器
func (s *Session) Planner() *history.Planner { return s.planner }

// SenderID 本会话的发送方标识
func (s *Session) SenderID() string { return s.senderID }
