package sync

import (
	"encoding/json"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/document"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/thumbnail"

	"go.uber.org/zap"
)

// ViewerTransport 处理器回指传输层的最小接口（重指内容订阅）
type ViewerTransport interface {
	SetCurrentSlide(slideID string) error
}

// Processor 结构事件处理器
// 消费结构主题上的三类消息（added / replaced / deleted），把幻灯片
// 集合变化合并进 DocumentStore，并保证查看页的连续性。
type Processor struct {
	store     *document.Store
	transport ViewerTransport
	thumbs    *thumbnail.Cache
	logger    *zap.Logger
}

// NewProcessor 创建结构事件处理器
func NewProcessor(store *document.Store, transport ViewerTransport, thumbs *thumbnail.Cache, logger *zap.Logger) *Processor {
	return &Processor{
		store:     store,
		transport: transport,
		thumbs:    thumbs,
		logger:    logger,
	}
}

// Handle 处理一条结构消息
// 未知消息种类与解码失败都只记录日志后忽略，绝不中断后续消息处理。
func (p *Processor) Handle(payload []byte) {
	var msg models.StructureMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		p.logger.Error("Failed to decode structure message", zap.Error(err))
		return
	}

	switch msg.Kind {
	case models.StructureKindAdded:
		p.handleAdded(msg)
	case models.StructureKindReplaced, models.StructureKindDeleted:
		p.handleReplace(msg)
	default:
		p.logger.Warn("Unknown structure event kind, ignoring",
			zap.String("kind", msg.Kind),
		)
	}
}

// handleAdded 在给定序号插入一张空白幻灯片
func (p *Processor) handleAdded(msg models.StructureMessage) {
	if msg.SlideID == "" {
		p.logger.Error("Added event without slide id")
		return
	}

	p.store.UpsertSlide(msg.SlideID, msg.Order)
	p.logger.Info("Slide added by remote",
		zap.String("slide_id", msg.SlideID),
		zap.Int("order", msg.Order),
	)
}

// handleReplace 用权威完整列表整体替换幻灯片集合
// 查看页不在新集合中时回退到第一张；被移除幻灯片的待渲染任务一并取消。
func (p *Processor) handleReplace(msg models.StructureMessage) {
	before := p.store.Slides()
	prevCurrent := p.store.Current()

	newCurrent := p.store.ReplaceAll(msg.Slides)

	// 取消已被移除幻灯片的缩略图任务
	kept := make(map[string]bool, len(msg.Slides))
	for _, sl := range msg.Slides {
		kept[sl.SlideID] = true
	}
	for _, sl := range before {
		if !kept[sl.ID] {
			p.thumbs.CancelSlide(sl.ID)
		}
	}

	if newCurrent != prevCurrent {
		if err := p.transport.SetCurrentSlide(newCurrent); err != nil {
			p.logger.Error("Failed to switch viewer slide after structure event",
				zap.String("slide_id", newCurrent),
				zap.Error(err),
			)
		}
	}

	p.logger.Info("Slide structure replaced by remote",
		zap.String("kind", msg.Kind),
		zap.Int("slide_count", len(msg.Slides)),
		zap.String("current_slide", newCurrent),
	)
}
