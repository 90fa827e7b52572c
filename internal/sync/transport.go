package sync

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/document"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/thumbnail"

	"go.uber.org/zap"
)

// PubSub 传输层需要的发布/订阅能力（生产环境由 mqttx.Client 提供）
type PubSub interface {
	Subscribe(topic string, handler func(topic string, payload []byte) error) error
	Unsubscribe(topics ...string) error
	Publish(topic string, payload []byte) error
}

// 主题命名（按文档 ID 参数化）：
//   结构主题     presentation/{docID}/structure
//   内容订阅主题 presentation/{docID}/slide/{slideID}
//   内容发布主题 presentation/{docID}/slide/{slideID}/update
func StructureTopic(presentationID string) string {
	return fmt.Sprintf("presentation/%s/structure", presentationID)
}

func ContentTopic(presentationID, slideID string) string {
	return fmt.Sprintf("presentation/%s/slide/%s", presentationID, slideID)
}

func PublishTopic(presentationID, slideID string) string {
	return fmt.Sprintf("presentation/%s/slide/%s/update", presentationID, slideID)
}

// Transport 文档会话的同步传输
// 全程保持一个结构订阅，以及至多一个内容订阅（当前查看的幻灯片）。
// 出站广播发送整页快照而非增量：协议幂等，漏掉的消息由下一次
// 快照自愈，代价是同页并发编辑为"最后整页快照胜出"。
type Transport struct {
	presentationID string
	senderID       string
	pubsub         PubSub
	store          *document.Store
	thumbs         *thumbnail.Cache
	logger         *zap.Logger
	typingQuiet    time.Duration

	mu           sync.Mutex
	contentTopic string // 当前内容订阅主题（"" 表示无）
	typing       bool
	typingTimer  *time.Timer
	suppressed   map[string]bool // 打字保护期间被压制广播的幻灯片
}

// NewTransport 创建同步传输
func NewTransport(
	presentationID string,
	senderID string,
	pubsub PubSub,
	store *document.Store,
	thumbs *thumbnail.Cache,
	typingQuiet time.Duration,
	logger *zap.Logger,
) *Transport {
	return &Transport{
		presentationID: presentationID,
		senderID:       senderID,
		pubsub:         pubsub,
		store:          store,
		thumbs:         thumbs,
		logger:         logger,
		typingQuiet:    typingQuiet,
		suppressed:     make(map[string]bool),
	}
}

// Start 订阅结构主题和当前幻灯片的内容主题
// structureHandler 由结构事件处理器提供。
func (t *Transport) Start(structureHandler func(payload []byte)) error {
	err := t.pubsub.Subscribe(StructureTopic(t.presentationID), func(_ string, payload []byte) error {
		structureHandler(payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe structure topic: %w", err)
	}

	if current := t.store.Current(); current != "" {
		if err := t.SetCurrentSlide(current); err != nil {
			return err
		}
	}
	return nil
}

// Stop 取消全部订阅并清掉打字保护定时器
func (t *Transport) Stop() {
	t.mu.Lock()
	contentTopic := t.contentTopic
	t.contentTopic = ""
	if t.typingTimer != nil {
		t.typingTimer.Stop()
		t.typingTimer = nil
	}
	t.typing = false
	t.mu.Unlock()

	topics := []string{StructureTopic(t.presentationID)}
	if contentTopic != "" {
		topics = append(topics, contentTopic)
	}
	if err := t.pubsub.Unsubscribe(topics...); err != nil {
		t.logger.Warn("Failed to unsubscribe on stop", zap.Error(err))
	}
}

// SetCurrentSlide 切换查看的幻灯片
// 退订旧内容主题、订阅新内容主题，保证同一时刻至多一个内容订阅。
// slideID 为空表示文档已无幻灯片，仅退订。
func (t *Transport) SetCurrentSlide(slideID string) error {
	var newTopic string
	if slideID != "" {
		if err := t.store.SetCurrent(slideID); err != nil {
			return err
		}
		newTopic = ContentTopic(t.presentationID, slideID)
	}

	t.mu.Lock()
	oldTopic := t.contentTopic
	if oldTopic == newTopic {
		t.mu.Unlock()
		return nil
	}
	t.contentTopic = newTopic
	t.mu.Unlock()

	if oldTopic != "" {
		if err := t.pubsub.Unsubscribe(oldTopic); err != nil {
			t.logger.Warn("Failed to unsubscribe old content topic",
				zap.String("topic", oldTopic),
				zap.Error(err),
			)
		}
	}
	if newTopic == "" {
		return nil
	}
	if err := t.pubsub.Subscribe(newTopic, t.handleContent); err != nil {
		return fmt.Errorf("failed to subscribe content topic %s: %w", newTopic, err)
	}

	t.logger.Debug("Content subscription switched",
		zap.String("old_topic", oldTopic),
		zap.String("new_topic", newTopic),
	)
	return nil
}

// BroadcastSlide 广播幻灯片的完整当前内容
// 打字保护生效时压制广播并记下该幻灯片，保护解除后补发一次快照。
// 发布失败只记录日志（传输层故障由自动重连和后续快照自愈）。
func (t *Transport) BroadcastSlide(slideID string) {
	t.mu.Lock()
	if t.typing {
		t.suppressed[slideID] = true
		t.mu.Unlock()
		t.logger.Debug("Broadcast suppressed by typing guard",
			zap.String("slide_id", slideID),
		)
		return
	}
	t.mu.Unlock()

	content, ok := t.store.Get(slideID)
	if !ok {
		t.logger.Warn("Broadcast requested for unknown slide",
			zap.String("slide_id", slideID),
		)
		return
	}

	order := 0
	for _, sl := range t.store.Slides() {
		if sl.ID == slideID {
			order = sl.Order
			break
		}
	}

	msg := models.ContentMessage{
		SlideID:     slideID,
		SenderID:    t.senderID,
		RevisionISO: time.Now().UTC().Format(time.RFC3339Nano),
		Order:       order,
		Content:     content,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		t.logger.Error("Failed to encode content message", zap.Error(err))
		return
	}

	if err := t.pubsub.Publish(PublishTopic(t.presentationID, slideID), payload); err != nil {
		t.logger.Warn("Failed to publish slide snapshot",
			zap.String("slide_id", slideID),
			zap.Error(err),
		)
	}
}

// NotifyTyping 抬起打字保护并重置安静期定时器
// 每次按键都会重新计时；保护只压制出站广播，入站处理不受影响。
func (t *Transport) NotifyTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.typing = true
	if t.typingTimer == nil {
		t.typingTimer = time.AfterFunc(t.typingQuiet, t.clearTypingGuard)
	} else {
		t.typingTimer.Reset(t.typingQuiet)
	}
}

// TypingActive 打字保护是否生效
func (t *Transport) TypingActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

func (t *Transport) clearTypingGuard() {
	t.mu.Lock()
	t.typing = false
	t.typingTimer = nil
	pending := make([]string, 0, len(t.suppressed))
	for slideID := range t.suppressed {
		pending = append(pending, slideID)
	}
	t.suppressed = make(map[string]bool)
	t.mu.Unlock()

	// 补发被压制的幻灯片快照，保证本地编辑不丢失
	for _, slideID := range pending {
		t.BroadcastSlide(slideID)
	}
}

// handleContent 入站内容消息：无条件应用（不查打字保护）
// 本端回声丢弃；解码失败记录日志后继续，不影响后续消息。
func (t *Transport) handleContent(topic string, payload []byte) error {
	var msg models.ContentMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.logger.Error("Failed to decode content message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil
	}
	if msg.SlideID == "" {
		t.logger.Error("Content message without slide id", zap.String("topic", topic))
		return nil
	}
	if msg.SenderID == t.senderID {
		return nil
	}

	if msg.Order > 0 {
		t.store.UpsertSlide(msg.SlideID, msg.Order)
	}
	t.store.SetContent(msg.SlideID, msg.Content)

	t.thumbs.MarkBusy()
	order := 0
	for _, sl := range t.store.Slides() {
		if sl.ID == msg.SlideID {
			order = sl.Order
			break
		}
	}
	if content, ok := t.store.Get(msg.SlideID); ok {
		t.thumbs.ScheduleRender(msg.SlideID, content, thumbnail.RenderOptions{IsFirst: order == 1})
	}
	return nil
}
