package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/document"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"
)

// 历史视图里预览用的本地幻灯片 ID 前缀
// 提交时翻译回源端的历史幻灯片 ID。
const previewIDPrefix = "history_"

// 恢复模式
const (
	ModePartial = "partial"
	ModeFull    = "full"
)

var (
	ErrNoSelection          = errors.New("no history snapshot selected")
	ErrSelectionMismatch    = errors.New("snapshot is not the current selection")
	ErrSelectionSuperseded  = errors.New("history selection superseded by a newer one")
	ErrHistorySlideNotFound = errors.New("history slide not found in selected snapshot")
	ErrInvalidMode          = errors.New("invalid restoration mode")
)

// Planner 恢复规划器
// 维护当前选中的历史快照、待提交的恢复映射和预览 ID 翻译表。
// 映射不跨快照：切换快照会清空两者。
type Planner struct {
	presentationID string
	userID         string
	store          *document.Store
	catalog        *Catalog
	client         *APIClient
	logger         *zap.Logger

	mu          sync.Mutex
	selection   string // 当前选中快照的复合键
	fetchCancel context.CancelFunc
	slides      []models.HistorySlide
	byID        map[string]models.SlideContent
	translate   map[string]string // 预览 ID → 源端历史幻灯片 ID
	pending     []models.RestorationMapping
}

// NewPlanner 创建恢复规划器
func NewPlanner(
	presentationID string,
	userID string,
	store *document.Store,
	catalog *Catalog,
	client *APIClient,
	logger *zap.Logger,
) *Planner {
	return &Planner{
		presentationID: presentationID,
		userID:         userID,
		store:          store,
		catalog:        catalog,
		client:         client,
		logger:         logger,
		translate:      make(map[string]string),
	}
}

// BaseHistoryID 从复合键拆出基础历史 ID
// 修订时间戳不含分隔符，从右侧找最后一个分隔符即可。
func BaseHistoryID(compositeID string) (string, error) {
	idx := strings.LastIndex(compositeID, models.CompositeIDSeparator)
	if idx <= 0 {
		return "", fmt.Errorf("malformed composite history id %q", compositeID)
	}
	return compositeID[:idx], nil
}

// SelectSnapshot 选中一个历史快照并拉取其幻灯片集合
// 取代任何在途的旧拉取（取消其 context）；清空上一个快照遗留的
// 待提交映射和翻译表。拉取期间选择被更新的请求取代时，过期响应
// 被丢弃而不是应用。
func (p *Planner) SelectSnapshot(ctx context.Context, compositeID string) ([]models.HistorySlide, error) {
	baseID, err := BaseHistoryID(compositeID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.fetchCancel != nil {
		p.fetchCancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	p.fetchCancel = cancel
	p.selection = compositeID
	p.pending = nil
	p.translate = make(map[string]string)
	p.slides = nil
	p.byID = nil
	p.mu.Unlock()

	slides, fetchErr := p.catalog.FetchHistorySlides(fetchCtx, p.presentationID, baseID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.selection != compositeID {
		// 响应过期：已有更新的选择
		return nil, ErrSelectionSuperseded
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	p.slides = slides
	p.byID = make(map[string]models.SlideContent, len(slides))
	for _, sl := range slides {
		p.byID[sl.SlideID] = sl.Content
		p.translate[previewIDPrefix+sl.SlideID] = sl.SlideID
	}

	p.logger.Info("History snapshot selected",
		zap.String("composite_id", compositeID),
		zap.Int("slide_count", len(slides)),
	)

	out := make([]models.HistorySlide, len(slides))
	copy(out, slides)
	return out, nil
}

// PlanPartial 把选中快照里一张历史幻灯片的内容预览到一张现场幻灯片上
// 写入存储的是深拷贝，之后对目标幻灯片的本地编辑不会改动缓存的
// 历史内容。同一目标的映射后选覆盖先选。
func (p *Planner) PlanPartial(targetSlideID, compositeID, historySlideID string) (models.RestorationMapping, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.selection == "" {
		return models.RestorationMapping{}, ErrNoSelection
	}
	if compositeID != p.selection {
		return models.RestorationMapping{}, ErrSelectionMismatch
	}

	originID := historySlideID
	if mapped, ok := p.translate[historySlideID]; ok {
		originID = mapped
	}
	content, ok := p.byID[originID]
	if !ok {
		return models.RestorationMapping{}, ErrHistorySlideNotFound
	}

	var clone models.SlideContent
	if err := deepcopy.Copy(&clone, &content); err != nil {
		return models.RestorationMapping{}, fmt.Errorf("failed to clone history content: %w", err)
	}
	p.store.SetContent(targetSlideID, clone)

	mapping := models.RestorationMapping{TargetSlideID: targetSlideID, HistorySlideID: originID}
	replaced := false
	for i := range p.pending {
		if p.pending[i].TargetSlideID == targetSlideID {
			p.pending[i] = mapping
			replaced = true
			break
		}
	}
	if !replaced {
		p.pending = append(p.pending, mapping)
	}

	p.logger.Debug("Partial restoration planned",
		zap.String("target_slide_id", targetSlideID),
		zap.String("history_slide_id", originID),
	)
	return mapping, nil
}

// Mappings 当前待提交的映射（副本）
func (p *Planner) Mappings() []models.RestorationMapping {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.RestorationMapping, len(p.pending))
	copy(out, p.pending)
	return out
}

// Commit 提交恢复决定
// partial 发送累积的映射列表（预览 ID 翻译回源端 ID）；full 请求
// 用快照整体替换现场文档，不携带映射。失败时保留待提交映射以便
// 重试；成功后由调用方离开历史视图（外部关注点）。
func (p *Planner) Commit(ctx context.Context, mode string) error {
	p.mu.Lock()
	if p.selection == "" {
		p.mu.Unlock()
		return ErrNoSelection
	}
	baseID, err := BaseHistoryID(p.selection)
	if err != nil {
		p.mu.Unlock()
		return err
	}

	req := models.RestorationRequest{
		HistoryID:        baseID,
		RequestingUserID: p.userID,
	}
	switch mode {
	case ModePartial:
		req.Type = models.RestoreTypePartial
		req.Mappings = make([]models.RestorationMapping, 0, len(p.pending))
		for _, m := range p.pending {
			originID := m.HistorySlideID
			if mapped, ok := p.translate[originID]; ok {
				originID = mapped
			}
			req.Mappings = append(req.Mappings, models.RestorationMapping{
				TargetSlideID:  m.TargetSlideID,
				HistorySlideID: originID,
			})
		}
	case ModeFull:
		req.Type = models.RestoreTypeAll
	default:
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	p.mu.Unlock()

	if err := p.client.SubmitRestoration(ctx, p.presentationID, req); err != nil {
		// 失败保留待提交映射，用户可重试
		return err
	}

	p.mu.Lock()
	p.pending = nil
	p.translate = make(map[string]string)
	p.mu.Unlock()
	return nil
}
