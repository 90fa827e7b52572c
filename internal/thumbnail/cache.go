package thumbnail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"

	"go.uber.org/zap"
)

// Renderer 外部渲染协作方（绘制幻灯片缩略图）
type Renderer interface {
	Render(ctx context.Context, slideID string, content models.SlideContent) ([]byte, error)
}

// Uploader 外部上传协作方（持久化首页缩略图）
// 每个安静期内相同指纹至多调用一次。
type Uploader interface {
	UploadFirstSlide(ctx context.Context, presentationID string, image []byte) error
}

// RenderOptions 渲染选项
type RenderOptions struct {
	// IsFirst 首页渲染，产物额外交给上传协作方
	IsFirst bool
	// Force 跳过哈希与在途检查，强制渲染
	Force bool
}

// Cache 内容哈希驱动的缩略图缓存
// 用内容哈希拦截重复渲染；接受的渲染经空闲调度器执行，
// 首页产物按指纹去重后防抖上传。
type Cache struct {
	presentationID string
	kv             KVStore
	renderer       Renderer
	uploader       Uploader
	sched          *Scheduler
	logger         *zap.Logger
	cacheTTL       time.Duration
	uploadQuiet    time.Duration

	mu           sync.Mutex
	inFlight     map[string]bool
	lastUploadFP string
	pendingImage []byte
	pendingFP    string
	uploadTimer  *time.Timer
}

// NewCache 创建缩略图缓存
func NewCache(
	presentationID string,
	kv KVStore,
	renderer Renderer,
	uploader Uploader,
	sched *Scheduler,
	cacheTTL time.Duration,
	uploadQuiet time.Duration,
	logger *zap.Logger,
) *Cache {
	c := &Cache{
		presentationID: presentationID,
		kv:             kv,
		renderer:       renderer,
		uploader:       uploader,
		sched:          sched,
		logger:         logger,
		cacheTTL:       cacheTTL,
		uploadQuiet:    uploadQuiet,
		inFlight:       make(map[string]bool),
	}

	// 恢复上次会话的上传指纹（尽力而为）
	if fp, err := kv.Get(context.Background(), c.uploadFPKey()); err == nil {
		c.lastUploadFP = fp
	}
	return c
}

// ScheduleRender 调度一次缩略图渲染
// 跳过条件：该幻灯片已有在途渲染（除非 Force）；或缓存的缩略图存在
// 且记录的内容哈希与本次一致（除非 Force）。任务读取的是调度时刻
// 的内容快照，之后的编辑不影响本次渲染。
func (c *Cache) ScheduleRender(slideID string, content models.SlideContent, opts RenderOptions) {
	hash := formatHash(ContentHash(content))

	c.mu.Lock()
	if c.inFlight[slideID] && !opts.Force {
		c.mu.Unlock()
		c.logger.Debug("Render already in flight, skipping",
			zap.String("slide_id", slideID),
		)
		return
	}
	c.mu.Unlock()

	if !opts.Force && c.hasFreshThumbnail(slideID, hash) {
		c.logger.Debug("Thumbnail up to date, skipping render",
			zap.String("slide_id", slideID),
			zap.String("content_hash", hash),
		)
		return
	}

	c.mu.Lock()
	c.inFlight[slideID] = true
	c.mu.Unlock()

	snapshot := content.Clone()
	c.sched.Schedule(slideID, func() {
		c.render(slideID, snapshot, hash, opts)
	})
}

// MarkBusy 宿主繁忙提示，推迟待执行的渲染任务（有界）
func (c *Cache) MarkBusy() {
	c.sched.MarkBusy()
}

// CancelSlide 丢弃某张幻灯片的待执行渲染（幻灯片被删除时调用）
func (c *Cache) CancelSlide(slideID string) {
	c.sched.Cancel(slideID)
	c.mu.Lock()
	delete(c.inFlight, slideID)
	c.mu.Unlock()
}

// Close 停止调度器并丢弃未上传的产物
func (c *Cache) Close() {
	c.sched.Stop()
	c.mu.Lock()
	if c.uploadTimer != nil {
		c.uploadTimer.Stop()
		c.uploadTimer = nil
	}
	c.pendingImage = nil
	c.mu.Unlock()
}

// hasFreshThumbnail 缓存的缩略图存在且哈希未变
func (c *Cache) hasFreshThumbnail(slideID, hash string) bool {
	ctx := context.Background()
	stored, err := c.kv.Get(ctx, c.hashKey(slideID))
	if err != nil || stored != hash {
		return false
	}
	if _, err := c.kv.Get(ctx, c.imageKey(slideID)); err != nil {
		return false
	}
	return true
}

func (c *Cache) render(slideID string, snapshot models.SlideContent, hash string, opts RenderOptions) {
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, slideID)
		c.mu.Unlock()
	}()

	ctx := context.Background()
	image, err := c.renderer.Render(ctx, slideID, snapshot)
	if err != nil {
		c.logger.Error("Thumbnail render failed",
			zap.String("slide_id", slideID),
			zap.Error(err),
		)
		return
	}

	if err := c.kv.Set(ctx, c.imageKey(slideID), string(image), c.cacheTTL); err != nil {
		c.logger.Warn("Failed to cache thumbnail image",
			zap.String("slide_id", slideID),
			zap.Error(err),
		)
	}
	if err := c.kv.Set(ctx, c.hashKey(slideID), hash, c.cacheTTL); err != nil {
		c.logger.Warn("Failed to record content hash",
			zap.String("slide_id", slideID),
			zap.Error(err),
		)
	}

	c.logger.Debug("Thumbnail rendered",
		zap.String("slide_id", slideID),
		zap.String("content_hash", hash),
		zap.Int("image_bytes", len(image)),
	)

	if opts.IsFirst {
		c.queueUpload(image)
	}
}

// queueUpload 防抖上传：指纹与上次上传一致则合并，否则在安静期后上传一次
func (c *Cache) queueUpload(image []byte) {
	fp := Fingerprint(image)

	c.mu.Lock()
	defer c.mu.Unlock()

	if fp == c.lastUploadFP {
		c.logger.Debug("First-slide thumbnail unchanged, upload coalesced",
			zap.String("fingerprint", fp),
		)
		return
	}

	c.pendingImage = image
	c.pendingFP = fp
	if c.uploadTimer == nil {
		c.uploadTimer = time.AfterFunc(c.uploadQuiet, c.flushUpload)
	}
}

func (c *Cache) flushUpload() {
	c.mu.Lock()
	image := c.pendingImage
	fp := c.pendingFP
	c.pendingImage = nil
	c.pendingFP = ""
	c.uploadTimer = nil
	c.mu.Unlock()

	if image == nil {
		return
	}

	ctx := context.Background()
	if err := c.uploader.UploadFirstSlide(ctx, c.presentationID, image); err != nil {
		c.logger.Error("First-slide thumbnail upload failed",
			zap.Error(err),
		)
		return
	}

	c.mu.Lock()
	c.lastUploadFP = fp
	c.mu.Unlock()
	if err := c.kv.Set(ctx, c.uploadFPKey(), fp, c.cacheTTL); err != nil {
		c.logger.Warn("Failed to record upload fingerprint", zap.Error(err))
	}

	c.logger.Info("First-slide thumbnail uploaded",
		zap.String("presentation_id", c.presentationID),
		zap.String("fingerprint", fp),
	)
}

func (c *Cache) hashKey(slideID string) string {
	return fmt.Sprintf("presentation:thumb:%s:%s:hash", c.presentationID, slideID)
}

func (c *Cache) imageKey(slideID string) string {
	return fmt.Sprintf("presentation:thumb:%s:%s:image", c.presentationID, slideID)
}

func (c *Cache) uploadFPKey() string {
	return fmt.Sprintf("presentation:thumb:%s:upload:fp", c.presentationID)
}
