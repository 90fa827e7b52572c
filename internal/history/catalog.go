package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"

	"go.uber.org/zap"
)

// Catalog 历史快照目录
// 上游命名不稳定：列表端点有单复数两种形态，快照标识字段有已知
// 拼写错误。这里的容错只是 HTTP 边界的兼容垫片，规范化后进入
// models 的标准类型，不扩散到核心数据模型。
type Catalog struct {
	client *APIClient
	logger *zap.Logger
}

// NewCatalog 创建历史目录
func NewCatalog(client *APIClient, logger *zap.Logger) *Catalog {
	return &Catalog{client: client, logger: logger}
}

// rawHistoryEntry 上游目录条目（容错字段形态）
// HistroyID 是上游已知的拼写错误，仅在此处接受。
type rawHistoryEntry struct {
	HistoryID    string `json:"historyId"`
	HistroyID    string `json:"histroyId"`
	LastRevision string `json:"lastRevisionISO"`
	LastRevAlt   string `json:"lastRevision"`
}

// ListHistories 列出文档的历史快照，按修订时间降序（最新在前）
// 依次尝试两种端点形态，取第一个成功响应。
func (c *Catalog) ListHistories(ctx context.Context, presentationID string) ([]models.HistoryEntry, error) {
	paths := []string{
		fmt.Sprintf("/presentations/%s/histories", presentationID),
		fmt.Sprintf("/presentations/%s/history", presentationID),
	}

	var body []byte
	var lastErr error
	for _, path := range paths {
		b, err := c.client.getBody(ctx, path)
		if err == nil {
			body = b
			lastErr = nil
			break
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to list histories: %w", lastErr)
	}

	var raw []rawHistoryEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode history list: %w", err)
	}

	entries := make([]models.HistoryEntry, 0, len(raw))
	for _, r := range raw {
		id := r.HistoryID
		if id == "" {
			id = r.HistroyID
		}
		if id == "" {
			// 标准字段和已知错拼都缺失才算失败
			return nil, fmt.Errorf("history entry missing identifier field")
		}
		rev := r.LastRevision
		if rev == "" {
			rev = r.LastRevAlt
		}
		if rev == "" {
			c.logger.Warn("History entry without revision timestamp, skipping",
				zap.String("history_id", id),
			)
			continue
		}
		entries = append(entries, models.HistoryEntry{HistoryID: id, LastRevision: rev})
	}

	// ISO 时间戳按字典序即时间序
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].LastRevision > entries[b].LastRevision
	})
	return entries, nil
}

// FetchHistorySlides 拉取一个基础历史 ID 对应的完整幻灯片集合
func (c *Catalog) FetchHistorySlides(ctx context.Context, presentationID, baseHistoryID string) ([]models.HistorySlide, error) {
	body, err := c.client.getBody(ctx, fmt.Sprintf("/presentations/%s/histories/%s/slides", presentationID, baseHistoryID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history slides: %w", err)
	}

	records, err := decodeSlideRecords(body, c.logger)
	if err != nil {
		return nil, err
	}

	slides := make([]models.HistorySlide, 0, len(records))
	for _, r := range records {
		content := models.EmptyContent()
		if r.Content != nil {
			content = *r.Content
		}
		slides = append(slides, models.HistorySlide{SlideID: r.SlideID, Order: r.Order, Content: content})
	}
	return slides, nil
}

// slideRecord 上游幻灯片条目，content 可能被二次编码
type slideRecord struct {
	SlideID string          `json:"slideId"`
	Order   int             `json:"order"`
	Content json.RawMessage `json:"content"`
}

// decodeSlideRecords 解码幻灯片条目数组
func decodeSlideRecords(body []byte, logger *zap.Logger) ([]models.StructureSlide, error) {
	var raw []slideRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode slide list: %w", err)
	}

	out := make([]models.StructureSlide, 0, len(raw))
	for _, r := range raw {
		content := decodeContent(r.Content, logger)
		out = append(out, models.StructureSlide{SlideID: r.SlideID, Order: r.Order, Content: &content})
	}
	return out, nil
}

// decodeContent 防御性解码幻灯片内容
// 内容可能是对象，也可能是二次编码（对象的 JSON 再作为字符串编码）。
// 任何解码失败都回退为空内容并记录日志，不向上传播解析错误。
func decodeContent(raw []byte, logger *zap.Logger) models.SlideContent {
	if len(raw) == 0 || string(raw) == "null" {
		return models.EmptyContent()
	}

	var content models.SlideContent
	if err := json.Unmarshal(raw, &content); err == nil {
		return content.Normalize()
	}

	// 二次编码：先解成字符串，再解内层 JSON
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		if err := json.Unmarshal([]byte(inner), &content); err == nil {
			return content.Normalize()
		}
	}

	logger.Warn("Failed to decode slide content, substituting empty content")
	return models.EmptyContent()
}
