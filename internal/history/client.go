package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrAuthFailed 鉴权失败（401/403），与其它 HTTP 故障区分
var ErrAuthFailed = errors.New("authentication failed")

// CommitError 恢复提交被后端拒绝（非 2xx）
// 调用方保留待提交映射以便重试。
type CommitError struct {
	Status int
	Detail string
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("restoration commit rejected (status: %d): %s", e.Status, e.Detail)
}

// TokenProvider 外部鉴权协作方，按请求提供 Bearer 凭证
type TokenProvider interface {
	Token() (string, error)
}

// TokenProviderFunc 函数适配器
type TokenProviderFunc func() (string, error)

func (f TokenProviderFunc) Token() (string, error) { return f() }

// APIClient 后端 HTTP API 客户端
type APIClient struct {
	httpClient *resty.Client
	tokens     TokenProvider
	logger     *zap.Logger
}

// NewAPIClient 创建 API 客户端
func NewAPIClient(baseURL string, timeout time.Duration, tokens TokenProvider, logger *zap.Logger) *APIClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &APIClient{
		httpClient: client,
		tokens:     tokens,
		logger:     logger,
	}
}

// ListSlides 拉取文档的幻灯片列表（含内容，用于初始加载）
func (c *APIClient) ListSlides(ctx context.Context, presentationID string) ([]models.StructureSlide, error) {
	body, err := c.getBody(ctx, fmt.Sprintf("/presentations/%s/slides", presentationID))
	if err != nil {
		return nil, err
	}
	return decodeSlideRecords(body, c.logger)
}

// GetSlideContent 拉取单张幻灯片的内容
func (c *APIClient) GetSlideContent(ctx context.Context, presentationID, slideID string) (models.SlideContent, error) {
	body, err := c.getBody(ctx, fmt.Sprintf("/presentations/%s/slides/%s", presentationID, slideID))
	if err != nil {
		return models.SlideContent{}, err
	}
	return decodeContent(body, c.logger), nil
}

// SubmitRestoration 提交恢复请求
func (c *APIClient) SubmitRestoration(ctx context.Context, presentationID string, req models.RestorationRequest) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain credential: %w", err)
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(req).
		Post(fmt.Sprintf("/presentations/%s/restore", presentationID))
	if err != nil {
		return fmt.Errorf("failed to submit restoration: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return fmt.Errorf("restoration rejected (status: %d): %w", resp.StatusCode(), ErrAuthFailed)
	case resp.IsError():
		return &CommitError{Status: resp.StatusCode(), Detail: string(resp.Body())}
	}

	c.logger.Info("Restoration committed",
		zap.String("presentation_id", presentationID),
		zap.String("type", req.Type),
		zap.String("history_id", req.HistoryID),
		zap.Int("mappings", len(req.Mappings)),
	)
	return nil
}

// getBody GET 请求，携带 Bearer 凭证并区分鉴权失败
func (c *APIClient) getBody(ctx context.Context, path string) ([]byte, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain credential: %w", err)
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, fmt.Errorf("request to %s rejected (status: %d): %w", path, resp.StatusCode(), ErrAuthFailed)
	case resp.IsError():
		return nil, fmt.Errorf("request to %s failed (status: %d)", path, resp.StatusCode())
	}
	return resp.Body(), nil
}
