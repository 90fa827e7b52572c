package render

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/history"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPUploader 首页缩略图上传协作方
// 防抖和指纹去重在 thumbnail.Cache 一侧完成，这里只负责提交。
type HTTPUploader struct {
	httpClient *resty.Client
	tokens     history.TokenProvider
	logger     *zap.Logger
}

// NewHTTPUploader 创建缩略图上传客户端
func NewHTTPUploader(baseURL string, timeout time.Duration, tokens history.TokenProvider, logger *zap.Logger) *HTTPUploader {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &HTTPUploader{
		httpClient: client,
		tokens:     tokens,
		logger:     logger,
	}
}

// UploadFirstSlide 上传首页缩略图
func (u *HTTPUploader) UploadFirstSlide(ctx context.Context, presentationID string, image []byte) error {
	token, err := u.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain credential: %w", err)
	}

	resp, err := u.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "image/svg+xml").
		SetBody(image).
		Post(fmt.Sprintf("/presentations/%s/thumbnail", presentationID))
	if err != nil {
		return fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return fmt.Errorf("thumbnail upload rejected (status: %d): %w", resp.StatusCode(), history.ErrAuthFailed)
	case resp.IsError():
		return fmt.Errorf("thumbnail upload failed (status: %d)", resp.StatusCode())
	}

	u.logger.Debug("Thumbnail uploaded",
		zap.String("presentation_id", presentationID),
		zap.Int("image_bytes", len(image)),
	)
	return nil
}
