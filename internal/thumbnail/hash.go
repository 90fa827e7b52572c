package thumbnail

import (
	"encoding/json"
	"strconv"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"

	"github.com/cespare/xxhash/v2"
)

// ContentHash 计算幻灯片内容的稳定哈希
// 只覆盖语义字段（图形/文本的身份、几何、颜色），规范化后再序列化，
// 因此切片为 nil 或含空文本的内容与其规范形式哈希一致。
func ContentHash(content models.SlideContent) uint64 {
	normalized := content.Normalize()
	data, err := json.Marshal(normalized)
	if err != nil {
		// SlideContent 均为可序列化的基础类型，到不了这里
		return 0
	}
	return xxhash.Sum64(data)
}

// Fingerprint 渲染产物的短指纹（用于上传去重）
func Fingerprint(image []byte) string {
	return strconv.FormatUint(xxhash.Sum64(image), 16)
}

func formatHash(h uint64) string {
	return strconv.FormatUint(h, 16)
}
