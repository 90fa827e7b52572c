package render

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"
)

// SVGRenderer 无头缩略图渲染器
// 把幻灯片内容画成定尺寸 SVG。复杂的画板渲染（自由手绘、选中框等）
// 属于前端协作方，这里只覆盖缩略图需要的基本图形。
type SVGRenderer struct {
	width  int
	height int
}

// NewSVGRenderer 创建 SVG 渲染器
func NewSVGRenderer(width, height int) *SVGRenderer {
	return &SVGRenderer{width: width, height: height}
}

// Render 渲染一张幻灯片的缩略图
func (r *SVGRenderer) Render(_ context.Context, slideID string, content models.SlideContent) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 1920 1080">`, r.width, r.height)
	b.WriteString(`<rect width="1920" height="1080" fill="#ffffff"/>`)

	for _, sh := range content.Shapes {
		if err := sh.Validate(); err != nil {
			// 存储侧保证几何字段完整，这里兜底跳过而不是画出残缺图形
			continue
		}
		writeShape(&b, sh)
	}
	for _, txt := range content.Texts {
		fmt.Fprintf(&b, `<text x="%g" y="%g" fill="%s" font-size="%g">%s</text>`,
			txt.X, txt.Y, html.EscapeString(txt.Color), txt.FontSize, html.EscapeString(txt.Text))
	}

	b.WriteString(`</svg>`)
	return []byte(b.String()), nil
}

func writeShape(b *strings.Builder, sh models.Shape) {
	color := html.EscapeString(sh.Color)
	switch sh.Type {
	case models.ShapeRectangle, models.ShapeStar:
		fmt.Fprintf(b, `<rect x="%g" y="%g" width="%g" height="%g" fill="%s"/>`,
			sh.X, sh.Y, sh.Width, sh.Height, color)
	case models.ShapeCircle:
		fmt.Fprintf(b, `<ellipse cx="%g" cy="%g" rx="%g" ry="%g" fill="%s"/>`,
			sh.X, sh.Y, sh.RadiusX, sh.RadiusY, color)
	case models.ShapeImage:
		fmt.Fprintf(b, `<image x="%g" y="%g" width="%g" height="%g" href="%s"/>`,
			sh.X, sh.Y, sh.Width, sh.Height, html.EscapeString(sh.Src))
	case models.ShapeTriangle:
		fmt.Fprintf(b, `<polygon points="%s" fill="%s"/>`, points(sh.Points), color)
	case models.ShapeArrow, models.ShapeLine:
		fmt.Fprintf(b, `<polyline points="%s" stroke="%s" fill="none"/>`, points(sh.Points), color)
	}
}

func points(pts []models.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%g,%g", p.X, p.Y)
	}
	return strings.Join(parts, " ")
}
