package render_test

import (
	"context"
	"testing"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/render"

	"github.com/stretchr/testify/require"
)

func TestSVGRenderer_RendersShapesAndTexts(t *testing.T) {
	r := render.NewSVGRenderer(320, 180)

	image, err := r.Render(context.Background(), "s1", models.SlideContent{
		Shapes: []models.Shape{
			{ID: 1, Type: models.ShapeRectangle, X: 10, Y: 20, Width: 100, Height: 50, Color: "#ff0000"},
			{ID: 2, Type: models.ShapeCircle, X: 300, Y: 300, RadiusX: 40, RadiusY: 20, Color: "#00ff00"},
			{ID: 3, Type: models.ShapeLine, Points: []models.Point{{X: 0, Y: 0}, {X: 5, Y: 5}}, Color: "#0000ff"},
		},
		Texts: []models.TextItem{
			{ID: 4, X: 50, Y: 60, Text: "hello <world>", Color: "#000", FontSize: 14},
		},
	})
	require.NoError(t, err)

	svg := string(image)
	require.Contains(t, svg, `<rect x="10" y="20" width="100" height="50" fill="#ff0000"/>`)
	require.Contains(t, svg, `<ellipse cx="300" cy="300" rx="40" ry="20" fill="#00ff00"/>`)
	require.Contains(t, svg, `<polyline points="0,0 5,5" stroke="#0000ff" fill="none"/>`)
	// 文本要做 HTML 转义
	require.Contains(t, svg, "hello &lt;world&gt;")
}

func TestSVGRenderer_SkipsInvalidShapes(t *testing.T) {
	r := render.NewSVGRenderer(320, 180)

	image, err := r.Render(context.Background(), "s1", models.SlideContent{
		Shapes: []models.Shape{
			{ID: 1, Type: models.ShapeRectangle, Color: "#fff"}, // 缺 width/height
			{ID: 2, Type: "hexagon", Color: "#fff"},             // 未知类型
		},
		Texts: []models.TextItem{},
	})
	require.NoError(t, err)
	require.NotContains(t, string(image), "<rect x=")
}
