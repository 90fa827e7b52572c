package models

import (
	"fmt"
)

// ShapeType 图形类型（封闭集合，解码时必须穷举匹配）
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeTriangle  ShapeType = "triangle"
	ShapeStar      ShapeType = "star"
	ShapeArrow     ShapeType = "arrow"
	ShapeLine      ShapeType = "line"
	ShapeImage     ShapeType = "image"
)

// Point 二维坐标点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape 幻灯片上的图形元素
// ID 由客户端生成，按创建时间单调递增，在单张幻灯片内唯一。
// 各类型必须携带的几何字段见 Validate。
type Shape struct {
	ID    int64     `json:"id"`
	Type  ShapeType `json:"type"`
	Color string    `json:"color"`

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	// rectangle / star / image
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// circle
	RadiusX float64 `json:"radiusX,omitempty"`
	RadiusY float64 `json:"radiusY,omitempty"`

	// triangle / arrow / line
	Points []Point `json:"points,omitempty"`

	// image
	Src string `json:"src,omitempty"`
}

// Validate 校验图形几何字段完整性
// 提交到 DocumentStore 之前必须通过校验（渲染端假定这些字段存在）。
func (s *Shape) Validate() error {
	switch s.Type {
	case ShapeRectangle, ShapeStar:
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("shape %d (%s): missing width/height", s.ID, s.Type)
		}
	case ShapeCircle:
		if s.RadiusX <= 0 || s.RadiusY <= 0 {
			return fmt.Errorf("shape %d (circle): missing radiusX/radiusY", s.ID)
		}
	case ShapeTriangle:
		if len(s.Points) < 3 {
			return fmt.Errorf("shape %d (triangle): requires at least 3 points, got %d", s.ID, len(s.Points))
		}
	case ShapeArrow, ShapeLine:
		if len(s.Points) < 2 {
			return fmt.Errorf("shape %d (%s): requires at least 2 points, got %d", s.ID, s.Type, len(s.Points))
		}
	case ShapeImage:
		if s.Src == "" {
			return fmt.Errorf("shape %d (image): missing src", s.ID)
		}
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("shape %d (image): missing width/height", s.ID)
		}
	default:
		return fmt.Errorf("shape %d: unknown type %q", s.ID, s.Type)
	}
	return nil
}

// TextItem 幻灯片上的文本元素
type TextItem struct {
	ID       int64   `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text"`
	Color    string  `json:"color"`
	FontSize float64 `json:"fontSize"`
}

// Slide 幻灯片元信息
// Order 为文档内唯一的 1 起始连续序号。
type Slide struct {
	ID    string `json:"slideId"`
	Order int    `json:"order"`
}

// SlideContent 单张幻灯片的全部可渲染内容
type SlideContent struct {
	Shapes []Shape    `json:"shapes"`
	Texts  []TextItem `json:"texts"`
}

// EmptyContent 返回空内容（shapes/texts 均为非 nil 空切片）
func EmptyContent() SlideContent {
	return SlideContent{Shapes: []Shape{}, Texts: []TextItem{}}
}

// Normalize 规范化内容：nil 切片替换为空切片，丢弃空文本
// 编辑结束后的空字符串文本是删除信号，不允许落入存储。
func (c SlideContent) Normalize() SlideContent {
	out := SlideContent{
		Shapes: make([]Shape, 0, len(c.Shapes)),
		Texts:  make([]TextItem, 0, len(c.Texts)),
	}
	seen := make(map[int64]bool, len(c.Shapes))
	for _, sh := range c.Shapes {
		// 同一张幻灯片内 shape ID 唯一，重复时保留先到者
		if seen[sh.ID] {
			continue
		}
		seen[sh.ID] = true
		out.Shapes = append(out.Shapes, sh)
	}
	for _, txt := range c.Texts {
		if txt.Text == "" {
			continue
		}
		out.Texts = append(out.Texts, txt)
	}
	return out
}

// Clone 返回内容的独立副本（切片层深拷贝）
func (c SlideContent) Clone() SlideContent {
	out := SlideContent{
		Shapes: make([]Shape, len(c.Shapes)),
		Texts:  make([]TextItem, len(c.Texts)),
	}
	copy(out.Shapes, c.Shapes)
	copy(out.Texts, c.Texts)
	for i := range out.Shapes {
		if len(c.Shapes[i].Points) > 0 {
			out.Shapes[i].Points = make([]Point, len(c.Shapes[i].Points))
			copy(out.Shapes[i].Points, c.Shapes[i].Points)
		}
	}
	return out
}
