package models_test

import (
	"testing"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"

	"github.com/stretchr/testify/require"
)

func TestShapeValidate_RequiredGeometryPerType(t *testing.T) {
	cases := []struct {
		name  string
		shape models.Shape
		ok    bool
	}{
		{"rectangle complete", models.Shape{ID: 1, Type: models.ShapeRectangle, Width: 10, Height: 10}, true},
		{"rectangle missing height", models.Shape{ID: 1, Type: models.ShapeRectangle, Width: 10}, false},
		{"circle complete", models.Shape{ID: 2, Type: models.ShapeCircle, RadiusX: 3, RadiusY: 4}, true},
		{"circle missing radius", models.Shape{ID: 2, Type: models.ShapeCircle, RadiusX: 3}, false},
		{"triangle three points", models.Shape{ID: 3, Type: models.ShapeTriangle, Points: []models.Point{{}, {X: 1}, {Y: 1}}}, true},
		{"triangle two points", models.Shape{ID: 3, Type: models.ShapeTriangle, Points: []models.Point{{}, {X: 1}}}, false},
		{"line two points", models.Shape{ID: 4, Type: models.ShapeLine, Points: []models.Point{{}, {X: 1}}}, true},
		{"arrow one point", models.Shape{ID: 5, Type: models.ShapeArrow, Points: []models.Point{{}}}, false},
		{"image complete", models.Shape{ID: 6, Type: models.ShapeImage, Src: "a.png", Width: 5, Height: 5}, true},
		{"image missing src", models.Shape{ID: 6, Type: models.ShapeImage, Width: 5, Height: 5}, false},
		{"unknown type", models.Shape{ID: 7, Type: "hexagon"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.shape.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestNormalize_DropsEmptyTextAndDuplicateShapeIDs(t *testing.T) {
	content := models.SlideContent{
		Shapes: []models.Shape{
			{ID: 1, Type: models.ShapeRectangle, Width: 5, Height: 5},
			{ID: 1, Type: models.ShapeCircle, RadiusX: 1, RadiusY: 1}, // 重复 ID，保留先到者
		},
		Texts: []models.TextItem{
			{ID: 2, Text: "keep"},
			{ID: 3, Text: ""},
		},
	}

	got := content.Normalize()
	require.Len(t, got.Shapes, 1)
	require.Equal(t, models.ShapeRectangle, got.Shapes[0].Type)
	require.Len(t, got.Texts, 1)
	require.Equal(t, "keep", got.Texts[0].Text)
}

func TestHistoryEntry_CompositeID(t *testing.T) {
	e := models.HistoryEntry{HistoryID: "h1", LastRevision: "2025-01-02T00:00:00"}
	require.Equal(t, "h1__2025-01-02T00:00:00", e.CompositeID())
}
