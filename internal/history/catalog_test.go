package history_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/history"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticToken() history.TokenProvider {
	return history.TokenProviderFunc(func() (string, error) {
		return "test-token", nil
	})
}

func newClient(t *testing.T, serverURL string) *history.APIClient {
	t.Helper()
	return history.NewAPIClient(serverURL, 5*time.Second, staticToken(), zap.NewNop())
}

func TestCatalog_ListHistoriesFallsBackToSingularPath(t *testing.T) {
	var hitPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitPaths = append(hitPaths, r.URL.Path)
		switch r.URL.Path {
		case "/presentations/p1/histories":
			// 复数形态不存在
			w.WriteHeader(http.StatusNotFound)
		case "/presentations/p1/history":
			w.Write([]byte(`[
				{"historyId":"h1","lastRevisionISO":"2025-01-01T00:00:00"},
				{"historyId":"h1","lastRevisionISO":"2025-01-02T00:00:00"}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	catalog := history.NewCatalog(newClient(t, server.URL), zap.NewNop())
	entries, err := catalog.ListHistories(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"/presentations/p1/histories", "/presentations/p1/history"}, hitPaths)

	// 同一基础 ID 的两个修订 → 两个不同的复合键，最新在前
	require.Len(t, entries, 2)
	require.Equal(t, "h1__2025-01-02T00:00:00", entries[0].CompositeID())
	require.Equal(t, "h1__2025-01-01T00:00:00", entries[1].CompositeID())
}

func TestCatalog_ListHistoriesAcceptsMisspelledIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"histroyId":"h2","lastRevision":"2025-03-01T10:00:00"}]`))
	}))
	defer server.Close()

	catalog := history.NewCatalog(newClient(t, server.URL), zap.NewNop())
	entries, err := catalog.ListHistories(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "h2", entries[0].HistoryID)
	require.Equal(t, "2025-03-01T10:00:00", entries[0].LastRevision)
}

func TestCatalog_ListHistoriesFailsWithoutIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lastRevisionISO":"2025-03-01T10:00:00"}]`))
	}))
	defer server.Close()

	catalog := history.NewCatalog(newClient(t, server.URL), zap.NewNop())
	_, err := catalog.ListHistories(context.Background(), "p1")
	require.Error(t, err)
}

func TestCatalog_AuthFailureDistinct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	catalog := history.NewCatalog(newClient(t, server.URL), zap.NewNop())
	_, err := catalog.ListHistories(context.Background(), "p1")
	require.ErrorIs(t, err, history.ErrAuthFailed)
}

func TestCatalog_RequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	catalog := history.NewCatalog(newClient(t, server.URL), zap.NewNop())
	_, err := catalog.ListHistories(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "Bearer test-token", gotAuth)
}

func TestCatalog_FetchHistorySlidesDecodesDoubleEncodedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/presentations/p1/histories/h1/slides", r.URL.Path)
		// hs1 正常对象，hs2 二次编码，hs3 彻底损坏
		w.Write([]byte(`[
			{"slideId":"hs1","order":1,"content":{"shapes":[{"id":1,"type":"rectangle","width":5,"height":5,"color":"#abc"}],"texts":[]}},
			{"slideId":"hs2","order":2,"content":"{\"shapes\":[],\"texts\":[{\"id\":2,\"x\":1,\"y\":1,\"text\":\"hi\",\"color\":\"#000\",\"fontSize\":12}]}"},
			{"slideId":"hs3","order":3,"content":"{{{broken"}
		]`))
	}))
	defer server.Close()

	catalog := history.NewCatalog(newClient(t, server.URL), zap.NewNop())
	slides, err := catalog.FetchHistorySlides(context.Background(), "p1", "h1")
	require.NoError(t, err)
	require.Len(t, slides, 3)

	require.Len(t, slides[0].Content.Shapes, 1)
	require.Equal(t, int64(1), slides[0].Content.Shapes[0].ID)

	require.Len(t, slides[1].Content.Texts, 1)
	require.Equal(t, "hi", slides[1].Content.Texts[0].Text)

	// 解码失败回退为空内容，而不是报错
	require.Empty(t, slides[2].Content.Shapes)
	require.Empty(t, slides[2].Content.Texts)
}
