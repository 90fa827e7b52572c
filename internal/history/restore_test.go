package history_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/document"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/history"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const snapshotBody = `[
	{"slideId":"hs7","order":1,"content":{"shapes":[{"id":1,"type":"rectangle","width":10,"height":10,"color":"#111"}],"texts":[]}},
	{"slideId":"hs9","order":2,"content":{"shapes":[{"id":2,"type":"circle","radiusX":4,"radiusY":4,"color":"#222"}],"texts":[]}}
]`

// restoreServer 历史快照 + 恢复提交的测试后端
type restoreServer struct {
	mu            sync.Mutex
	commits       []models.RestorationRequest
	commitStatus  int
	snapshotDelay map[string]chan struct{} // baseHistoryID → 放行信号
}

func newRestoreServer() *restoreServer {
	return &restoreServer{commitStatus: http.StatusOK, snapshotDelay: make(map[string]chan struct{})}
}

func (s *restoreServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/presentations/p1/histories/h1/slides":
			s.waitRelease("h1")
			w.Write([]byte(snapshotBody))
		case r.Method == http.MethodGet && r.URL.Path == "/presentations/p1/histories/h2/slides":
			s.waitRelease("h2")
			w.Write([]byte(`[{"slideId":"hx1","order":1,"content":null}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/presentations/p1/restore":
			var req models.RestorationRequest
			json.NewDecoder(r.Body).Decode(&req)
			s.mu.Lock()
			s.commits = append(s.commits, req)
			status := s.commitStatus
			s.mu.Unlock()
			if status != http.StatusOK {
				w.WriteHeader(status)
				w.Write([]byte("restore rejected"))
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (s *restoreServer) waitRelease(baseID string) {
	s.mu.Lock()
	ch := s.snapshotDelay[baseID]
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (s *restoreServer) delay(baseID string) chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.snapshotDelay[baseID] = ch
	s.mu.Unlock()
	return ch
}

func newTestPlanner(t *testing.T) (*history.Planner, *document.Store, *restoreServer) {
	t.Helper()
	srv := newRestoreServer()
	server := httptest.NewServer(srv.handler())
	t.Cleanup(server.Close)

	client := history.NewAPIClient(server.URL, 5*time.Second, staticToken(), zap.NewNop())
	catalog := history.NewCatalog(client, zap.NewNop())
	store := document.NewStore()
	store.UpsertSlide("slideA", 1)
	store.UpsertSlide("slideB", 2)

	planner := history.NewPlanner("p1", "user-1", store, catalog, client, zap.NewNop())
	return planner, store, srv
}

const compositeH1 = "h1__2025-01-02T00:00:00"

func TestPlanner_PlanPartialClonesContentForPreview(t *testing.T) {
	planner, store, _ := newTestPlanner(t)

	_, err := planner.SelectSnapshot(context.Background(), compositeH1)
	require.NoError(t, err)

	_, err = planner.PlanPartial("slideA", compositeH1, "hs7")
	require.NoError(t, err)

	preview, ok := store.Get("slideA")
	require.True(t, ok)
	require.Len(t, preview.Shapes, 1)
	require.Equal(t, int64(1), preview.Shapes[0].ID)

	// 预览后的本地编辑不得污染缓存的历史内容
	edited := preview
	edited.Shapes[0].Width = 777
	store.SetContent("slideA", edited)

	_, err = planner.PlanPartial("slideB", compositeH1, "hs7")
	require.NoError(t, err)
	second, _ := store.Get("slideB")
	require.Equal(t, float64(10), second.Shapes[0].Width)
}

func TestPlanner_LastMappingWinsPerTarget(t *testing.T) {
	planner, _, _ := newTestPlanner(t)

	_, err := planner.SelectSnapshot(context.Background(), compositeH1)
	require.NoError(t, err)

	_, err = planner.PlanPartial("slideA", compositeH1, "hs7")
	require.NoError(t, err)
	_, err = planner.PlanPartial("slideA", compositeH1, "hs9")
	require.NoError(t, err)

	mappings := planner.Mappings()
	require.Len(t, mappings, 1)
	require.Equal(t, "slideA", mappings[0].TargetSlideID)
	require.Equal(t, "hs9", mappings[0].HistorySlideID)
}

func TestPlanner_PreviewIDTranslatedBack(t *testing.T) {
	planner, _, srv := newTestPlanner(t)

	_, err := planner.SelectSnapshot(context.Background(), compositeH1)
	require.NoError(t, err)

	// 历史视图里用的是本地前缀 ID
	_, err = planner.PlanPartial("slideA", compositeH1, "history_hs7")
	require.NoError(t, err)

	require.NoError(t, planner.Commit(context.Background(), history.ModePartial))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.commits, 1)
	require.Equal(t, models.RestoreTypePartial, srv.commits[0].Type)
	require.Equal(t, "h1", srv.commits[0].HistoryID)
	require.Equal(t, "user-1", srv.commits[0].RequestingUserID)
	require.Equal(t, []models.RestorationMapping{
		{TargetSlideID: "slideA", HistorySlideID: "hs7"},
	}, srv.commits[0].Mappings)
}

func TestPlanner_FullCommitSendsNoMappings(t *testing.T) {
	planner, _, srv := newTestPlanner(t)

	_, err := planner.SelectSnapshot(context.Background(), compositeH1)
	require.NoError(t, err)
	_, err = planner.PlanPartial("slideA", compositeH1, "hs7")
	require.NoError(t, err)

	require.NoError(t, planner.Commit(context.Background(), history.ModeFull))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.commits, 1)
	require.Equal(t, models.RestoreTypeAll, srv.commits[0].Type)
	require.Empty(t, srv.commits[0].Mappings)
}

func TestPlanner_CommitFailurePreservesMappings(t *testing.T) {
	planner, _, srv := newTestPlanner(t)
	srv.mu.Lock()
	srv.commitStatus = http.StatusInternalServerError
	srv.mu.Unlock()

	_, err := planner.SelectSnapshot(context.Background(), compositeH1)
	require.NoError(t, err)
	_, err = planner.PlanPartial("slideA", compositeH1, "hs7")
	require.NoError(t, err)

	err = planner.Commit(context.Background(), history.ModePartial)
	var commitErr *history.CommitError
	require.ErrorAs(t, err, &commitErr)
	require.Equal(t, http.StatusInternalServerError, commitErr.Status)

	// 失败保留映射，允许重试
	require.Len(t, planner.Mappings(), 1)

	srv.mu.Lock()
	srv.commitStatus = http.StatusOK
	srv.mu.Unlock()
	require.NoError(t, planner.Commit(context.Background(), history.ModePartial))
	require.Empty(t, planner.Mappings())
}

func TestPlanner_SwitchingSnapshotClearsPendingMappings(t *testing.T) {
	planner, _, _ := newTestPlanner(t)

	_, err := planner.SelectSnapshot(context.Background(), compositeH1)
	require.NoError(t, err)
	_, err = planner.PlanPartial("slideA", compositeH1, "hs7")
	require.NoError(t, err)
	require.Len(t, planner.Mappings(), 1)

	// 映射不跨快照
	_, err = planner.SelectSnapshot(context.Background(), "h2__2025-02-01T00:00:00")
	require.NoError(t, err)
	require.Empty(t, planner.Mappings())

	_, err = planner.PlanPartial("slideA", compositeH1, "hs7")
	require.ErrorIs(t, err, history.ErrSelectionMismatch)
}

func TestPlanner_StaleFetchSuperseded(t *testing.T) {
	planner, _, srv := newTestPlanner(t)

	release := srv.delay("h1")

	errCh := make(chan error, 1)
	go func() {
		_, err := planner.SelectSnapshot(context.Background(), compositeH1)
		errCh <- err
	}()

	// 等第一个拉取在途后，用新的选择取代它
	time.Sleep(50 * time.Millisecond)
	_, err := planner.SelectSnapshot(context.Background(), "h2__2025-02-01T00:00:00")
	require.NoError(t, err)

	close(release)
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, history.ErrSelectionSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for superseded fetch")
	}

	// 过期响应不得应用：当前快照仍是 h2 的内容
	_, err = planner.PlanPartial("slideA", "h2__2025-02-01T00:00:00", "hx1")
	require.NoError(t, err)
}
