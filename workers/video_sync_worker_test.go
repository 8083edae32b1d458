package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"watch-reward-system/config"
	"watch-reward-system/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Video{}))
	return db
}

type fakeCatalog struct {
	mu     sync.Mutex
	videos []RemoteVideo
	since  []string
	status int
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.URL.Path != "/api/v1/public/videos" || r.Header.Get("X-Service-Token") != "svc" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	f.since = append(f.since, r.URL.Query().Get("since"))
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	_ = json.NewEncoder(w).Encode(GetVideoChangesResponse{Videos: f.videos})
}

func newTestWorker(t *testing.T, catalog *fakeCatalog) (*VideoSyncWorker, *gorm.DB) {
	t.Helper()
	srv := httptest.NewServer(catalog)
	t.Cleanup(srv.Close)
	db := newTestDB(t)
	w := NewVideoSyncWorker(db, config.SyncConfig{BaseURL: srv.URL, Path: "/api/v1/public/videos"}, "svc")
	return w, db
}

func TestSyncOnce_UpsertsById(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{videos: []RemoteVideo{
		{ID: "v1", Slug: "launch", Title: "Launch", MediaRef: "r2://videos/launch.mp4", PointBudget: 300,
			DurationSeconds: 90, Status: models.VideoStatusPublished, CreatedAt: updated, UpdatedAt: updated},
		{ID: "v2", Slug: "teaser", Title: "Teaser", MediaRef: "https://cdn/x.mp4", PointBudget: 50,
			DurationSeconds: 30, Status: models.VideoStatusDraft, CreatedAt: updated, UpdatedAt: updated},
		{ID: "", Title: "broken"},
	}}
	w, db := newTestWorker(t, catalog)
	ctx := context.Background()

	n, err := w.SyncOnce(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "0001-01-01T00:00:00Z", catalog.since[0])

	var v models.Video
	require.NoError(t, db.First(&v, "id = ?", "v1").Error)
	require.Equal(t, "launch", v.Slug)
	require.Equal(t, int64(300), v.PointBudget)
	require.True(t, v.IsR2Media())

	require.True(t, w.lastSyncTime(ctx).Equal(updated))

	// Second pass: v1 changes, v2 is removed upstream.
	later := updated.Add(time.Hour)
	catalog.mu.Lock()
	catalog.videos = []RemoteVideo{
		{ID: "v1", Slug: "launch", Title: "Launch (cut)", MediaRef: "r2://videos/launch.mp4", PointBudget: 400,
			DurationSeconds: 60, Status: models.VideoStatusPublished, CreatedAt: updated, UpdatedAt: later},
		{ID: "v2", Slug: "teaser", Title: "Teaser", MediaRef: "https://cdn/x.mp4", PointBudget: 50,
			Status: models.VideoStatusDraft, CreatedAt: updated, UpdatedAt: later, DeletedAt: &later},
	}
	catalog.mu.Unlock()

	n, err = w.SyncOnce(ctx, w.lastSyncTime(ctx))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "2026-03-01T12:00:00Z", catalog.since[1])

	require.NoError(t, db.First(&v, "id = ?", "v1").Error)
	require.Equal(t, "Launch (cut)", v.Title)
	require.Equal(t, int64(300), v.PointBudget, "published budget is frozen")
	require.Equal(t, 90, v.DurationSeconds)

	var count int64
	require.NoError(t, db.Model(&models.Video{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, db.Unscoped().Model(&models.Video{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestSyncOnce_BudgetEditableUntilPublished(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{videos: []RemoteVideo{
		{ID: "v1", Slug: "promo", Title: "Promo", MediaRef: "https://cdn/p.mp4", PointBudget: 100,
			DurationSeconds: 45, Status: models.VideoStatusScheduled, CreatedAt: updated, UpdatedAt: updated},
	}}
	w, db := newTestWorker(t, catalog)
	ctx := context.Background()

	_, err := w.SyncOnce(ctx, time.Time{})
	require.NoError(t, err)

	resync := func(budget int64, duration int, status string) models.Video {
		t.Helper()
		catalog.mu.Lock()
		catalog.videos[0].PointBudget = budget
		catalog.videos[0].DurationSeconds = duration
		catalog.videos[0].Status = status
		catalog.mu.Unlock()
		_, err := w.SyncOnce(ctx, time.Time{})
		require.NoError(t, err)
		var v models.Video
		require.NoError(t, db.First(&v, "id = ?", "v1").Error)
		return v
	}

	v := resync(150, 50, models.VideoStatusScheduled)
	require.Equal(t, int64(150), v.PointBudget)
	require.Equal(t, 50, v.DurationSeconds)

	v = resync(175, 55, models.VideoStatusPublished)
	require.Equal(t, int64(175), v.PointBudget)
	require.Equal(t, models.VideoStatusPublished, v.Status)

	v = resync(999, 10, models.VideoStatusPublished)
	require.Equal(t, int64(175), v.PointBudget)
	require.Equal(t, 55, v.DurationSeconds)
}

func TestSyncOnce_Non200(t *testing.T) {
	w, _ := newTestWorker(t, &fakeCatalog{status: http.StatusBadGateway})
	_, err := w.SyncOnce(context.Background(), time.Time{})
	require.ErrorContains(t, err, "502")
}

func TestSyncOnce_BadToken(t *testing.T) {
	w, _ := newTestWorker(t, &fakeCatalog{})
	w.serviceToken = "wrong"
	_, err := w.SyncOnce(context.Background(), time.Time{})
	require.ErrorContains(t, err, "403")
}

func TestLastSyncTime_EmptyTable(t *testing.T) {
	w, _ := newTestWorker(t, &fakeCatalog{})
	require.True(t, w.lastSyncTime(context.Background()).Equal(time.Unix(0, 0)))
}
