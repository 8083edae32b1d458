// workers/video_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"watch-reward-system/config"
	"watch-reward-system/metrics"
	"watch-reward-system/models"
)

// RemoteVideo matches the JSON the admin catalog service publishes.
type RemoteVideo struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ThumbnailURL    string     `json:"thumbnail_url"`
	MediaRef        string     `json:"media_ref"`
	PointBudget     int64      `json:"point_budget"`
	DurationSeconds int        `json:"duration_seconds"`
	Status          string     `json:"status"`
	PublishAt       *time.Time `json:"publish_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// GetVideoChangesResponse is the top-level structure of the catalog response.
type GetVideoChangesResponse struct {
	Videos []RemoteVideo `json:"videos"`
}

// VideoSyncWorker mirrors the admin catalog into the local videos table.
type VideoSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/videos"
	serviceToken string
	httpClient   *http.Client
}

func NewVideoSyncWorker(db *gorm.DB, cfg config.SyncConfig, serviceToken string) *VideoSyncWorker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &VideoSyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      cfg.BaseURL,
		endpointPath: cfg.Path,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *VideoSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Video Sync Worker (catalog → videos)…")
	go w.run(ctx)
}

func (w *VideoSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial video sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx, w.lastSyncTime(ctx)); err != nil {
				log.Printf("❌ Video sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Video Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest updated_at we hold, deleted rows included.
func (w *VideoSyncWorker) lastSyncTime(ctx context.Context) time.Time {
	var latest models.Video
	err := w.db.WithContext(ctx).Unscoped().
		Order("updated_at DESC").
		Select("updated_at").
		First(&latest).Error
	if err != nil || latest.UpdatedAt.IsZero() {
		return time.Unix(0, 0)
	}
	return latest.UpdatedAt
}

// syncAssignments updates every synced column, except that a video already
// published locally keeps its point budget and duration.
var syncAssignments = append(
	clause.AssignmentColumns([]string{
		"slug", "title", "description", "thumbnail_url", "media_ref",
		"status", "publish_at", "updated_at", "deleted_at",
	}),
	frozenOncePublished("point_budget"),
	frozenOncePublished("duration_seconds"),
)

func frozenOncePublished(column string) clause.Assignment {
	return clause.Assignment{
		Column: clause.Column{Name: column},
		Value: gorm.Expr(
			fmt.Sprintf("CASE WHEN videos.status = ? THEN videos.%[1]s ELSE excluded.%[1]s END", column),
			models.VideoStatusPublished,
		),
	}
}

// SyncOnce fetches videos changed since the given time and upserts them by id.
// It returns the number of rows upserted.
func (w *VideoSyncWorker) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid catalog URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	log.Printf("[SYNC] ➡️  GET %s", finalURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request to catalog failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("catalog non-200 response: %d: %s", resp.StatusCode, string(body))
	}

	var response GetVideoChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	if len(response.Videos) == 0 {
		log.Printf("[SYNC] ✅ No video changes since %s", sinceStr)
		return 0, nil
	}

	var upsertCount, errorCount, skipped int
	for _, remote := range response.Videos {
		if remote.ID == "" || remote.PointBudget < 0 || remote.DurationSeconds < 0 {
			skipped++
			metrics.CatalogSyncUpserts.WithLabelValues("skipped").Inc()
			log.Printf("[SYNC] ⚠️ Skipping invalid video (id=%q budget=%d)", remote.ID, remote.PointBudget)
			continue
		}

		local := models.Video{
			ID:              remote.ID,
			Slug:            remote.Slug,
			Title:           remote.Title,
			Description:     remote.Description,
			ThumbnailURL:    remote.ThumbnailURL,
			MediaRef:        remote.MediaRef,
			PointBudget:     remote.PointBudget,
			DurationSeconds: remote.DurationSeconds,
			Status:          remote.Status,
			PublishAt:       remote.PublishAt,
			CreatedAt:       remote.CreatedAt,
			UpdatedAt:       remote.UpdatedAt,
		}
		if remote.DeletedAt != nil {
			local.DeletedAt = gorm.DeletedAt{Time: *remote.DeletedAt, Valid: true}
		}

		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: syncAssignments,
		}).Create(&local).Error; err != nil {
			errorCount++
			metrics.CatalogSyncUpserts.WithLabelValues("error").Inc()
			log.Printf("[SYNC] ⚠️ Failed to upsert video %s: %v", remote.ID, err)
			continue
		}
		upsertCount++
		metrics.CatalogSyncUpserts.WithLabelValues("ok").Inc()
	}

	log.Printf("[SYNC] ✅ Synced %d video(s) (%d upserted, %d errors, %d skipped)",
		len(response.Videos), upsertCount, errorCount, skipped)
	return upsertCount, nil
}
