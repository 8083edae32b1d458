// services/catalog_service.go
package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"watch-reward-system/eligibility"
	"watch-reward-system/metrics"
	"watch-reward-system/models"
	"watch-reward-system/utils"
)

// CatalogItem is one row of the watch catalog.
type CatalogItem struct {
	Video   models.Video
	Watched bool // credited in the current window
}

// VideoDetail is a single video with the user's eligibility.
type VideoDetail struct {
	Video         models.Video
	MediaURL      string
	CanWatchToday bool
	NextWatchTime *time.Time // set only when CanWatchToday is false
}

type CatalogService struct {
	DB     *gorm.DB
	Policy eligibility.Policy
	Clock  clockwork.Clock
	Media  utils.MediaResolver
}

func NewCatalogService(db *gorm.DB, policy eligibility.Policy, clock clockwork.Clock, media utils.MediaResolver) *CatalogService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if media == nil {
		media = utils.PassthroughResolver{}
	}
	return &CatalogService{DB: db, Policy: policy, Clock: clock, Media: media}
}

// Catalog lists published videos, newest first, flagging the ones the user
// has already been credited for in the current window.
func (s *CatalogService) Catalog(ctx context.Context, userID string) ([]CatalogItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}
	db := s.DB.WithContext(ctx)

	var videos []models.Video
	if err := db.Where("status = ?", models.VideoStatusPublished).
		Order("created_at DESC").
		Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	var watchedIDs []string
	if err := db.Model(&models.WatchRecord{}).
		Where("user_id = ? AND window_key = ?", userID, s.Policy.WindowKey(s.Clock.Now())).
		Pluck("video_id", &watchedIDs).Error; err != nil {
		return nil, fmt.Errorf("list watched: %w", err)
	}
	watched := make(map[string]bool, len(watchedIDs))
	for _, id := range watchedIDs {
		watched[id] = true
	}

	items := make([]CatalogItem, 0, len(videos))
	for _, v := range videos {
		items = append(items, CatalogItem{Video: v, Watched: watched[v.ID]})
	}
	return items, nil
}

// VideoDetail loads a published video by id or slug and resolves its media URL.
func (s *CatalogService) VideoDetail(ctx context.Context, userID, key string) (*VideoDetail, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}
	db := s.DB.WithContext(ctx)

	video, err := FindPublishedVideo(db, key)
	if err != nil {
		return nil, err
	}

	mediaURL, err := s.Media.ResolveMediaURL(ctx, video.MediaRef)
	if err != nil {
		return nil, fmt.Errorf("resolve media for %s: %w", video.ID, err)
	}

	last, err := lastCompletion(db, userID, video.ID)
	if err != nil {
		return nil, fmt.Errorf("load last completion: %w", err)
	}

	now := s.Clock.Now()
	detail := &VideoDetail{
		Video:         *video,
		MediaURL:      mediaURL,
		CanWatchToday: s.Policy.CanWatch(last, now),
	}
	if !detail.CanWatchToday {
		next := s.Policy.NextEligibleAt(now)
		detail.NextWatchTime = &next
	}
	return detail, nil
}

// PublishDue moves scheduled videos whose publish time has passed to published.
func (s *CatalogService) PublishDue(ctx context.Context) (int, error) {
	now := s.Clock.Now().UTC()

	var videos []models.Video
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND publish_at <= ?", models.VideoStatusScheduled, now).
		Find(&videos).Error; err != nil {
		return 0, fmt.Errorf("find scheduled videos: %w", err)
	}

	published := 0
	for _, v := range videos {
		res := s.DB.WithContext(ctx).Model(&models.Video{}).
			Where("id = ? AND status = ?", v.ID, models.VideoStatusScheduled).
			Updates(map[string]interface{}{
				"status":     models.VideoStatusPublished,
				"publish_at": nil,
			})
		if res.Error != nil {
			log.Printf("[Scheduler] Failed to publish video %s: %v", v.ID, res.Error)
			continue
		}
		if res.RowsAffected == 1 {
			published++
			metrics.VideosPublished.Inc()
			log.Printf("✅ Auto-published video: %s", v.Title)
		}
	}
	return published, nil
}
