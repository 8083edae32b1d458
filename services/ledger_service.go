// services/ledger_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"watch-reward-system/eligibility"
	"watch-reward-system/metrics"
	"watch-reward-system/models"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrVideoNotFound = errors.New("video not found")
)

// ReasonAlreadyWatched is returned when the video was credited in the current window.
const ReasonAlreadyWatched = "already_watched"

// CompletionResult is the outcome of CompleteWatch.
type CompletionResult struct {
	Success        bool
	PointsCredited int64
	NewBalance     int64
	Reason         string
	NextEligibleAt *time.Time
	VideoID        string
}

// LedgerService is the only writer of watch records and user balances.
type LedgerService struct {
	DB     *gorm.DB
	Policy eligibility.Policy
	Clock  clockwork.Clock
}

func NewLedgerService(db *gorm.DB, policy eligibility.Policy, clock clockwork.Clock) *LedgerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LedgerService{DB: db, Policy: policy, Clock: clock}
}

// FindPublishedVideo resolves an id or slug to a published video.
func FindPublishedVideo(db *gorm.DB, key string) (*models.Video, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrVideoNotFound
	}
	var video models.Video
	err := db.Where("(id = ? OR slug = ?) AND status = ?", key, key, models.VideoStatusPublished).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", key, err)
	}
	return &video, nil
}

// LastCompletion returns the most recent completion time for the pair, or nil.
func (s *LedgerService) LastCompletion(ctx context.Context, userID, videoID string) (*time.Time, error) {
	return lastCompletion(s.DB.WithContext(ctx), userID, videoID)
}

func lastCompletion(db *gorm.DB, userID, videoID string) (*time.Time, error) {
	var rec models.WatchRecord
	err := db.Where("user_id = ? AND video_id = ?", userID, videoID).
		Order("completed_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec.CompletedAt, nil
}

// CompleteWatch credits the video's point budget at most once per eligibility
// window. Replays and concurrent duplicates get ReasonAlreadyWatched and leave
// no trace.
func (s *LedgerService) CompleteWatch(ctx context.Context, userID, videoID string, watchTimeSeconds int) (*CompletionResult, error) {
	started := time.Now()
	defer func() { metrics.CompletionLatency.Observe(time.Since(started).Seconds()) }()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}

	db := s.DB.WithContext(ctx)
	video, err := FindPublishedVideo(db, videoID)
	if err != nil {
		if errors.Is(err, ErrVideoNotFound) {
			metrics.WatchCompletions.WithLabelValues(metrics.ResultNotFound).Inc()
		} else {
			metrics.WatchCompletions.WithLabelValues(metrics.ResultError).Inc()
		}
		return nil, err
	}

	now := s.Clock.Now().UTC()
	last, err := lastCompletion(db, userID, video.ID)
	if err != nil {
		metrics.WatchCompletions.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("load last completion: %w", err)
	}
	if !s.Policy.CanWatch(last, now) {
		return s.alreadyWatched(userID, video.ID, now), nil
	}

	result := &CompletionResult{VideoID: video.ID}
	err = db.Transaction(func(tx *gorm.DB) error {
		record := models.WatchRecord{
			UserID:           userID,
			VideoID:          video.ID,
			WindowKey:        s.Policy.WindowKey(now),
			WatchTimeSeconds: watchTimeSeconds,
			CompletedAt:      now,
		}
		// The unique (user_id, video_id, window_key) index decides races.
		ins := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}, {Name: "window_key"}},
			DoNothing: true,
		}).Create(&record)
		if ins.Error != nil {
			return fmt.Errorf("insert watch record: %w", ins.Error)
		}
		if ins.RowsAffected == 0 {
			result.Reason = ReasonAlreadyWatched
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.UserBalance{UserID: userID}).Error; err != nil {
			return fmt.Errorf("ensure balance: %w", err)
		}
		if err := tx.Model(&models.UserBalance{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"points":        gorm.Expr("points + ?", video.PointBudget),
				"watched_count": gorm.Expr("watched_count + ?", 1),
			}).Error; err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}

		var bal models.UserBalance
		if err := tx.Where("user_id = ?", userID).First(&bal).Error; err != nil {
			return fmt.Errorf("reload balance: %w", err)
		}

		if err := tx.Create(&models.LedgerEntry{
			UserID:        userID,
			Delta:         video.PointBudget,
			Reason:        models.LedgerReasonWatchReward,
			VideoID:       video.ID,
			WatchRecordID: record.ID,
			BalanceAfter:  bal.Points,
			CreatedAt:     now,
		}).Error; err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}

		result.Success = true
		result.PointsCredited = video.PointBudget
		result.NewBalance = bal.Points
		return nil
	})
	if err != nil {
		metrics.WatchCompletions.WithLabelValues(metrics.ResultError).Inc()
		log.Printf("[LEDGER] ❌ completeWatch user=%s video=%s failed: %v", userID, video.ID, err)
		return nil, err
	}

	if !result.Success {
		return s.alreadyWatched(userID, video.ID, now), nil
	}

	metrics.WatchCompletions.WithLabelValues(metrics.ResultCredited).Inc()
	metrics.PointsCredited.Add(float64(result.PointsCredited))
	log.Printf("[LEDGER] 💰 Credited %d points: user=%s video=%s balance=%d",
		result.PointsCredited, userID, video.ID, result.NewBalance)
	return result, nil
}

func (s *LedgerService) alreadyWatched(userID, videoID string, now time.Time) *CompletionResult {
	next := s.Policy.NextEligibleAt(now)
	metrics.WatchCompletions.WithLabelValues(metrics.ResultAlreadyWatched).Inc()
	log.Printf("[LEDGER] ⏳ Already watched: user=%s video=%s next=%s", userID, videoID, next.Format(time.RFC3339))
	return &CompletionResult{
		Success:        false,
		Reason:         ReasonAlreadyWatched,
		NextEligibleAt: &next,
		VideoID:        videoID,
	}
}

// Balance returns the user's balance; users who never earned have zero.
func (s *LedgerService) Balance(ctx context.Context, userID string) (*models.UserBalance, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}
	var bal models.UserBalance
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// History returns the newest ledger entries for a user.
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var entries []models.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// EntryCursor is a position in a user's ledger. Entries sharing a timestamp
// are ordered by id.
type EntryCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the cursor positioned at e.
func CursorOf(e models.LedgerEntry) EntryCursor {
	return EntryCursor{CreatedAt: e.CreatedAt, ID: e.ID}
}

// EntriesAfter returns entries past the cursor, oldest first.
func (s *LedgerService) EntriesAfter(ctx context.Context, userID string, after EntryCursor) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("created_at > ? OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
