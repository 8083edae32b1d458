// models/video.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const (
	VideoStatusDraft     = "draft"
	VideoStatusScheduled = "scheduled"
	VideoStatusPublished = "published"
)

// MediaRefR2Prefix marks media stored in our R2 bucket ("r2://videos/abc.mp4").
const MediaRefR2Prefix = "r2://"

// Video is a watchable ad/video. Immutable once published.
type Video struct {
	ID              string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Slug            string `json:"slug" gorm:"uniqueIndex;type:varchar(160)"`
	Title           string `json:"title" gorm:"not null"`
	Description     string `json:"description"`
	ThumbnailURL    string `json:"thumbnail_url"`
	MediaRef        string `json:"media_ref" gorm:"not null"` // https URL or r2://<key>
	PointBudget     int64  `json:"point_budget" gorm:"not null;default:0;check:point_budget >= 0"`
	DurationSeconds int    `json:"duration_seconds" gorm:"not null;default:0;check:duration_seconds >= 0"`

	// 🎛️ Publishing state
	Status    string     `json:"status" gorm:"type:varchar(16);default:'draft';index"` // draft | scheduled | published
	PublishAt *time.Time `json:"publish_at,omitempty"`                                 // only used if scheduled

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate fills the id and derives the slug from the title.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Slug == "" {
		v.Slug = VideoSlug(v.Title, v.ID)
	}
	if v.Status == "" {
		v.Status = VideoStatusDraft
	}
	return nil
}

// VideoSlug builds a URL slug; the id suffix keeps equal titles apart.
func VideoSlug(title, id string) string {
	base := slug.Make(title)
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	if base == "" {
		return short
	}
	return base + "-" + short
}

// IsR2Media reports whether MediaRef points into the R2 bucket.
func (v *Video) IsR2Media() bool {
	return strings.HasPrefix(v.MediaRef, MediaRefR2Prefix)
}
