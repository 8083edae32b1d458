package cli

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gosimple/slug"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"watch-reward-system/config"
	"watch-reward-system/models"
)

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "catalog.toml", "TOML catalog to import")
	rootCmd.AddCommand(seedCmd)
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import videos from a TOML catalog file",
	Long: `Import videos for local and staging environments. Videos are matched by
slug, so re-running the same file updates rows instead of duplicating them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		videos, err := LoadCatalogFile(seedFile)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := openDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := Migrate(db); err != nil {
			return err
		}
		n, err := SeedVideos(cmd.Context(), db, videos)
		if err != nil {
			return err
		}
		log.Printf("✅ Seeded %d video(s) from %s", n, seedFile)
		return nil
	},
}

// CatalogFile is the seed file layout:
//
//	[[video]]
//	title = "Spring Promo"
//	media_ref = "r2://videos/spring.mp4"
//	point_budget = 200
//	duration_seconds = 600
type CatalogFile struct {
	Videos []SeedVideo `toml:"video"`
}

type SeedVideo struct {
	Slug            string     `toml:"slug"`
	Title           string     `toml:"title"`
	Description     string     `toml:"description"`
	ThumbnailURL    string     `toml:"thumbnail_url"`
	MediaRef        string     `toml:"media_ref"`
	PointBudget     int64      `toml:"point_budget"`
	DurationSeconds int        `toml:"duration_seconds"`
	Status          string     `toml:"status"`
	PublishAt       *time.Time `toml:"publish_at"`
}

// LoadCatalogFile parses and validates a seed file.
func LoadCatalogFile(path string) ([]models.Video, error) {
	var file CatalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.toVideos()
}

func (f CatalogFile) toVideos() ([]models.Video, error) {
	out := make([]models.Video, 0, len(f.Videos))
	seen := map[string]bool{}
	for i, sv := range f.Videos {
		if strings.TrimSpace(sv.Title) == "" {
			return nil, fmt.Errorf("video %d: title is required", i+1)
		}
		if sv.MediaRef == "" {
			return nil, fmt.Errorf("video %d (%s): media_ref is required", i+1, sv.Title)
		}
		if sv.PointBudget < 0 || sv.DurationSeconds < 0 {
			return nil, fmt.Errorf("video %d (%s): point_budget and duration_seconds must be non-negative", i+1, sv.Title)
		}

		status := sv.Status
		switch status {
		case "":
			status = models.VideoStatusPublished
			if sv.PublishAt != nil {
				status = models.VideoStatusScheduled
			}
		case models.VideoStatusDraft, models.VideoStatusScheduled, models.VideoStatusPublished:
		default:
			return nil, fmt.Errorf("video %d (%s): unknown status %q", i+1, sv.Title, sv.Status)
		}
		if status == models.VideoStatusScheduled && sv.PublishAt == nil {
			return nil, fmt.Errorf("video %d (%s): scheduled videos need publish_at", i+1, sv.Title)
		}

		s := sv.Slug
		if s == "" {
			s = slug.Make(sv.Title)
		}
		if seen[s] {
			return nil, fmt.Errorf("video %d: duplicate slug %q", i+1, s)
		}
		seen[s] = true

		out = append(out, models.Video{
			Slug:            s,
			Title:           sv.Title,
			Description:     sv.Description,
			ThumbnailURL:    sv.ThumbnailURL,
			MediaRef:        sv.MediaRef,
			PointBudget:     sv.PointBudget,
			DurationSeconds: sv.DurationSeconds,
			Status:          status,
			PublishAt:       sv.PublishAt,
		})
	}
	return out, nil
}

// SeedVideos upserts videos by slug.
func SeedVideos(ctx context.Context, db *gorm.DB, videos []models.Video) (int, error) {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range videos {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "description", "thumbnail_url", "media_ref",
					"point_budget", "duration_seconds", "status", "publish_at", "updated_at",
				}),
			}).Create(&videos[i]).Error; err != nil {
				return fmt.Errorf("upsert %s: %w", videos[i].Slug, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(videos), nil
}
