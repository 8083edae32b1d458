// handlers/watch_routes.go
package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"watch-reward-system/middleware"
	"watch-reward-system/models"
	"watch-reward-system/services"
	"watch-reward-system/utils"
)

// CompleteWatchRequest is the body of POST /watch/complete.
type CompleteWatchRequest struct {
	VideoID          string `json:"videoId" validate:"required,max=128"`
	WatchTimeSeconds *int   `json:"watchTimeSeconds" validate:"required,min=0,max=86400"`
}

type catalogItemResponse struct {
	ID                 string `json:"id"`
	Slug               string `json:"slug"`
	Title              string `json:"title"`
	ThumbnailURL       string `json:"thumbnailUrl"`
	PointBudget        int64  `json:"pointBudget"`
	PointBudgetDisplay string `json:"pointBudgetDisplay"`
	DurationSeconds    int    `json:"durationSeconds"`
	Watched            bool   `json:"watched"`
}

type videoDetailResponse struct {
	ID                 string  `json:"id"`
	Slug               string  `json:"slug"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	ThumbnailURL       string  `json:"thumbnailUrl"`
	PointBudget        int64   `json:"pointBudget"`
	PointBudgetDisplay string  `json:"pointBudgetDisplay"`
	DurationSeconds    int     `json:"durationSeconds"`
	MediaURL           string  `json:"mediaUrl"`
	CanWatchToday      bool    `json:"canWatchToday"`
	NextWatchTime      *string `json:"nextWatchTime,omitempty"`
}

type ledgerEntryResponse struct {
	ID           string `json:"id"`
	VideoID      string `json:"videoId,omitempty"`
	Delta        int64  `json:"delta"`
	Reason       string `json:"reason"`
	BalanceAfter int64  `json:"balanceAfter"`
	CreatedAt    string `json:"createdAt"`
}

// WatchHandler serves the watch-to-earn API.
type WatchHandler struct {
	Ledger   *services.LedgerService
	Catalog  *services.CatalogService
	validate *validator.Validate
}

func NewWatchHandler(ledger *services.LedgerService, catalog *services.CatalogService) *WatchHandler {
	return &WatchHandler{Ledger: ledger, Catalog: catalog, validate: validator.New()}
}

// SetupWatchRoutes mounts the watch routes. When auth is non-nil the balance
// stream authenticates with query tokens instead of gateway user headers.
func SetupWatchRoutes(app *fiber.App, h *WatchHandler, stream *services.BalanceStream, auth middleware.TokenValidator) {
	if stream != nil && auth != nil {
		app.Get("/watch/balance/stream", middleware.SSEAuthMiddleware(auth), stream.StreamBalanceSSE)
	}

	// 🔐 Everything below requires the gateway-forwarded user
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/watch-catalog", h.GetCatalog)
	secured.Get("/watch/balance", h.GetBalance)
	secured.Get("/watch/history", h.GetHistory)
	if stream != nil && auth == nil {
		secured.Get("/watch/balance/stream", stream.StreamBalanceSSE)
	}
	secured.Post("/watch/complete", h.CompleteWatch)
	secured.Get("/watch/:videoId", h.GetVideo)
}

func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, services.ErrVideoNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "video not found"})
	default:
		log.Printf("❌ [WATCH] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func (h *WatchHandler) GetCatalog(c *fiber.Ctx) error {
	items, err := h.Catalog.Catalog(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return serviceError(c, err)
	}

	out := make([]catalogItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, catalogItemResponse{
			ID:                 it.Video.ID,
			Slug:               it.Video.Slug,
			Title:              it.Video.Title,
			ThumbnailURL:       it.Video.ThumbnailURL,
			PointBudget:        it.Video.PointBudget,
			PointBudgetDisplay: utils.FormatPoints(it.Video.PointBudget),
			DurationSeconds:    it.Video.DurationSeconds,
			Watched:            it.Watched,
		})
	}
	return c.JSON(out)
}

func (h *WatchHandler) GetVideo(c *fiber.Ctx) error {
	detail, err := h.Catalog.VideoDetail(c.UserContext(), middleware.UserID(c), c.Params("videoId"))
	if err != nil {
		return serviceError(c, err)
	}

	v := detail.Video
	out := videoDetailResponse{
		ID:                 v.ID,
		Slug:               v.Slug,
		Title:              v.Title,
		Description:        v.Description,
		ThumbnailURL:       v.ThumbnailURL,
		PointBudget:        v.PointBudget,
		PointBudgetDisplay: utils.FormatPoints(v.PointBudget),
		DurationSeconds:    v.DurationSeconds,
		MediaURL:           detail.MediaURL,
		CanWatchToday:      detail.CanWatchToday,
	}
	if detail.NextWatchTime != nil {
		next := detail.NextWatchTime.UTC().Format(time.RFC3339)
		out.NextWatchTime = &next
	}
	return c.JSON(out)
}

func (h *WatchHandler) CompleteWatch(c *fiber.Ctx) error {
	var req CompleteWatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
			"cause": err.Error(),
		})
	}

	res, err := h.Ledger.CompleteWatch(c.UserContext(), middleware.UserID(c), req.VideoID, *req.WatchTimeSeconds)
	if err != nil {
		return serviceError(c, err)
	}

	if !res.Success {
		resp := fiber.Map{
			"success": false,
			"reason":  res.Reason,
		}
		if res.NextEligibleAt != nil {
			resp["nextEligibleAt"] = res.NextEligibleAt.UTC().Format(time.RFC3339)
		}
		return c.JSON(resp)
	}

	return c.JSON(fiber.Map{
		"success":           true,
		"pointsCredited":    res.PointsCredited,
		"newBalance":        res.NewBalance,
		"newBalanceDisplay": utils.FormatPoints(res.NewBalance),
	})
}

func (h *WatchHandler) GetBalance(c *fiber.Ctx) error {
	bal, err := h.Ledger.Balance(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"points":        bal.Points,
		"pointsDisplay": utils.FormatPoints(bal.Points),
		"watchedCount":  bal.WatchedCount,
	})
}

func (h *WatchHandler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.Ledger.History(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 20))
	if err != nil {
		return serviceError(c, err)
	}

	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntry(e))
	}
	return c.JSON(out)
}

func ledgerEntry(e models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:           e.ID,
		VideoID:      e.VideoID,
		Delta:        e.Delta,
		Reason:       string(e.Reason),
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
