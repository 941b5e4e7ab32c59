package handlers

import (
	"context"
	"net/http"
	"time"

	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	statssvc "github.com/kazuki388/Threads/internal/services/stats"
	"github.com/kazuki388/Threads/internal/transport/http/dto"
	httperrors "github.com/kazuki388/Threads/internal/transport/http/errors"
)

// FeaturedLister exposes the persisted rotation outcomes.
type FeaturedLister interface {
	ListAll(ctx context.Context) ([]pgrepo.FeaturedRecord, error)
}

type StatsHandler struct {
	stats    *statssvc.Service
	featured FeaturedLister
	forums   []string
	tag      string
}

func NewStatsHandler(stats *statssvc.Service, featured FeaturedLister, forums []string, tag string) *StatsHandler {
	return &StatsHandler{stats: stats, featured: featured, forums: forums, tag: tag}
}

// List serves GET /v1/stats.
func (h *StatsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "STATS_SERVICE_UNAVAILABLE",
			Message: "stats service is unavailable",
		})
		return
	}

	records, err := h.stats.ListAll(r.Context())
	if err != nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "INTERNAL",
			Message: "failed to list post stats",
		})
		return
	}

	out := dto.StatsResponse{Posts: make([]dto.PostStatResponse, 0, len(records))}
	for _, rec := range records {
		out.Posts = append(out.Posts, dto.PostStatResponse{
			ThreadID:     rec.ThreadID,
			ForumID:      rec.ForumID,
			MessageCount: rec.MessageCount,
			LastActivity: rec.LastActivity,
		})
	}
	httperrors.Write(w, http.StatusOK, out)
}

// Featured serves GET /v1/featured with the live rotation thresholds and
// the latest featured thread per forum.
func (h *StatsHandler) Featured(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "STATS_SERVICE_UNAVAILABLE",
			Message: "stats service is unavailable",
		})
		return
	}

	posts := make([]dto.FeaturedPostResponse, 0)
	if h.featured != nil {
		records, err := h.featured.ListAll(r.Context())
		if err != nil {
			httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
				Code:    "INTERNAL",
				Message: "failed to list featured posts",
			})
			return
		}
		for _, rec := range records {
			posts = append(posts, dto.FeaturedPostResponse{
				ForumID:   rec.ForumID,
				ThreadID:  rec.ThreadID,
				RotatedAt: rec.RotatedAt,
			})
		}
	}

	th := h.stats.Thresholds()
	httperrors.Write(w, http.StatusOK, dto.FeaturedResponse{
		MessageThreshold: th.MessageThreshold,
		RotationInterval: th.RotationInterval.String(),
		LastAdjustment:   th.LastAdjustment.UTC().Format(time.RFC3339),
		Forums:           h.forums,
		Tag:              h.tag,
		Posts:            posts,
	})
}
