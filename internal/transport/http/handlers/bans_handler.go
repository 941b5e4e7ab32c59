package handlers

import (
	"net/http"

	"github.com/kazuki388/Threads/internal/pkg/validate"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	banssvc "github.com/kazuki388/Threads/internal/services/bans"
	"github.com/kazuki388/Threads/internal/transport/http/dto"
	httperrors "github.com/kazuki388/Threads/internal/transport/http/errors"
)

type BansHandler struct {
	bans *banssvc.Service
}

func NewBansHandler(bans *banssvc.Service) *BansHandler {
	return &BansHandler{bans: bans}
}

// List serves GET /v1/bans, optionally filtered by ?thread= and ?channel=.
func (h *BansHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.bans == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "BAN_SERVICE_UNAVAILABLE",
			Message: "ban service is unavailable",
		})
		return
	}

	threadID := r.URL.Query().Get("thread")
	channelID := r.URL.Query().Get("channel")
	if threadID != "" && !validate.Snowflake(threadID) {
		httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{
			Code:    "VALIDATION",
			Message: "thread must be a snowflake ID",
		})
		return
	}
	if channelID != "" && !validate.Snowflake(channelID) {
		httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{
			Code:    "VALIDATION",
			Message: "channel must be a snowflake ID",
		})
		return
	}

	var (
		records []pgrepo.BanRecord
		err     error
	)
	if threadID != "" {
		records, err = h.bans.ListThread(r.Context(), channelID, threadID)
	} else {
		records, err = h.bans.ListAll(r.Context())
	}
	if err != nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "INTERNAL",
			Message: "failed to list bans",
		})
		return
	}

	out := dto.BansResponse{Bans: make([]dto.BanResponse, 0, len(records))}
	for _, rec := range records {
		out.Bans = append(out.Bans, dto.BanResponse{
			ChannelID: rec.ChannelID,
			ThreadID:  rec.ThreadID,
			UserID:    rec.UserID,
			BannedBy:  rec.BannedBy,
			Reason:    rec.Reason,
			CreatedAt: rec.CreatedAt,
		})
	}
	httperrors.Write(w, http.StatusOK, out)
}
