package handlers

import (
	"net/http"
	"strconv"

	actionlogsvc "github.com/kazuki388/Threads/internal/services/actionlog"
	"github.com/kazuki388/Threads/internal/transport/http/dto"
	httperrors "github.com/kazuki388/Threads/internal/transport/http/errors"
)

type ActionsHandler struct {
	actions *actionlogsvc.Service
}

func NewActionsHandler(actions *actionlogsvc.Service) *ActionsHandler {
	return &ActionsHandler{actions: actions}
}

// List serves GET /v1/actions?limit=.
func (h *ActionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.actions == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "ACTION_LOG_UNAVAILABLE",
			Message: "action log service is unavailable",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{
				Code:    "VALIDATION",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	records, err := h.actions.ListRecent(r.Context(), limit)
	if err != nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "INTERNAL",
			Message: "failed to list actions",
		})
		return
	}

	out := dto.ActionsResponse{Actions: make([]dto.ActionResponse, 0, len(records))}
	for _, rec := range records {
		out.Actions = append(out.Actions, dto.ActionResponse{
			ID:         rec.ID.String(),
			Action:     rec.Action,
			ChannelID:  rec.ChannelID,
			ThreadID:   rec.ThreadID,
			ThreadName: rec.ThreadName,
			ActorID:    rec.ActorID,
			TargetID:   rec.TargetID,
			Reason:     rec.Reason,
			Result:     rec.Result,
			Details:    rec.Details,
			CreatedAt:  rec.CreatedAt,
		})
	}
	httperrors.Write(w, http.StatusOK, out)
}
