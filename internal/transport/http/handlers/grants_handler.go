package handlers

import (
	"net/http"

	"github.com/kazuki388/Threads/internal/pkg/validate"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	grantssvc "github.com/kazuki388/Threads/internal/services/grants"
	"github.com/kazuki388/Threads/internal/transport/http/dto"
	httperrors "github.com/kazuki388/Threads/internal/transport/http/errors"
)

type GrantsHandler struct {
	grants *grantssvc.Service
}

func NewGrantsHandler(grants *grantssvc.Service) *GrantsHandler {
	return &GrantsHandler{grants: grants}
}

// List serves GET /v1/grants, optionally filtered by ?thread=.
func (h *GrantsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.grants == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "GRANT_SERVICE_UNAVAILABLE",
			Message: "grant service is unavailable",
		})
		return
	}

	threadID := r.URL.Query().Get("thread")
	if threadID != "" && !validate.Snowflake(threadID) {
		httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{
			Code:    "VALIDATION",
			Message: "thread must be a snowflake ID",
		})
		return
	}

	var (
		records []pgrepo.GrantRecord
		err     error
	)
	if threadID != "" {
		records, err = h.grants.ListThread(r.Context(), threadID)
	} else {
		records, err = h.grants.ListAll(r.Context())
	}
	if err != nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
			Code:    "INTERNAL",
			Message: "failed to list grants",
		})
		return
	}

	out := dto.GrantsResponse{Grants: make([]dto.GrantResponse, 0, len(records))}
	for _, rec := range records {
		out.Grants = append(out.Grants, dto.GrantResponse{
			ThreadID:  rec.ThreadID,
			UserID:    rec.UserID,
			GrantedBy: rec.GrantedBy,
			CreatedAt: rec.CreatedAt,
		})
	}
	httperrors.Write(w, http.StatusOK, out)
}
