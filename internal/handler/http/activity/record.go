package activity

import (
	"log/slog"
	"net/http"
	"strconv"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/handler/http/auth"
	"activity-guard/internal/handler/http/middleware"
	"activity-guard/internal/handler/http/respond"
	"activity-guard/internal/observability/logging"
	actUC "activity-guard/internal/usecase/activity"
)

// RecordHandler serves POST /activity.
type RecordHandler struct {
	Svc    Service
	Logger *slog.Logger
}

func (h RecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContextOr(r.Context(), h.Logger)

	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, auth.MsgMissingToken)
		return
	}

	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, logger, h.Svc.Now(), nil, err)
		return
	}

	res, err := h.Svc.Record(r.Context(), actUC.RecordInput{
		UserID:     userID,
		Action:     entity.Action(req.Action),
		Meta:       req.Meta,
		IPAddress:  middleware.ClientIPFromContext(r.Context()),
		ClientTime: req.ClientTime,
	})
	if err != nil {
		writeError(w, logger, h.Svc.Now(), nil, err)
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Limit-res.ActionsInWindow, 0)))
	respond.JSON(w, http.StatusOK, recordResponse{
		Success:            true,
		ServerTime:         respond.Timestamp(res.ServerTime),
		ActionsInLast10Sec: res.ActionsInWindow,
		EventID:            res.EventID,
	})
}
