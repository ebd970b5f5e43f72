package activity

import (
	"log/slog"
	"net/http"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/handler/http/auth"
	"activity-guard/internal/handler/http/respond"
	"activity-guard/internal/observability/logging"
	actUC "activity-guard/internal/usecase/activity"
)

// ReplayCheckHandler serves POST /activity/replay-check. A passing check
// claims the action, so an immediate second check is a replay.
type ReplayCheckHandler struct {
	Svc    Service
	Logger *slog.Logger
}

func (h ReplayCheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContextOr(r.Context(), h.Logger)
	denied := false

	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, auth.MsgMissingToken)
		return
	}

	var req replayCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, logger, h.Svc.Now(), &denied, err)
		return
	}

	res, err := h.Svc.CheckReplay(r.Context(), actUC.ReplayInput{
		UserID:     userID,
		Action:     entity.Action(req.Action),
		ClientTime: req.ClientTime,
	})
	if err != nil {
		writeError(w, logger, h.Svc.Now(), &denied, err)
		return
	}

	respond.JSON(w, http.StatusOK, replayCheckResponse{
		Allowed:    true,
		ServerTime: respond.Timestamp(res.ServerTime),
	})
}
