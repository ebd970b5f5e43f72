package activity

import (
	"log/slog"
	"net/http"
	"time"

	"activity-guard/internal/handler/http/respond"
	"activity-guard/internal/observability/logging"
	actUC "activity-guard/internal/usecase/activity"
)

// SuspiciousHandler serves GET /activity/suspicious: the anomaly rules
// evaluated at request time.
type SuspiciousHandler struct {
	Finder SuspiciousFinder
	Clock  interface{ Now() time.Time }
	Logger *slog.Logger
}

func (h SuspiciousHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContextOr(r.Context(), h.Logger)
	now := h.Clock.Now()

	flags, err := h.Finder.FindSuspicious(r.Context(), now)
	if err != nil {
		writeError(w, logger, now, nil, &actUC.InfrastructureError{Op: "find suspicious", Err: err})
		return
	}

	out := make([]suspiciousDTO, 0, len(flags))
	for _, f := range flags {
		out = append(out, suspiciousDTO{UserID: f.UserID, Reason: string(f.Reason), Count: f.Count})
	}
	respond.JSON(w, http.StatusOK, out)
}
