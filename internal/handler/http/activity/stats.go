package activity

import (
	"log/slog"
	"net/http"
	"time"

	"activity-guard/internal/handler/http/respond"
	"activity-guard/internal/observability/logging"
)

// StatsHandler serves GET /activity/stats.
type StatsHandler struct {
	Svc    Service
	Logger *slog.Logger
}

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContextOr(r.Context(), h.Logger)

	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, logger, h.Svc.Now(), nil, err)
		return
	}

	body := statsResponse{
		ServerTime:                respond.Timestamp(stats.ServerTime),
		TotalActions:              stats.TotalActions,
		ActionsPerMinuteLast10Min: make([]minuteCountDTO, 0, len(stats.ActionsPerMinute)),
	}
	if stats.MostCommonAction != "" {
		action := string(stats.MostCommonAction)
		count := stats.MostCommonActionCount
		body.MostCommonAction, body.MostCommonActionCount = &action, &count
	}
	if stats.MostActiveUser != "" {
		user := stats.MostActiveUser
		count := stats.MostActiveUserCount
		body.MostActiveUser, body.MostActiveUserCount = &user, &count
	}
	for _, m := range stats.ActionsPerMinute {
		body.ActionsPerMinuteLast10Min = append(body.ActionsPerMinuteLast10Min, minuteCountDTO{
			Minute: respond.Timestamp(m.Minute.Truncate(time.Minute)),
			Count:  m.Count,
		})
	}
	respond.JSON(w, http.StatusOK, body)
}
