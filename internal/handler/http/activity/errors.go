package activity

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"activity-guard/internal/handler/http/auth"
	"activity-guard/internal/handler/http/respond"
	actUC "activity-guard/internal/usecase/activity"
)

// retryAfterUnavailable is the Retry-After hint sent with 503 answers.
const retryAfterUnavailable = time.Second

// decodeJSON reads one JSON object from r into dst. Malformed bodies become
// a ValidationError so they are answered like any other invalid input.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &typeErr):
			return &actUC.ValidationError{
				Message: "Invalid request",
				Issues: []actUC.Issue{{
					Path:    typeErr.Field,
					Message: "expected " + typeErr.Type.String() + ", got " + typeErr.Value,
				}},
			}
		case errors.As(err, &maxErr):
			return &actUC.ValidationError{
				Message: "Invalid request",
				Issues:  []actUC.Issue{{Message: "request body too large"}},
			}
		case errors.Is(err, io.EOF):
			return &actUC.ValidationError{
				Message: "Invalid request",
				Issues:  []actUC.Issue{{Message: "request body is required"}},
			}
		default:
			return &actUC.ValidationError{
				Message: "Invalid request",
				Issues:  []actUC.Issue{{Message: "malformed JSON"}},
			}
		}
	}
	return nil
}

func issuesDTO(issues []actUC.Issue) []issueDTO {
	if len(issues) == 0 {
		return nil
	}
	out := make([]issueDTO, 0, len(issues))
	for _, is := range issues {
		out = append(out, issueDTO{Path: is.Path, Message: is.Message})
	}
	return out
}

// writeError maps a use-case error to its HTTP answer. allowed is non-nil on
// the replay-check route, where every rejection carries "allowed": false.
func writeError(w http.ResponseWriter, logger *slog.Logger, now time.Time, allowed *bool, err error) {
	var (
		verr     *actUC.ValidationError
		rejected *actUC.ReplayRejectedError
		limited  *actUC.RateLimitedError
		infra    *actUC.InfrastructureError
	)

	switch {
	case errors.Is(err, actUC.ErrUnauthorized):
		respond.Message(w, http.StatusUnauthorized, auth.MsgMissingToken)

	case errors.As(err, &verr):
		respond.JSON(w, http.StatusBadRequest, rejectionResponse{
			Allowed:    allowed,
			Message:    verr.Message,
			Issues:     issuesDTO(verr.Issues),
			ServerTime: respond.Timestamp(now),
		})

	case errors.As(err, &rejected):
		code := http.StatusConflict
		body := rejectionResponse{
			Allowed:    allowed,
			Message:    rejected.Error(),
			ServerTime: respond.Timestamp(rejected.ServerTime),
		}
		if rejected.Reason == actUC.ReplayDrift {
			code = http.StatusBadRequest
			drift := rejected.DriftMs
			body.DriftMs = &drift
		}
		respond.JSON(w, code, body)

	case errors.As(err, &limited):
		seconds := int64((limited.RetryAfter + time.Second - 1) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limited.Limit))
		w.Header().Set("X-RateLimit-Remaining", "0")
		respond.JSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Success:            false,
			Message:            limited.Error(),
			ServerTime:         respond.Timestamp(limited.ServerTime),
			ActionsInLast10Sec: limited.Count,
		})

	case errors.As(err, &infra):
		respond.Unavailable(w, logger, now, retryAfterUnavailable, err)

	default:
		respond.SafeError(w, logger, http.StatusInternalServerError, err)
	}
}
