package httpserver

import (
	"net/http"
	"time"

	"github.com/wisbric/kubeops/internal/auth"
	"github.com/wisbric/kubeops/pkg/chatapi"
	"github.com/wisbric/kubeops/pkg/execstate"
	"github.com/wisbric/kubeops/pkg/queue"
)

// chatRequest is the POST /chat JSON body.
type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

// MountChat wires POST /chat onto the server's authenticated chat
// sub-router. Every front end funnels through the same Gate.
func MountChat(s *Server, gate *chatapi.Gate) {
	s.ChatRouter.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !DecodeAndValidate(w, r, &req) {
			return
		}

		id := auth.FromContext(r.Context())
		resp, gerr := gate.Handle(r.Context(), chatapi.Request{
			UserID:           id.Subject,
			TokenClaimsAdmin: id.AdminClaim,
			Message:          req.Message,
			Source:           queue.SourceHTTP,
		})
		if gerr != nil {
			RespondError(w, statusForGateError(gerr.Code), string(gerr.Code), gerr.Message)
			return
		}

		Respond(w, http.StatusOK, resp)
	})
}

func statusForGateError(code chatapi.ErrorCode) int {
	switch code {
	case chatapi.ErrAuthRequired:
		return http.StatusUnauthorized
	case chatapi.ErrAuthForbidden:
		return http.StatusForbidden
	case chatapi.ErrValidation, chatapi.ErrUser:
		return http.StatusBadRequest
	case chatapi.ErrQuotaExceeded:
		return http.StatusTooManyRequests
	case chatapi.ErrTimeout:
		return http.StatusGatewayTimeout
	case chatapi.ErrKubernetes, chatapi.ErrSystem:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// statusResponse is the JSON shape for GET /internal/status.
type statusResponse struct {
	Timestamp time.Time     `json:"timestamp"`
	System    systemSummary `json:"system"`
}

type systemSummary struct {
	WorkerStatus   string                    `json:"workerStatus"`
	QueueLength    int                       `json:"queueLength"`
	CurrentCommand *execstate.CurrentCommand `json:"currentCommand,omitempty"`
	LastResult     *execstate.Result         `json:"lastResult,omitempty"`
	MutexStatus    string                    `json:"mutex,omitempty"`
	UptimeMs       int64                     `json:"uptimeMs,omitempty"`
	LastError      string                    `json:"lastError,omitempty"`
}

// MountInternalStatus wires GET /internal/status (any authenticated caller).
func MountInternalStatus(s *Server, state *execstate.Registry) {
	s.InternalRouter.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		snap := state.Snapshot()
		Respond(w, http.StatusOK, statusResponse{
			Timestamp: time.Now(),
			System: systemSummary{
				WorkerStatus:   string(snap.WorkerStatus),
				QueueLength:    snap.QueueLength,
				CurrentCommand: snap.Current,
				LastResult:     snap.LastResult,
			},
		})
	})
}

// MountInternalHealth wires GET /internal/health onto the admin-only
// sub-router (see NewServer), satisfying the 403 requirement for
// non-admin callers.
func MountInternalHealth(s *Server, state *execstate.Registry) {
	s.InternalAdminRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := state.Snapshot()
		Respond(w, http.StatusOK, statusResponse{
			Timestamp: time.Now(),
			System: systemSummary{
				WorkerStatus:   string(snap.WorkerStatus),
				QueueLength:    snap.QueueLength,
				CurrentCommand: snap.Current,
				LastResult:     snap.LastResult,
				MutexStatus:    string(snap.MutexStatus),
				UptimeMs:       snap.Uptime.Milliseconds(),
				LastError:      snap.LastError,
			},
		})
	})
}
