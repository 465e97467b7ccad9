package slack

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	goslack "github.com/slack-go/slack"

	"github.com/wisbric/kubeops/pkg/chatapi"
	"github.com/wisbric/kubeops/pkg/queue"
)

// Handler provides the HTTP handlers that translate Slack's slash-command
// and block-action payloads into chatapi.Request calls against the same
// Gate the HTTP front end uses. Signing-secret verification precedes all
// processing; nothing here bypasses classification, quota, or bounds
// checking.
type Handler struct {
	gate          *chatapi.Gate
	identities    *IdentityMap
	notifier      *Notifier
	logger        *slog.Logger
	signingSecret string
}

// NewHandler creates a Slack Handler.
func NewHandler(gate *chatapi.Gate, identities *IdentityMap, notifier *Notifier, logger *slog.Logger, signingSecret string) *Handler {
	return &Handler{
		gate:          gate,
		identities:    identities,
		notifier:      notifier,
		logger:        logger,
		signingSecret: signingSecret,
	}
}

// Routes returns a chi.Router with the Slack webhook routes, guarded by
// signing-secret verification.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(VerifyMiddleware(h.signingSecret))
	r.Post("/commands", h.handleCommands)
	r.Post("/interactions", h.handleInteractions)
	return r
}

// resolveIdentity maps a Slack platform user ID to a chatapi.Request's
// UserID/TokenClaimsAdmin, or reports the caller is not on the allow-list.
// This is a narrower, explicitly-labeled trust boundary: there is no OIDC
// bearer token available on this path.
func (h *Handler) resolveIdentity(slackUserID string) (userID string, admin bool, ok bool) {
	return h.identities.Lookup(slackUserID)
}

func (h *Handler) handleCommands(w http.ResponseWriter, r *http.Request) {
	cmd, err := goslack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "invalid command", http.StatusBadRequest)
		return
	}

	h.logger.Info("slack slash command received",
		"command", cmd.Command, "text", cmd.Text, "user", cmd.UserID, "channel", cmd.ChannelID)

	userID, admin, ok := h.resolveIdentity(cmd.UserID)
	if !ok {
		respondEphemeral(w, "You are not authorized to use this command. Ask an admin to add you to SLACK_USER_MAP.")
		return
	}

	h.dispatch(w, r, userID, admin, cmd.Text)
}

// handleInteractions handles block-action button clicks, specifically the
// "confirm" button attached to a DRY_RUN preview, which resends the
// original command text as a fresh request through the gate.
func (h *Handler) handleInteractions(w http.ResponseWriter, r *http.Request) {
	payload := r.FormValue("payload")
	if payload == "" {
		http.Error(w, "missing payload", http.StatusBadRequest)
		return
	}

	var ic goslack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &ic); err != nil {
		h.logger.Error("parsing slack interaction callback", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if ic.Type != goslack.InteractionTypeBlockActions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, admin, ok := h.resolveIdentity(ic.User.ID)
	if !ok {
		respondEphemeral(w, "You are not authorized to use this command. Ask an admin to add you to SLACK_USER_MAP.")
		return
	}

	for _, action := range ic.ActionCallback.BlockActions {
		if action.ActionID == "confirm_command" {
			h.dispatch(w, r, userID, admin, action.Value)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

// dispatch funnels userID/admin/text into the same Gate the HTTP front end
// uses and renders the response back into Slack blocks.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, userID string, admin bool, text string) {
	resp, gerr := h.gate.Handle(r.Context(), chatapi.Request{
		UserID:           userID,
		TokenClaimsAdmin: admin,
		Message:          text,
		Source:           queue.SourceSlack,
	})
	if gerr != nil {
		respondEphemeral(w, gerr.Message)
		return
	}
	respondBlocks(w, "ephemeral", ResponseBlocks(resp))
}

func respondEphemeral(w http.ResponseWriter, text string) {
	respondJSON(w, map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondBlocks(w http.ResponseWriter, responseType string, blocks []goslack.Block) {
	resp := map[string]any{
		"response_type": responseType,
		"blocks":        blocks,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
