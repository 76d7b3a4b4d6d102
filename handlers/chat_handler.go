package handlers

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/quorumhq/chatgate/app"
	"github.com/quorumhq/chatgate/middleware"
	"github.com/quorumhq/chatgate/services/providers"
	"github.com/quorumhq/chatgate/services/secfilter"
	"github.com/quorumhq/chatgate/utils"
	"go.uber.org/zap"
)

// ChatMessageRequest is an outbound chat message
type ChatMessageRequest struct {
	Message  string `json:"message" validate:"required"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// ChatMessageResponse is a successful provider reply
type ChatMessageResponse struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// ChatMessageHandler runs the content filter over the outbound message
// and dispatches to a provider only when the message passes. A veto is
// final for this message: no partial sends, no redaction. The response
// names the matched category but never echoes the matched text.
func ChatMessageHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, ok := middleware.GetAuth(r.Context())
		if !ok {
			utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		var req ChatMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteBadRequest(w, "Invalid request body", nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			utils.WriteBadRequest(w, err.Error(), toDetails(utils.GetValidationFields(err)))
			return
		}

		result := secfilter.Filter(req.Message)
		if result.Blocked {
			flags := secfilter.FlagStrings(result.Flags)
			if err := deps.Activity.LogMessageBlocked(auth, flags,
				chimiddleware.GetReqID(r.Context()), clientIP(r), r.UserAgent()); err != nil {
				deps.Logger.Error("failed to record blocked message", zap.Error(err))
			}
			deps.Logger.Info("message blocked by content filter",
				zap.String("user_id", auth.UserID.String()),
				zap.String("reason", result.Reason),
				zap.Strings("flags", flags))
			utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse{
				Error:   "filter_blocked",
				Message: "Message blocked by content security filter",
				Details: map[string]interface{}{
					"reason": result.Reason,
					"flags":  flags,
				},
			})
			return
		}

		provider, err := resolveProvider(deps.Providers, req.Provider)
		if err != nil {
			utils.WriteError(w, http.StatusBadGateway, "No chat provider available", nil)
			return
		}

		resp, err := provider.ChatCompletion(r.Context(), &providers.ChatRequest{
			Model: req.Model,
			Messages: []providers.Message{
				{Role: "user", Content: req.Message},
			},
		})
		if err != nil {
			deps.Logger.Error("provider dispatch failed",
				zap.String("provider", provider.Name()),
				zap.Error(err))
			utils.WriteError(w, http.StatusBadGateway, "Chat provider request failed", nil)
			return
		}

		if err := deps.Activity.LogMessageSent(auth, provider.Name(),
			chimiddleware.GetReqID(r.Context()), clientIP(r), r.UserAgent()); err != nil {
			deps.Logger.Warn("failed to record sent message", zap.Error(err))
		}

		utils.WriteOK(w, ChatMessageResponse{
			Content:  resp.Content,
			Model:    resp.Model,
			Provider: resp.Provider,
		})
	}
}

func resolveProvider(registry *providers.Registry, name string) (providers.Provider, error) {
	if name != "" {
		if provider, ok := registry.Get(name); ok {
			return provider, nil
		}
	}
	return registry.Default()
}
