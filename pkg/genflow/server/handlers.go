package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flowmarket/genflow/pkg/genflow"
	"github.com/flowmarket/genflow/pkg/genflow/conversation"
	"github.com/flowmarket/genflow/pkg/genflow/credit"
	gferrors "github.com/flowmarket/genflow/pkg/genflow/errors"
)

// maxMessageLength caps chat message size before generation.
const maxMessageLength = 2000

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// handleChat accepts a user message and returns the generation result.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID string) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Message == "" {
		writeError(w, "Message is required", http.StatusBadRequest)
		return
	}
	if len(req.Message) > maxMessageLength {
		writeError(w, "Message is too long (max 2000 characters)", http.StatusBadRequest)
		return
	}

	// Pre-check so doomed requests never reach the provider. The debit
	// itself stays conditional at the ledger, so a concurrent spend
	// between this check and the debit still cannot overdraw.
	balance, err := s.ledger.Balance(r.Context(), userID)
	if err != nil && !errors.Is(err, credit.ErrUserNotFound) {
		s.logger.Error("balance check failed", slog.String("error", err.Error()))
		writeError(w, "Failed to generate workflow", http.StatusInternalServerError)
		return
	}
	if balance < s.gen.Cost() {
		writeError(w, "Insufficient credits", http.StatusBadRequest)
		return
	}

	result, err := s.gen.Generate(r.Context(), userID, req.Message, req.ConversationID)
	if err != nil {
		s.writeGenerationError(w, err, "Failed to generate workflow")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListConversations returns the user's conversation history.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, userID string) {
	conversations, err := s.store.ListByUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("list conversations failed", slog.String("error", err.Error()))
		writeError(w, "Failed to fetch conversations", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]*conversation.Conversation{
		"conversations": conversations,
	})
}

// handleRegenerate re-runs generation for an existing conversation.
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	balance, err := s.ledger.Balance(r.Context(), userID)
	if err != nil && !errors.Is(err, credit.ErrUserNotFound) {
		s.logger.Error("balance check failed", slog.String("error", err.Error()))
		writeError(w, "Failed to regenerate workflow", http.StatusInternalServerError)
		return
	}
	if balance < s.gen.Cost() {
		writeError(w, "Insufficient credits", http.StatusBadRequest)
		return
	}

	result, err := s.gen.Regenerate(r.Context(), userID, id)
	if err != nil {
		s.writeGenerationError(w, err, "Failed to regenerate workflow")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleDeleteConversation removes a conversation and its messages.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if err := s.store.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, "Conversation not found", http.StatusNotFound)
			return
		}
		s.logger.Error("delete conversation failed", slog.String("error", err.Error()))
		writeError(w, "Failed to delete conversation", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeGenerationError maps generation errors to HTTP statuses:
// unknown conversation 404; bad input or insufficient credits 400;
// provider auth or configuration trouble 503; rate limiting by the
// provider 429; everything else 500 behind a generic message.
func (s *Server) writeGenerationError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, genflow.ErrConversationNotFound):
		writeError(w, "Conversation not found", http.StatusNotFound)
	case errors.Is(err, genflow.ErrEmptyPrompt),
		errors.Is(err, genflow.ErrEmptyConversation),
		errors.Is(err, genflow.ErrNoUserMessage):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, credit.ErrInsufficientCredits):
		writeError(w, "Insufficient credits", http.StatusBadRequest)
	default:
		var provErr *gferrors.ProviderError
		if errors.As(err, &provErr) {
			switch provErr.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				writeError(w, "AI service temporarily unavailable", http.StatusServiceUnavailable)
				return
			case http.StatusTooManyRequests:
				writeError(w, "AI service rate limit reached. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		s.logger.Error("generation failed", slog.String("error", err.Error()))
		writeError(w, fallback, http.StatusInternalServerError)
	}
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing more to do.
		return
	}
}

// writeError sends a JSON formatted error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
