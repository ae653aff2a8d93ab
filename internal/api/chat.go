package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// maxChatBodyBytes caps the request body for POST /chat.
const maxChatBodyBytes = 64 << 10

// maxChatMessageLength is the maximum allowed message length in bytes.
const maxChatMessageLength = 4000

// Answerer answers a question over the knowledge base.
// *agent.Agent satisfies this through its Answer method.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// chatHandler serves POST /chat.
type chatHandler struct {
	agent  Answerer
	logger log.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return
	}
	if len(message) > maxChatMessageLength {
		writeError(w, http.StatusBadRequest, "message_too_long", "message must be 4000 characters or fewer", h.logger)
		return
	}

	answer, err := h.agent.Answer(r.Context(), message)
	if err != nil {
		h.logger.Error("answering chat message", "error", err, "message_len", len(message))
		writeError(w, http.StatusInternalServerError, "chat_failed", "failed to generate answer", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: answer}, h.logger)
}
