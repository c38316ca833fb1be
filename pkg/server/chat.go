package server

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/sribot/pkg/usecase/chat"
)

type chatRequest struct {
	Message  string `json:"message" validate:"required"`
	UserID   string `json:"user_id" validate:"required,max=128"`
	ThreadID string `json:"thread_id,omitempty" validate:"omitempty,max=128"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "message and user_id are required")
		return
	}

	result := s.chat.Chat(r.Context(), chat.ChatInput{
		ThreadID: req.ThreadID,
		UserID:   req.UserID,
		Message:  req.Message,
	})
	writeJSON(w, r, http.StatusOK, result)
}
