package api

import (
	"errors"
	"net/http"

	"github.com/npezzotti/go-dm/internal/ai"
)

type GenerateRequest struct {
	Messages []ai.Turn `json:"messages" validate:"required,min=1,dive"`
}

type GenerateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Reply   string `json:"reply"`
}

func (s *GoChatApp) generateReply(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if errResp := s.decodeBody(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, NewValidationError("messages must be a non-empty array"))
		return
	}

	reply, err := s.complete(r, req.Messages)
	if err != nil {
		errResp := NewInternalServerError(err)
		errResp.Message = "ai request failed"
		if errors.Is(err, ai.ErrNotConfigured) {
			errResp.Message = "ai completion is not configured"
		}
		s.writeError(w, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, GenerateResponse{
		Success: true,
		Message: "reply generated",
		Reply:   reply,
	})
}

func (s *GoChatApp) complete(r *http.Request, turns []ai.Turn) (string, error) {
	if s.completer == nil {
		return "", ai.ErrNotConfigured
	}

	return s.completer.Complete(r.Context(), turns)
}
