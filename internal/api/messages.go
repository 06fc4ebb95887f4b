package api

import (
	"net/http"

	"github.com/npezzotti/go-dm/internal/conversation"
	"github.com/npezzotti/go-dm/internal/types"
)

// maxSendBody allows a base64 encoded image at the upload limit.
const maxSendBody = 8 << 20

type PartnersResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	Users          []types.User   `json:"users"`
	UnseenMessages map[string]int `json:"unseenMessages"`
}

type MessagesResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Messages []types.Message `json:"messages"`
}

type SendMessageResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	NewMessage types.Message `json:"newMessage"`
}

type UpdateMessageResponse struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	UpdatedMessage types.Message `json:"updatedMessage"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *GoChatApp) listPartners(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	users, unseen, err := s.svc.ListPartners(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusOK, PartnersResponse{
		Success:        true,
		Message:        "users fetched",
		Users:          users,
		UnseenMessages: unseen,
	})
}

func (s *GoChatApp) listMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	messages, err := s.svc.ListMessages(r.Context(), userId, r.PathValue("id"))
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusOK, MessagesResponse{
		Success:  true,
		Message:  "messages fetched",
		Messages: messages,
	})
}

func (s *GoChatApp) markMessageSeen(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	if _, err := s.svc.MarkSeen(r.Context(), userId, r.PathValue("id")); err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusOK, StatusResponse{
		Success: true,
		Message: "message marked seen",
	})
}

func (s *GoChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSendBody)

	var req conversation.SendRequest
	if errResp := s.decodeBody(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.svc.Send(r.Context(), userId, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusCreated, SendMessageResponse{
		Success:    true,
		Message:    "message sent",
		NewMessage: msg,
	})
}

func (s *GoChatApp) editMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req conversation.EditRequest
	if errResp := s.decodeBody(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.svc.Edit(r.Context(), userId, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusOK, UpdateMessageResponse{
		Success:        true,
		Message:        "message updated",
		UpdatedMessage: msg,
	})
}

func (s *GoChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	if _, err := s.svc.Delete(r.Context(), userId, r.PathValue("id")); err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusOK, StatusResponse{
		Success: true,
		Message: "message deleted",
	})
}
