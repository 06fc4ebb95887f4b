package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/server"
	"github.com/npezzotti/go-dm/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6"`
}

type AccountResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

func toAccount(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeError logs unexpected failures and writes errResp without detail.
func (s *GoChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError && errResp.Err != nil {
		s.log.Printf("internal error: %v", errResp.Err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

// decodeBody reads a JSON body into v. Message bodies are validated by the
// conversation service.
func (s *GoChatApp) decodeBody(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewBadRequestError()
	}

	return nil
}

// decodeRequest reads a JSON body into v and checks its validation tags.
func (s *GoChatApp) decodeRequest(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewBadRequestError()
	}

	if s.validate != nil {
		if err := s.validate.Struct(v); err != nil {
			return NewBadRequestError()
		}
	}

	return nil
}

func (s *GoChatApp) status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Server is live"))
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Printf("health check: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	params := database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	}

	newUser, err := s.db.CreateAccount(r.Context(), params)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusCreated, AccountResponse{
		Success: true,
		Message: "account created",
		User:    toAccount(newUser),
	})
}

func (s *GoChatApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusOK, AccountResponse{
		Success: true,
		Message: "session active",
		User:    toAccount(user),
	})
}

func (s *GoChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if errResp := s.decodeRequest(r, &lr); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(r.Context(), lr.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, errorFor(err))
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	u := toAccount(dbUser)

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, AccountResponse{
		Success: true,
		Message: "logged in",
		User:    u,
	})
}

func (s *GoChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// overwrite the cookie with an expired one
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	s.writeJson(w, http.StatusOK, StatusResponse{
		Success: true,
		Message: "logged out",
	})
}

// handshakeUserId resolves the identity a socket registers under. The userId
// query parameter counts only when it matches the session cookie.
func (s *GoChatApp) handshakeUserId(r *http.Request) string {
	claimed := r.URL.Query().Get("userId")
	if claimed == "" {
		return ""
	}

	sessionId, err := s.sessionUserId(r)
	if err != nil {
		s.log.Printf("websocket handshake for %q without valid session: %v", claimed, err)
		return ""
	}
	if sessionId != claimed {
		s.log.Printf("websocket handshake for %q does not match session user %q", claimed, sessionId)
		return ""
	}

	return claimed
}

func (s *GoChatApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(s.allowedOrigins, origin)
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId := s.handshakeUserId(r)

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(userId, conn, s.cs, s.log)
	s.cs.Connect(client)
	go client.Write()
	go client.Read()
}
