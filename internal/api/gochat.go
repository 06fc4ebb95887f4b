package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-dm/internal/ai"
	"github.com/npezzotti/go-dm/internal/config"
	"github.com/npezzotti/go-dm/internal/conversation"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/server"
)

type GoChatApp struct {
	log            *log.Logger
	db             database.Repository
	mux            *http.Server
	cs             *server.ChatServer
	svc            *conversation.Service
	completer      ai.Completer
	validate       *validator.Validate
	signingKey     []byte
	allowedOrigins []string
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.Repository, svc *conversation.Service, completer ai.Completer, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		svc:            svc,
		completer:      completer,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /api/status", s.status)
	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/messages/users", s.authMiddleware(s.listPartners))
	mux.HandleFunc("GET /api/messages/{id}", s.authMiddleware(s.listMessages))
	mux.HandleFunc("PUT /api/messages/mark/{id}", s.authMiddleware(s.markMessageSeen))
	mux.HandleFunc("POST /api/messages/send/{id}", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("PUT /api/messages/{id}", s.authMiddleware(s.editMessage))
	mux.HandleFunc("DELETE /api/messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("POST /api/ai/generate", s.authMiddleware(s.generateReply))
	mux.HandleFunc("GET /ws", s.serveWs)
	if cfg.MediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Handler() http.Handler {
	return s.mux.Handler
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
