package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/npezzotti/go-dm/internal/ai"
	"github.com/npezzotti/go-dm/internal/api"
	"github.com/npezzotti/go-dm/internal/config"
	"github.com/npezzotti/go-dm/internal/conversation"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/media"
	"github.com/npezzotti/go-dm/internal/server"
	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/samber/lo"
)

const (
	defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="
	defaultDSN        = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, config.SplitOrigins(value)...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	mediaDir       string
	mediaURL       string
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[go-dm] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	var environ config.Environment
	if _, err := env.UnmarshalFromEnviron(&environ); err != nil {
		logger.Fatal("environment:", err)
	}

	flag.StringVar(&addr, "addr", environ.ServerAddr, "server address")
	flag.StringVar(&dsn, "dsn", lo.CoalesceOrEmpty(environ.DatabaseDSN, defaultDSN), `database connection string, or "memory" for the in-process store`)
	flag.StringVar(&signingKey, "signing-key", lo.CoalesceOrEmpty(environ.SigningKey, defaultSigningKey), "base64 encoded signing key")
	flag.StringVar(&mediaDir, "media-dir", environ.MediaDir, "directory uploaded images are written to")
	flag.StringVar(&mediaURL, "media-url", environ.MediaURL, "base URL uploaded images are served from")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = config.SplitOrigins(environ.AllowedOrigins)
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, mediaDir, mediaURL)
	if err != nil {
		logger.Fatal("config:", err)
	}

	var db database.Repository
	if cfg.InMemory() {
		logger.Println("using in-memory message store")
		db = database.NewMemRepository()
	} else {
		pg, err := database.NewPgRepository(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("db open:", err)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Println("db close:", err)
			}
		}()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = pg.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("db migrate:", err)
		}
		db = pg
	}

	uploader, err := media.NewDiskUploader(cfg.MediaDir, cfg.MediaURL)
	if err != nil {
		logger.Fatal("media:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	svc := conversation.NewService(logger, db, chatServer, uploader, statsUpdater)
	completer := ai.NewGeminiCompleter(environ.AIURL, environ.AIAPIKey)
	if environ.AIAPIKey == "" {
		logger.Println("GO_DM_AI_API_KEY not set, ai replies are disabled")
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, db, svc, completer, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
