package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/marketloop/auth-server/accounts"
	"github.com/marketloop/auth-server/interactions"
	"github.com/marketloop/auth-server/internal/config"
	"github.com/marketloop/auth-server/internal/db"
	"github.com/marketloop/auth-server/internal/rate"
	"github.com/marketloop/auth-server/server"
	"github.com/marketloop/auth-server/session"
	"github.com/marketloop/auth-server/shops"
	"github.com/marketloop/auth-server/token"
)

func main() {
	for {
		if err := run(); err != nil {
			stdlog.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	configureLogging(cfg.Env)
	displayAppname(cfg.AppName)

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db.Open: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("db.Migrate: %w", err)
	}

	tokens, err := token.New(token.Config{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		CSRFSecret:    []byte(cfg.CSRFTokenSecret),
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
		CSRFTTL:       cfg.CSRFTTL(),
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		return fmt.Errorf("token.New: %w", err)
	}

	repos := session.Repos{
		Accounts:     accounts.NewPostgresRepo(database),
		Shops:        shops.NewPostgresRepo(database),
		Interactions: interactions.NewPostgresRepo(database),
	}

	var options []session.ServiceOption
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limiter := rate.New(redisClient, rate.Config{
			MaxLoginAttempts: cfg.MaxLoginAttempts,
			LoginCooldown:    cfg.Cooldown(),
			EnableIPThrottle: true,
		})
		options = append(options, session.WithLoginLimiter(limiter))
		log.Info().Str("addr", cfg.RedisAddr).Msg("login rate limiter enabled")
	}

	sessions, err := session.NewService(repos, tokens, options...)
	if err != nil {
		return fmt.Errorf("session.NewService: %w", err)
	}

	srv, err := server.New(cfg, sessions)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func configureLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
