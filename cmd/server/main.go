package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/mwufi/ara-auth/auth"
	"github.com/mwufi/ara-auth/internal/config"
	"github.com/mwufi/ara-auth/security"
	"github.com/mwufi/ara-auth/server"
	"github.com/mwufi/ara-auth/sessions"
	"github.com/mwufi/ara-auth/store/sqlite"
	"github.com/mwufi/ara-auth/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	configureLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx := context.Background()
	storage, err := sqlite.New(ctx, c.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("sqlite.New: %w", err)
	}
	defer storage.Close()

	signer := token.NewHMACSigner([]byte(c.GetTokenSigningSecret()))
	sessionManager := sessions.NewManager(storage)
	tokenManager := token.New(storage, storage, storage, signer,
		token.WithAccessTokenExpiry(c.GetAccessTokenExpiry()))

	flowOptions := []auth.ServiceOption{auth.WithAuthCodeExpiry(c.GetAuthCodeExpiry())}
	var limiter *security.LoginLimiter
	if c.GetLoginRateLimitEnabled() {
		limiter = security.NewLoginLimiter(c.GetLoginAttemptsPerMinute(), c.GetLoginAttemptBurst())
		defer limiter.Close()
		flowOptions = append(flowOptions, auth.WithLoginPolicy(limiter))
	}

	flow, err := auth.NewService(auth.Repos{
		Clients: storage,
		Users:   storage,
		Codes:   storage,
	}, sessionManager, tokenManager, flowOptions...)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	srv, err := server.New(c, server.Repos{Clients: storage, Users: storage}, flow, tokenManager, sessionManager)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func configureLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
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

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
