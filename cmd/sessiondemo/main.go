package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-manager/credential/providerfakes"
	"github.com/jrsteele09/go-session-manager/internal/config"
	"github.com/jrsteele09/go-session-manager/internal/utils"
	"github.com/jrsteele09/go-session-manager/session"
	"github.com/jrsteele09/go-session-manager/storage/memstore"
)

const (
	demoUser     = "demo@example.com"
	demoPassword = "demo-password"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running demo: %s\n", err)
	}
	log.Printf("Demo stopped\n")
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
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	provider := providerfakes.New().WithUser(demoUser, demoPassword)

	controller, err := session.New(session.FromConfig(c),
		session.Deps{
			Provider:      provider,
			Store:         memstore.New(),
			RefreshConfig: c,
		},
		session.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("session.New: %w", err)
	}
	defer controller.Close()

	// Condensed timings so the whole lifecycle plays out in under a minute.
	controller.Configure(session.ConfigUpdate{
		SessionTimeout: utils.Ptr(30 * time.Second),
		WarningTime:    utils.Ptr(20 * time.Second),
	})

	expired := make(chan struct{}, 1)
	unsubscribe := controller.Subscribe(func(event session.Event) {
		logger.Info().
			Str("event", string(event.Type)).
			Interface("data", event.Data).
			Msg("session event")
		if event.Type == session.EventExpired {
			select {
			case expired <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := controller.SignIn(context.Background(), demoUser, demoPassword, false); err != nil {
		return fmt.Errorf("controller.SignIn: %w", err)
	}

	// Simulate a burst of user activity while the session is active, then
	// go idle so the warning and expiry fire.
	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(time.Second)
			controller.RecordActivity()
		}
		logger.Info().Msg("user went idle; waiting for warning and expiry")
	}()

	waitForStopSignal(expired)
	controller.SignOut(context.Background())
	return nil
}

func waitForStopSignal(expired <-chan struct{}) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-expired:
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
