package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/ottofit/internal/catalogue"
	"github.com/hammamikhairi/ottofit/internal/conversation"
	"github.com/hammamikhairi/ottofit/internal/display"
	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/engine"
	"github.com/hammamikhairi/ottofit/internal/observe"
	"github.com/hammamikhairi/ottofit/internal/speech"
)

// lastLineTimeout bounds how long the completion line may keep playing
// after the session is done.
const lastLineTimeout = 8 * time.Second

// errQuit marks a session the user ended early.
var errQuit = errors.New("session ended early")

// runSession resolves the selection, starts the controller and drives it
// with the full-screen UI or the plain line interface until it ends. The
// metrics endpoint, when configured, runs alongside.
func (a *app) runSession(ctx context.Context, ids []string, plain bool) error {
	if len(ids) == 0 {
		all, err := a.engine.ListExercises(ctx)
		if err != nil {
			return err
		}
		for _, ex := range all {
			ids = append(ids, ex.ID)
		}
	}
	selected, err := catalogue.Resolve(ctx, a.catalog, ids)
	if err != nil {
		return err
	}

	if a.svc.Phrases != nil {
		names := make([]string, 0, len(selected))
		for _, ex := range selected {
			names = append(names, ex.Name)
		}
		a.svc.Phrases.Prefetch(ctx, speech.StaticLines(names, a.cfg.UserName)...)
	}

	fmt.Println(display.RenderBanner("Type 'help' for commands, 'quit' to exit."))
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	sessionCtx, endSession := context.WithCancel(gctx)
	defer endSession()

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return gctx },
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		a.log.Info("metrics on http://%s/metrics", ln.Addr())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-sessionCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer endSession()

		ctrl, err := a.engine.StartSession(sessionCtx, ids, engine.WithUserName(a.cfg.UserName))
		if err != nil {
			return err
		}
		a.log.Info("session %s started with %d steps", ctrl.ID(), ctrl.Snapshot().TotalSteps)

		if plain {
			err = a.runPlain(sessionCtx, ctrl)
		} else {
			err = a.runUI(sessionCtx, ctrl)
		}
		finishSession(ctrl)
		if errors.Is(err, errQuit) {
			fmt.Println("Session ended early. Completed steps were not saved.")
			return nil
		}
		return err
	})

	return g.Wait()
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	return mux
}

// finishSession lets the completion line play out, then releases the
// controller.
func finishSession(ctrl *engine.Controller) {
	select {
	case <-ctrl.Done():
		deadline := time.Now().Add(lastLineTimeout)
		for ctrl.Speaking() && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}
	default:
	}
	ctrl.Close()
}

func (a *app) runUI(ctx context.Context, ctrl *engine.Controller) error {
	quitEarly, err := display.NewUI(ctrl, "OttoFit", a.log.Named("display")).Run(ctx)
	if err != nil {
		return err
	}
	if quitEarly && ctx.Err() == nil {
		return errQuit
	}
	return nil
}

// runPlain narrates events as text lines and reads typed commands from
// stdin.
func (a *app) runPlain(ctx context.Context, ctrl *engine.Controller) error {
	narrator := conversation.NewNarrator(a.log.Named("narrator"), nil, display.IsTerminal())
	parser := conversation.NewKeywordParser(a.log.Named("parser"))

	events := make(chan engine.Event, 64)
	unsubscribe := ctrl.Subscribe(events)
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			narrator.Narrate(ev)

		case <-ctrl.Done():
			for {
				select {
				case ev := <-events:
					narrator.Narrate(ev)
				default:
					if ctrl.Snapshot().Phase != domain.PhaseComplete {
						return errQuit
					}
					return nil
				}
			}

		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep narrating until the session ends.
				lines = nil
				continue
			}
			cmd := parser.Parse(line)
			if cmd == conversation.CommandQuit {
				return errQuit
			}
			feedback, err := conversation.Apply(cmd, ctrl)
			if err != nil {
				a.log.Error("command %s: %v", cmd, err)
			}
			narrator.Say(feedback)
		}
	}
}
