// OttoFit, a spoken workout coach for the terminal.
//
// Usage:
//
//	ottofit [run] [--plain] [exercise-id...]
//	ottofit exercises
//	ottofit history [--limit N]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/hammamikhairi/ottofit/internal/conversation"
	"github.com/hammamikhairi/ottofit/internal/display"
)

// CLI defines the command structure.
type CLI struct {
	Config  string `short:"c" type:"path" env:"OTTOFIT_CONFIG" help:"YAML config file"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
	Quiet   bool   `short:"q" help:"Disable all logging"`

	Run       RunCmd       `cmd:"" default:"withargs" help:"Start a workout session"`
	Exercises ExercisesCmd `cmd:"" help:"List the exercise catalogue"`
	History   HistoryCmd   `cmd:"" help:"Show recently completed exercises"`
}

// RunCmd starts a session. With no IDs the whole catalogue is used.
type RunCmd struct {
	IDs   []string `arg:"" optional:"" name:"exercise" help:"Exercise IDs, in order"`
	Plain bool     `help:"Line-based output instead of the full-screen UI"`
	User  string   `help:"Name the coach uses for you"`
}

// Run executes the run command.
func (r *RunCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	if r.User != "" {
		a.cfg.UserName = r.User
	}
	plain := r.Plain || !display.IsTerminal()
	return a.runSession(ctx, r.IDs, plain)
}

// ExercisesCmd lists the catalogue.
type ExercisesCmd struct{}

// Run executes the exercises command.
func (e *ExercisesCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := setup(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	list, err := a.engine.ListExercises(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIFFICULTY")
	for _, ex := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ex.ID, ex.Name, ex.Difficulty)
	}
	return w.Flush()
}

// HistoryCmd prints stored completion records, newest first.
type HistoryCmd struct {
	Limit int `short:"n" default:"20" help:"Number of records to show"`
}

// Run executes the history command.
func (h *HistoryCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := setup(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.engine.History(ctx, h.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No workouts recorded yet.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tEXERCISE\tSTEP\tWORKED\tSESSION")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.Date.Local().Format("2006-01-02 15:04"),
			rec.ExerciseID,
			rec.Step+1,
			conversation.FormatDuration(rec.ActualDuration),
			shortID(rec.SessionID),
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("ottofit"),
		kong.Description("A spoken workout coach."),
		kong.UsageOnError(),
	)
	err := ctx.Run(cli)
	ctx.FatalIfErrorf(err)
}
