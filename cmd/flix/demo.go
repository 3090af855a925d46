package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/flix/internal/demo"
	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/widget"
)

func demoCmd(a *app) *cobra.Command {
	var (
		steps  bool
		settle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the login screen against a logging widget",
		Long: `Run the login screen and print every batch applied to the widget.

With --steps, a scripted session fills in both inputs, logs in, clears
the password and tries again. The login row is reloaded each time its
enabled state changes.

Examples:
  flix demo
  flix demo --steps
  flix demo --steps --log-level=debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), cmd, a, steps, settle)
		},
	}

	cmd.Flags().BoolVar(&steps, "steps", false, "run the scripted session")
	cmd.Flags().DurationVar(&settle, "settle", 100*time.Millisecond, "time to wait for batches after each step")
	return cmd
}

func runDemo(ctx context.Context, cmd *cobra.Command, a *app, steps bool, settle time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	anim, err := a.cfg.Animation()
	if err != nil {
		return err
	}

	l := demo.NewLogin()
	l.OnLogin(func(user string) { printf(cmd, "login accepted for %q\n", user) })

	applied := make(chan struct{}, 64)
	printer := widget.Func(func(_ context.Context, u *widget.Update) error {
		printf(cmd, "batch %d (generation %d, %d ops)\n", u.Seq, u.Generation, u.Script.Len())
		for _, op := range u.Script.Ops {
			printf(cmd, "  %-32s %s\n", op, u.AnimationFor(op.Kind))
		}
		return nil
	})

	b, err := builder.New(widget.Tee(printer, widget.NewLogWidget(a.logger)), demo.Sections(l),
		builder.WithLogger(a.logger),
		builder.WithAnimation(anim),
		builder.WithQueueSize(a.cfg.Builder.QueueSize),
		builder.WithOnApply(func(_ *widget.Update, err error) {
			if err == nil {
				select {
				case applied <- struct{}{}:
				default:
				}
			}
		}),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		return errors.New("demo: no batch within 5s")
	}

	if steps {
		for _, step := range demo.Steps() {
			printf(cmd, "\n> %s\n", step.Name)
			if err := step.Do(ctx, l, b); err != nil {
				return fmt.Errorf("step %q: %w", step.Name, err)
			}
			waitSettled(applied, settle)
		}
	}

	printf(cmd, "\nlayout:\n")
	return writeLayout(cmd.OutOrStdout(), b.Adapter())
}

// waitSettled returns once no batch arrived for d.
func waitSettled(applied <-chan struct{}, d time.Duration) {
	for {
		select {
		case <-applied:
		case <-time.After(d):
			return
		}
	}
}

// writeLayout prints what a widget would show, asking the adapter exactly as
// a widget does.
func writeLayout(w io.Writer, a *widget.Adapter) error {
	snap := a.Snapshot()
	for s, sec := range snap.Sections {
		fmt.Fprintf(w, "section %d %s\n", s, sec.Key)
		for r, row := range sec.Rows {
			ip := node.IndexPath{Section: s, Row: r}
			h, ok, err := a.HeightForRow(ip)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  row %d %-10s %s %v\n", r, row.ID(), height(h, ok), row.Value)
		}
		if sec.Footer != nil {
			h, ok, err := a.HeightForFooter(s)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  footer %s %s\n", sec.Footer.Provider, height(h, ok))
		}
	}
	return nil
}

func height(h float64, ok bool) string {
	if !ok {
		return "h=auto"
	}
	return fmt.Sprintf("h=%g", h)
}
