package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	flixerrors "github.com/vango-dev/flix/internal/errors"
	"github.com/vango-dev/flix/pkg/client"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/protocol"
)

func watchCmd(a *app) *cobra.Command {
	var (
		count   int
		selects []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch URL",
		Short: "Mirror a served list and print every batch",
		Long: `Connect to a flix server as a headless widget. Every batch is applied to
a local copy of the list and printed; the list is printed when the watch
ends.

--select taps rows (section,row) once the first batch arrived.

Examples:
  flix watch ws://localhost:8080/ws
  flix watch ws://localhost:8080/ws --count=3
  flix watch ws://localhost:8080/ws --select=1,0 --count=2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := parsePaths(selects)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return runWatch(ctx, cmd, a, args[0], count, paths)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "stop after this many batches (0: until the connection ends)")
	cmd.Flags().StringSliceVar(&selects, "select", nil, "rows to tap after the first batch, as section,row")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop watching after this long")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, a *app, url string, count int, paths []node.IndexPath) error {
	c, err := client.Dial(ctx, url,
		client.WithLogger(a.logger),
		client.WithErrorHandler(func(em *protocol.ErrorMessage) {
			printf(cmd, "error %s: %s\n", em.Code, em.Message)
		}),
	)
	if err != nil {
		return flixerrors.New("F043").Wrap(err)
	}
	defer c.Close()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			printf(cmd, "\nlist:\n")
			writeSnapshot(cmd.OutOrStdout(), c.Snapshot())
			return nil
		case u, ok := <-c.Updates():
			if !ok {
				if err := c.Err(); err != nil {
					return flixerrors.FromError(err, "F043")
				}
				return nil
			}
			seen++
			kind := "batch"
			if u.Reset {
				kind = "reset"
			}
			printf(cmd, "%s %d (%d ops)\n", kind, u.Seq, u.Script.Len())
			for _, op := range u.Script.Ops {
				printf(cmd, "  %s\n", op)
			}
			if seen == 1 {
				for _, p := range paths {
					if err := c.Select(p); err != nil {
						return flixerrors.FromError(err, "F043")
					}
				}
			}
			if count > 0 && seen >= count {
				printf(cmd, "\nlist:\n")
				writeSnapshot(cmd.OutOrStdout(), u.Snapshot)
				return nil
			}
		}
	}
}

// parsePaths parses "section,row" pairs.
func parsePaths(values []string) ([]node.IndexPath, error) {
	// StringSlice splits on commas, so pairs arrive as separate elements.
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("--select: want section,row pairs, got %q", strings.Join(values, ","))
	}
	paths := make([]node.IndexPath, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		s, err := strconv.Atoi(strings.TrimSpace(values[i]))
		if err != nil {
			return nil, fmt.Errorf("--select: section %q: %w", values[i], err)
		}
		r, err := strconv.Atoi(strings.TrimSpace(values[i+1]))
		if err != nil {
			return nil, fmt.Errorf("--select: row %q: %w", values[i+1], err)
		}
		paths = append(paths, node.IndexPath{Section: s, Row: r})
	}
	return paths, nil
}

// writeSnapshot prints a mirrored list. Heights are not known remotely.
func writeSnapshot(w io.Writer, snap node.Snapshot) {
	for s, sec := range snap.Sections {
		fmt.Fprintf(w, "section %d %s\n", s, sec.Key)
		if sec.Header != nil {
			fmt.Fprintf(w, "  header %s %v\n", sec.Header.Provider, sec.Header.Value)
		}
		for r, row := range sec.Rows {
			fmt.Fprintf(w, "  row %d %-10s %v\n", r, row.ID(), row.Value)
		}
		if sec.Footer != nil {
			fmt.Fprintf(w, "  footer %s %v\n", sec.Footer.Provider, sec.Footer.Value)
		}
	}
}
