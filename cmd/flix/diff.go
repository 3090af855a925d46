package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	flixerrors "github.com/vango-dev/flix/internal/errors"
	"github.com/vango-dev/flix/pkg/archive"
	"github.com/vango-dev/flix/pkg/diff"
)

// opJSON is the --json form of one operation.
type opJSON struct {
	Kind string `json:"kind"`
	From []int  `json:"from,omitempty"`
	To   []int  `json:"to,omitempty"`
	Part string `json:"part,omitempty"`
	ID   string `json:"id,omitempty"`
}

func diffCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two recorded snapshots",
		Long: `Compute the batch that turns the OLD snapshot into the NEW one.

Snapshots are JSON documents as written by 'flix serve --record', read from
a path, a file:// URL or an s3://bucket/key URL.

Examples:
  flix diff before.json after.json
  flix diff s3://snapshots/flix/a.json s3://snapshots/flix/b.json --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := []archive.Option{archive.WithRegion(a.cfg.Archive.Region)}
			if a.cfg.Archive.Endpoint != "" {
				opts = append(opts, archive.WithEndpoint(a.cfg.Archive.Endpoint))
			}

			oldDoc, err := archive.ReadURL(ctx, args[0], opts...)
			if err != nil {
				return flixerrors.FromError(err, "F042")
			}
			newDoc, err := archive.ReadURL(ctx, args[1], opts...)
			if err != nil {
				return flixerrors.FromError(err, "F042")
			}

			script, err := diff.Diff(oldDoc.Snapshot(), newDoc.Snapshot())
			if err != nil {
				return flixerrors.FromError(err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(scriptJSON(script))
			}
			printf(cmd, "%s\n", script)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print operations as JSON")
	return cmd
}

func scriptJSON(s *diff.Script) []opJSON {
	out := make([]opJSON, 0, s.Len())
	for _, op := range s.Ops {
		o := opJSON{Kind: op.Kind.String()}
		switch op.Kind {
		case diff.DeleteSection, diff.DeleteRow:
			o.From = []int{op.From.Section, op.From.Row}
		case diff.InsertSection, diff.InsertRow:
			o.To = []int{op.To.Section, op.To.Row}
		default:
			o.From = []int{op.From.Section, op.From.Row}
			o.To = []int{op.To.Section, op.To.Row}
		}
		if op.Kind == diff.ReloadPart {
			o.Part = op.Part.String()
		}
		switch {
		case op.Node != nil:
			o.ID = op.Node.ID().String()
		case op.Section != nil:
			o.ID = op.Section.Key
		}
		out = append(out, o)
	}
	return out
}
