// Package widget defines the contract between the reconciliation pipeline
// and a host list widget.
//
// The pipeline drives a Widget with one Update per composed snapshot. Each
// update carries an edit script to be applied as a single atomic batch and
// the snapshot the widget shows once the batch completes.
//
// Widgets call back into an Adapter for counts, nodes, heights, cell
// configuration, selection, deletion and edit actions. The adapter answers
// from the snapshot and provider registry of the last applied update, so
// callbacks always agree with what is on screen.
//
// Three widgets ship with the package:
//
//   - Recorder replays every batch onto its own copy of the displayed
//     structure and rejects batches that do not produce the update's snapshot.
//   - LogWidget logs each operation with slog.
//   - Tee fans a batch out to several widgets in order.
package widget
