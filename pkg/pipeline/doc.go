// Package pipeline composes provider streams into list snapshots.
//
// A Loop subscribes to the stream of every provider in a registry and keeps
// the latest emission of each. Once every provider has emitted at least
// once, and again on every later emission, it composes a full node.Snapshot
// and hands it to the sink.
//
// # Ownership
//
// One goroutine owns the loop. Provider streams are pulled on their own
// goroutines, but their values are only observed after they cross the loop's
// update channel, so composition, reconciliation and widget mutation never
// run concurrently. Snapshots reach the sink strictly in arrival order; none
// is skipped, because the sink's notion of "previous snapshot" must match
// what the widget displays.
//
// # Generations
//
// Replace swaps the provider tree. The previous generation's subscriptions
// are cancelled exactly once and every iterator is closed by the goroutine
// that pulled from it. Values still in flight from an old generation are
// dropped.
//
//	loop := pipeline.New(func(ctx context.Context, c pipeline.Composite) error {
//	    return apply(c.Snapshot)
//	})
//	loop.Start(ctx)
//	loop.Replace(registry)
//	defer loop.Close()
package pipeline
