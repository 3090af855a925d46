// Package server shows provider trees in remote widgets over websocket.
//
// Each websocket connection on /ws is a Session. The server asks its Factory
// for a provider tree, binds it to a builder and uses the session itself as
// the builder's widget: every applied batch is encoded as a FrameBatch and
// queued to the client, strictly in seq order. The client reports row
// interactions with FrameEvent and may ask for missed batches with
// FrameResync. Batches still held in the session History are replayed;
// otherwise the whole displayed snapshot is sent as a reset batch.
//
// Routes:
//
//	GET /ws                  websocket
//	GET /snapshot?session=ID JSON document of the displayed snapshot
//	GET /sessions            live session IDs
//	GET /metrics             Prometheus metrics
//	GET /healthz             liveness
//
// Example:
//
//	srv := server.New(server.DefaultConfig(), func(ctx context.Context, id string) ([]*provider.Section, error) {
//	    return demo.Sections(demo.NewLogin()), nil
//	})
//	log.Fatal(srv.ListenAndServe(ctx))
package server
