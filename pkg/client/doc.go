// Package client is a headless remote widget: it connects to a flix server,
// replays every batch frame on a local snapshot, and reports row events
// back to the server.
//
// Batches must arrive in sequence. A batch that skips a sequence number, or
// whose operations do not fit the local snapshot, makes the client send a
// resync frame carrying the last applied sequence number. The server answers
// with the missing batches or with a single reset batch.
//
//	c, err := client.Dial(ctx, "ws://localhost:8080/ws")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	for u := range c.Updates() {
//	    fmt.Println(u.Seq, u.Script)
//	}
package client
