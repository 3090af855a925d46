// Package builder drives a list widget from a declarative provider tree.
//
// A Builder owns a provider registry, a snapshot pipeline and the widget it
// updates. Each composed snapshot is diffed against the one the widget
// displays and the resulting script is applied as one batch:
//
//	name := stream.NewVar("")
//	rows := provider.NewRow("name", stream.Map(name.Stream(), func(s string) *string { return &s }))
//	b, err := builder.NewFromRows(widget.NewRecorder(), rows)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
// Widget callbacks go through b.Adapter(). Callbacks that run provider code
// (selection, deletion, edit actions) can be routed through Select, Delete
// and Action so they run on the pipeline's owner goroutine.
package builder
