// Package stream provides lazy, pull-based data streams for list providers.
//
// A Stream is a factory of Iterators. Nothing runs until a consumer calls
// Iter and pulls with Next. Streams may be finite (Just, FromSlice) or
// unbounded (FromChan, Var, Never).
//
//	name := stream.NewVar("")
//	valid := stream.Map(name.Stream(), func(s string) bool { return s != "" })
//
//	it := valid.Iter(ctx)
//	defer it.Close()
//	for {
//	    v, ok, err := it.Next(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    fmt.Println(v)
//	}
//
// Iterators are not safe for concurrent use; a single consumer pulls from one
// iterator. Close must be called exactly once and releases any goroutines the
// iterator started.
package stream
