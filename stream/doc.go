// Package stream is a small cold-publisher library used as the asynchronous
// substrate for effects.
//
// A Publisher describes a sequence of values followed by exactly one
// completion: Finished, Failed or Cancelled. Nothing runs until Subscribe.
// Operators compose producers synchronously on the subscriber's goroutine;
// only Subscribe and Merge start goroutines.
//
// Example:
//
//	p := stream.Map(stream.Of(1, 2, 3), strconv.Itoa)
//	values, completion := stream.Collect(ctx, p.Subscribe(ctx))
package stream
