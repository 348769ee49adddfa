// Package stream decodes the Messages API server-sent event stream into
// claude.StreamEvent values.
//
// Decoder is the synchronous core. It accepts raw chunks in arrival order,
// buffers partial lines between calls, and returns the events completed by
// each chunk. Its output does not depend on where the input was split.
//
// Decode drives a Decoder from an io.ReadCloser on its own goroutine and
// delivers events over a channel:
//
//	events := stream.Decode(ctx, body)
//	for ev := range events {
//		...
//	}
//
// Every sequence ends with either claude.MessageStop or a terminal
// claude.ErrorEvent. A malformed event becomes a recoverable ErrorEvent with
// kind parsing_error and decoding continues.
package stream
