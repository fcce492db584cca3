// Package download saves media items to a local directory with bounded
// concurrency.
//
// A Pipeline pulls items from a Source one at a time and only when one of its
// MaxConcurrency slots is free, so a paginated source never runs more than a
// page ahead of the downloads. Each item is written to <dir>/<id>.<ext>:
//
//   - an existing file is left alone (Skipped) unless Policy.Force is set,
//     and no request is made for it
//   - otherwise the file is created and the resource requested at the same
//     time, and the body is streamed into the file (Fetched or Overwritten)
//   - any error is reported as a Failed result for that item only
//
// Results arrive on the channel returned by Run in completion order, which is
// generally not the order in which items were pulled.
package download
