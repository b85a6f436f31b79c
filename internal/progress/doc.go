// Package progress carries crawl progress events from workers to sinks. The
// Hub batches events on a background goroutine and never blocks the crawl.
package progress
