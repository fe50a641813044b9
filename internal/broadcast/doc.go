// Package broadcast pushes tally snapshots to live viewers.
//
// Each connected viewer gets its own session goroutine that samples the
// shared tally cache on a fixed cadence and transmits a full snapshot only
// when it differs from the last one sent to that viewer. Sessions never block
// the cache refresher, and a slow or dead connection only costs its own
// session.
package broadcast
