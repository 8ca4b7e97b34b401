// Package sink defines the contract between the protocol server and
// the downstream delivery transport.
package sink

import "github.com/sandrolain/h02-bridge/src/h02"

// Sink delivers decoded reports downstream. Implementations must be
// safe for concurrent use by multiple connection sessions. Delivery
// is at-most-once from the caller's perspective: a failed Publish is
// logged by the session and never replayed.
type Sink interface {
	Publish(*h02.Report) error
	Close() error
}
