// Package udt implements the Unreliable Datagram Transport active-message
// interface: short self-contained datagrams posted and completed through an
// opaque vendor provider, a wildcard receive for unsolicited peers, and
// sync/async active-message callback dispatch with a deferred-sync queue.
package udt

// HeaderType distinguishes an ack-only datagram from one carrying an
// active-message payload.
type HeaderType uint8

const (
	// HeaderEmpty marks an ack-only datagram (no active-message payload).
	HeaderEmpty HeaderType = iota
	// HeaderPayload marks a datagram carrying an active-message payload.
	HeaderPayload
)

// Header is the fixed wire prefix of every posted datagram.
type Header struct {
	Type   HeaderType
	AMID   uint8
	Length uint16
}
