package bus

import "time"

// Event is one entry of the socket event stream. Kind is the upstream
// event name (e.g. "chats.update"); Payload carries the typed value the
// replica projects.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
