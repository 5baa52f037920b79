package websocket

import (
	"encoding/json"
	"time"
)

const (
	EventConnectionStatus  = "connection_status"
	EventNewOfferRequest   = "new_offer_request"
	EventOfferQuoted       = "offer_quoted"
	EventOfferApproved     = "offer_approved"
	EventOfferRejected     = "offer_rejected"
	EventRevisionRequested = "revision_requested"
	EventPong              = "pong"
)

// AdminChannel is the synthetic channel id admins may connect under.
const AdminChannel = "admin"

// Event is a push envelope. On the wire the payload fields sit next to
// type and timestamp.
type Event struct {
	Type      string
	Timestamp time.Time
	Payload   map[string]interface{}
}

func NewEvent(eventType string, payload map[string]interface{}) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: payload}
}

func (e Event) MarshalJSON() ([]byte, error) {
	envelope := make(map[string]interface{}, len(e.Payload)+2)
	for key, value := range e.Payload {
		envelope[key] = value
	}
	envelope["type"] = e.Type
	envelope["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(envelope)
}
