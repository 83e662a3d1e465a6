// Package eventsocket implements the named-event, namespaced transport the
// node and master processes use to exchange frame and control events. It is
// gorilla/websocket underneath, with a thin socket.io-shaped layer on top:
// every connection belongs to exactly one namespace ("/", "/gui",
// "/analytics", or one per analytics service), and within a namespace peers
// exchange named events rather than raw bytes.
package eventsocket

import "encoding/json"

// Message is the wire envelope carried by every websocket frame: one named
// event, scoped to one namespace, with an opaque binary payload.
type Message struct {
	Namespace string `json:"ns"`
	Event     string `json:"event"`
	Data      []byte `json:"data"`
}

func encodeMessage(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMessage(raw []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(raw, &m)
	return m, err
}
