package master

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSEgress re-publishes analytics-bound frames onto a NATS subject
// ("argos.analytics.<node>.<camera>") for decoupled delivery to
// out-of-process analytics workers, per §2's Analytics Egress component.
// It uses plain core NATS publish: there is no acknowledgement or
// redelivery. It satisfies the Fleet's AnalyticsEgress interface.
type NATSEgress struct {
	conn *nats.Conn
}

// DialNATSEgress connects to url. On failure it returns (nil, err) without
// logging; callers should pass a nil egress to NewFleet rather than
// treat this as fatal, since the NATS egress is an optional add-on, not a
// required dependency of the fan-out path.
func DialNATSEgress(url string) (*NATSEgress, error) {
	conn, err := nats.Connect(url, nats.MaxReconnects(-1), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, fmt.Errorf("master: nats connect %s: %w", url, err)
	}
	log.Printf("master: analytics egress connected to %s", url)
	return &NATSEgress{conn: conn}, nil
}

// Publish sends data on subject. A publish failure is returned to the
// caller to log, never retried inline.
func (e *NATSEgress) Publish(subject string, data []byte) error {
	return e.conn.Publish(subject, data)
}

// Close closes the underlying NATS connection without draining it.
func (e *NATSEgress) Close() {
	e.conn.Close()
}
