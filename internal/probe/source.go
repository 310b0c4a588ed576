package probe

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/model"
)

// NATSSource adapts a NATS subscription to model.PacketSource, so the flow
// pipeline can consume remote probes the same way it consumes a local
// interface. The records channel closes after Close is called.
type NATSSource struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	records chan model.PacketRecord
	done    chan struct{}
}

// NewNATSSource connects and starts pulling packet records from the subject.
func NewNATSSource(cfg config.ProbeConfig) (*NATSSource, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	sub, err := nc.SubscribeSync(cfg.Subject)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}
	log.Printf("Receiving packet records from '%s' at %s", cfg.Subject, cfg.NATSURL)

	s := &NATSSource{
		nc:      nc,
		sub:     sub,
		records: make(chan model.PacketRecord, 256),
		done:    make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

// pump owns the records channel: it is the only writer and the only closer.
func (s *NATSSource) pump() {
	defer close(s.records)
	for {
		msg, err := s.sub.NextMsg(500 * time.Millisecond)
		if err == nats.ErrTimeout {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		if err != nil {
			return
		}
		var rec model.PacketRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			log.Printf("Error decoding packet record: %v", err)
			continue
		}
		select {
		case s.records <- rec:
		case <-s.done:
			return
		}
	}
}

// Records returns the stream of received packet records.
func (s *NATSSource) Records() <-chan model.PacketRecord {
	return s.records
}

// Close unsubscribes and closes the connection.
func (s *NATSSource) Close() error {
	close(s.done)
	s.sub.Unsubscribe()
	s.nc.Close()
	return nil
}
