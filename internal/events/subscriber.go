package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Message is one event received from the bus.
type Message struct {
	Topic        string
	InitiativeID string // empty for portfolio-wide events
	Data         []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages matching subject on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(subject string) (<-chan Message, func(), error)
	Close() error
}

// messageFrom reads the topic and initiative from headers, falling back to
// the subject for publishers that do not set them.
func messageFrom(m *nats.Msg) Message {
	out := Message{Topic: m.Subject, Data: m.Data}
	if m.Header != nil {
		if topic := m.Header.Get(HeaderTopic); topic != "" {
			out.Topic = topic
		}
		out.InitiativeID = m.Header.Get(HeaderInitiative)
	}
	return out
}

// NATSSubscriber receives events from NATS.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to NATS and keeps reconnecting forever. opts
// are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name("lgates-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// mailbox buffers messages for one subscription. A full mailbox drops new
// messages rather than stall the NATS connection.
type mailbox struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

func (b *mailbox) deliver(m *nats.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- messageFrom(m):
	default:
	}
}

// close discards anything still buffered and closes the channel.
func (b *mailbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for {
		select {
		case <-b.ch:
		default:
			close(b.ch)
			return
		}
	}
}

// Subscribe accepts NATS wildcards, e.g. TopicAll or InitiativeSubject(id).
// The subscription is registered on the server before Subscribe returns.
func (s *NATSSubscriber) Subscribe(subject string) (<-chan Message, func(), error) {
	box := &mailbox{ch: make(chan Message, 64)}
	sub, err := s.conn.Subscribe(subject, box.deliver)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", subject, err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			box.close()
		})
	}
	return box.ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
