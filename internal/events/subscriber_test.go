package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/lgates/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

// pubSub connects a publisher and a subscriber to a fresh server.
func pubSub(t *testing.T) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func publishAll(t *testing.T, pub *NATSPublisher, events map[string]any) {
	t.Helper()
	for topic, e := range events {
		if err := pub.Publish(context.Background(), topic, e); err != nil {
			t.Fatalf("Publish(%s): %v", topic, err)
		}
	}
	if err := pub.conn.Flush(); err != nil {
		t.Fatal(err)
	}
}

func TestSubscribe_InitiativeScope(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(InitiativeSubject("INIT-1"))
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	publishAll(t, pub, map[string]any{
		TopicInitiativeCreated: InitiativeCreated{Initiative: &model.Initiative{ID: "INIT-1"}},
		TopicStatusUpdated:     StatusUpdated{Status: model.DefaultInitiativeStatus("INIT-2")},
		TopicRoleAssigned:      RoleAssigned{UserRole: &model.UserRole{UserID: "bob", Role: model.RoleSTO}},
	})
	publishAll(t, pub, map[string]any{
		TopicFormSubmitted: FormTransitioned{Form: model.NewGateForm("INIT-1", model.GateL0, time.Now())},
	})

	got := map[string]bool{}
	for range 2 {
		m := recv(t, ch)
		if m.InitiativeID != "INIT-1" {
			t.Errorf("message for %q leaked into INIT-1 subscription (topic %s)", m.InitiativeID, m.Topic)
		}
		got[m.Topic] = true
	}
	if !got[TopicInitiativeCreated] || !got[TopicFormSubmitted] {
		t.Errorf("topics = %v", got)
	}
	select {
	case m := <-ch:
		t.Errorf("unexpected extra message %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_AllIncludesPortfolioEvents(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	publishAll(t, pub, map[string]any{
		TopicRoleAssigned: RoleAssigned{UserRole: &model.UserRole{UserID: "bob", Role: model.RoleSTO}},
	})
	m := recv(t, ch)
	if m.Topic != TopicRoleAssigned || m.InitiativeID != "" {
		t.Errorf("got %+v", m)
	}
}

func TestSubscribe_WithoutHeadersUsesSubject(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	if err := pub.conn.Publish(TopicStatusUpdated, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	m := recv(t, ch)
	if m.Topic != TopicStatusUpdated || m.InitiativeID != "" || string(m.Data) != `{}` {
		t.Errorf("got %+v", m)
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_ = pub.conn.Publish(TopicInitiativeCreated, []byte(`{}`))
		}
		pub.conn.Flush()
	}()
	cancel()
	cancel()
	<-done

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestSubscribe_FullMailboxDrops(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	for range 200 {
		if err := pub.conn.Publish(TopicInitiativeCreated, []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}
	if err := pub.conn.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := sub.conn.Flush(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(ch) < cap(ch) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(ch) != cap(ch) {
		t.Fatalf("mailbox holds %d, want it full at %d", len(ch), cap(ch))
	}
}

func TestNATSSubscriber_Options(t *testing.T) {
	url := startTestNATS(t)
	sub, err := NewNATSSubscriber(url, nats.Name("custom"))
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	if !sub.conn.IsConnected() || sub.conn.Opts.Name != "custom" {
		t.Fatalf("connected=%v name=%q", sub.conn.IsConnected(), sub.conn.Opts.Name)
	}
	var _ Subscriber = sub
}
