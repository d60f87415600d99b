package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

func TestDiscard(t *testing.T) {
	if err := Discard.Publish(context.Background(), TopicInitiativeCreated, InitiativeCreated{}); err != nil {
		t.Fatalf("Discard.Publish: %v", err)
	}
	if err := Discard.Close(); err != nil {
		t.Fatalf("Discard.Close: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestFormTopic(t *testing.T) {
	for _, a := range workflow.Actions {
		if FormTopic(a) == "" {
			t.Errorf("action %s has no topic", a)
		}
	}
	if got := FormTopic(workflow.ActionRequestChange); got != "lgates.form.change_requested" {
		t.Errorf("FormTopic(request_change) = %q", got)
	}
	if got := FormTopic("bogus"); got != "" {
		t.Errorf("FormTopic(bogus) = %q, want empty", got)
	}
}

func TestInitiativeOf(t *testing.T) {
	form := model.NewGateForm("INIT-7", model.GateL2, time.Now())
	for _, tc := range []struct {
		name  string
		event any
		want  string
	}{
		{"Created", InitiativeCreated{Initiative: &model.Initiative{ID: "INIT-1"}}, "INIT-1"},
		{"CreatedNil", InitiativeCreated{}, ""},
		{"Deleted", InitiativeDeleted{InitiativeID: "INIT-2"}, "INIT-2"},
		{"Form", FormTransitioned{Form: form}, "INIT-7"},
		{"Status", StatusUpdated{Status: model.DefaultInitiativeStatus("INIT-3")}, "INIT-3"},
		{"Role", RoleAssigned{UserRole: &model.UserRole{UserID: "bob"}}, ""},
		{"Other", map[string]string{"id": "x"}, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := InitiativeOf(tc.event); got != tc.want {
				t.Errorf("InitiativeOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSubject(t *testing.T) {
	for _, tc := range []struct {
		topic, id, want string
	}{
		{TopicFormApproved, "INIT-1", "lgates.form.approved.INIT-1"},
		{TopicRoleAssigned, "", "lgates.role.assigned"},
		{TopicStatusUpdated, "claims.v2", "lgates.status.updated.claims_v2"},
		{TopicInitiativeCreated, "a*b>c d", "lgates.initiative.created.a_b_c_d"},
	} {
		if got := Subject(tc.topic, tc.id); got != tc.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", tc.topic, tc.id, got, tc.want)
		}
	}
	if got := InitiativeSubject("claims.v2"); got != "lgates.*.*.claims_v2" {
		t.Errorf("InitiativeSubject = %q", got)
	}
}

// rawSubscribe captures every message on subject with a plain connection.
func rawSubscribe(t *testing.T, url, subject string) <-chan *nats.Msg {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(nc.Close)
	ch := make(chan *nats.Msg, 8)
	if _, err := nc.ChanSubscribe(subject, ch); err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
	return ch
}

func TestNATSPublisher_PublishesOnInitiativeSubject(t *testing.T) {
	url := startTestNATS(t)
	ch := rawSubscribe(t, url, TopicAll)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	form := model.NewGateForm("INIT-1", model.GateL3, time.Now())
	form.Status = model.FormApproved
	form.ApprovedBy = "carol"
	event := FormTransitioned{Form: form, Action: workflow.ActionApprove, From: model.FormSubmitted}
	if err := pub.Publish(context.Background(), TopicFormApproved, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != "lgates.form.approved.INIT-1" {
			t.Errorf("subject = %q", msg.Subject)
		}
		if msg.Header.Get(HeaderTopic) != TopicFormApproved || msg.Header.Get(HeaderInitiative) != "INIT-1" {
			t.Errorf("headers = %v", msg.Header)
		}
		var got FormTransitioned
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Form.ApprovedBy != "carol" || got.From != model.FormSubmitted || got.Action != workflow.ActionApprove {
			t.Errorf("payload = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PortfolioEventsUseBareTopic(t *testing.T) {
	url := startTestNATS(t)
	ch := rawSubscribe(t, url, TopicRoleAssigned)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	if err := pub.Publish(context.Background(), TopicRoleAssigned, RoleAssigned{UserRole: &model.UserRole{UserID: "bob", Role: model.RoleSTO}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case msg := <-ch:
		if msg.Header.Get(HeaderInitiative) != "" {
			t.Errorf("role event carries initiative header %q", msg.Header.Get(HeaderInitiative))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for role event")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pub.Publish(context.Background(), TopicInitiativeCreated, InitiativeCreated{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicInitiativeCreated, InitiativeCreated{}); err == nil {
		t.Error("expected error for canceled context")
	}
}
