package queue

import (
	"testing"

	"github.com/clubops/notify-engine/internal/domain"
)

func TestQueueNames(t *testing.T) {
	work := WorkQueueNames()
	if len(work) != 2 {
		t.Fatalf("WorkQueueNames len = %d, want 2", len(work))
	}

	expected := map[string]struct{}{
		"dispatch.routed": {},
		"dispatch.direct": {},
	}

	for _, name := range work {
		if _, ok := expected[name]; !ok {
			t.Fatalf("unexpected queue name: %s", name)
		}
	}

	dlq := DLQNames()
	if len(dlq) != 2 {
		t.Fatalf("DLQNames len = %d, want 2", len(dlq))
	}

	expectedDLQ := map[string]struct{}{
		"dlq.dispatch.routed": {},
		"dlq.dispatch.direct": {},
	}

	for _, name := range dlq {
		if _, ok := expectedDLQ[name]; !ok {
			t.Fatalf("unexpected dlq name: %s", name)
		}
	}
}

func TestQueueName(t *testing.T) {
	queueName := QueueName(domain.ChannelRouted)
	if queueName != "dispatch.routed" {
		t.Fatalf("QueueName = %s, want dispatch.routed", queueName)
	}

	dlqName := DLQName(domain.ChannelDirect)
	if dlqName != "dlq.dispatch.direct" {
		t.Fatalf("DLQName = %s, want dlq.dispatch.direct", dlqName)
	}
}

func TestDispatchMessageValidate(t *testing.T) {
	msg := DispatchMessage{
		RecordID: "r1",
		BatchID:  "b1",
		Channel:  domain.ChannelRouted,
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.RecordID = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty record id")
	}

	msg.RecordID = "r1"
	msg.BatchID = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty batch id")
	}

	msg.BatchID = "b1"
	msg.Channel = domain.Channel("invalid")
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for invalid channel")
	}
}
