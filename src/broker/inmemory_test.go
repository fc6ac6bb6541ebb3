package broker

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishSubscribe(t *testing.T) {
	b := NewInMemoryBroker()
	defer b.Close()

	ch, err := b.Subscribe(context.Background(), TopicDiagnostics, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), TopicDiagnostics, "identity_conflict", []byte(`{"kind":"identity_conflict"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Key != "identity_conflict" {
			t.Fatalf("key = %q", msg.Key)
		}
		if msg.Topic != TopicDiagnostics {
			t.Fatalf("topic = %q", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived")
	}
}

func TestInMemoryOffsetsIncrease(t *testing.T) {
	b := NewInMemoryBroker()
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), TopicFindings, "")
	_ = b.Publish(context.Background(), TopicFindings, "a", nil)
	_ = b.Publish(context.Background(), TopicFindings, "b", nil)

	first, second := <-ch, <-ch
	if second.Offset != first.Offset+1 {
		t.Fatalf("offsets %d, %d", first.Offset, second.Offset)
	}
}

func TestClosedBrokerRejectsPublish(t *testing.T) {
	b := NewInMemoryBroker()
	b.Close()

	if err := b.Publish(context.Background(), TopicDiagnostics, "", nil); err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}
