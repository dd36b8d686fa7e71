package bus

import (
	"testing"

	"chatledger/pkg/logger"
)

func init() { logger.Init("error") }

var testTopic = NewTopic[int]("test.number")

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := New()
	var got []string
	Subscribe(b, testTopic, func(int) { got = append(got, "first") })
	Subscribe(b, testTopic, func(int) { got = append(got, "second") })
	Subscribe(b, testTopic, func(int) { got = append(got, "third") })

	Publish(b, testTopic, 1)

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	calls := 0
	unsub := Subscribe(b, testTopic, func(int) { calls++ })

	Publish(b, testTopic, 1)
	unsub()
	unsub() // second call is a no-op
	Publish(b, testTopic, 2)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestSubscribeOnceFiresOnce(t *testing.T) {
	b := New()
	calls := 0
	SubscribeOnce(b, testTopic, func(int) { calls++ })

	Publish(b, testTopic, 1)
	Publish(b, testTopic, 2)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestSubscribeOnceCanBeCanceled(t *testing.T) {
	b := New()
	calls := 0
	unsub := SubscribeOnce(b, testTopic, func(int) { calls++ })
	unsub()

	Publish(b, testTopic, 1)
	if calls != 0 {
		t.Fatalf("expected 0 calls after cancel, got %d", calls)
	}
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := New()
	var after int
	Subscribe(b, testTopic, func(int) { panic("boom") })
	Subscribe(b, testTopic, func(v int) { after = v })

	Publish(b, testTopic, 42)

	if after != 42 {
		t.Fatalf("handler after panicking one did not run")
	}
}

func TestUnsubscribeAllAndReset(t *testing.T) {
	b := New()
	calls := 0
	Subscribe(b, testTopic, func(int) { calls++ })
	b.UnsubscribeAll(testTopic.Name())
	Publish(b, testTopic, 1)
	if calls != 0 {
		t.Fatalf("expected no calls after UnsubscribeAll, got %d", calls)
	}

	Subscribe(b, testTopic, func(int) { calls++ })
	b.Reset()
	Publish(b, testTopic, 1)
	if calls != 0 {
		t.Fatalf("expected no calls after Reset, got %d", calls)
	}
}

func TestTypedPayloadReachesHandler(t *testing.T) {
	b := New()
	topic := NewTopic[string]("test.string")
	var got string
	Subscribe(b, topic, func(v string) { got = v })
	Publish(b, topic, "hello")
	if got != "hello" {
		t.Fatalf("expected payload to round-trip, got %q", got)
	}
}
