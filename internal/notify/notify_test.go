package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jimdaga/localbrief/internal/logging"
)

func TestWaiterNotify(t *testing.T) {
	w := NewWaiter()
	a, cancelA := w.Subscribe("snap-1")
	defer cancelA()
	b, cancelB := w.Subscribe("snap-1")
	defer cancelB()
	other, cancelOther := w.Subscribe("snap-2")
	defer cancelOther()

	if n := w.Notify("snap-1"); n != 2 {
		t.Errorf("Notify woke %d, want 2", n)
	}
	for i, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		default:
			t.Errorf("subscriber %d was not woken", i)
		}
	}
	select {
	case <-other:
		t.Error("subscriber of another key was woken")
	default:
	}
	if w.Pending("snap-2") != 1 {
		t.Errorf("pending snap-2 = %d", w.Pending("snap-2"))
	}
}

func TestWaiterCancel(t *testing.T) {
	w := NewWaiter()
	_, cancel := w.Subscribe("snap-1")
	cancel()
	cancel()

	if w.Pending("snap-1") != 0 {
		t.Errorf("pending after cancel = %d", w.Pending("snap-1"))
	}
	if n := w.Notify("snap-1"); n != 0 {
		t.Errorf("Notify after cancel woke %d", n)
	}
}

func TestWaiterPublishReady(t *testing.T) {
	w := NewWaiter()
	ch, cancel := w.Subscribe("snap-1")
	defer cancel()

	if err := w.PublishReady(context.Background(), "snap-1"); err != nil {
		t.Fatalf("PublishReady: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("local publish did not wake the subscriber")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	channel := "briefing:ready:test"

	w := NewWaiter()
	stop, err := Start(url, channel, w, logging.Discard())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stop()

	pub, err := NewPublisher(url, channel)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	ch, cancel := w.Subscribe("snap-redis")
	defer cancel()

	// The subscription may not be confirmed yet; publish until it lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := pub.PublishReady(context.Background(), "snap-redis"); err != nil {
			t.Fatalf("PublishReady: %v", err)
		}
		select {
		case <-ch:
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("ready message never arrived")
		}
	}
}

func TestReadyMessageCarriesOnlyKey(t *testing.T) {
	payload, err := encodeReady("snap-1")
	if err != nil {
		t.Fatalf("encodeReady: %v", err)
	}
	if string(payload) != `{"key":"snap-1"}` {
		t.Errorf("payload = %s, want {\"key\":\"snap-1\"}", payload)
	}
}

func TestNewPublisherBadURL(t *testing.T) {
	if _, err := NewPublisher("not-a-url", ""); err == nil {
		t.Error("expected error for malformed redis URL")
	}
}
