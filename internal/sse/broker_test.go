package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "job.stage", Data: map[string]string{"job_id": "j1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: job.stage") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"job_id":"j1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishJobEvent_ListThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger jobs.updated.
	b.PublishJobEvent(JobEventStage, "j1", "INTAKE_UI_CONTRACT", "")
	// Second event immediately should NOT trigger another jobs.updated.
	b.PublishJobEvent(JobEventDone, "j1", "", "")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	listCount := 0
	jobCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "jobs.updated") {
				listCount++
			} else {
				jobCount++
			}
		default:
			break loop
		}
	}

	if jobCount != 2 {
		t.Errorf("job events = %d, want 2", jobCount)
	}
	if listCount != 1 {
		t.Errorf("jobs.updated events = %d, want 1 (throttled)", listCount)
	}
}

func TestPublishJobEventKinds(t *testing.T) {
	b := NewBroker(time.Hour) // suppress jobs.updated noise
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishJobEvent(JobEventFailed, "j2", "", "no entities or endpoints found")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: job.failed") {
			t.Errorf("missing failed event in %q", s)
		}
		if !strings.Contains(s, "no entities or endpoints found") {
			t.Errorf("missing error text in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "job.done", Data: map[string]string{"job_id": "j1"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: job.done") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "job.done", Data: map[string]string{"job_id": "x"}})
	b.PublishJobEvent(JobEventStage, "x", "INTAKE_UI_CONTRACT", "")
}
