package flow

import (
	"sync"
	"testing"
	"time"
)

func TestNewStateFlow(t *testing.T) {
	f := NewStateFlow(7)
	if got := f.Value(); got != 7 {
		t.Errorf("Value() = %v, want %v", got, 7)
	}
	if got := f.subscriberCount(); got != 0 {
		t.Errorf("subscriberCount() = %v, want 0", got)
	}
}

func TestStateFlow_SubscribeReplaysCurrent(t *testing.T) {
	f := NewStateFlow("initial")
	f.Set("second")

	ch := f.Subscribe()
	defer f.Unsubscribe(ch)

	select {
	case v := <-ch:
		if v != "second" {
			t.Errorf("first received = %q, want %q", v, "second")
		}
	case <-time.After(time.Second):
		t.Fatal("Subscribe() did not replay current value")
	}
}

func TestStateFlow_SetDelivers(t *testing.T) {
	f := NewStateFlow(0)
	ch := f.Subscribe()
	defer f.Unsubscribe(ch)

	<-ch // replayed initial value

	f.Set(1)

	select {
	case v := <-ch:
		if v != 1 {
			t.Errorf("received = %v, want 1", v)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive update")
	}
}

func TestStateFlow_SlowSubscriberSeesLatest(t *testing.T) {
	f := NewStateFlow(0)
	ch := f.Subscribe()
	defer f.Unsubscribe(ch)

	// never read while publishing; Set must not block
	done := make(chan struct{})
	go func() {
		for i := 1; i <= 500; i++ {
			f.Set(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Set() blocked on slow subscriber")
	}

	select {
	case v := <-ch:
		if v != 500 {
			t.Errorf("conflated value = %v, want 500", v)
		}
	default:
		t.Fatal("subscriber has no pending value")
	}
}

func TestStateFlow_OrderPreservedForFastSubscriber(t *testing.T) {
	f := NewStateFlow(0)
	ch := f.Subscribe()
	defer f.Unsubscribe(ch)
	<-ch

	for i := 1; i <= 5; i++ {
		f.Set(i)
		if v := <-ch; v != i {
			t.Fatalf("received = %v, want %v", v, i)
		}
	}
}

func TestStateFlow_Unsubscribe(t *testing.T) {
	f := NewStateFlow(0)
	ch := f.Subscribe()
	f.Unsubscribe(ch)
	f.Unsubscribe(ch) // second call is a no-op

	// drain replayed value, then expect closed
	<-ch
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestStateFlow_Close(t *testing.T) {
	f := NewStateFlow(0)
	ch := f.Subscribe()
	<-ch

	f.Close()
	f.Close()

	if _, ok := <-ch; ok {
		t.Error("Close() should close subscriber channels")
	}

	f.Set(3)
	if got := f.Value(); got != 0 {
		t.Errorf("Value() after Close = %v, want 0", got)
	}

	late := f.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe() after Close should return closed channel")
	}
}

func TestStateFlow_ConcurrentAccess(t *testing.T) {
	f := NewStateFlow(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.Set(n*100 + j)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = f.Value()
			}
		}()
		go func() {
			defer wg.Done()
			ch := f.Subscribe()
			time.Sleep(5 * time.Millisecond)
			f.Unsubscribe(ch)
		}()
	}
	wg.Wait()
}
