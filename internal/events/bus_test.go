package events

import "testing"

func TestSubscribePublishDelivers(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(NewActivityUpdate("sock-1", map[string]any{"name": "Game"}))

	select {
	case e := <-ch:
		if e.Kind != ActivityUpdate || e.SocketID != "sock-1" {
			t.Fatalf("got %+v", e)
		}
	default:
		t.Fatal("expected event, got none")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(NewClear("sock-1"))
	}
	// draining confirms the channel never deadlocked the publisher above
	for i := 0; i < subscriberBuffer; i++ {
		<-ch
	}
}

func TestCancelUnsubscribesAndClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
}

func TestPublishToNoSubscribersIsNoop(t *testing.T) {
	b := NewBus()
	b.Publish(NewPrivacyRefresh())
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := NewBus()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(NewActivityUpdate("sock-2", nil))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.SocketID != "sock-2" {
				t.Fatalf("got %+v", e)
			}
		default:
			t.Fatal("expected event on every subscriber")
		}
	}
}
