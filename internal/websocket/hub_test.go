package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeLogger struct{}

func (fakeLogger) Debug(module, message string, details map[string]interface{}) {}
func (fakeLogger) Info(module, message string, details map[string]interface{})  {}
func (fakeLogger) Warn(module, message string, details map[string]interface{})  {}
func (fakeLogger) Error(module, message string, details map[string]interface{}) {}
func (fakeLogger) Sync() error                                                  { return nil }

func TestUnregisterUnblocksParkedSender(t *testing.T) {
	hub := NewHub(nil, nil, fakeLogger{})
	go hub.Run()

	client := newClient(hub, nil, nil, uuid.New(), uuid.New(), uuid.New(), 1)
	hub.register <- client

	if !client.enqueue([]byte("first")) {
		t.Fatal("enqueue into an empty queue failed")
	}

	// Second frame finds the queue full and parks inside enqueue.
	result := make(chan bool, 1)
	go func() { result <- client.enqueue([]byte("second")) }()
	time.Sleep(20 * time.Millisecond)

	// Dropping the client must wake the parked sender, not panic it.
	hub.unregister <- client

	select {
	case ok := <-result:
		if ok {
			t.Error("send to a dropped connection reported success")
		}
	case <-time.After(time.Second):
		t.Fatal("sender still parked after the connection was dropped")
	}

	if client.enqueue([]byte("third")) {
		t.Error("enqueue after shutdown reported success")
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := newClient(nil, nil, nil, uuid.New(), uuid.New(), uuid.New(), 1)
	client.close()
	client.close()

	select {
	case <-client.done:
	default:
		t.Fatal("done not signalled after close")
	}
	if client.enqueue([]byte("frame")) {
		t.Error("enqueue on a closed client reported success")
	}
}
