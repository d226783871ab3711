//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "glscript-int-status"

	client, err := Connect(cfg, nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if client.Topics().Prefix != cfg.TopicPrefix {
		t.Errorf("Topics().Prefix = %q, want %q", client.Topics().Prefix, cfg.TopicPrefix)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "glscript-int-sub-track"

	client, err := Connect(cfg, nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := client.Topics()
	for _, topic := range []string{topics.AllStateSets(), topics.AllEvents()} {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if got := len(client.Subscriptions()); got != 2 {
		t.Errorf("len(Subscriptions()) = %d, want 2", got)
	}

	if err := client.Unsubscribe(topics.AllEvents()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if got := client.Subscriptions(); len(got) != 1 || got[0] != topics.AllStateSets() {
		t.Errorf("Subscriptions() = %v after Unsubscribe", got)
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "glscript-int-pub"
	pubClient, err := Connect(cfg, nil)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "glscript-int-sub"
	subClient, err := Connect(cfg, nil)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topics := subClient.Topics()
	received := make(chan string, 1)
	var once sync.Once
	err = subClient.Subscribe(topics.AllEvents(), 1, func(topic string, p []byte) error {
		once.Do(func() { received <- LastSegment(topic) + " " + string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.Publish(topics.Event("doorbell"), []byte(`{"button":"front"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if want := `doorbell {"button":"front"}`; msg != want {
			t.Errorf("received %q, want %q", msg, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}
