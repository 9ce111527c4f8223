package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zaptest"

	"github.com/ayusman/tellopilot/internal/config"
	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/pilot"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the parts of mqtt.Client the emitter uses.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	messages     []message
	publishErr   error
	disconnected bool
}

func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return newToken(c.publishErr)
	}
	c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	return newToken(nil)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) sent() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]message, len(c.messages))
	copy(out, c.messages)
	return out
}

func newTestEmitter(t *testing.T) (*MQTTEmitter, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	e := NewMQTTEmitter(config.MQTTConfig{
		Broker:   "localhost:1883",
		Topic:    "tellopilot/status",
		ClientID: "test",
		QoS:      1,
	}, zaptest.NewLogger(t).Sugar())
	e.Client = client
	e.setConnected(true)
	return e, client
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestAwait(t *testing.T) {
	pending := func() mqtt.Token { return &fakeToken{done: make(chan struct{})} }
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name           string
		ctx            context.Context
		token          mqtt.Token
		wantErr        bool
		wantDisconnect bool
	}{
		{"connected", context.Background(), newToken(nil), false, false},
		{"refused", context.Background(), newToken(errors.New("not authorized")), true, true},
		{"timeout", context.Background(), pending(), true, true},
		{"cancelled", cancelled, pending(), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, client := newTestEmitter(t)
			e.setConnected(false)
			e.ConnectTimeout = 20 * time.Millisecond

			err := e.await(tt.ctx, tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("await() error = %v, wantErr %v", err, tt.wantErr)
			}
			if client.disconnected != tt.wantDisconnect {
				t.Errorf("disconnected = %v, want %v", client.disconnected, tt.wantDisconnect)
			}
			if e.Stats().Connected != !tt.wantErr {
				t.Errorf("Stats().Connected = %v, want %v", e.Stats().Connected, !tt.wantErr)
			}
		})
	}
}

func TestPublish(t *testing.T) {
	e, client := newTestEmitter(t)

	if err := e.Publish([]byte(`{"state":"airborne"}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	sent := client.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].topic != "tellopilot/status" || sent[0].qos != 1 {
		t.Errorf("message = %+v", sent[0])
	}
	if got := e.Stats(); got.Published != 1 || got.Errors != 0 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestPublish_Errors(t *testing.T) {
	e, client := newTestEmitter(t)

	client.publishErr = errors.New("broker gone")
	if err := e.Publish([]byte("{}")); err == nil {
		t.Error("Publish() error = nil on a failed token")
	}

	e.setConnected(false)
	if err := e.Publish([]byte("{}")); err == nil {
		t.Error("Publish() error = nil while disconnected")
	}

	if got := e.Stats(); got.Errors != 2 || got.Published != 0 {
		t.Errorf("Stats() = %+v, want 2 errors", got)
	}
}

func TestObserve_Throttles(t *testing.T) {
	e, _ := newTestEmitter(t)

	statuses := []pilot.Status{
		{At: t0, State: control.Grounded},
		// Unchanged and too soon.
		{At: t0.Add(50 * time.Millisecond), State: control.Grounded},
		// State change bypasses the interval.
		{At: t0.Add(100 * time.Millisecond), State: control.Airborne},
		// Warning change bypasses the interval.
		{At: t0.Add(150 * time.Millisecond), State: control.Airborne,
			Warning: &control.Warning{Message: control.MsgAltitudeCeiling, At: t0}},
		// Unchanged but past the interval.
		{At: t0.Add(400 * time.Millisecond), State: control.Airborne,
			Warning: &control.Warning{Message: control.MsgAltitudeCeiling, At: t0}},
	}
	for _, s := range statuses {
		e.Observe(s)
	}

	if got := len(e.queue); got != 4 {
		t.Fatalf("queued %d messages, want 4", got)
	}

	var first map[string]interface{}
	if err := json.Unmarshal(<-e.queue, &first); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if first["state"] != "grounded" {
		t.Errorf("state = %v, want grounded", first["state"])
	}
}

func TestObserve_DropsWhenFull(t *testing.T) {
	e, _ := newTestEmitter(t)
	e.MinInterval = 0

	for i := 0; i < QueueSize+3; i++ {
		e.Observe(pilot.Status{At: t0.Add(time.Duration(i) * time.Second), Cycle: uint64(i)})
	}

	if got := e.Stats().Dropped; got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}
}

func TestRun_PublishesAndDisconnects(t *testing.T) {
	e, client := newTestEmitter(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.Observe(pilot.Status{At: t0, State: control.Airborne, BatteryPct: 55})

	deadline := time.Now().Add(5 * time.Second)
	for len(client.sent()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("status not published within 5s")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(client.sent()[0].payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got["battery_pct"] != float64(55) || got["state"] != "airborne" {
		t.Errorf("payload = %v", got)
	}
	if !client.disconnected {
		t.Error("client not disconnected after Run")
	}
	if e.Stats().Connected {
		t.Error("Stats().Connected = true after Run")
	}
}
