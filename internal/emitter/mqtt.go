// Package emitter publishes pilot status to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ayusman/tellopilot/internal/config"
	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/pilot"
)

const (
	// DefaultMinInterval throttles unchanged status messages.
	DefaultMinInterval = 200 * time.Millisecond
	// QueueSize is the number of payloads waiting to be published.
	QueueSize = 16

	// DefaultConnectTimeout bounds the wait for the first connection.
	DefaultConnectTimeout = 5 * time.Second

	publishTimeout = 2 * time.Second
)

// MQTTEmitter publishes pilot status messages to an MQTT broker
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	Client mqtt.Client
	logger *zap.SugaredLogger

	// MinInterval is the minimum spacing between status messages unless
	// the flight state or the warning changed.
	MinInterval time.Duration
	// ConnectTimeout bounds Connect.
	ConnectTimeout time.Duration

	queue chan []byte

	mu        sync.RWMutex
	published uint64
	errors    uint64
	dropped   uint64
	connected bool
	last      *pilot.Status
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg config.MQTTConfig, logger *zap.SugaredLogger) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:            cfg,
		logger:         logger,
		MinInterval:    DefaultMinInterval,
		ConnectTimeout: DefaultConnectTimeout,
		queue:          make(chan []byte, QueueSize),
	}
}

// Connect establishes connection to MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.logger.Infow("mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warnw("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker)
	}

	e.Client = mqtt.NewClient(opts)

	e.logger.Infow("connecting to mqtt broker", "broker", e.cfg.Broker)

	return e.await(ctx, e.Client.Connect())
}

// await waits for the connect token. On failure the client is
// disconnected so it stops retrying in the background.
func (e *MQTTEmitter) await(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(e.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		e.Client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout after %s", e.ConnectTimeout)
	case <-ctx.Done():
		e.Client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		e.Client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Observe queues s for publishing. It never blocks: unchanged statuses
// inside MinInterval are skipped and a full queue drops the message. It is
// meant to be registered with pilot.Pilot.OnStatus.
func (e *MQTTEmitter) Observe(s pilot.Status) {
	e.mu.Lock()
	if e.last != nil && !changed(*e.last, s) && s.At.Sub(e.last.At) < e.MinInterval {
		e.mu.Unlock()
		return
	}
	e.last = &s
	e.mu.Unlock()

	payload, err := json.Marshal(s)
	if err != nil {
		e.countError()
		e.logger.Warnw("failed to marshal status", "error", err)
		return
	}

	select {
	case e.queue <- payload:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
	}
}

func changed(prev, next pilot.Status) bool {
	if prev.State != next.State {
		return true
	}
	return warningText(prev.Warning) != warningText(next.Warning)
}

func warningText(w *control.Warning) string {
	if w == nil {
		return ""
	}
	return w.Message
}

// Run publishes queued messages until ctx is done, then disconnects.
func (e *MQTTEmitter) Run(ctx context.Context) error {
	defer e.Disconnect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-e.queue:
			if err := e.Publish(payload); err != nil {
				e.logger.Debugw("status publish failed", "error", err)
			}
		}
	}
}

// Publish publishes payload to the status topic
func (e *MQTTEmitter) Publish(payload []byte) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	token := e.Client.Publish(e.cfg.Topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	e.logger.Debugw("status published",
		"topic", e.cfg.Topic,
		"qos", e.cfg.QoS,
		"size", len(payload),
	)
	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		e.logger.Infow("mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
		Dropped:   e.dropped,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
