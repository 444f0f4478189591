package driver

import (
	"context"
	"encoding/json"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Queue is the MQTT-backed read-through buffer of §4.4: it subscribes to a
// topic at Init and holds the most recent message per key in memory, so
// Resolve/Query read off the buffer rather than blocking on the broker.
// Capabilities.SupportsFilter is false; a queue only supports
// address-by-key reads over whatever has arrived so far.
type Queue struct {
	broker   string
	topic    string
	keyField string
	clientID string

	client mqtt.Client

	mu    sync.RWMutex
	byKey map[string]ports.Record
}

// NewQueue builds a Queue driver from `{broker, topic, key-field, client-id}`.
func NewQueue(config map[string]any) (ports.DataSourceDriver, error) {
	broker, _ := config["broker"].(string)
	topic, _ := config["topic"].(string)
	keyField, _ := config["key-field"].(string)
	clientID, _ := config["client-id"].(string)
	if broker == "" || topic == "" || keyField == "" {
		return nil, apexerr.New(apexerr.KindSchemaViolation, "NewQueue", "broker, topic, and key-field are required")
	}
	if clientID == "" {
		clientID = "apex-queue-" + topic
	}
	return &Queue{broker: broker, topic: topic, keyField: keyField, clientID: clientID, byKey: map[string]ports.Record{}}, nil
}

func (d *Queue) Init(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(d.broker).
		SetClientID(d.clientID).
		SetAutoReconnect(true)
	d.client = mqtt.NewClient(opts)

	if token := d.client.Connect(); token.Wait() && token.Error() != nil {
		return apexerr.Wrap(apexerr.KindConnectionError, "Queue.Init", "mqtt connect failed", token.Error())
	}

	token := d.client.Subscribe(d.topic, 1, d.onMessage)
	if token.Wait() && token.Error() != nil {
		return apexerr.Wrap(apexerr.KindConnectionError, "Queue.Init", "mqtt subscribe failed", token.Error())
	}
	return nil
}

func (d *Queue) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var m map[string]any
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		return
	}
	rec := ports.Record{}
	for k, v := range m {
		rec[k] = value.FromAny(v)
	}
	kv, ok := rec[d.keyField]
	if !ok {
		return
	}
	d.mu.Lock()
	d.byKey[value.Format(kv)] = rec
	d.mu.Unlock()
}

func (d *Queue) Shutdown(ctx context.Context) error {
	if d.client != nil && d.client.IsConnected() {
		d.client.Disconnect(250)
	}
	return nil
}

func (d *Queue) Healthy(ctx context.Context) bool {
	return d.client != nil && d.client.IsConnected()
}

func (d *Queue) Capabilities() ports.Capabilities {
	return ports.Capabilities{SupportsBatch: true, SupportsFilter: false, SupportsComposite: false}
}

func (d *Queue) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byKey[value.Format(key)]
	return rec, ok, nil
}

func (d *Queue) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	out := map[string]ports.Record{}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, k := range keys {
		if rec, ok := d.byKey[value.Format(k)]; ok {
			out[value.Format(k)] = rec
		}
	}
	return out, nil
}

// Query returns every message buffered so far; a queue has no filter
// predicate support so params is ignored beyond the capability check.
func (d *Queue) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ports.Record, 0, len(d.byKey))
	for _, r := range d.byKey {
		out = append(out, r)
	}
	return out, nil
}
