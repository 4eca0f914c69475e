package mqttctrl

import (
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/brindle-labs/ecobridge/internal/platform"
	"github.com/brindle-labs/ecobridge/internal/testutil"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	err  error
	done chan struct{}
}

func (t fakeToken) Done() <-chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
		close(t.done)
	}
	return t.done
}

func (t fakeToken) Wait() bool                       { return true }
func (t fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t fakeToken) Error() error                     { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	publishes []publishCall
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return fakeToken{} }
func (c *fakeClient) Disconnect(_ uint)      {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = append([]byte(nil), v...)
	case string:
		b = []byte(v)
	default:
		tmp, _ := json.Marshal(v)
		b = tmp
	}
	c.publishes = append(c.publishes, publishCall{
		topic: topic, qos: qos, retain: retained, payload: b,
	})
	return fakeToken{}
}
func (c *fakeClient) Subscribe(_ string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) Unsubscribe(_ ...string) mqtt.Token       { return fakeToken{} }
func (c *fakeClient) AddRoute(_ string, _ mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader  { return mqtt.ClientOptionsReader{} }

// ---- tests ----

func newTestController(t *testing.T, cfg Config, names ...string) (*Controller, *testutil.FakeProviderService) {
	t.Helper()

	f := testutil.NewFakeProviderService(names...)
	plat, err := platform.Setup(t.Context(), f, &platform.DiscoveryInfo{}, nil)
	if err != nil {
		t.Fatalf("platform setup: %v", err)
	}
	c, err := New(plat, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.client = &fakeClient{}
	return c, f
}

func TestNewDefaults(t *testing.T) {
	c, _ := newTestController(t, Config{}, "Main Floor")

	if c.cfg.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("expected default BrokerURL, got %q", c.cfg.BrokerURL)
	}
	if c.cfg.BaseTopic != "ecobridge" {
		t.Fatalf("expected default BaseTopic, got %q", c.cfg.BaseTopic)
	}
	if c.cfg.ClientID != "ecobridge" {
		t.Fatalf("expected default ClientID, got %q", c.cfg.ClientID)
	}
	if c.cfg.PublishInterval != 30*time.Second {
		t.Fatalf("expected default PublishInterval, got %v", c.cfg.PublishInterval)
	}
}

func TestNewValidation(t *testing.T) {
	f := testutil.NewFakeProviderService("Main Floor")
	plat, err := platform.Setup(t.Context(), f, &platform.DiscoveryInfo{}, nil)
	if err != nil {
		t.Fatalf("platform setup: %v", err)
	}
	if _, err := New(plat, Config{QoS: 2}, nil); err == nil {
		t.Fatal("expected error when QoS > 1")
	}
}

func TestTopicJoin(t *testing.T) {
	c, _ := newTestController(t, Config{BaseTopic: "home/hvac/"}, "Main Floor")
	if got := c.topic("climate.main_floor/state"); got != "home/hvac/climate.main_floor/state" {
		t.Fatalf("expected topic without double slashes, got %q", got)
	}
}

func TestDecodeValueStrict(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, err := decodeValueStrict[int]([]byte(`{"value": 15}`))
		if err != nil {
			t.Fatal(err)
		}
		if v != 15 {
			t.Fatalf("expected 15, got %v", v)
		}
	})

	t.Run("missing value", func(t *testing.T) {
		if _, err := decodeValueStrict[bool]([]byte(`{}`)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		if _, err := decodeValueStrict[string]([]byte(`{"value":"heat","extra":1}`)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestOnMessage_IgnoresWrongPrefix(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "otherprefix/climate.main_floor/set/operation_mode",
		payload: []byte(`{"value":"cool"}`),
	})

	if f.CommandCount() != 0 {
		t.Fatalf("expected no vendor calls, got %d", f.CommandCount())
	}
}

func TestOnMessage_IgnoresUnknownEntity(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/climate.garage/set/operation_mode",
		payload: []byte(`{"value":"cool"}`),
	})

	if f.CommandCount() != 0 {
		t.Fatalf("expected no vendor calls, got %d", f.CommandCount())
	}
}

func TestOnMessage_OperationMode(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/climate.main_floor/set/operation_mode",
		payload: []byte(`{"value":"cool"}`),
	})

	if len(f.HvacModeCalls) != 1 || f.HvacModeCalls[0].Mode != "cool" {
		t.Fatalf("expected hvac mode call, got %+v", f.HvacModeCalls)
	}
}

func TestOnMessage_Temperature(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/climate.main_floor/set/temperature",
		payload: []byte(`{"target_temp_low":60,"target_temp_high":80}`),
	})

	if len(f.HoldTempCalls) != 1 {
		t.Fatalf("expected one hold temp call, got %d", len(f.HoldTempCalls))
	}
	call := f.HoldTempCalls[0]
	if call.HeatTenths != 600 || call.CoolTenths != 800 {
		t.Fatalf("unexpected band %+v", call)
	}
}

func TestOnMessage_HoldMode(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/climate.main_floor/set/hold_mode",
		payload: []byte(`{"value":"home"}`),
	})

	if len(f.ClimateHoldCalls) != 1 || f.ClimateHoldCalls[0].Climate != "home" {
		t.Fatalf("expected home climate hold, got %+v", f.ClimateHoldCalls)
	}
}

func TestOnMessage_FanMinOnTime(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/climate.main_floor/set/fan_min_on_time",
		payload: []byte(`{"value":8}`),
	})

	if len(f.FanMinOnTimeCalls) != 1 || f.FanMinOnTimeCalls[0].Minutes != "8" {
		t.Fatalf("expected fan min on time call, got %+v", f.FanMinOnTimeCalls)
	}
}

func TestOnMessage_MalformedPayload_DoesNotCallVendor(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/climate.main_floor/set/fan_min_on_time",
		payload: []byte(`{"minutes":8}`),
	})

	if f.CommandCount() != 0 {
		t.Fatalf("expected no vendor calls, got %d", f.CommandCount())
	}
}

func TestOnMessage_ServiceResumeProgram(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor", "Upstairs")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/service/resume_program",
		payload: []byte(`{"entity_id":["climate.upstairs"],"resume_all":true}`),
	})

	if len(f.ResumeCalls) != 1 {
		t.Fatalf("expected one resume call, got %d", len(f.ResumeCalls))
	}
	if f.ResumeCalls[0].Index != 1 || !f.ResumeCalls[0].ResumeAll {
		t.Fatalf("unexpected resume call %+v", f.ResumeCalls[0])
	}
}

func TestOnMessage_ServiceFanMinOnTime(t *testing.T) {
	c, f := newTestController(t, Config{}, "Main Floor")

	c.onMessage(nil, fakeMessage{
		topic:   "ecobridge/service/set_fan_min_on_time",
		payload: []byte(`{"fan_min_on_time":5}`),
	})

	if len(f.FanMinOnTimeCalls) != 1 || f.FanMinOnTimeCalls[0].Minutes != "5" {
		t.Fatalf("expected fan min on time call, got %+v", f.FanMinOnTimeCalls)
	}
}

func TestPublishStates_PublishesJSONAndSuppressesUnchanged(t *testing.T) {
	c, _ := newTestController(t, Config{QoS: 1, RetainState: true}, "Main Floor")
	fc := c.client.(*fakeClient)

	last := map[string][]byte{}
	c.publishStates(last)

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}
	p := fc.publishes[0]
	if p.topic != "ecobridge/climate.main_floor/state" {
		t.Fatalf("expected state topic, got %q", p.topic)
	}
	if p.qos != 1 || !p.retain {
		t.Fatalf("expected qos=1 retain=true, got qos=%d retain=%v", p.qos, p.retain)
	}

	var got map[string]any
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if got["entity_id"] != "climate.main_floor" {
		t.Fatalf("expected entity_id, got %v", got["entity_id"])
	}

	// unchanged state: nothing new goes out
	c.publishStates(last)
	if len(fc.publishes) != 1 {
		t.Fatalf("expected suppression, got %d publishes", len(fc.publishes))
	}
}
