package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/brindle-labs/ecobridge/internal/climate"
	"github.com/brindle-labs/ecobridge/internal/platform"
	"github.com/brindle-labs/ecobridge/internal/ports"
)

type Config struct {
	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainState     bool
	PublishInterval time.Duration

	Username string
	Password string
}

type Controller struct {
	plat   ports.ClimatePlatform
	cfg    Config
	logger *slog.Logger

	client  mqtt.Client
	baseCtx context.Context
}

func New(plat ports.ClimatePlatform, cfg Config, logger *slog.Logger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "ecobridge"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ecobridge"
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 30 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		plat:   plat,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	c.baseCtx = ctx

	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		for _, filter := range []string{c.topic("+/set/+"), c.topic("service/+")} {
			token := cl.Subscribe(filter, c.cfg.QoS, c.onMessage)
			token.Wait()
			if err := token.Error(); err != nil && c.logger != nil {
				c.logger.Error("mqtt subscribe failed", "filter", filter, "error", err)
			}
		}
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish each entity's state on interval, and only
	// when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	last := map[string][]byte{}

	c.publishStates(last)

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			c.publishStates(last)
		}
	}
}

func (c *Controller) publishStates(last map[string][]byte) {
	for _, e := range c.plat.Entities() {
		b, err := json.Marshal(e.State())
		if err != nil {
			continue
		}
		id := e.EntityID()
		if bytes.Equal(last[id], b) {
			continue
		}
		last[id] = b
		c.client.Publish(c.topic(id+"/state"), c.cfg.QoS, c.cfg.RetainState, b)
	}
}

// Command payload format for scalar commands: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	prefix := c.cfg.BaseTopic + "/"
	t := msg.Topic()
	if !strings.HasPrefix(t, prefix) {
		return
	}
	rest := strings.TrimPrefix(t, prefix)

	ctx, cancel := context.WithTimeout(c.runCtx(), 15*time.Second)
	defer cancel()

	if name, ok := strings.CutPrefix(rest, "service/"); ok {
		c.onService(ctx, name, msg.Payload())
		return
	}

	// topic format: <base>/<entity>/set/<field>
	entityID, field, ok := strings.Cut(rest, "/set/")
	if !ok {
		return
	}
	e, ok := c.plat.Entity(entityID)
	if !ok {
		return
	}

	var err error
	switch field {
	case "temperature":
		var req climate.TemperatureRequest
		if jsonErr := json.Unmarshal(msg.Payload(), &req); jsonErr != nil {
			return
		}
		err = e.SetTemperature(ctx, req)

	case "operation_mode":
		v, decErr := decodeValueStrict[string](msg.Payload())
		if decErr != nil {
			return
		}
		err = e.SetOperationMode(ctx, v)

	case "hold_mode":
		v, decErr := decodeValueStrict[string](msg.Payload())
		if decErr != nil {
			return
		}
		err = e.SetHoldMode(ctx, climate.ParseHoldMode(v))

	case "fan_min_on_time":
		v, decErr := decodeValueStrict[int](msg.Payload())
		if decErr != nil {
			return
		}
		err = e.SetFanMinOnTime(ctx, v)

	case "resume":
		v, decErr := decodeValueStrict[bool](msg.Payload())
		if decErr != nil {
			return
		}
		err = e.ResumeProgram(ctx, v)

	default:
		return
	}

	if err != nil && c.logger != nil {
		c.logger.Error("mqtt command failed", "entity", entityID, "field", field, "error", err)
	}
}

func (c *Controller) onService(ctx context.Context, name string, payload []byte) {
	var err error
	switch name {
	case platform.ServiceSetFanMinOnTime:
		var req platform.SetFanMinOnTimeRequest
		if jsonErr := json.Unmarshal(payload, &req); jsonErr != nil {
			return
		}
		err = c.plat.CallSetFanMinOnTime(ctx, req.EntityIDs, req.FanMinOnTime)

	case platform.ServiceResumeProgram:
		var req platform.ResumeProgramRequest
		if jsonErr := json.Unmarshal(payload, &req); jsonErr != nil {
			return
		}
		err = c.plat.CallResumeProgram(ctx, req.EntityIDs, req.ResumeAll)

	default:
		return
	}

	if err != nil && c.logger != nil {
		c.logger.Error("mqtt service call failed", "service", name, "error", err)
	}
}

func (c *Controller) runCtx() context.Context {
	if c.baseCtx != nil {
		return c.baseCtx
	}
	return context.Background()
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
