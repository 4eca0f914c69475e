package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ecobee      EcobeeConfig   `json:"ecobee" yaml:"ecobee"`
	Platform    PlatformConfig `json:"platform" yaml:"platform"`
	Controllers struct {
		HTTP   HTTPConfig   `json:"http" yaml:"http"`
		MQTT   MQTTConfig   `json:"mqtt" yaml:"mqtt"`
		MODBUS ModbusConfig `json:"modbus" yaml:"modbus"`
	} `json:"controllers" yaml:"controllers"`
}

type EcobeeConfig struct {
	// BaseURL overrides the API endpoint; empty means the public API.
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	AccessToken string        `json:"access_token" yaml:"access_token"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	// Throttle is the minimum interval between real API fetches.
	Throttle time.Duration `json:"throttle" yaml:"throttle"`
}

type PlatformConfig struct {
	HoldTemp        *bool         `json:"hold_temp" yaml:"hold_temp"`
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	BrokerURL       string        `json:"broker_url" yaml:"broker_url"`
	ClientID        string        `json:"client_id" yaml:"client_id"`
	BaseTopic       string        `json:"base_topic" yaml:"base_topic"`
	QoS             byte          `json:"qos" yaml:"qos"`
	RetainState     bool          `json:"retain_state" yaml:"retain_state"`
	PublishInterval time.Duration `json:"publish_interval" yaml:"publish_interval"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	UnitID  byte   `json:"unit_id" yaml:"unit_id"`
}

func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path == "" {
		applyDefaults(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file missing → use defaults
			applyDefaults(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension %q", ext)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Ecobee.Timeout == 0 {
		cfg.Ecobee.Timeout = 10 * time.Second
	}
	if cfg.Ecobee.Throttle == 0 {
		cfg.Ecobee.Throttle = 3 * time.Minute
	}
	if cfg.Platform.RefreshInterval == 0 {
		cfg.Platform.RefreshInterval = time.Minute
	}
	if cfg.Controllers.HTTP.Addr == "" {
		cfg.Controllers.HTTP.Addr = ":8080"
	}
	if !cfg.Controllers.HTTP.Enabled && !cfg.Controllers.MQTT.Enabled && !cfg.Controllers.MODBUS.Enabled {
		cfg.Controllers.HTTP.Enabled = true
	}
	if cfg.Controllers.MQTT.PublishInterval == 0 {
		cfg.Controllers.MQTT.PublishInterval = 30 * time.Second
	}
	if cfg.Controllers.MODBUS.UnitID == 0 {
		cfg.Controllers.MODBUS.UnitID = 1
	}
}

// HoldTemp resolves the optional hold_temp flag; default is false.
func (c Config) HoldTemp() bool {
	return c.Platform.HoldTemp != nil && *c.Platform.HoldTemp
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ECOBRIDGE_ACCESS_TOKEN"); v != "" {
		cfg.Ecobee.AccessToken = v
	}
	if v := os.Getenv("ECOBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.Controllers.MQTT.Password = v
	}
	// Explicit addr preferred, else support PORT (common in containers).
	if v := os.Getenv("ECOBRIDGE_HTTP_ADDR"); v != "" {
		cfg.Controllers.HTTP.Addr = v
		return
	}
	if v := os.Getenv("PORT"); v != "" {
		// listen on all interfaces on that port
		cfg.Controllers.HTTP.Addr = ":" + v
	}
}
