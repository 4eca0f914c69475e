package ports

import (
	"context"

	"github.com/brindle-labs/ecobridge/internal/climate"
)

// ClimateEntity is the per-thermostat contract consumed by the front-end
// controllers (HTTP/MQTT/Modbus).
type ClimateEntity interface {
	EntityID() string
	Name() string
	State() climate.State
	Refresh(ctx context.Context) error
	SetTemperature(ctx context.Context, req climate.TemperatureRequest) error
	SetOperationMode(ctx context.Context, mode string) error
	SetHoldMode(ctx context.Context, mode climate.HoldMode) error
	SetFanMinOnTime(ctx context.Context, minutes int) error
	ResumeProgram(ctx context.Context, resumeAll bool) error
}

// ClimatePlatform is the control-plane port used by controllers: entity
// lookup plus the two platform-wide services with their fan-out semantics.
type ClimatePlatform interface {
	Entities() []ClimateEntity
	Entity(entityID string) (ClimateEntity, bool)
	CallSetFanMinOnTime(ctx context.Context, entityIDs []string, minutes int) error
	CallResumeProgram(ctx context.Context, entityIDs []string, resumeAll bool) error
}
