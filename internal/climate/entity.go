package climate

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/brindle-labs/ecobridge/internal/ecobee"
)

// ProviderService is what a climate entity needs from the vendor layer:
// the throttled snapshot cache plus the command submission calls, all
// keyed by the entity's stable thermostat index.
type ProviderService interface {
	Update(ctx context.Context, force bool) error
	ThermostatCount() int
	ThermostatAt(index int) (ecobee.Thermostat, error)
	SetClimateHold(ctx context.Context, index int, climate, preference string) error
	SetHoldTemp(ctx context.Context, index, coolTenths, heatTenths int, preference string) error
	SetHvacMode(ctx context.Context, index int, mode string) error
	SetFanMinOnTime(ctx context.Context, index int, minutes string) error
	ResumeProgram(ctx context.Context, index int, resumeAll bool) error
}

// Thermostat exposes one physical thermostat as a climate entity. Reads
// derive from the cached document of the last poll; commands go straight
// to the vendor API and mark the next refresh as unthrottled so the
// command's effect becomes visible promptly. The entity never guesses
// post-command state.
type Thermostat struct {
	svc      ProviderService
	index    int
	holdTemp bool
	logger   *slog.Logger

	operationList []string

	mu                    sync.RWMutex
	thermostat            ecobee.Thermostat
	updateWithoutThrottle bool
}

// NewThermostat builds the entity for the given thermostat index. The
// provider service must already hold a fetched thermostat list.
func NewThermostat(svc ProviderService, index int, holdTemp bool, logger *slog.Logger) (*Thermostat, error) {
	doc, err := svc.ThermostatAt(index)
	if err != nil {
		return nil, err
	}
	return &Thermostat{
		svc:      svc,
		index:    index,
		holdTemp: holdTemp,
		logger:   logger,
		operationList: []string{
			ecobee.HvacAuto,
			ecobee.HvacAuxHeatOnly,
			ecobee.HvacCool,
			ecobee.HvacHeat,
			ecobee.HvacOff,
		},
		thermostat: doc,
	}, nil
}

// Refresh pulls the latest state. When a command ran since the previous
// refresh the fetch bypasses the provider's throttle window, and the
// one-shot flag is consumed. Provider errors propagate untouched; the
// poll scheduler owns retry.
func (t *Thermostat) Refresh(ctx context.Context) error {
	t.mu.RLock()
	force := t.updateWithoutThrottle
	t.mu.RUnlock()

	if err := t.svc.Update(ctx, force); err != nil {
		return err
	}
	if force {
		t.mu.Lock()
		t.updateWithoutThrottle = false
		t.mu.Unlock()
	}

	doc, err := t.svc.ThermostatAt(t.index)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.thermostat = doc
	t.mu.Unlock()
	return nil
}

func (t *Thermostat) doc() ecobee.Thermostat {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.thermostat
}

func (t *Thermostat) forceNextRefresh() {
	t.mu.Lock()
	t.updateWithoutThrottle = true
	t.mu.Unlock()
}

// Index returns the stable thermostat index this entity wraps.
func (t *Thermostat) Index() int { return t.index }

// Name returns the device name from the latest snapshot.
func (t *Thermostat) Name() string { return t.doc().Name }

// EntityID is the platform-wide identifier, derived from the device name.
func (t *Thermostat) EntityID() string { return "climate." + slugify(t.doc().Name) }

// CurrentTemperature converts the reported tenths to degrees.
func (t *Thermostat) CurrentTemperature() float64 {
	return float64(t.doc().Runtime.ActualTemperature) / 10
}

// TargetTemperature is defined only while heating or cooling.
func (t *Thermostat) TargetTemperature() (int, bool) {
	doc := t.doc()
	switch t.currentOperation(doc) {
	case StateHeat:
		return doc.Runtime.DesiredHeat / 10, true
	case StateCool:
		return doc.Runtime.DesiredCool / 10, true
	default:
		return 0, false
	}
}

// TargetTemperatureLow is the lower bound of the auto band, defined only
// in auto operation.
func (t *Thermostat) TargetTemperatureLow() (int, bool) {
	doc := t.doc()
	if t.currentOperation(doc) != StateAuto {
		return 0, false
	}
	return doc.Runtime.DesiredHeat / 10, true
}

// TargetTemperatureHigh is the upper bound of the auto band, defined only
// in auto operation.
func (t *Thermostat) TargetTemperatureHigh() (int, bool) {
	doc := t.doc()
	if t.currentOperation(doc) != StateAuto {
		return 0, false
	}
	return doc.Runtime.DesiredCool / 10, true
}

// DesiredFanMode reports the fan mode the device is trying to run.
func (t *Thermostat) DesiredFanMode() string { return t.doc().Runtime.DesiredFanMode }

// FanState is "on" while the fan token is present in the equipment status.
func (t *Thermostat) FanState() string {
	doc := t.doc()
	if doc.EquipmentActive("fan") {
		return StateOn
	}
	return StateOff
}

// OperationMode is the raw configured HVAC mode.
func (t *Thermostat) OperationMode() string { return t.doc().Settings.HvacMode }

// OperationList returns the fixed HVAC mode vocabulary.
func (t *Thermostat) OperationList() []string { return t.operationList }

// CurrentOperation normalizes the HVAC mode: the aux-heat variants read
// as plain heat, everything else passes through.
func (t *Thermostat) CurrentOperation() string { return t.currentOperation(t.doc()) }

func (t *Thermostat) currentOperation(doc ecobee.Thermostat) string {
	mode := doc.Settings.HvacMode
	if mode == ecobee.HvacAuxHeatOnly || mode == "heatPump" {
		return StateHeat
	}
	return mode
}

// ComfortProfile is the currently scheduled climate, e.g. home or sleep.
func (t *Thermostat) ComfortProfile() string { return t.doc().Program.CurrentClimateRef }

// FanMinOnTime reports the configured minimum fan minutes per hour.
func (t *Thermostat) FanMinOnTime() int { return t.doc().Settings.FanMinOnTime }

// IsVacationOn reports whether a vacation event is running.
func (t *Thermostat) IsVacationOn() bool {
	return anyEvent(t.doc().Events, func(e ecobee.Event) bool {
		return e.Type == ecobee.EventVacation && e.Running
	})
}

// IsTempHoldOn reports whether a temperature hold event is running.
func (t *Thermostat) IsTempHoldOn() bool {
	return anyEvent(t.doc().Events, func(e ecobee.Event) bool {
		return e.Type == ecobee.EventHold && e.Running
	})
}

// IsAwayModeOn reports whether an away hold or auto-away event exists.
func (t *Thermostat) IsAwayModeOn() bool {
	return anyEvent(t.doc().Events, func(e ecobee.Event) bool {
		return e.HoldClimateRef == "away" || e.Type == ecobee.EventAutoAway
	})
}

// IsHomeModeOn reports whether a home hold or auto-home event exists.
func (t *Thermostat) IsHomeModeOn() bool {
	return anyEvent(t.doc().Events, func(e ecobee.Event) bool {
		return e.HoldClimateRef == "home" || e.Type == ecobee.EventAutoHome
	})
}

// CurrentHoldMode resolves the active hold with fixed precedence:
// away beats home beats a generic temperature hold.
func (t *Thermostat) CurrentHoldMode() HoldMode {
	switch {
	case t.IsAwayModeOn():
		return HoldAway
	case t.IsHomeModeOn():
		return HoldHome
	case t.IsTempHoldOn():
		return HoldTemp
	default:
		return HoldNone
	}
}

// Attributes bundles the device-specific extras. The operation field
// classifies the raw equipment status: idle when nothing runs, cool/heat
// when a compressor stage or aux heat is active, otherwise the raw string.
func (t *Thermostat) Attributes() Attributes {
	doc := t.doc()
	status := doc.EquipmentStatus
	var operation string
	switch {
	case status == "":
		operation = StateIdle
	case strings.Contains(status, "Cool"):
		operation = StateCool
	case strings.Contains(status, "auxHeat"), strings.Contains(status, "heatPump"):
		operation = StateHeat
	default:
		operation = status
	}
	return Attributes{
		ActualHumidity: doc.Runtime.ActualHumidity,
		Fan:            t.FanState(),
		Mode:           doc.Program.CurrentClimateRef,
		Operation:      operation,
		FanMinOnTime:   doc.Settings.FanMinOnTime,
	}
}

// State captures every derived property at once for the front ends.
func (t *Thermostat) State() State {
	s := State{
		EntityID:           t.EntityID(),
		Name:               t.Name(),
		TemperatureUnit:    TemperatureUnit,
		CurrentTemperature: t.CurrentTemperature(),
		OperationMode:      t.OperationMode(),
		CurrentOperation:   t.CurrentOperation(),
		OperationList:      t.OperationList(),
		DesiredFanMode:     t.DesiredFanMode(),
		FanState:           t.FanState(),
		ComfortProfile:     t.ComfortProfile(),
		FanMinOnTime:       t.FanMinOnTime(),
		HoldMode:           t.CurrentHoldMode().String(),
		VacationOn:         t.IsVacationOn(),
		AwayModeOn:         t.IsAwayModeOn(),
		HomeModeOn:         t.IsHomeModeOn(),
		TempHoldOn:         t.IsTempHoldOn(),
		Attributes:         t.Attributes(),
	}
	if v, ok := t.TargetTemperature(); ok {
		s.TargetTemperature = &v
	}
	if v, ok := t.TargetTemperatureLow(); ok {
		s.TargetTempLow = &v
	}
	if v, ok := t.TargetTemperatureHigh(); ok {
		s.TargetTempHigh = &v
	}
	return s
}

// SetHoldMode moves the thermostat to the requested hold. Requesting the
// hold that is already active is a no-op. Anything that is not a known
// hold resumes the schedule program, which clears holds.
func (t *Thermostat) SetHoldMode(ctx context.Context, mode HoldMode) error {
	if t.CurrentHoldMode() == mode {
		return nil
	}
	switch mode {
	case HoldAway:
		return t.TurnAwayModeOn(ctx)
	case HoldHome:
		return t.TurnHomeModeOn(ctx)
	case HoldTemp:
		return t.SetTempHold(ctx, int(t.CurrentTemperature()))
	default:
		if err := t.svc.ResumeProgram(ctx, t.index, false); err != nil {
			return err
		}
		t.forceNextRefresh()
		return nil
	}
}

// TurnAwayModeOn requests an away climate hold.
func (t *Thermostat) TurnAwayModeOn(ctx context.Context) error {
	if err := t.svc.SetClimateHold(ctx, t.index, "away", t.holdPreference()); err != nil {
		return err
	}
	t.forceNextRefresh()
	return nil
}

// TurnAwayModeOff clears the away hold by resuming the program.
func (t *Thermostat) TurnAwayModeOff(ctx context.Context) error {
	return t.SetHoldMode(ctx, HoldNone)
}

// TurnHomeModeOn requests a home climate hold.
func (t *Thermostat) TurnHomeModeOn(ctx context.Context) error {
	if err := t.svc.SetClimateHold(ctx, t.index, "home", t.holdPreference()); err != nil {
		return err
	}
	t.forceNextRefresh()
	return nil
}

// SetAutoTempHold requests an explicit heat/cool band hold; used while in
// auto operation. Temperatures are whole degrees.
func (t *Thermostat) SetAutoTempHold(ctx context.Context, heatTemp, coolTemp int) error {
	if err := t.svc.SetHoldTemp(ctx, t.index, coolTemp*10, heatTemp*10, t.holdPreference()); err != nil {
		return err
	}
	if t.logger != nil {
		t.logger.Debug("requested hold temp", "entity", t.EntityID(), "heat", heatTemp, "cool", coolTemp)
	}
	t.forceNextRefresh()
	return nil
}

// SetTempHold requests a single-setpoint hold while not in auto operation.
// The vendor API always wants a band, so the opposite bound is pushed 20
// degrees out of the way. Outside heat or cool operation there is no
// defensible band to build, so the request is rejected.
func (t *Thermostat) SetTempHold(ctx context.Context, temp int) error {
	var heatTemp, coolTemp int
	switch t.CurrentOperation() {
	case StateHeat:
		heatTemp = temp
		coolTemp = temp + 20
	case StateCool:
		heatTemp = temp - 20
		coolTemp = temp
	default:
		if t.logger != nil {
			t.logger.Error("temperature hold rejected", "entity", t.EntityID(), "operation", t.CurrentOperation())
		}
		return ErrHoldNeedsHeatOrCool
	}

	if err := t.svc.SetHoldTemp(ctx, t.index, coolTemp*10, heatTemp*10, t.holdPreference()); err != nil {
		return err
	}
	if t.logger != nil {
		t.logger.Debug("requested hold temp", "entity", t.EntityID(), "heat", heatTemp, "cool", coolTemp)
	}
	t.forceNextRefresh()
	return nil
}

// SetTemperature dispatches the generic set-temperature command. In auto
// operation a complete low/high pair maps to an auto band hold; otherwise
// a single temperature maps to a single-setpoint hold. Values are
// truncated to whole degrees, never rounded.
func (t *Thermostat) SetTemperature(ctx context.Context, req TemperatureRequest) error {
	if t.CurrentOperation() == StateAuto && req.TargetLow != nil && req.TargetHigh != nil {
		return t.SetAutoTempHold(ctx, int(*req.TargetLow), int(*req.TargetHigh))
	}
	if req.Temperature != nil {
		return t.SetTempHold(ctx, int(*req.Temperature))
	}
	if t.logger != nil {
		t.logger.Error("missing valid arguments for set temperature", "entity", t.EntityID())
	}
	return ErrMissingTemperatures
}

// SetOperationMode switches the HVAC mode to one of the fixed vocabulary.
func (t *Thermostat) SetOperationMode(ctx context.Context, mode string) error {
	valid := false
	for _, m := range t.operationList {
		if m == mode {
			valid = true
			break
		}
	}
	if !valid {
		return ErrInvalidOperationMode
	}
	if err := t.svc.SetHvacMode(ctx, t.index, mode); err != nil {
		return err
	}
	t.forceNextRefresh()
	return nil
}

// SetFanMinOnTime sets the minimum fan minutes per hour. The vendor wire
// wants a decimal string.
func (t *Thermostat) SetFanMinOnTime(ctx context.Context, minutes int) error {
	if err := t.svc.SetFanMinOnTime(ctx, t.index, strconv.Itoa(minutes)); err != nil {
		return err
	}
	t.forceNextRefresh()
	return nil
}

// ResumeProgram returns the thermostat to its schedule, optionally
// discarding the whole hold stack.
func (t *Thermostat) ResumeProgram(ctx context.Context, resumeAll bool) error {
	if err := t.svc.ResumeProgram(ctx, t.index, resumeAll); err != nil {
		return err
	}
	t.forceNextRefresh()
	return nil
}

func (t *Thermostat) holdPreference() string {
	return resolveHoldPreference(t.doc().Settings.HoldAction)
}

func anyEvent(events []ecobee.Event, match func(ecobee.Event) bool) bool {
	for _, e := range events {
		if match(e) {
			return true
		}
	}
	return false
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
