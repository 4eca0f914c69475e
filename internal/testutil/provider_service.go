package testutil

import (
	"context"

	"github.com/brindle-labs/ecobridge/internal/ecobee"
)

// FakeProviderService is a reusable spy implementing climate.ProviderService.
// Put ONLY what multiple test packages need here.
type FakeProviderService struct {
	Thermostats []ecobee.Thermostat

	UpdateCalls  int
	UpdateForced []bool
	UpdateErr    error

	ClimateHoldCalls []ClimateHoldCall
	ClimateHoldErr   error

	HoldTempCalls []HoldTempCall
	HoldTempErr   error

	HvacModeCalls []HvacModeCall
	HvacModeErr   error

	FanMinOnTimeCalls []FanMinOnTimeCall
	FanMinOnTimeErr   error

	ResumeCalls []ResumeCall
	ResumeErr   error
}

type ClimateHoldCall struct {
	Index      int
	Climate    string
	Preference string
}

type HoldTempCall struct {
	Index      int
	CoolTenths int
	HeatTenths int
	Preference string
}

type HvacModeCall struct {
	Index int
	Mode  string
}

type FanMinOnTimeCall struct {
	Index   int
	Minutes string
}

type ResumeCall struct {
	Index     int
	ResumeAll bool
}

// NewFakeProviderService seeds the fake with one representative thermostat
// document per supplied name.
func NewFakeProviderService(names ...string) *FakeProviderService {
	f := &FakeProviderService{}
	for _, name := range names {
		f.Thermostats = append(f.Thermostats, ecobee.Thermostat{
			Identifier: "3100" + name,
			Name:       name,
			Runtime: ecobee.Runtime{
				ActualTemperature: 715,
				ActualHumidity:    34,
				DesiredHeat:       680,
				DesiredCool:       740,
				DesiredFanMode:    "auto",
			},
			Settings: ecobee.Settings{
				HvacMode:     ecobee.HvacAuto,
				HoldAction:   "useEndTime4hour",
				FanMinOnTime: 10,
			},
			Program:         ecobee.Program{CurrentClimateRef: "home"},
			EquipmentStatus: "",
		})
	}
	return f
}

// CommandCount totals every vendor command the fake has seen. Handy for
// the zero-calls assertions.
func (f *FakeProviderService) CommandCount() int {
	return len(f.ClimateHoldCalls) + len(f.HoldTempCalls) + len(f.HvacModeCalls) +
		len(f.FanMinOnTimeCalls) + len(f.ResumeCalls)
}

func (f *FakeProviderService) Update(_ context.Context, force bool) error {
	f.UpdateCalls++
	f.UpdateForced = append(f.UpdateForced, force)
	return f.UpdateErr
}

func (f *FakeProviderService) ThermostatCount() int { return len(f.Thermostats) }

func (f *FakeProviderService) ThermostatAt(index int) (ecobee.Thermostat, error) {
	if index < 0 || index >= len(f.Thermostats) {
		return ecobee.Thermostat{}, ecobee.ErrUnknownThermostat
	}
	return f.Thermostats[index], nil
}

func (f *FakeProviderService) SetClimateHold(_ context.Context, index int, climate, preference string) error {
	f.ClimateHoldCalls = append(f.ClimateHoldCalls, ClimateHoldCall{index, climate, preference})
	return f.ClimateHoldErr
}

func (f *FakeProviderService) SetHoldTemp(_ context.Context, index, coolTenths, heatTenths int, preference string) error {
	f.HoldTempCalls = append(f.HoldTempCalls, HoldTempCall{index, coolTenths, heatTenths, preference})
	return f.HoldTempErr
}

func (f *FakeProviderService) SetHvacMode(_ context.Context, index int, mode string) error {
	f.HvacModeCalls = append(f.HvacModeCalls, HvacModeCall{index, mode})
	return f.HvacModeErr
}

func (f *FakeProviderService) SetFanMinOnTime(_ context.Context, index int, minutes string) error {
	f.FanMinOnTimeCalls = append(f.FanMinOnTimeCalls, FanMinOnTimeCall{index, minutes})
	return f.FanMinOnTimeErr
}

func (f *FakeProviderService) ResumeProgram(_ context.Context, index int, resumeAll bool) error {
	f.ResumeCalls = append(f.ResumeCalls, ResumeCall{index, resumeAll})
	return f.ResumeErr
}
