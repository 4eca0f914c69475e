package ecobee

import "strings"

// Thermostat mirrors one thermostat document as returned by the ecobee API.
// A value is replaced wholesale on every poll and never mutated in place.
type Thermostat struct {
	Identifier      string   `json:"identifier"`
	Name            string   `json:"name"`
	Runtime         Runtime  `json:"runtime"`
	Settings        Settings `json:"settings"`
	Program         Program  `json:"program"`
	Events          []Event  `json:"events"`
	EquipmentStatus string   `json:"equipmentStatus"`
}

// Runtime carries the reported sensor values. Temperatures are in tenths
// of a degree Fahrenheit, as on the wire.
type Runtime struct {
	ActualTemperature int    `json:"actualTemperature"`
	ActualHumidity    int    `json:"actualHumidity"`
	DesiredHeat       int    `json:"desiredHeat"`
	DesiredCool       int    `json:"desiredCool"`
	DesiredFanMode    string `json:"desiredFanMode"`
}

type Settings struct {
	HvacMode     string `json:"hvacMode"`
	HoldAction   string `json:"holdAction"`
	FanMinOnTime int    `json:"fanMinOnTime"`
}

type Program struct {
	CurrentClimateRef string `json:"currentClimateRef"`
}

// Event is one entry of the thermostat's hold/vacation event list.
type Event struct {
	Type           string `json:"type"`
	Running        bool   `json:"running"`
	HoldClimateRef string `json:"holdClimateRef"`
}

// HVAC mode vocabulary accepted by the API.
const (
	HvacAuto        = "auto"
	HvacAuxHeatOnly = "auxHeatOnly"
	HvacCool        = "cool"
	HvacHeat        = "heat"
	HvacOff         = "off"
)

// Hold duration preferences understood by the API.
const (
	HoldNextTransition = "nextTransition"
	HoldIndefinite     = "indefinite"
)

// Event types reported in the event list.
const (
	EventHold     = "hold"
	EventVacation = "vacation"
	EventAutoAway = "autoAway"
	EventAutoHome = "autoHome"
)

// EquipmentActive reports whether the named equipment token appears in the
// comma-joined equipmentStatus set.
func (t *Thermostat) EquipmentActive(name string) bool {
	for _, tok := range strings.Split(t.EquipmentStatus, ",") {
		if tok == name {
			return true
		}
	}
	return false
}
