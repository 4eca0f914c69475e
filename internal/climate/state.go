package climate

// Normalized operation states shared with the front-end controllers.
const (
	StateAuto = "auto"
	StateCool = "cool"
	StateHeat = "heat"
	StateIdle = "idle"
	StateOff  = "off"
	StateOn   = "on"
)

// TemperatureUnit is fixed; the vendor reports Fahrenheit tenths.
const TemperatureUnit = "°F"

// TemperatureRequest carries the optional fields of a set-temperature
// command. In auto operation both TargetLow and TargetHigh are required;
// otherwise Temperature alone is used.
type TemperatureRequest struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TargetLow   *float64 `json:"target_temp_low,omitempty"`
	TargetHigh  *float64 `json:"target_temp_high,omitempty"`
}

// Attributes is the extra state bundle exposed alongside the main
// climate properties.
type Attributes struct {
	ActualHumidity int    `json:"actual_humidity"`
	Fan            string `json:"fan"`
	Mode           string `json:"mode"`
	Operation      string `json:"operation"`
	FanMinOnTime   int    `json:"fan_min_on_time"`
}

// State is a point-in-time view of every derived read property, suitable
// for serialization by the HTTP and MQTT front ends. Pointer fields are
// nil when the property is undefined in the current operation.
type State struct {
	EntityID           string     `json:"entity_id"`
	Name               string     `json:"name"`
	TemperatureUnit    string     `json:"temperature_unit"`
	CurrentTemperature float64    `json:"current_temperature"`
	TargetTemperature  *int       `json:"target_temperature,omitempty"`
	TargetTempLow      *int       `json:"target_temp_low,omitempty"`
	TargetTempHigh     *int       `json:"target_temp_high,omitempty"`
	OperationMode      string     `json:"operation_mode"`
	CurrentOperation   string     `json:"current_operation"`
	OperationList      []string   `json:"operation_list"`
	DesiredFanMode     string     `json:"desired_fan_mode"`
	FanState           string     `json:"fan"`
	ComfortProfile     string     `json:"comfort_profile"`
	FanMinOnTime       int        `json:"fan_min_on_time"`
	HoldMode           string     `json:"hold_mode"`
	VacationOn         bool       `json:"vacation_on"`
	AwayModeOn         bool       `json:"away_mode_on"`
	HomeModeOn         bool       `json:"home_mode_on"`
	TempHoldOn         bool       `json:"temp_hold_on"`
	Attributes         Attributes `json:"attributes"`
}
