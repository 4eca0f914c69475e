package ecobee

import "errors"

var ErrUnknownThermostat = errors.New("unknown thermostat index")
