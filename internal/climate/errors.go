package climate

import "errors"

var (
	ErrInvalidOperationMode = errors.New("invalid operation mode")
	ErrMissingTemperatures  = errors.New("no usable target temperatures supplied")
	ErrHoldNeedsHeatOrCool  = errors.New("temperature hold requires heat or cool operation")
)
