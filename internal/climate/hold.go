package climate

import "github.com/brindle-labs/ecobridge/internal/ecobee"

// HoldMode names the hold currently overriding the schedule program.
type HoldMode string

const (
	HoldNone HoldMode = ""
	HoldAway HoldMode = "away"
	HoldHome HoldMode = "home"
	HoldTemp HoldMode = "temp"
)

func (h HoldMode) String() string {
	if h == HoldNone {
		return "none"
	}
	return string(h)
}

// ParseHoldMode maps a wire string onto a HoldMode. Anything that is not a
// recognized hold reads as HoldNone, which SetHoldMode treats as "resume
// the program".
func ParseHoldMode(s string) HoldMode {
	switch s {
	case "away":
		return HoldAway
	case "home":
		return HoldHome
	case "temp":
		return HoldTemp
	default:
		return HoldNone
	}
}

// resolveHoldPreference derives the duration policy for new holds from the
// device's configured default. The device may report useEndTime4hour,
// useEndTime2hour, nextTransition, indefinite or askMe; only the two the
// API accepts for holds pass through, everything else falls back to
// nextTransition.
func resolveHoldPreference(holdAction string) string {
	switch holdAction {
	case ecobee.HoldNextTransition, ecobee.HoldIndefinite:
		return holdAction
	default:
		return ecobee.HoldNextTransition
	}
}
