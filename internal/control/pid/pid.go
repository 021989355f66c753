// Package pid implements the stateful proportional-integral-derivative
// primitive shared by every equipment strategy. Compute is a pure function;
// the caller owns persistence of the returned state.
package pid

import (
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// setpointResetThreshold is the setpoint jump beyond which the accumulated
// integral is discarded. A stale integral carried across a setpoint jump
// produces windup overshoot on the new target.
const setpointResetThreshold = 0.5

// Params tunes one PID loop.
type Params struct {
	Kp            float64
	Ki            float64
	Kd            float64
	OutputMin     float64
	OutputMax     float64
	ReverseActing bool
	MaxIntegral   float64
	Enabled       bool
}

// DefaultParams is the tuning applied when a location profile does not
// override a loop.
func DefaultParams() Params {
	return Params{
		Kp:          2.0,
		Ki:          0.1,
		Kd:          0.0,
		OutputMin:   0,
		OutputMax:   100,
		MaxIntegral: 50,
		Enabled:     true,
	}
}

// Compute runs one PID step. The error sign convention is role-dependent:
// cooling loops treat input above setpoint as positive error (more cooling),
// every other role uses setpoint minus input.
//
// When the loop is disabled, the output degrades to a simple proportional
// rule clamped to [0, 100]. That is a deliberate fallback mode, not an error.
func Compute(input, setpoint float64, p Params, dt time.Duration, role model.ControllerRole, state model.ControllerState) (float64, model.ControllerState) {
	var err float64
	if role == model.RoleCooling {
		err = input - setpoint
	} else {
		err = setpoint - input
	}

	next := state
	next.Role = role
	next.LastSetpoint = setpoint

	// A setpoint jump invalidates only the accumulated integral. The
	// previous error keeps tracking measurement history across the jump.
	if abs(setpoint-state.LastSetpoint) > setpointResetThreshold {
		next.Integral = 0
	}

	if !p.Enabled {
		out := clamp(err*10, 0, 100)
		next.PreviousError = err
		next.LastOutput = out
		return out, next
	}

	seconds := dt.Seconds()
	if seconds <= 0 {
		seconds = 1
	}

	next.Integral = clamp(next.Integral+err*seconds, -p.MaxIntegral, p.MaxIntegral)
	derivative := (err - next.PreviousError) / seconds

	raw := p.Kp*err + p.Ki*next.Integral + p.Kd*derivative
	out := clamp(raw, p.OutputMin, p.OutputMax)
	if p.ReverseActing {
		out = p.OutputMax - out
	}

	next.PreviousError = err
	next.LastOutput = out
	return out, next
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
