package datafactory

import (
	"math"
	"strings"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// powerBaseline bounds one archetype's plausible electrical draw in kW.
type powerBaseline struct {
	Min     float64
	Max     float64
	Optimal float64
}

var powerBaselines = map[model.EquipmentType]powerBaseline{
	model.EquipmentBoiler:     {Min: 5.0, Max: 50.0, Optimal: 35.0},
	model.EquipmentChiller:    {Min: 10.0, Max: 150.0, Optimal: 100.0},
	model.EquipmentAirHandler: {Min: 2.0, Max: 25.0, Optimal: 18.0},
	model.EquipmentPump:       {Min: 0.5, Max: 15.0, Optimal: 8.0},
	model.EquipmentFanCoil:    {Min: 0.2, Max: 3.0, Optimal: 2.0},
	model.EquipmentGeothermal: {Min: 3.0, Max: 30.0, Optimal: 20.0},
}

var defaultBaseline = powerBaseline{Min: 1.0, Max: 10.0, Optimal: 5.0}

func baselineFor(eqType model.EquipmentType) powerBaseline {
	if b, ok := powerBaselines[eqType]; ok {
		return b
	}
	return defaultBaseline
}

// EstimatePower estimates a unit's draw in kW from its operating conditions.
// Without any temperature reading the estimate is the archetype optimum.
// Chillers draw more as loop temperatures rise above design, boilers as they
// fall; everything else scales gently around its optimum.
func EstimatePower(eqType model.EquipmentType, snap model.Snapshot) float64 {
	base := baselineFor(eqType)

	avg, ok := averageTemperature(snap)
	if !ok {
		return base.Optimal
	}

	var factor float64
	switch eqType {
	case model.EquipmentChiller:
		factor = clamp((avg-60)/20, 0.5, 1.5)
	case model.EquipmentBoiler:
		factor = clamp((80-avg)/30, 0.5, 1.5)
	default:
		factor = clamp(1.0+(avg-70)/100, 0.8, 1.2)
	}

	return round(clamp(base.Optimal*factor, base.Min, base.Max), 2)
}

// PowerEfficiency scores measured draw against the archetype optimum on a
// 0-100 scale. Drawing over the optimum is penalized harder than under.
func PowerEfficiency(eqType model.EquipmentType, powerKW float64) float64 {
	optimal := baselineFor(eqType).Optimal

	var score float64
	if powerKW <= optimal {
		score = 100 - (optimal-powerKW)/optimal*20
	} else {
		score = 100 - (powerKW-optimal)/optimal*30
	}
	return round(clamp(score, 0, 100), 1)
}

// averageTemperature averages every finite metric whose key mentions a
// temperature.
func averageTemperature(snap model.Snapshot) (float64, bool) {
	var sum float64
	var n int
	for key := range snap.Metrics {
		if !strings.Contains(strings.ToLower(key), "temp") {
			continue
		}
		if v, ok := snap.Metric(key); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
