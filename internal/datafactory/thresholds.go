package datafactory

import (
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// Thresholds are one archetype's alarm limits. A zero value means the
// archetype is not rated on that axis.
type Thresholds struct {
	CriticalTemp  float64
	HighTemp      float64
	LowEfficiency float64
}

var alertThresholds = map[model.EquipmentType]Thresholds{
	model.EquipmentBoiler:     {CriticalTemp: 200, HighTemp: 180, LowEfficiency: 70},
	model.EquipmentChiller:    {CriticalTemp: 55, HighTemp: 50, LowEfficiency: 65},
	model.EquipmentAirHandler: {CriticalTemp: 90, HighTemp: 85},
	model.EquipmentPump:       {CriticalTemp: 130, HighTemp: 120},
	model.EquipmentFanCoil:    {CriticalTemp: 95, HighTemp: 90, LowEfficiency: 60},
}

// ThresholdsFor returns the alarm limits for an archetype and whether it has
// any.
func ThresholdsFor(eqType model.EquipmentType) (Thresholds, bool) {
	t, ok := alertThresholds[eqType]
	return t, ok
}

// breach is one threshold evaluation result.
type breach struct {
	axis     string
	severity string
	value    float64
	limit    float64
}

// evaluate checks a unit's controlled temperature and efficiency score
// against its archetype limits. Critical temperature wins over high
// temperature; both can coexist with a low-efficiency breach.
func evaluate(eqType model.EquipmentType, temperature float64, haveTemp bool, efficiency float64) []breach {
	t, ok := alertThresholds[eqType]
	if !ok {
		return nil
	}

	var out []breach
	if haveTemp {
		switch {
		case t.CriticalTemp > 0 && temperature >= t.CriticalTemp:
			out = append(out, breach{axis: "temperature", severity: "critical", value: temperature, limit: t.CriticalTemp})
		case t.HighTemp > 0 && temperature >= t.HighTemp:
			out = append(out, breach{axis: "temperature", severity: "high", value: temperature, limit: t.HighTemp})
		}
	}
	if t.LowEfficiency > 0 && efficiency < t.LowEfficiency {
		out = append(out, breach{axis: "efficiency", severity: "low", value: efficiency, limit: t.LowEfficiency})
	}
	return out
}
