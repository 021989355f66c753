package datafactory

import (
	"fmt"
	"strings"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// HealthReport is one unit's predictive-maintenance assessment: a weighted
// condition score and the failure outlook derived from it.
type HealthReport struct {
	Score              float64
	Status             string
	TemperatureHealth  float64
	EfficiencyHealth   float64
	FailureProbability float64
	TimeToFailureDays  int
	Priority           string
	FailureModes       []string
	Recommendation     string
}

// Component weights for the health score. Trend and operational components
// hold neutral priors until enough history accumulates to score them.
const (
	weightTemperature = 0.25
	weightEfficiency  = 0.25
	weightTrend       = 0.30
	weightOperational = 0.20

	neutralTrendHealth       = 75.0
	neutralOperationalHealth = 80.0
)

type maintenanceProfile struct {
	MaxOperatingTemp float64
	FailureModes     []string
}

var maintenanceProfiles = map[model.EquipmentType]maintenanceProfile{
	model.EquipmentBoiler:     {MaxOperatingTemp: 200, FailureModes: []string{"rapid_temp_change", "pressure_spike", "efficiency_drop"}},
	model.EquipmentChiller:    {MaxOperatingTemp: 50, FailureModes: []string{"refrigerant_leak", "compressor_issue", "low_efficiency"}},
	model.EquipmentAirHandler: {MaxOperatingTemp: 85, FailureModes: []string{"fan_bearing_wear", "filter_clog", "motor_overload"}},
	model.EquipmentDOAS:       {MaxOperatingTemp: 85, FailureModes: []string{"fan_bearing_wear", "filter_clog", "motor_overload"}},
	model.EquipmentPump:       {MaxOperatingTemp: 120, FailureModes: []string{"cavitation", "bearing_wear", "seal_failure"}},
	model.EquipmentFanCoil:    {MaxOperatingTemp: 90, FailureModes: []string{"motor_wear", "valve_sticking", "coil_fouling"}},
	model.EquipmentGeothermal: {MaxOperatingTemp: 60, FailureModes: []string{"loop_leak", "compressor_issue", "ground_loop_problem"}},
}

// AssessHealth scores one unit's condition from its controlled temperature
// and efficiency rating, then derives a failure outlook from the score.
func AssessHealth(eqType model.EquipmentType, temperature float64, haveTemp bool, efficiency float64, haveEff bool) HealthReport {
	profile := maintenanceProfiles[eqType]

	tempHealth := 75.0
	if haveTemp && profile.MaxOperatingTemp > 0 {
		tempHealth = temperatureHealth(temperature, profile.MaxOperatingTemp)
	}
	effHealth := neutralOperationalHealth
	if haveEff {
		effHealth = efficiency
	}

	score := round(tempHealth*weightTemperature+
		effHealth*weightEfficiency+
		neutralTrendHealth*weightTrend+
		neutralOperationalHealth*weightOperational, 2)

	report := HealthReport{
		Score:             score,
		Status:            healthStatus(score),
		TemperatureHealth: tempHealth,
		EfficiencyHealth:  effHealth,
	}
	report.FailureProbability, report.TimeToFailureDays = failureOutlook(score)
	report.Priority = maintenancePriority(report.FailureProbability)
	report.FailureModes = likelyFailureModes(profile, score)
	report.Recommendation = recommendation(eqType, report.FailureProbability, report.FailureModes)
	return report
}

// temperatureHealth degrades as the reading approaches the archetype's
// maximum operating temperature.
func temperatureHealth(temp, max float64) float64 {
	switch {
	case temp <= max*0.8:
		return 100
	case temp <= max*0.9:
		return 85
	case temp <= max:
		return 70
	default:
		return 30
	}
}

func healthStatus(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 60:
		return "fair"
	case score >= 40:
		return "poor"
	default:
		return "critical"
	}
}

// failureOutlook maps a health score to a 30-day failure probability and a
// rough time-to-failure horizon in days.
func failureOutlook(score float64) (float64, int) {
	switch {
	case score >= 85:
		return 5, 180
	case score >= 70:
		return 15, 90
	case score >= 50:
		return 35, 30
	case score >= 30:
		return 60, 14
	default:
		return 85, 7
	}
}

func maintenancePriority(probability float64) string {
	switch {
	case probability >= 60:
		return "critical"
	case probability >= 35:
		return "high"
	case probability >= 15:
		return "medium"
	default:
		return "low"
	}
}

func likelyFailureModes(profile maintenanceProfile, score float64) []string {
	switch {
	case score < 50:
		return profile.FailureModes
	case score < 70 && len(profile.FailureModes) > 0:
		return profile.FailureModes[:1]
	default:
		return nil
	}
}

func recommendation(eqType model.EquipmentType, probability float64, modes []string) string {
	switch {
	case probability >= 60:
		return fmt.Sprintf("URGENT: schedule immediate inspection for %s. Potential issues: %s", eqType, strings.Join(modes, ", "))
	case probability >= 35:
		return fmt.Sprintf("Schedule priority maintenance for %s within 1 week", eqType)
	case probability >= 15:
		return fmt.Sprintf("Schedule routine maintenance for %s within 1 month", eqType)
	default:
		return fmt.Sprintf("Continue normal maintenance schedule for %s", eqType)
	}
}
