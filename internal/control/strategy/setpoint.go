package strategy

import "github.com/AutomataControls/nexus-engine/internal/domain/model"

// EffectiveSetpoint resolves the setpoint for a cycle. Resolution order is
// strict: explicit user setpoint, then the profile's fixed setpoint, then
// outdoor-air-reset when an outdoor reading resolves, then the hard default.
func EffectiveSetpoint(cmd *model.UserCommand, cfg Config, telemetry model.Snapshot) float64 {
	if cmd != nil && cmd.Setpoint != nil {
		return *cmd.Setpoint
	}
	if cfg.FixedSetpoint != nil {
		return *cfg.FixedSetpoint
	}
	if cfg.OAR != nil {
		for _, key := range cfg.OutdoorTempKeys {
			if oat, ok := telemetry.Metric(key); ok {
				return cfg.OAR.Setpoint(oat)
			}
		}
	}
	if cfg.DefaultSetpoint > 0 {
		return cfg.DefaultSetpoint
	}
	return DefaultSetpoint
}

// TargetSetpoint is the setpoint a strategy would resolve for a cycle with
// no operator command. The analytics layer uses it to rate how closely each
// unit approaches its target.
func TargetSetpoint(eqType model.EquipmentType, cfg Config, telemetry model.Snapshot) float64 {
	in := Input{Config: cfg, Telemetry: telemetry}
	switch eqType {
	case model.EquipmentBoiler:
		return resolveWaterSetpoint(in, defaultBoilerSetpoint)
	case model.EquipmentChiller:
		return resolveWaterSetpoint(in, defaultChilledWaterSetpoint)
	case model.EquipmentGeothermal:
		return resolveWaterSetpoint(in, defaultLoopSetpoint)
	default:
		return EffectiveSetpoint(nil, cfg, telemetry)
	}
}

// DamperPosition is the binary ventilation policy: the outdoor damper opens
// only inside the location's outdoor temperature band.
func DamperPosition(cfg Config, telemetry model.Snapshot) float64 {
	oat, ok := firstMetric(telemetry, cfg.OutdoorTempKeys)
	if !ok {
		return 0
	}
	if oat > cfg.DamperLowBound && oat <= cfg.DamperHighBound {
		return 100
	}
	return 0
}

func firstMetric(telemetry model.Snapshot, keys []string) (float64, bool) {
	for _, key := range keys {
		if v, ok := telemetry.Metric(key); ok {
			return v, true
		}
	}
	return 0, false
}
