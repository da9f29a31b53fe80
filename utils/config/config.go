// Package config holds the YAML-loadable configuration surface of the
// core, grounded on the teacher's utils/config package (RuntimeConfig
// wrapping a loaded Config). The toggles and tunables come from
// spec.md §6.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig wraps a loaded Config with defaults already applied.
// sim.New takes one of these rather than a bare Config so that a
// caller who only sets a few fields still gets sane values for the
// rest.
type RuntimeConfig struct {
	Step     ControlStep
	Toggles  Toggles
	Tunables Tunables
	Seed     uint64
}

// NewRuntimeConfig fills in every zero-valued Tunables field and an
// empty Toggles.Alerts from the package defaults and returns the
// runtime form. The boolean Toggles are copied as given, so a zero
// Config yields DontBlockTheBox=false although DefaultToggles sets it
// true.
func NewRuntimeConfig(c Config) *RuntimeConfig {
	rc := &RuntimeConfig{Step: c.Step, Toggles: c.Toggles, Tunables: c.Tunables, Seed: c.Seed}
	if rc.Toggles.Alerts == "" {
		rc.Toggles.Alerts = DefaultToggles().Alerts
	}
	def := DefaultTunables()
	mergeFloat(&rc.Tunables.FollowingDistance, def.FollowingDistance)
	mergeFloat(&rc.Tunables.WaitAtStopSign, def.WaitAtStopSign)
	mergeFloat(&rc.Tunables.WaitBeforeYieldAtTrafficSignal, def.WaitBeforeYieldAtTrafficSignal)
	mergeFloat(&rc.Tunables.TimeToWaitAtBusStop, def.TimeToWaitAtBusStop)
	mergeFloat(&rc.Tunables.TimeToChangeLanes, def.TimeToChangeLanes)
	mergeFloat(&rc.Tunables.BlindRetryToCreepForwards, def.BlindRetryToCreepForwards)
	mergeFloat(&rc.Tunables.BlindRetryToReachEndDist, def.BlindRetryToReachEndDist)
	mergeFloat(&rc.Tunables.OnstreetParkingDuration, def.OnstreetParkingDuration)
	mergeFloat(&rc.Tunables.OffstreetParkingDuration, def.OffstreetParkingDuration)
	mergeFloat(&rc.Tunables.YieldEpsilon, def.YieldEpsilon)
	return rc
}

func mergeFloat(field *float64, def float64) {
	if *field == 0 {
		*field = def
	}
}

// Load reads and parses a YAML config file from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
