package config

// AlertMode controls what the sim does when an Alert event is emitted.
// See spec.md §7.
type AlertMode string

const (
	AlertPrint   AlertMode = "print"
	AlertBlock   AlertMode = "block"
	AlertSilence AlertMode = "silence"
)

// Toggles are the process-wide booleans enumerated in spec.md §6. Each
// is fixed for the lifetime of a sim.Sim; there is no hot-reload.
type Toggles struct {
	// UseFreeformPolicyEverywhere bypasses stop-sign and signal
	// policies at every intersection, treating all of them as
	// freeform.
	UseFreeformPolicyEverywhere bool `yaml:"use_freeform_policy_everywhere,omitempty"`
	// DontBlockTheBox enforces the downstream-room check before
	// granting a turn. DefaultToggles sets it true; NewRuntimeConfig
	// does not apply that default, so a zero Config leaves it false.
	DontBlockTheBox bool `yaml:"dont_block_the_box"`
	// RecalcLanechanging is not read by any package; setting it does
	// not change when lane-change opportunities are computed.
	RecalcLanechanging bool `yaml:"recalc_lanechanging,omitempty"`
	// BreakTurnConflictCycles enables the deadlock-escape cycle
	// detection in the intersection arbiter.
	BreakTurnConflictCycles bool `yaml:"break_turn_conflict_cycles,omitempty"`
	// HandleUberTurns makes the arbiter grant a turn of an uber-turn
	// only if every other turn of it is grantable at that moment; the
	// other turns are not reserved.
	HandleUberTurns bool `yaml:"handle_uber_turns,omitempty"`
	// InfiniteParking selects the infinite parking.Store
	// implementation instead of the finite, capacity-bound one.
	InfiniteParking bool `yaml:"infinite_parking,omitempty"`
	// Alerts says what to do with Alert events: print and continue,
	// halt at the next event boundary, or drop silently.
	Alerts AlertMode `yaml:"alerts,omitempty"`
}

// DefaultToggles returns the defaults named in spec.md §6 (only
// DontBlockTheBox defaults true; everything else defaults off/print).
func DefaultToggles() Toggles {
	return Toggles{
		DontBlockTheBox: true,
		Alerts:          AlertPrint,
	}
}

// Tunables are the named constants of spec.md §6, all in seconds or
// meters. Compile-time defaults are supplied by DefaultTunables; a
// scenario config may override any subset.
type Tunables struct {
	// FollowingDistance is the minimum meters kept between a member's
	// front and the back of the member ahead of it (I1/I2).
	FollowingDistance float64 `yaml:"following_distance,omitempty"`
	// WaitAtStopSign is how long a Yield-priority turn must wait after
	// its first request at a stop-sign intersection.
	WaitAtStopSign float64 `yaml:"wait_at_stop_sign,omitempty"`
	// WaitBeforeYieldAtTrafficSignal is the equivalent wait for a
	// Yield turn at a signalized intersection.
	WaitBeforeYieldAtTrafficSignal float64 `yaml:"wait_before_yield_at_traffic_signal,omitempty"`
	// TimeToWaitAtBusStop is the dwell time for IdlingAtStop.
	TimeToWaitAtBusStop float64 `yaml:"time_to_wait_at_bus_stop,omitempty"`
	// TimeToChangeLanes is the duration of a ChangingLanes transition.
	TimeToChangeLanes float64 `yaml:"time_to_change_lanes,omitempty"`
	// BlindRetryToCreepForwards is the retry delay used when a car
	// finds no room to enter the next lane or to spawn, and when a trip
	// leg fails to start.
	BlindRetryToCreepForwards float64 `yaml:"blind_retry_to_creep_forwards,omitempty"`
	// BlindRetryToReachEndDist is the longer retry delay used when a
	// car at the last step of its route has no end decision yet or
	// finds no free parking spot.
	BlindRetryToReachEndDist float64 `yaml:"blind_retry_to_reach_end_dist,omitempty"`
	// OnstreetParkingDuration and OffstreetParkingDuration are the
	// fixed durations a car spends in the Parking/Unparking states.
	OnstreetParkingDuration  float64 `yaml:"onstreet_parking_duration,omitempty"`
	OffstreetParkingDuration float64 `yaml:"offstreet_parking_duration,omitempty"`
	// YieldEpsilon is the small time offset (spec.md §4.4, §5) used to
	// schedule Yield requests after Protected ones at the same
	// simulated time.
	YieldEpsilon float64 `yaml:"yield_epsilon,omitempty"`
}

// DefaultTunables returns the approximate defaults named in spec.md
// §6.
func DefaultTunables() Tunables {
	return Tunables{
		FollowingDistance:              1.0,
		WaitAtStopSign:                 0.5,
		WaitBeforeYieldAtTrafficSignal: 0.2,
		TimeToWaitAtBusStop:            10.0,
		TimeToChangeLanes:              1.0,
		BlindRetryToCreepForwards:      0.1,
		BlindRetryToReachEndDist:       5.0,
		OnstreetParkingDuration:        5.0,
		OffstreetParkingDuration:       10.0,
		YieldEpsilon:                   0.01,
	}
}

// ControlStep bounds the run: simulated seconds elapsed start..start+total.
// Kept from the teacher's utils/config.ControlStep, renamed to seconds
// (the core runs on an event clock, not the teacher's fixed dt
// subloop).
type ControlStep struct {
	StartSeconds float64 `yaml:"start_seconds"`
	TotalSeconds float64 `yaml:"total_seconds"`
}

// Config is the YAML-loadable root configuration for a sim.Sim run.
type Config struct {
	Step     ControlStep `yaml:"step"`
	Toggles  Toggles     `yaml:"toggles"`
	Tunables Tunables    `yaml:"tunables"`
	Seed     uint64      `yaml:"seed,omitempty"`
}
