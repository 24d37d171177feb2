package pool

import "errors"

// ErrOld is returned by Observe when the requested secondsAgo predates the
// oldest initialized observation still in the ring.
var ErrOld = errors.New("oracle: observation older than oldest")

// observationCapacity is the fixed ring size spec.md §3 calls for.
const observationCapacity = 65535

// Observation is a single ring-buffer entry: a timestamp and the
// cumulative tick recorded up to that timestamp.
type Observation struct {
	BlockTimestamp uint32
	TickCumulative int64
	Initialized    bool
}

// Oracle is the fixed-capacity ring buffer of tick observations. The
// teacher repo carries no oracle; this is new functionality grounded
// directly on spec.md §4.6's description, structured the way the rest of
// this engine's fixed-size indexed stores (TickBitmap) are: a fixed array
// with bounded per-call work. The current index and cardinality are not held
// here; callers pass them in from Slot0.
type Oracle struct {
	observations [observationCapacity]Observation
}

// NewOracle returns an uninitialized oracle; call Initialize before use.
func NewOracle() *Oracle {
	return &Oracle{}
}

// Initialize writes observation[0] and returns the initial
// (cardinality, cardinalityNext) = (1, 1).
func (o *Oracle) Initialize(time uint32) (cardinality, cardinalityNext uint16) {
	o.observations[0] = Observation{BlockTimestamp: time, TickCumulative: 0, Initialized: true}
	return 1, 1
}

// Write appends a new observation if time has advanced past the most
// recent one, growing cardinality toward cardinalityNext when the ring
// wraps past its currently active length. Returns the updated
// (index, cardinality).
func (o *Oracle) Write(index uint16, time uint32, tick int32, cardinality, cardinalityNext uint16) (newIndex uint16, newCardinality uint16) {
	last := o.observations[index]
	if last.BlockTimestamp == time {
		return index, cardinality
	}

	newCardinality = cardinality
	if index+1 == cardinality && cardinalityNext > cardinality {
		newCardinality = cardinalityNext
	}

	newIndex = (index + 1) % newCardinality
	delta := int64(int32(time - last.BlockTimestamp))
	o.observations[newIndex] = Observation{
		BlockTimestamp: time,
		TickCumulative: last.TickCumulative + int64(tick)*delta,
		Initialized:    true,
	}
	return newIndex, newCardinality
}

// Grow initializes ring slots [current, next) so that the first wrap past
// the end of the active window does not need a branch, returning the new
// cardinality (next, or current if next <= current).
func (o *Oracle) Grow(current, next uint16) uint16 {
	if next <= current {
		return current
	}
	for i := current; i < next; i++ {
		o.observations[i].Initialized = true
		o.observations[i].BlockTimestamp = 1
	}
	return next
}

// Observe computes, for each entry in secondsAgos, the tickCumulative at
// time-secondsAgo, synthesizing from the latest observation when the
// target is at or after it, or binary-searching and interpolating between
// the bracketing observations otherwise. Fails with ErrOld if the target
// predates the oldest initialized observation still held.
func (o *Oracle) Observe(time uint32, secondsAgos []uint32, tick int32, index, cardinality uint16) ([]int64, error) {
	results := make([]int64, len(secondsAgos))
	for i, secondsAgo := range secondsAgos {
		cum, err := o.observeSingle(time, secondsAgo, tick, index, cardinality)
		if err != nil {
			return nil, err
		}
		results[i] = cum
	}
	return results, nil
}

func (o *Oracle) observeSingle(time uint32, secondsAgo uint32, tick int32, index, cardinality uint16) (int64, error) {
	if secondsAgo == 0 {
		last := o.observations[index]
		if last.BlockTimestamp != time {
			delta := int64(int32(time - last.BlockTimestamp))
			return last.TickCumulative + int64(tick)*delta, nil
		}
		return last.TickCumulative, nil
	}

	target := time - secondsAgo

	last := o.observations[index]
	if lte(time, last.BlockTimestamp, target) {
		delta := int64(int32(target - last.BlockTimestamp))
		return last.TickCumulative + int64(tick)*delta, nil
	}

	beforeOrAt, atOrAfter, err := o.binarySearch(time, target, index, cardinality)
	if err != nil {
		return 0, err
	}
	if beforeOrAt.BlockTimestamp == target {
		return beforeOrAt.TickCumulative, nil
	}
	if atOrAfter.BlockTimestamp == target {
		return atOrAfter.TickCumulative, nil
	}

	observationTimeDelta := int64(int32(atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp))
	targetDelta := int64(int32(target - beforeOrAt.BlockTimestamp))
	if observationTimeDelta == 0 {
		return beforeOrAt.TickCumulative, nil
	}
	tickCumulativeDelta := atOrAfter.TickCumulative - beforeOrAt.TickCumulative
	return beforeOrAt.TickCumulative + (tickCumulativeDelta/observationTimeDelta)*targetDelta, nil
}

// binarySearch finds the observations bracketing target, treating the ring
// as sorted relative to time so 32-bit timestamp wraparound is handled
// consistently with the write side.
func (o *Oracle) binarySearch(time, target uint32, index, cardinality uint16) (beforeOrAt, atOrAfter Observation, err error) {
	oldestIndex := (index + 1) % cardinality
	oldest := o.observations[oldestIndex]
	if !oldest.Initialized {
		oldestIndex = 0
		oldest = o.observations[0]
	}

	if !lte(time, oldest.BlockTimestamp, target) {
		return Observation{}, Observation{}, ErrOld
	}
	if oldest.BlockTimestamp == target {
		return oldest, oldest, nil
	}

	l, r := uint32(oldestIndex), uint32(oldestIndex)+uint32(cardinality)-1
	for {
		i := (l + r) / 2
		beforeOrAt = o.observations[i%uint32(cardinality)]
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}
		atOrAfter = o.observations[(i+1)%uint32(cardinality)]

		targetAtOrAfter := lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(time, target, atOrAfter.BlockTimestamp) {
			break
		}
		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
		if l > r {
			break
		}
	}
	return beforeOrAt, atOrAfter, nil
}

// Snapshot returns the first cardinality ring entries. Write only touches
// slots below the active cardinality and Grow only prepares slots below
// cardinalityNext, so a caller that passes cardinalityNext captures every
// entry that is not zero-valued.
func (o *Oracle) Snapshot(cardinality uint16) []Observation {
	out := make([]Observation, cardinality)
	copy(out, o.observations[:cardinality])
	return out
}

// LoadSnapshot repopulates the active ring window from a prior Snapshot.
func (o *Oracle) LoadSnapshot(observations []Observation) {
	for i, obs := range observations {
		o.observations[i] = obs
	}
}

// lte compares a and b as if both were measured as "seconds before time",
// correctly handling 32-bit wraparound: distances from time are computed
// modulo 2^32 and compared as signed 32-bit deltas, which is exact as long
// as no two ring timestamps are more than 2^31 seconds apart.
func lte(time, a, b uint32) bool {
	return int32(a-time) <= int32(b-time)
}
