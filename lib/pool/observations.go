package pool

import (
	"errors"
	"sort"
)

var (
	ErrInsufficientHistory = errors.New("pool: twap window reaches past the oldest observation")
	ErrInvalidWindow       = errors.New("pool: twap window must be positive")
)

// Observation is a tick accumulator sample.
type Observation struct {
	Timestamp      int64
	TickCumulative int64
}

// Observations is a fixed size ring of tick accumulator samples, oldest overwritten first.
type Observations struct {
	samples []Observation
	index   int // position of the newest sample
	length  int
}

func NewObservations(cardinality int, timestamp int64) *Observations {
	if cardinality < 1 {
		cardinality = 1
	}
	samples := make([]Observation, cardinality)
	samples[0] = Observation{Timestamp: timestamp}
	return &Observations{samples, 0, 1}
}

func (o *Observations) newest() Observation {
	return o.samples[o.index]
}

// at returns the i-th sample in chronological order.
func (o *Observations) at(i int) Observation {
	oldest := (o.index - o.length + 1 + len(o.samples)) % len(o.samples)
	return o.samples[(oldest+i)%len(o.samples)]
}

// Write records the accumulator at timestamp, tick being the tick in effect since the newest sample.
// At most one sample is written per timestamp.
func (o *Observations) Write(timestamp int64, tick int) {
	last := o.newest()
	if timestamp <= last.Timestamp {
		return
	}
	next := Observation{
		Timestamp:      timestamp,
		TickCumulative: last.TickCumulative + int64(tick)*(timestamp-last.Timestamp),
	}
	o.index = (o.index + 1) % len(o.samples)
	o.samples[o.index] = next
	if o.length < len(o.samples) {
		o.length++
	}
}

// cumulativeAt returns the tick accumulator at target, interpolating between samples.
func (o *Observations) cumulativeAt(target int64, tick int) (int64, error) {
	last := o.newest()
	if target >= last.Timestamp {
		return last.TickCumulative + int64(tick)*(target-last.Timestamp), nil
	}
	if target < o.at(0).Timestamp {
		return 0, ErrInsufficientHistory
	}
	// first sample strictly after target, there is one since target < last.Timestamp
	i := sort.Search(o.length, func(i int) bool { return o.at(i).Timestamp > target })
	before, after := o.at(i-1), o.at(i)
	if before.Timestamp == target {
		return before.TickCumulative, nil
	}
	rate := (after.TickCumulative - before.TickCumulative) / (after.Timestamp - before.Timestamp)
	return before.TickCumulative + rate*(target-before.Timestamp), nil
}

// TWAP returns the arithmetic mean tick over the window ending at now, rounded towards negative infinity.
func (o *Observations) TWAP(now, window int64, tick int) (int, error) {
	if window <= 0 {
		return 0, ErrInvalidWindow
	}
	end, err := o.cumulativeAt(now, tick)
	if err != nil {
		return 0, err
	}
	start, err := o.cumulativeAt(now-window, tick)
	if err != nil {
		return 0, err
	}
	delta := end - start
	mean := delta / window
	if delta < 0 && delta%window != 0 {
		mean--
	}
	return int(mean), nil
}
