package main

import "time"

// Window accumulates throughput and timing stats across training steps.
// Snapshot drains it, so each logged line covers exactly one interval.
type Window struct {
	chars    int
	data     time.Duration
	compute  time.Duration
	steps    int
	lastLoss float64
}

// Record adds one step's measurements to the window.
func (w *Window) Record(chars int, dataTime, computeTime time.Duration, loss float64) {
	w.chars += chars
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{LastLoss: w.lastLoss}

	total := w.data + w.compute
	if total > 0 {
		snap.CharsPerSec = float64(w.chars) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}

	w.chars = 0
	w.data = 0
	w.compute = 0
	w.steps = 0
	return snap
}

// Snapshot holds loggable training metrics.
type Snapshot struct {
	CharsPerSec  float64
	AvgDataMS    float64
	AvgComputeMS float64
	LastLoss     float64
}
