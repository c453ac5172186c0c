package progress

import "time"

// Estimate summarizes how far a run has come through the catalog.
type Estimate struct {
	Cursor    uint64
	Total     uint64
	Fraction  float64
	AvgPerID  time.Duration
	Remaining time.Duration
}

// Estimator accumulates per-ID timings for the current run.
type Estimator struct {
	total     uint64
	processed uint64
	elapsed   time.Duration
}

// NewEstimator builds an Estimator against a catalog of total IDs.
func NewEstimator(total uint64) *Estimator {
	return &Estimator{total: total}
}

// Observe records the time spent on one ID.
func (e *Estimator) Observe(d time.Duration) {
	e.processed++
	e.elapsed += d
}

// Estimate reports coverage and the projected time left once the cursor has
// reached cursor.
func (e *Estimator) Estimate(cursor uint64) Estimate {
	est := Estimate{Cursor: cursor, Total: e.total}
	if e.total > 0 {
		est.Fraction = float64(cursor) / float64(e.total)
	}
	if e.processed > 0 {
		est.AvgPerID = e.elapsed / time.Duration(e.processed)
	}
	if cursor < e.total {
		est.Remaining = est.AvgPerID * time.Duration(e.total-cursor)
	}
	return est
}
