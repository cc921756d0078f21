// Package timeline implements the global simulation clock shared by
// every registered model.
package timeline

// Info lets external code convert ticks to/from wall-clock seconds; the
// core itself only ever compares integer ticks.
type Info struct {
	Reference float64 `json:"reference"`
	TimeScale float64 `json:"time_scale"`
	Start     int64   `json:"start"`
	End       int64   `json:"end"`
}

func (i Info) ToWallSeconds(tick int64) float64 {
	return i.Reference + float64(tick)*i.TimeScale
}

func (i Info) FromWallSeconds(seconds float64) int64 {
	if i.TimeScale == 0 {
		return i.Start
	}
	return int64((seconds - i.Reference) / i.TimeScale)
}

// NextTimeSetter is the minimal view of a model a Timeline needs: its
// current next_time and a way to change it. model.ConnectedModel
// satisfies this.
type NextTimeSetter interface {
	NextTime() *int64
	SetNextTime(t *int64)
}

// Timeline holds {start, end, current_time?} and drives model registration
// and clock advance.
type Timeline struct {
	Start   int64
	End     int64
	current *int64
}

func New(start, end int64) *Timeline {
	return &Timeline{Start: start, End: end}
}

func (tl *Timeline) Current() *int64 { return tl.current }

// SetModelToStart implements set_model_to_start: used on registration.
func (tl *Timeline) SetModelToStart(m NextTimeSetter) {
	start := tl.Start
	m.SetNextTime(&start)
}

// SetNextTime implements set_next_time.
func (tl *Timeline) SetNextTime(m NextTimeSetter, t *int64) {
	if t == nil {
		m.SetNextTime(nil)
		return
	}
	cur := tl.current
	if cur != nil && *t < *cur {
		m.SetNextTime(nil)
		return
	}
	if cur != nil && *cur == tl.End && *t > tl.End {
		m.SetNextTime(nil)
		return
	}
	clamped := *t
	if clamped > tl.End {
		clamped = tl.End
	}
	m.SetNextTime(&clamped)
}

// AdvanceResult reports what queue_for_next_time decided: whether the clock
// moved to a new time, and which models (by index, as passed in) want an
// UPDATE dispatched at that time.
type AdvanceResult struct {
	Advanced bool
	Time     int64
	WakeIdx  []int
}

// QueueForNextTime implements queue_for_next_time: compute T = min next_time
// across models, broadcast NEW_TIME if T changed, and report which models
// should receive an UPDATE(T) wake call.
func (tl *Timeline) QueueForNextTime(models []NextTimeSetter) AdvanceResult {
	var (
		min    *int64
		minIdx []int
	)
	for i, m := range models {
		t := m.NextTime()
		if t == nil {
			continue
		}
		switch {
		case min == nil || *t < *min:
			v := *t
			min = &v
			minIdx = []int{i}
		case *t == *min:
			minIdx = append(minIdx, i)
		}
	}
	if min == nil {
		return AdvanceResult{}
	}
	advanced := tl.current == nil || *tl.current != *min
	if advanced {
		v := *min
		tl.current = &v
	}
	return AdvanceResult{Advanced: advanced, Time: *min, WakeIdx: minIdx}
}
