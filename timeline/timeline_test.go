package timeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nginfra/movici-simulation-core-sub002/timeline"
)

type fakeModel struct{ next *int64 }

func (m *fakeModel) NextTime() *int64     { return m.next }
func (m *fakeModel) SetNextTime(t *int64) { m.next = t }

func ptr(v int64) *int64 { return &v }

func TestSetModelToStart(t *testing.T) {
	tl := timeline.New(0, 10)
	m := &fakeModel{}
	tl.SetModelToStart(m)
	require.NotNil(t, m.NextTime())
	assert.EqualValues(t, 0, *m.NextTime())
}

func TestSetNextTimeClampsToEnd(t *testing.T) {
	tl := timeline.New(0, 10)
	m := &fakeModel{}
	tl.SetNextTime(m, ptr(99))
	require.NotNil(t, m.NextTime())
	assert.EqualValues(t, 10, *m.NextTime())
}

func TestSetNextTimeDropsPastRequest(t *testing.T) {
	tl := timeline.New(0, 10)
	m := &fakeModel{}
	tl.SetModelToStart(m)
	tl.QueueForNextTime([]timeline.NextTimeSetter{m}) // current_time = 0
	tl.SetNextTime(m, ptr(-1))
	assert.Nil(t, m.NextTime())
}

func TestQueueForNextTimePicksMinAndWakesTies(t *testing.T) {
	tl := timeline.New(0, 10)
	a := &fakeModel{next: ptr(5)}
	b := &fakeModel{next: ptr(5)}
	c := &fakeModel{next: ptr(9)}
	res := tl.QueueForNextTime([]timeline.NextTimeSetter{a, b, c})
	assert.True(t, res.Advanced)
	assert.EqualValues(t, 5, res.Time)
	assert.ElementsMatch(t, []int{0, 1}, res.WakeIdx)
}

func TestQueueForNextTimeNoOpWhenAllNil(t *testing.T) {
	tl := timeline.New(0, 10)
	a := &fakeModel{}
	res := tl.QueueForNextTime([]timeline.NextTimeSetter{a})
	assert.False(t, res.Advanced)
	assert.Nil(t, res.WakeIdx)
}

func TestQueueForNextTimeSameTickDoesNotRebroadcast(t *testing.T) {
	tl := timeline.New(0, 10)
	a := &fakeModel{next: ptr(0)}
	first := tl.QueueForNextTime([]timeline.NextTimeSetter{a})
	assert.True(t, first.Advanced)

	a.SetNextTime(ptr(0))
	second := tl.QueueForNextTime([]timeline.NextTimeSetter{a})
	assert.False(t, second.Advanced)
	assert.ElementsMatch(t, []int{0}, second.WakeIdx)
}
