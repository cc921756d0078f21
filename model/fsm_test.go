package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nginfra/movici-simulation-core-sub002/mask"
	"github.com/nginfra/movici-simulation-core-sub002/model"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

func wireUpdate(ts int64) wire.UpdateBody { return wire.UpdateBody{Timestamp: ts} }

func TestRegistrationToIdleOnReady(t *testing.T) {
	cm := model.New("A", mask.DataMask{})
	assert.Equal(t, model.StateRegistration, cm.State())
	cm.Apply(model.Event{Kind: model.EvReady}, nil)
	assert.Equal(t, model.StateIdle, cm.State())
}

func TestUpdateWaitsWhenPublisherBusy(t *testing.T) {
	cm := model.New("B", mask.DataMask{})
	cm.Apply(model.Event{Kind: model.EvReady}, nil)
	busy := func() bool { return true }
	cm.Apply(model.Event{Kind: model.EvCmdUpdate}, busy)
	assert.Equal(t, model.StatePendingMoreUpdates, cm.State())
}

func TestUpdateDispatchesWhenPublisherFree(t *testing.T) {
	cm := model.New("B", mask.DataMask{})
	cm.Apply(model.Event{Kind: model.EvReady}, nil)
	free := func() bool { return false }
	effects := cm.Apply(model.Event{Kind: model.EvCmdUpdate}, free)
	assert.Equal(t, model.StateUpdating, cm.State())
	assert.Equal(t, model.EffSendUpdateOrSeries, effects[0].Kind)
}

func TestProtocolViolationMarksFailedAndQueuesEnd(t *testing.T) {
	cm := model.New("C", mask.DataMask{})
	cm.Apply(model.Event{Kind: model.EvReady}, nil)
	cm.Apply(model.Event{Kind: model.EvCmdNewTime}, nil) // -> NewTime, expects ACK
	cm.Apply(model.Event{Kind: model.EvRespResult}, nil) // wrong response kind
	assert.True(t, cm.Failed())
	assert.True(t, cm.QuitPending())
	assert.Equal(t, model.StateProcessPendingQuit, cm.State())
}

func TestMarkFailedClearsPendingWork(t *testing.T) {
	cm := model.New("D", mask.DataMask{})
	cm.MarkFailed()
	assert.True(t, cm.Failed())
	assert.Empty(t, cm.PendingUpdates())
	assert.False(t, cm.QuitPending())
}

func TestPendingUpdatesDrainAtomically(t *testing.T) {
	cm := model.New("E", mask.DataMask{})
	cm.EnqueueUpdate(wireUpdate(1))
	cm.EnqueueUpdate(wireUpdate(2))
	batch := cm.DrainPendingUpdates()
	assert.Len(t, batch, 2)
	assert.Empty(t, cm.PendingUpdates())
}
