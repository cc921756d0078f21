package orchestrator_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/mask"
	"github.com/nginfra/movici-simulation-core-sub002/orchestrator"
	"github.com/nginfra/movici-simulation-core-sub002/timeline"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// fakeConn records every message sent to it, standing in for a real
// *wire.Conn in tests.
type fakeConn struct {
	sent []wire.Message
}

func (f *fakeConn) Send(m wire.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeConn) last() wire.Message {
	if len(f.sent) == 0 {
		return wire.Message{}
	}
	return f.sent[len(f.sent)-1]
}

func publisherMask(field string) mask.DataMask {
	return mask.DataMask{Pub: mask.Tree{field: nil}}
}

func subscriberMask(field string) mask.DataMask {
	return mask.DataMask{Sub: mask.Tree{field: nil}}
}

func TestRegisterWiresPubSubEdges(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 2)
	upstream := &fakeConn{}
	downstream := &fakeConn{}

	upIdx, err := o.Register("traffic", publisherMask("flow"), upstream)
	require.NoError(t, err)
	downIdx, err := o.Register("kpi", subscriberMask("flow"), downstream)
	require.NoError(t, err)

	assert.True(t, o.AllRegistered())
	assert.NotEqual(t, upIdx, downIdx)

	// The traffic -> kpi edge shows as a cascaded UPDATE once traffic publishes.
	o.HandleReady(upIdx)
	o.HandleReady(downIdx)
	o.EnqueueUpdate(upIdx, wire.UpdateBody{Timestamp: 0})
	key, addr := "traffic", "broker"
	o.HandleResult(upIdx, wire.ResultBody{Key: &key, Address: &addr})
	require.Len(t, downstream.sent, 1)
	assert.Equal(t, wire.TagUpdate, downstream.last().Tag)
}

func TestReadyIdleThenNewTimeDispatch(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 1)
	conn := &fakeConn{}
	idx, err := o.Register("solo", mask.DataMask{}, conn)
	require.NoError(t, err)

	o.HandleReady(idx)

	res := o.AdvanceClock()
	assert.True(t, res.Advanced)
	assert.Equal(t, int64(0), res.Time)
	require.Len(t, conn.sent, 1)
	assert.Equal(t, wire.TagUpdate, conn.last().Tag)
}

func TestResultFeedsBackIntoTimeline(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 1)
	conn := &fakeConn{}
	idx, err := o.Register("solo", mask.DataMask{}, conn)
	require.NoError(t, err)
	o.HandleReady(idx)
	o.AdvanceClock()

	next := int64(10)
	o.HandleResult(idx, wire.ResultBody{NextTime: &next})

	res := o.AdvanceClock()
	assert.True(t, res.Advanced)
	assert.Equal(t, next, res.Time)
}

func TestCascadeGateHoldsSubscriberWhileUpstreamBusy(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 3)
	up1Conn := &fakeConn{}
	up2Conn := &fakeConn{}
	downConn := &fakeConn{}

	up1Idx, err := o.Register("up1", publisherMask("flow"), up1Conn)
	require.NoError(t, err)
	up2Idx, err := o.Register("up2", publisherMask("kpi"), up2Conn)
	require.NoError(t, err)
	downIdx, err := o.Register("down", mask.DataMask{Sub: mask.Tree{"flow": nil, "kpi": nil}}, downConn)
	require.NoError(t, err)

	o.HandleReady(up1Idx)
	o.HandleReady(up2Idx)
	o.HandleReady(downIdx)

	// Make up1 busy first so down's cascade gate is closed once up2
	// cascades an update its way.
	o.EnqueueUpdate(up1Idx, wire.UpdateBody{Timestamp: 0})
	require.Len(t, up1Conn.sent, 1)
	o.EnqueueUpdate(up2Idx, wire.UpdateBody{Timestamp: 0})
	require.Len(t, up2Conn.sent, 1)

	// up2 finishes and published data: HandleResult alone -- no manual
	// EnqueueUpdate on down -- must cascade a queued update to down.
	key, addr := "up2", "broker"
	o.HandleResult(up2Idx, wire.ResultBody{Key: &key, Address: &addr})
	assert.Empty(t, downConn.sent, "down must wait while up1 (its other upstream) is still busy")

	// up1 finishes; its free-up should unblock down's cascaded update.
	next := int64(5)
	o.HandleResult(up1Idx, wire.ResultBody{NextTime: &next})
	require.Len(t, downConn.sent, 1, "down should dispatch once every upstream frees up")
	assert.Equal(t, wire.TagUpdate, downConn.last().Tag)

	got, err := downConn.last().Update()
	require.NoError(t, err)
	require.NotNil(t, got.Key)
	assert.Equal(t, key, *got.Key)
	require.NotNil(t, got.Origin)
	assert.Equal(t, "up2", *got.Origin)
}

func TestResultWithNoPublishedDataDoesNotCascade(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 2)
	upConn := &fakeConn{}
	downConn := &fakeConn{}

	upIdx, err := o.Register("up", publisherMask("flow"), upConn)
	require.NoError(t, err)
	downIdx, err := o.Register("down", subscriberMask("flow"), downConn)
	require.NoError(t, err)

	o.HandleReady(upIdx)
	o.HandleReady(downIdx)

	o.EnqueueUpdate(upIdx, wire.UpdateBody{Timestamp: 0})
	require.Len(t, upConn.sent, 1)

	// up finishes without producing anything this tick (no Key/Address):
	// down has nothing to react to.
	o.HandleResult(upIdx, wire.ResultBody{})
	assert.Empty(t, downConn.sent, "down has no pending update when up published nothing")
}

func TestDuplicatePublishPathWarns(t *testing.T) {
	var buf bytes.Buffer
	nlog.SetOutput(&buf)
	nlog.SetFormat("plain")
	nlog.SetLevel("warning")
	t.Cleanup(func() { nlog.SetOutput(os.Stderr) })

	o := orchestrator.New(timeline.New(0, 100), 2)
	_, err := o.Register("traffic", mask.DataMask{Pub: mask.Tree{"roads": {"flow": nil}}}, &fakeConn{})
	require.NoError(t, err)
	_, err = o.Register("traffic2", mask.DataMask{Pub: mask.Tree{"roads": {"flow": nil}}}, &fakeConn{})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "roads.flow")
}

func TestBeginFinalizingSendsEnd(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 1)
	conn := &fakeConn{}
	idx, err := o.Register("solo", mask.DataMask{}, conn)
	require.NoError(t, err)
	o.HandleReady(idx)

	o.BeginFinalizing()
	require.NotEmpty(t, conn.sent)
	assert.Equal(t, wire.TagEnd, conn.last().Tag)

	o.HandleAck(idx)
	assert.True(t, o.AllDone())
	assert.Equal(t, 0, o.ExitCode())
	assert.Contains(t, o.Summary(), "simulation successfully finished")
}

func TestFailedModelDrivesNonZeroExitCode(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 1)
	conn := &fakeConn{}
	idx, err := o.Register("flaky", mask.DataMask{}, conn)
	require.NoError(t, err)
	o.HandleReady(idx)
	o.AdvanceClock()

	o.HandleError(idx, assert.AnError)

	assert.Equal(t, 1, o.ExitCode())
	assert.Contains(t, o.Summary(), "flaky")
	assert.Equal(t, 1, o.Errors().Cnt())
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	o := orchestrator.New(timeline.New(0, 100), 1)
	_, err := o.Register("dup", mask.DataMask{}, &fakeConn{})
	require.NoError(t, err)
	_, err = o.Register("dup", mask.DataMask{}, &fakeConn{})
	assert.Error(t, err)
}
