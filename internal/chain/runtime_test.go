package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type stubContract struct {
	addr  common.Address
	value int
	table map[string]int
}

func (s *stubContract) Address() common.Address { return s.addr }

func TestExecuteCommitsOnSuccess(t *testing.T) {
	rt := NewRuntime(NewManualClock(1_000), nil)
	c := &stubContract{addr: common.HexToAddress("0x01"), table: map[string]int{}}
	require.NoError(t, rt.Deploy(c))

	err := rt.Execute(context.Background(), common.HexToAddress("0xaa"), func(call *Call) error {
		Set(call.Journal(), &c.value, 7)
		SetMapValue(call.Journal(), c.table, "a", 1)
		call.Emit(c.addr, []common.Hash{{0x1}}, nil)
		require.Equal(t, uint64(1_000), call.Time)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, c.value)
	require.Equal(t, 1, c.table["a"])
	require.Len(t, rt.Logs(), 1)
	require.Equal(t, uint64(1), rt.BlockNumber())
}

func TestExecuteRevertsOnError(t *testing.T) {
	rt := NewRuntime(NewManualClock(1_000), nil)
	c := &stubContract{addr: common.HexToAddress("0x01"), value: 3, table: map[string]int{"keep": 9}}
	require.NoError(t, rt.Deploy(c))

	boom := errors.New("boom")
	err := rt.Execute(context.Background(), common.HexToAddress("0xaa"), func(call *Call) error {
		Set(call.Journal(), &c.value, 11)
		SetMapValue(call.Journal(), c.table, "keep", 10)
		SetMapValue(call.Journal(), c.table, "new", 1)
		call.Emit(c.addr, nil, []byte{1})
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, c.value)
	require.Equal(t, map[string]int{"keep": 9}, c.table)
	require.Empty(t, rt.Logs())
}

func TestExecuteRevertsOnPanic(t *testing.T) {
	rt := NewRuntime(NewManualClock(1), nil)
	c := &stubContract{addr: common.HexToAddress("0x01")}

	require.Panics(t, func() {
		_ = rt.Execute(context.Background(), common.Address{}, func(call *Call) error {
			Set(call.Journal(), &c.value, 5)
			panic("unexpected")
		})
	})
	require.Equal(t, 0, c.value)
}

func TestViewNeverCommits(t *testing.T) {
	rt := NewRuntime(NewManualClock(1), nil)
	c := &stubContract{addr: common.HexToAddress("0x01")}

	err := rt.View(context.Background(), func(call *Call) error {
		Set(call.Journal(), &c.value, 5)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, c.value)
}

func TestNestedFrameSwitchesSender(t *testing.T) {
	rt := NewRuntime(NewManualClock(1), nil)
	user := common.HexToAddress("0xaa")
	pair := common.HexToAddress("0xbb")

	err := rt.Execute(context.Background(), user, func(call *Call) error {
		nested := call.As(pair)
		require.Equal(t, pair, nested.Sender)
		require.Equal(t, user, nested.Origin)
		require.Equal(t, 1, nested.Depth())
		require.Equal(t, user, call.Sender)
		return nil
	})
	require.NoError(t, err)
}

func TestDeployRejectsDuplicates(t *testing.T) {
	rt := NewRuntime(nil, nil)
	addr := rt.NextAddress(common.HexToAddress("0xaa"))
	require.NotEqual(t, addr, rt.NextAddress(common.HexToAddress("0xaa")))

	c := &stubContract{addr: addr}
	require.NoError(t, rt.Deploy(c))
	require.Error(t, rt.Deploy(c))
	require.Error(t, rt.Deploy(&stubContract{}))
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	rt := NewRuntime(NewManualClock(1), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := rt.Execute(ctx, common.Address{}, func(*Call) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestFilterLogsAndBlockTimes(t *testing.T) {
	clock := NewManualClock(100)
	rt := NewRuntime(clock, nil)
	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")
	topicX := common.Hash{0x1}
	topicY := common.Hash{0x2}

	for i, emitter := range []common.Address{a, b, a} {
		topic := topicX
		if i == 1 {
			topic = topicY
		}
		require.NoError(t, rt.Execute(context.Background(), common.Address{}, func(call *Call) error {
			call.Emit(emitter, []common.Hash{topic}, nil)
			return nil
		}))
		clock.Advance(12)
	}

	require.Len(t, rt.FilterLogs(1, 3, nil, nil), 3)
	require.Len(t, rt.FilterLogs(2, 3, nil, nil), 2)
	require.Len(t, rt.FilterLogs(1, 3, []common.Address{a}, nil), 2)
	require.Len(t, rt.FilterLogs(1, 3, nil, []common.Hash{topicY}), 1)
	require.Empty(t, rt.FilterLogs(4, 10, nil, nil))

	ts, ok := rt.BlockTimestamp(2)
	require.True(t, ok)
	require.Equal(t, uint64(112), ts)
	_, ok = rt.BlockTimestamp(9)
	require.False(t, ok)

	logs := rt.Logs()
	require.NotEqual(t, logs[0].BlockHash, logs[1].BlockHash)
	require.Equal(t, uint64(DefaultChainID), rt.ChainID())
}
