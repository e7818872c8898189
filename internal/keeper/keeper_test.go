package keeper

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	paymentA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	paymentB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	resolver = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// fakeChain models payment contracts whose checker() is true until released,
// like the on-chain time-locked payments.
type fakeChain struct {
	mu         sync.Mutex
	due        map[common.Address]bool
	released   map[common.Address]bool
	checkErr   map[common.Address]error
	releaseErr error
	readErr    error
	reads      []common.Address
	checks     []common.Address
	releases   []common.Address
	payloads   [][]byte
	payload    []byte
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		due:      map[common.Address]bool{},
		released: map[common.Address]bool{},
		checkErr: map[common.Address]error{},
	}
}

func (f *fakeChain) Checker(ctx context.Context, r common.Address) (bool, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, r)
	if err := f.checkErr[r]; err != nil {
		return false, nil, err
	}
	return f.due[r] && !f.released[r], f.payload, nil
}

func (f *fakeChain) Release(ctx context.Context, c common.Address, payload []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, c)
	f.payloads = append(f.payloads, payload)
	if f.releaseErr != nil {
		return common.Hash{}, f.releaseErr
	}
	f.released[c] = true
	return common.HexToHash("0xfeed"), nil
}

func (f *fakeChain) Released(ctx context.Context, c common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, c)
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.released[c], nil
}

func (f *fakeChain) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.releases)
}

type fakeMirror struct {
	scheduled []string
	recurring []string
	err       error
	recorded  []string
	recordErr error
}

func (m *fakeMirror) PendingContracts(ctx context.Context) ([]string, []string, error) {
	return m.scheduled, m.recurring, m.err
}

func (m *fakeMirror) RecordExecution(ctx context.Context, kind, contract, txHash string) error {
	m.recorded = append(m.recorded, kind+":"+contract+":"+txHash)
	return m.recordErr
}

type fakeNotifier struct {
	sent int
	err  error
}

func (n *fakeNotifier) SendExecutionNotice(kind, contract, txHash, explorerURL string) error {
	n.sent++
	return n.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestTickCheckerFalseNeverWrites(t *testing.T) {
	chain := newFakeChain()
	k := New(chain, quietLogger(), Options{Targets: []Target{{Kind: KindScheduled, Contract: paymentA}}})

	for i := 0; i < 3; i++ {
		k.Tick(context.Background())
	}

	assert.Len(t, chain.checks, 3)
	assert.Equal(t, 0, chain.releaseCount())
}

func TestTickReleasesOnceThenGoesIdle(t *testing.T) {
	chain := newFakeChain()
	chain.due[paymentA] = true
	mirror := &fakeMirror{}
	notifier := &fakeNotifier{}
	k := New(chain, quietLogger(), Options{
		Targets:  []Target{{Kind: KindScheduled, Contract: paymentA}},
		Mirror:   mirror,
		Notifier: notifier,
	})

	k.Tick(context.Background())
	require.Equal(t, 1, chain.releaseCount())
	assert.Nil(t, chain.payloads[0])

	// released flag is now set on-chain, so checker() reports false
	k.Tick(context.Background())
	assert.Equal(t, 1, chain.releaseCount())
	assert.Len(t, chain.checks, 2)

	require.Len(t, mirror.recorded, 1)
	assert.Equal(t, "scheduled:"+paymentA.Hex()+":"+common.HexToHash("0xfeed").Hex(), mirror.recorded[0])
	assert.Equal(t, 1, notifier.sent)
}

func TestTickPassesExecPayload(t *testing.T) {
	chain := newFakeChain()
	chain.due[paymentA] = true
	chain.payload = []byte{0x86, 0xd1, 0xa6, 0x9f}
	k := New(chain, quietLogger(), Options{Targets: []Target{{Kind: KindRecurring, Contract: paymentA}}})

	k.Tick(context.Background())
	require.Equal(t, 1, chain.releaseCount())
	assert.Equal(t, []byte{0x86, 0xd1, 0xa6, 0x9f}, chain.payloads[0])
}

func TestTickUsesSeparateResolver(t *testing.T) {
	chain := newFakeChain()
	k := New(chain, quietLogger(), Options{Targets: []Target{{Kind: KindScheduled, Contract: paymentA, Resolver: resolver}}})

	k.Tick(context.Background())
	assert.Equal(t, []common.Address{resolver}, chain.checks)
}

func TestTickErrorsAreSwallowed(t *testing.T) {
	chain := newFakeChain()
	chain.checkErr[paymentA] = errors.New("rpc timeout")
	chain.due[paymentB] = true
	k := New(chain, quietLogger(), Options{Targets: []Target{
		{Kind: KindScheduled, Contract: paymentA},
		{Kind: KindScheduled, Contract: paymentB},
	}})

	k.Tick(context.Background())
	assert.Len(t, chain.checks, 2)
	assert.Equal(t, []common.Address{paymentB}, chain.releases)
}

func TestTickReleaseFailureRetriesNextTick(t *testing.T) {
	chain := newFakeChain()
	chain.due[paymentA] = true
	chain.releaseErr = errors.New("execution reverted")
	mirror := &fakeMirror{}
	k := New(chain, quietLogger(), Options{Targets: []Target{{Kind: KindScheduled, Contract: paymentA}}, Mirror: mirror})

	k.Tick(context.Background())
	chain.releaseErr = nil
	k.Tick(context.Background())

	assert.Equal(t, 2, chain.releaseCount())
	assert.Len(t, mirror.recorded, 1)
}

func TestTickMirrorFailureDoesNotStopLoop(t *testing.T) {
	chain := newFakeChain()
	chain.due[paymentA] = true
	chain.due[paymentB] = true
	mirror := &fakeMirror{recordErr: errors.New("db down")}
	k := New(chain, quietLogger(), Options{
		Targets: []Target{{Kind: KindScheduled, Contract: paymentA}, {Kind: KindScheduled, Contract: paymentB}},
		Mirror:  mirror,
	})

	k.Tick(context.Background())
	assert.Equal(t, 2, chain.releaseCount())
}

func TestTickDiscoversFromMirror(t *testing.T) {
	chain := newFakeChain()
	mirror := &fakeMirror{
		scheduled: []string{paymentA.Hex(), "garbage"},
		recurring: []string{paymentB.Hex()},
	}
	k := New(chain, quietLogger(), Options{
		Targets:  []Target{{Kind: KindScheduled, Contract: paymentA}},
		Discover: true,
		Mirror:   mirror,
	})

	k.Tick(context.Background())
	assert.Equal(t, []common.Address{paymentA, paymentB}, chain.checks)

	mirror.err = errors.New("db down")
	k.Tick(context.Background())
	assert.Equal(t, []common.Address{paymentA, paymentB, paymentA}, chain.checks)
}

func TestTickReconcilesPaymentReleasedElsewhere(t *testing.T) {
	chain := newFakeChain()
	chain.released[paymentA] = true // payee called release() directly
	mirror := &fakeMirror{scheduled: []string{paymentA.Hex()}}
	k := New(chain, quietLogger(), Options{Discover: true, Mirror: mirror})

	k.Tick(context.Background())
	assert.Equal(t, 0, chain.releaseCount())
	require.Equal(t, []string{"scheduled:" + paymentA.Hex() + ":"}, mirror.recorded)

	// the row is no longer pending once recorded
	mirror.scheduled = nil
	k.Tick(context.Background())
	assert.Len(t, mirror.recorded, 1)
	assert.Equal(t, []common.Address{paymentA}, chain.reads)
}

func TestTickReconcileOnlyForPendingScheduledRows(t *testing.T) {
	chain := newFakeChain()
	chain.released[paymentA] = true
	chain.released[paymentB] = true
	mirror := &fakeMirror{recurring: []string{paymentB.Hex()}}
	k := New(chain, quietLogger(), Options{
		Targets:  []Target{{Kind: KindScheduled, Contract: paymentA}},
		Discover: true,
		Mirror:   mirror,
	})

	k.Tick(context.Background())
	assert.Empty(t, chain.reads)
	assert.Empty(t, mirror.recorded)
}

func TestTickStaticTargetReconciledWhenPendingInMirror(t *testing.T) {
	chain := newFakeChain()
	chain.released[paymentA] = true
	mirror := &fakeMirror{scheduled: []string{paymentA.Hex()}}
	k := New(chain, quietLogger(), Options{
		Targets:  []Target{{Kind: KindScheduled, Contract: paymentA}},
		Discover: true,
		Mirror:   mirror,
	})

	k.Tick(context.Background())
	assert.Equal(t, []common.Address{paymentA}, chain.checks)
	assert.Len(t, mirror.recorded, 1)
}

func TestTickReconcileReadErrorIsSwallowed(t *testing.T) {
	chain := newFakeChain()
	chain.readErr = errors.New("rpc timeout")
	mirror := &fakeMirror{scheduled: []string{paymentA.Hex(), paymentB.Hex()}}
	k := New(chain, quietLogger(), Options{Discover: true, Mirror: mirror})

	k.Tick(context.Background())
	assert.Len(t, chain.reads, 2)
	assert.Empty(t, mirror.recorded)
}

func TestTickLogsNotifierFailure(t *testing.T) {
	chain := newFakeChain()
	chain.due[paymentA] = true
	log, hook := logtest.NewNullLogger()
	k := New(chain, log, Options{
		Targets:  []Target{{Kind: KindScheduled, Contract: paymentA}},
		Notifier: &fakeNotifier{err: errors.New("smtp refused")},
	})

	k.Tick(context.Background())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "smtp refused")
}

func TestTickStopsOnCancelledContext(t *testing.T) {
	chain := newFakeChain()
	k := New(chain, quietLogger(), Options{Targets: []Target{{Kind: KindScheduled, Contract: paymentA}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k.Tick(ctx)
	assert.Empty(t, chain.checks)
}

func TestRunTicksImmediatelyAndStops(t *testing.T) {
	chain := newFakeChain()
	chain.due[paymentA] = true
	k := New(chain, quietLogger(), Options{
		Targets:  []Target{{Kind: KindScheduled, Contract: paymentA}},
		Interval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	require.Eventually(t, func() bool { return chain.releaseCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("keeper did not stop after cancel")
	}
}

func TestParseTargets(t *testing.T) {
	targets, err := ParseTargets(" scheduled:" + paymentA.Hex() + ", RECURRING:" + paymentB.Hex() + "@" + resolver.Hex() + ",," + paymentB.Hex())
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, Target{Kind: KindScheduled, Contract: paymentA}, targets[0])
	assert.Equal(t, Target{Kind: KindRecurring, Contract: paymentB, Resolver: resolver}, targets[1])
	assert.Equal(t, KindScheduled, targets[2].Kind)
	assert.Equal(t, resolver, targets[1].resolver())
	assert.Equal(t, paymentA, targets[0].resolver())

	assert.Equal(t, "recurring:"+paymentB.Hex()+"@"+resolver.Hex(), targets[1].String())
	assert.Equal(t, "scheduled:"+paymentA.Hex(), targets[0].String())

	for _, bad := range []string{"weekly:" + paymentA.Hex(), "scheduled:0x123", "scheduled:" + paymentA.Hex() + "@nope"} {
		_, err := ParseTargets(bad)
		assert.Error(t, err, bad)
	}
}
