// Package keeper polls payment resolvers and submits releases when they report
// an executable action.
//
// Each tick asks every target's checker() view whether it can execute. A true
// answer is followed by one write transaction; any failure is logged and the
// target is simply asked again on the next tick. There is no backoff and no
// duplicate-submission guard: a second release after success must be a no-op
// or a harmless revert on-chain.
package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/davyttu/confidance-crypto/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Chain is the on-chain surface the keeper drives
type Chain interface {
	Checker(ctx context.Context, resolver common.Address) (bool, []byte, error)
	Release(ctx context.Context, contract common.Address, payload []byte) (common.Hash, error)
	Released(ctx context.Context, contract common.Address) (bool, error)
}

// Mirror is the display copy of payment state. The keeper only reads it to
// discover contracts; checker() alone decides whether to send.
type Mirror interface {
	PendingContracts(ctx context.Context) (scheduled, recurring []string, err error)
	RecordExecution(ctx context.Context, kind, contract, txHash string) error
}

// Notifier tells an operator about confirmed executions
type Notifier interface {
	SendExecutionNotice(kind, contract, txHash, explorerURL string) error
}

// Options configures a Keeper
type Options struct {
	Targets     []Target
	Discover    bool
	Interval    time.Duration
	ExplorerURL string
	Mirror      Mirror   // optional
	Notifier    Notifier // optional
	Metrics     *metrics.Keeper
}

// Keeper runs the poll-and-release loop
type Keeper struct {
	chain    Chain
	log      *logrus.Logger
	mirror   Mirror
	notifier Notifier
	metrics  *metrics.Keeper

	static      []Target
	discover    bool
	interval    time.Duration
	explorerURL string
}

// New creates a keeper
func New(chain Chain, log *logrus.Logger, opts Options) *Keeper {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewKeeper(prometheus.NewRegistry())
	}
	return &Keeper{
		chain:       chain,
		log:         log,
		mirror:      opts.Mirror,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		static:      opts.Targets,
		discover:    opts.Discover && opts.Mirror != nil,
		interval:    opts.Interval,
		explorerURL: opts.ExplorerURL,
	}
}

// Run ticks once immediately and then on every interval until ctx is
// cancelled. A tick that outlasts the interval makes the next one skip.
func (k *Keeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(k.log))))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", k.interval), func() { k.Tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule keeper: %w", err)
	}

	for _, t := range k.static {
		k.log.Infof("Watching %s", t)
	}
	k.log.Infof("Keeper started, polling every %s", k.interval)
	k.Tick(ctx)
	c.Start()

	<-ctx.Done()
	k.log.Info("Keeper stopping, waiting for the running tick")
	<-c.Stop().Done()
	return nil
}

// Tick checks every target once, in order
func (k *Keeper) Tick(ctx context.Context) {
	k.metrics.Ticks.Inc()
	for _, t := range k.targets(ctx) {
		if ctx.Err() != nil {
			return
		}
		k.process(ctx, t)
	}
}

func (k *Keeper) process(ctx context.Context, t Target) {
	log := k.log.WithFields(logrus.Fields{"kind": t.Kind, "contract": t.Contract.Hex()})

	canExec, payload, err := k.chain.Checker(ctx, t.resolver())
	if err != nil {
		k.metrics.Errors.WithLabelValues("checker").Inc()
		log.Errorf("checker failed: %v", err)
		return
	}
	if !canExec {
		k.metrics.Checks.WithLabelValues(t.Kind, "idle").Inc()
		log.Debug("Nothing to execute")
		if t.pending {
			k.reconcile(ctx, t, log)
		}
		return
	}
	k.metrics.Checks.WithLabelValues(t.Kind, "ready").Inc()

	log.Info("Resolver reports executable, sending transaction")
	hash, err := k.chain.Release(ctx, t.Contract, payload)
	if err != nil {
		k.metrics.Errors.WithLabelValues("release").Inc()
		log.Errorf("release failed: %v", err)
		return
	}
	k.metrics.Executions.WithLabelValues(t.Kind).Inc()
	log.WithField("tx", hash.Hex()).Info("Release confirmed")

	k.afterExecution(ctx, t, hash)
}

// afterExecution updates the display mirror and notifies the operator.
// Failures here never affect the loop.
func (k *Keeper) afterExecution(ctx context.Context, t Target, hash common.Hash) {
	contract := t.Contract.Hex()
	if k.mirror != nil {
		if err := k.mirror.RecordExecution(ctx, t.Kind, contract, hash.Hex()); err != nil {
			k.metrics.Errors.WithLabelValues("mirror").Inc()
			k.log.Warnf("Failed to update mirror for %s: %v", contract, err)
		}
	}
	if k.notifier != nil {
		if err := k.notifier.SendExecutionNotice(t.Kind, contract, hash.Hex(), k.explorerURL); err != nil {
			k.metrics.Errors.WithLabelValues("notify").Inc()
			k.log.Warnf("Failed to send execution notice for %s: %v", contract, err)
		}
	}
}

// reconcile marks a mirror row released when the payment was released
// without this keeper, by another caller or by a transaction mined after the
// receipt wait timed out.
func (k *Keeper) reconcile(ctx context.Context, t Target, log *logrus.Entry) {
	released, err := k.chain.Released(ctx, t.Contract)
	if err != nil {
		k.metrics.Errors.WithLabelValues("released").Inc()
		log.Warnf("released() read failed: %v", err)
		return
	}
	if !released {
		return
	}
	if err := k.mirror.RecordExecution(ctx, t.Kind, t.Contract.Hex(), ""); err != nil {
		k.metrics.Errors.WithLabelValues("mirror").Inc()
		log.Warnf("Failed to reconcile mirror: %v", err)
		return
	}
	k.metrics.Checks.WithLabelValues(t.Kind, "reconciled").Inc()
	log.Info("Payment released on-chain outside the keeper, mirror updated")
}

// targets merges configured targets with mirror discoveries, first one wins
func (k *Keeper) targets(ctx context.Context) []Target {
	if !k.discover {
		return k.static
	}

	scheduled, recurring, err := k.mirror.PendingContracts(ctx)
	if err != nil {
		k.metrics.Errors.WithLabelValues("discover").Inc()
		k.log.Warnf("Target discovery failed, using configured targets: %v", err)
		return k.static
	}

	seen := make(map[common.Address]int, len(k.static))
	out := make([]Target, 0, len(k.static)+len(scheduled)+len(recurring))
	add := func(t Target) {
		if i, ok := seen[t.Contract]; ok {
			if t.pending && out[i].Kind == t.Kind {
				out[i].pending = true
			}
			return
		}
		seen[t.Contract] = len(out)
		out = append(out, t)
	}
	for _, t := range k.static {
		add(t)
	}
	for _, addr := range scheduled {
		if common.IsHexAddress(addr) {
			add(Target{Kind: KindScheduled, Contract: common.HexToAddress(addr), pending: true})
		}
	}
	for _, addr := range recurring {
		if common.IsHexAddress(addr) {
			add(Target{Kind: KindRecurring, Contract: common.HexToAddress(addr)})
		}
	}
	return out
}
