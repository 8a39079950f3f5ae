package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	"github.com/defistate/defistate-amm-go/protocols/tokenpoolregistry"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Operation names used in metrics and logs.
const (
	opAddLiquidity    = "add_liquidity"
	opRemoveLiquidity = "remove_liquidity"
	opSwapExactIn     = "swap_exact_in"
	opSwapExactOut    = "swap_exact_out"
)

type gateHolder struct {
	gate ApprovalGate
}

// Engine executes deposits, withdrawals and swaps against constant-product pools.
//
// Every operation holds its pair's guard from the moment the pair key is known
// until it returns, so a second operation on the same pair, including one
// re-entering from a collaborator, fails with ErrLocked. Operations on
// different pairs run in parallel. State is changed only by a single commit
// after every external call has succeeded.
type Engine struct {
	store            *uniswapv2.PoolStore
	index            *tokenpoolregistry.TokenPoolSystem
	custodian        Custodian
	gate             atomic.Pointer[gateHolder]
	publisher        Publisher
	minimumLiquidity *uint256.Int
	clock            func() time.Time
	metrics          *Metrics
	logger           Logger

	// commitMu orders commits and event delivery so events are published in
	// sequence order.
	commitMu sync.Mutex
}

// New constructs an engine from a configuration, returning an error if the config is invalid.
func New(cfg *Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:            cfg.Store,
		index:            tokenpoolregistry.NewTokenPoolSystem(),
		custodian:        cfg.Custodian,
		publisher:        cfg.Publisher,
		minimumLiquidity: DefaultMinimumLiquidity.Clone(),
		clock:            cfg.Clock,
		metrics:          NewMetrics(cfg.Registry),
		logger:           cfg.Logger,
	}
	if e.store == nil {
		e.store = uniswapv2.NewPoolStore()
	}
	if e.publisher == nil {
		e.publisher = nopPublisher{}
	}
	if cfg.MinimumLiquidity != nil {
		e.minimumLiquidity = cfg.MinimumLiquidity.Clone()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	e.gate.Store(&gateHolder{gate: cfg.Gate})

	// A store handed in with existing pools is indexed up front.
	pools := e.store.Pools()
	keys := make([]poolregistry.PairKey, len(pools))
	tokenSets := make([][]common.Address, len(pools))
	for i, p := range pools {
		keys[i] = p.Key
		tokenSets[i] = []common.Address{p.Token0, p.Token1}
	}
	e.index.AddPools(keys, tokenSets)
	e.metrics.pools.Set(float64(len(pools)))

	return e, nil
}

// SetApprovalGate replaces the gate consulted by subsequent swaps.
func (e *Engine) SetApprovalGate(gate ApprovalGate) error {
	if gate == nil {
		return ErrInvalidGate
	}
	e.gate.Store(&gateHolder{gate: gate})
	e.logger.Info("approval gate replaced", "gate", fmt.Sprintf("%T", gate))
	return nil
}

func (e *Engine) approvalGate() ApprovalGate {
	return e.gate.Load().gate
}

// MinimumLiquidity returns the smallest non-zero share supply a pool may have.
func (e *Engine) MinimumLiquidity() *uint256.Int {
	return e.minimumLiquidity.Clone()
}

func (e *Engine) checkDeadline(deadline time.Time) error {
	if now := e.clock(); now.After(deadline) {
		return fmt.Errorf("%w: deadline %s passed at %s", ErrExpired, deadline.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	return nil
}

// observe records the outcome of an operation. It is deferred with a pointer
// to the operation's named error result.
func (e *Engine) observe(op string, start time.Time, errp *error) {
	err := *errp
	e.metrics.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	e.metrics.operationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	if err != nil {
		e.logger.Debug("operation rejected", "operation", op, "error", err)
	}
}

// commit writes c to the store and publishes ev completed with the commit's
// sequence number and resulting pool.
func (e *Engine) commit(c uniswapv2.Commit, created bool, ev Event) (uniswapv2.Pool, error) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	pool, seq, err := e.store.Commit(c)
	if err != nil {
		return uniswapv2.Pool{}, err
	}
	if created {
		e.index.AddPool([]common.Address{pool.Token0, pool.Token1}, pool.Key)
		e.metrics.pools.Set(float64(e.store.Len()))
	}

	ev.Sequence = seq
	ev.Pool = pool.Copy()
	ev.Timestamp = e.clock().UnixNano()
	e.publisher.Publish(ev)

	e.logger.Debug("operation committed",
		"type", ev.Type,
		"sequence", seq,
		"pair", pool.Key,
		"reserve0", pool.Reserve0.Dec(),
		"reserve1", pool.Reserve1.Dec(),
		"totalSupply", pool.TotalSupply.Dec(),
	)
	return pool, nil
}

// --- Custody settlement ---

type transfer struct {
	push    bool
	token   common.Address
	account common.Address
	amount  *uint256.Int
}

// settlement performs the custody calls of one operation and remembers the
// ones that succeeded so they can be reversed if a later step fails.
type settlement struct {
	ctx  context.Context
	e    *Engine
	done []transfer
}

func (e *Engine) settle(ctx context.Context) *settlement {
	return &settlement{ctx: ctx, e: e}
}

func (s *settlement) pull(token, from common.Address, amount *uint256.Int) error {
	if err := s.e.custodian.Pull(s.ctx, token, from, amount.Clone()); err != nil {
		return &CustodyError{Op: "pull", Token: token, Account: from, Amount: amount.Clone(), Err: err}
	}
	s.done = append(s.done, transfer{token: token, account: from, amount: amount.Clone()})
	return nil
}

func (s *settlement) push(token, to common.Address, amount *uint256.Int) error {
	if err := s.e.custodian.Push(s.ctx, token, to, amount.Clone()); err != nil {
		return &CustodyError{Op: "push", Token: token, Account: to, Amount: amount.Clone(), Err: err}
	}
	s.done = append(s.done, transfer{push: true, token: token, account: to, amount: amount.Clone()})
	return nil
}

// rollback reverses every completed transfer, newest first, and returns cause.
// Reversals ignore cancellation of the operation's context. If a reversal
// fails, custody and pool reserves may disagree; the failure is logged and
// joined to cause.
func (s *settlement) rollback(cause error) error {
	ctx := context.WithoutCancel(s.ctx)
	for i := len(s.done) - 1; i >= 0; i-- {
		t := s.done[i]
		var err error
		if t.push {
			err = s.e.custodian.Pull(ctx, t.token, t.account, t.amount.Clone())
		} else {
			err = s.e.custodian.Push(ctx, t.token, t.account, t.amount.Clone())
		}
		if err != nil {
			s.e.logger.Error("custody compensation failed",
				"token", t.token,
				"account", t.account,
				"amount", t.amount.Dec(),
				"cause", cause,
				"error", err,
			)
			return fmt.Errorf("%w; compensation failed: %w", cause, err)
		}
	}
	s.done = nil
	return cause
}

// --- Helpers ---

// align returns (a, b) when tokenA is the pool's token0 and (b, a) otherwise.
// It converts amounts between caller order and canonical order in either direction.
func align(pool uniswapv2.Pool, tokenA common.Address, a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if tokenA == pool.Token0 {
		return a, b
	}
	return b, a
}

func requireAmounts(amounts ...*uint256.Int) error {
	for _, a := range amounts {
		if a == nil {
			return ErrInvalidAmount
		}
	}
	return nil
}

func requireAddresses(sender, to common.Address) error {
	if sender == (common.Address{}) {
		return fmt.Errorf("%w: zero sender", ErrInvalidAddress)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: zero recipient", ErrInvalidAddress)
	}
	return nil
}

func addChecked(x, y *uint256.Int, what string) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: %s %s + %s", ErrOverflow, what, x.Dec(), y.Dec())
	}
	return sum, nil
}
