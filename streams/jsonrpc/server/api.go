package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/defistate/defistate-amm-go/engine"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

// Engine is the subset of *engine.Engine served over JSON-RPC.
type Engine interface {
	AddLiquidity(ctx context.Context, p engine.AddLiquidityParams) (engine.AddLiquidityResult, error)
	RemoveLiquidity(ctx context.Context, p engine.RemoveLiquidityParams) (engine.RemoveLiquidityResult, error)
	SwapExactTokensForTokens(ctx context.Context, p engine.SwapExactInParams) (engine.SwapResult, error)
	SwapTokensForExactTokens(ctx context.Context, p engine.SwapExactOutParams) (engine.SwapResult, error)

	Price(tokenA, tokenB common.Address) (*uint256.Int, error)
	PairInfo(tokenA, tokenB common.Address) (engine.PairInfo, error)
	BalanceOf(tokenA, tokenB, holder common.Address) (*uint256.Int, error)
	Quote(amountA *uint256.Int, tokenA, tokenB common.Address) (*uint256.Int, error)
	GetAmountOut(amountIn *uint256.Int, path []common.Address) (*uint256.Int, error)
	GetAmountIn(amountOut *uint256.Int, path []common.Address) (*uint256.Int, error)
	AllPairs() []uniswapv2.Pool
	PairsForToken(token common.Address) []uniswapv2.Pool
	SnapshotWith(fn func(uniswapv2.Snapshot))
}

// --- Request arguments ---
// Deadlines are unix seconds. Signature is Sender's 65 byte secp256k1
// signature over the request's Hash.

type AddLiquidityArgs struct {
	TokenA         common.Address `json:"tokenA"`
	TokenB         common.Address `json:"tokenB"`
	AmountADesired *uint256.Int   `json:"amountADesired"`
	AmountBDesired *uint256.Int   `json:"amountBDesired"`
	AmountAMin     *uint256.Int   `json:"amountAMin"`
	AmountBMin     *uint256.Int   `json:"amountBMin"`
	Sender         common.Address `json:"sender"`
	To             common.Address `json:"to"`
	Deadline       int64          `json:"deadline"`
	Signature      hexutil.Bytes  `json:"signature"`
}

type RemoveLiquidityArgs struct {
	TokenA     common.Address `json:"tokenA"`
	TokenB     common.Address `json:"tokenB"`
	Liquidity  *uint256.Int   `json:"liquidity"`
	AmountAMin *uint256.Int   `json:"amountAMin"`
	AmountBMin *uint256.Int   `json:"amountBMin"`
	Sender     common.Address `json:"sender"`
	To         common.Address `json:"to"`
	Deadline   int64          `json:"deadline"`
	Signature  hexutil.Bytes  `json:"signature"`
}

type SwapExactInArgs struct {
	AmountIn     *uint256.Int     `json:"amountIn"`
	AmountOutMin *uint256.Int     `json:"amountOutMin"`
	Path         []common.Address `json:"path"`
	Sender       common.Address   `json:"sender"`
	To           common.Address   `json:"to"`
	Deadline     int64            `json:"deadline"`
	Signature    hexutil.Bytes    `json:"signature"`
}

type SwapExactOutArgs struct {
	AmountOut   *uint256.Int     `json:"amountOut"`
	AmountInMax *uint256.Int     `json:"amountInMax"`
	Path        []common.Address `json:"path"`
	Sender      common.Address   `json:"sender"`
	To          common.Address   `json:"to"`
	Deadline    int64            `json:"deadline"`
	Signature   hexutil.Bytes    `json:"signature"`
}

// APIConfig holds the API's dependencies.
type APIConfig struct {
	Engine      Engine
	Broadcaster *Broadcaster
	Logger      Logger
}

func (c *APIConfig) validate() error {
	if c.Engine == nil {
		return errors.New("config: Engine cannot be nil")
	}
	if c.Broadcaster == nil {
		return errors.New("config: Broadcaster cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// API exposes the engine under the "amm" namespace.
type API struct {
	engine      Engine
	broadcaster *Broadcaster
	logger      Logger
	replay      *replayGuard
}

// NewAPI creates the API from a configuration.
func NewAPI(cfg *APIConfig) (*API, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &API{
		engine:      cfg.Engine,
		broadcaster: cfg.Broadcaster,
		logger:      cfg.Logger,
		replay:      newReplayGuard(),
	}, nil
}

// NewRPCServer creates a go-ethereum RPC server with api registered.
func NewRPCServer(api *API) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(RpcNamespace, api); err != nil {
		return nil, fmt.Errorf("failed to register API: %w", err)
	}
	return server, nil
}

// --- Mutations ---
// Every mutation must be signed by its Sender. A signed request runs at most
// once; it may be resubmitted only if it failed.

// authorize verifies args were signed by sender and claims hash in the replay
// guard. The returned func must be called with the mutation's error.
func (api *API) authorize(method string, hash common.Hash, sig hexutil.Bytes, sender common.Address, deadline int64) (func(error), error) {
	if err := verifySender(hash, sig, sender); err != nil {
		api.logger.Warn("rejected unsigned mutation", "method", method, "sender", sender, "error", err)
		return nil, err
	}
	if err := api.replay.acquire(hash, deadline); err != nil {
		api.logger.Warn("rejected replayed mutation", "method", method, "sender", sender, "hash", hash)
		return nil, err
	}
	return func(err error) {
		if err != nil {
			api.replay.release(hash)
		}
	}, nil
}

func (api *API) AddLiquidity(ctx context.Context, args AddLiquidityArgs) (_ engine.AddLiquidityResult, err error) {
	done, err := api.authorize("addLiquidity", args.Hash(), args.Signature, args.Sender, args.Deadline)
	if err != nil {
		return engine.AddLiquidityResult{}, err
	}
	defer func() { done(err) }()

	return api.engine.AddLiquidity(ctx, engine.AddLiquidityParams{
		TokenA:         args.TokenA,
		TokenB:         args.TokenB,
		AmountADesired: args.AmountADesired,
		AmountBDesired: args.AmountBDesired,
		AmountAMin:     args.AmountAMin,
		AmountBMin:     args.AmountBMin,
		Sender:         args.Sender,
		To:             args.To,
		Deadline:       time.Unix(args.Deadline, 0),
	})
}

func (api *API) RemoveLiquidity(ctx context.Context, args RemoveLiquidityArgs) (_ engine.RemoveLiquidityResult, err error) {
	done, err := api.authorize("removeLiquidity", args.Hash(), args.Signature, args.Sender, args.Deadline)
	if err != nil {
		return engine.RemoveLiquidityResult{}, err
	}
	defer func() { done(err) }()

	return api.engine.RemoveLiquidity(ctx, engine.RemoveLiquidityParams{
		TokenA:     args.TokenA,
		TokenB:     args.TokenB,
		Liquidity:  args.Liquidity,
		AmountAMin: args.AmountAMin,
		AmountBMin: args.AmountBMin,
		Sender:     args.Sender,
		To:         args.To,
		Deadline:   time.Unix(args.Deadline, 0),
	})
}

func (api *API) SwapExactTokensForTokens(ctx context.Context, args SwapExactInArgs) (_ engine.SwapResult, err error) {
	done, err := api.authorize("swapExactTokensForTokens", args.Hash(), args.Signature, args.Sender, args.Deadline)
	if err != nil {
		return engine.SwapResult{}, err
	}
	defer func() { done(err) }()

	return api.engine.SwapExactTokensForTokens(ctx, engine.SwapExactInParams{
		AmountIn:     args.AmountIn,
		AmountOutMin: args.AmountOutMin,
		Path:         args.Path,
		Sender:       args.Sender,
		To:           args.To,
		Deadline:     time.Unix(args.Deadline, 0),
	})
}

func (api *API) SwapTokensForExactTokens(ctx context.Context, args SwapExactOutArgs) (_ engine.SwapResult, err error) {
	done, err := api.authorize("swapTokensForExactTokens", args.Hash(), args.Signature, args.Sender, args.Deadline)
	if err != nil {
		return engine.SwapResult{}, err
	}
	defer func() { done(err) }()

	return api.engine.SwapTokensForExactTokens(ctx, engine.SwapExactOutParams{
		AmountOut:   args.AmountOut,
		AmountInMax: args.AmountInMax,
		Path:        args.Path,
		Sender:      args.Sender,
		To:          args.To,
		Deadline:    time.Unix(args.Deadline, 0),
	})
}

// --- Reads ---

func (api *API) Price(tokenA, tokenB common.Address) (*uint256.Int, error) {
	return api.engine.Price(tokenA, tokenB)
}

func (api *API) PairInfo(tokenA, tokenB common.Address) (engine.PairInfo, error) {
	return api.engine.PairInfo(tokenA, tokenB)
}

func (api *API) BalanceOf(tokenA, tokenB, holder common.Address) (*uint256.Int, error) {
	return api.engine.BalanceOf(tokenA, tokenB, holder)
}

func (api *API) Quote(amountA *uint256.Int, tokenA, tokenB common.Address) (*uint256.Int, error) {
	return api.engine.Quote(amountA, tokenA, tokenB)
}

func (api *API) GetAmountOut(amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	return api.engine.GetAmountOut(amountIn, path)
}

func (api *API) GetAmountIn(amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	return api.engine.GetAmountIn(amountOut, path)
}

func (api *API) AllPairs() []uniswapv2.Pool {
	return api.engine.AllPairs()
}

func (api *API) PairsForToken(token common.Address) []uniswapv2.Pool {
	return api.engine.PairsForToken(token)
}

// --- Subscription ---

// SubscribeStateStream sends the subscriber a full snapshot followed by every
// committed event in sequence order. A subscriber that falls behind is sent a
// fresh snapshot and continues from there.
func (api *API) SubscribeStateStream(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	snapshot, events, cancel := api.subscribe()
	api.logger.Info("state stream subscriber connected", "subscription", rpcSub.ID, "sequence", snapshot.Sequence)

	go func() {
		defer func() { cancel() }()

		if err := api.notify(notifier, rpcSub.ID, EventTypeFull, snapshot); err != nil {
			api.logger.Error("failed to send snapshot", "subscription", rpcSub.ID, "error", err)
			return
		}
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					// Dropped for falling behind: start over from a fresh snapshot.
					api.broadcaster.metrics.resyncs.Inc()
					snapshot, events, cancel = api.subscribe()
					if err := api.notify(notifier, rpcSub.ID, EventTypeFull, snapshot); err != nil {
						api.logger.Error("failed to send snapshot", "subscription", rpcSub.ID, "error", err)
						return
					}
					continue
				}
				if err := api.notify(notifier, rpcSub.ID, EventTypeEvent, ev); err != nil {
					api.logger.Error("failed to send event", "subscription", rpcSub.ID, "sequence", ev.Sequence, "error", err)
					return
				}
			case err := <-rpcSub.Err():
				api.logger.Info("state stream subscriber disconnected", "subscription", rpcSub.ID, "error", err)
				return
			}
		}
	}()

	return rpcSub, nil
}

// subscribe takes a snapshot and registers for events in one step, so the
// first event received follows the snapshot directly.
func (api *API) subscribe() (snapshot uniswapv2.Snapshot, events <-chan engine.Event, cancel func()) {
	api.engine.SnapshotWith(func(s uniswapv2.Snapshot) {
		snapshot = s
		events, cancel = api.broadcaster.Subscribe()
	})
	return snapshot, events, cancel
}

func (api *API) notify(notifier *rpc.Notifier, id rpc.ID, eventType string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return notifier.Notify(id, &SubscriptionEvent{
		Type:    eventType,
		Payload: payload,
		SentAt:  time.Now().UnixNano(),
	})
}
