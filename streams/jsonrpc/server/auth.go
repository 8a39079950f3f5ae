package server

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	// ErrUnauthorized is returned when a mutation's signature does not
	// recover to its Sender.
	ErrUnauthorized = errors.New("signature does not match sender")
	// ErrReplayed is returned when a signed request has already been
	// executed or is executing.
	ErrReplayed = errors.New("request already submitted")
)

// signedMessagePrefix is the EIP-191 personal message prefix for a 32 byte payload.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// requestHasher builds the digest a mutation's Sender signs. Every field is
// written at a fixed width so no two distinct requests share an encoding.
type requestHasher struct {
	buf []byte
}

func newRequestHasher(method string) *requestHasher {
	h := &requestHasher{}
	h.buf = append(h.buf, RpcNamespace+"_"+method...)
	return h
}

func (h *requestHasher) address(a common.Address) {
	h.buf = append(h.buf, a.Bytes()...)
}

// amount writes v as 32 bytes. A nil amount hashes as zero.
func (h *requestHasher) amount(v *uint256.Int) {
	var b [32]byte
	if v != nil {
		b = v.Bytes32()
	}
	h.buf = append(h.buf, b[:]...)
}

func (h *requestHasher) path(p []common.Address) {
	h.buf = binary.BigEndian.AppendUint32(h.buf, uint32(len(p)))
	for _, a := range p {
		h.address(a)
	}
}

func (h *requestHasher) deadline(unix int64) {
	h.buf = binary.BigEndian.AppendUint64(h.buf, uint64(unix))
}

// sum returns the EIP-191 hash of the keccak256 of everything written.
func (h *requestHasher) sum() common.Hash {
	inner := crypto.Keccak256(h.buf)
	return crypto.Keccak256Hash([]byte(signedMessagePrefix), inner)
}

func signHash(hash common.Hash, key *ecdsa.PrivateKey) (hexutil.Bytes, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	return sig, nil
}

// recoverSigner returns the address that produced sig over hash. Both the
// 0/1 and 27/28 recovery id conventions are accepted; high-S signatures are not.
func recoverSigner(hash common.Hash, sig hexutil.Bytes) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrUnauthorized, crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if v := normalized[crypto.RecoveryIDOffset]; v == 27 || v == 28 {
		normalized[crypto.RecoveryIDOffset] = v - 27
	}
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, fmt.Errorf("%w: invalid signature values", ErrUnauthorized)
	}
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func verifySender(hash common.Hash, sig hexutil.Bytes, sender common.Address) error {
	signer, err := recoverSigner(hash, sig)
	if err != nil {
		return err
	}
	if signer != sender {
		return fmt.Errorf("%w: sender %s, signer %s", ErrUnauthorized, sender.Hex(), signer.Hex())
	}
	return nil
}

// replayGuard admits each request hash once until its deadline passes.
// Entries are released when the request fails so the same signed request
// can be retried.
type replayGuard struct {
	mu        sync.Mutex
	seen      map[common.Hash]int64
	lastPrune time.Time
	now       func() time.Time
}

func newReplayGuard() *replayGuard {
	return &replayGuard{
		seen: make(map[common.Hash]int64),
		now:  time.Now,
	}
}

func (g *replayGuard) acquire(hash common.Hash, deadline int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastPrune) >= time.Second {
		for h, d := range g.seen {
			if d < now.Unix() {
				delete(g.seen, h)
			}
		}
		g.lastPrune = now
	}

	if _, ok := g.seen[hash]; ok {
		return fmt.Errorf("%w: %s", ErrReplayed, hash.Hex())
	}
	g.seen[hash] = deadline
	return nil
}

func (g *replayGuard) release(hash common.Hash) {
	g.mu.Lock()
	delete(g.seen, hash)
	g.mu.Unlock()
}

func (g *replayGuard) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// --- Request hashes ---

// Hash returns the digest Sender signs for amm_addLiquidity.
func (a *AddLiquidityArgs) Hash() common.Hash {
	h := newRequestHasher("addLiquidity")
	h.address(a.TokenA)
	h.address(a.TokenB)
	h.amount(a.AmountADesired)
	h.amount(a.AmountBDesired)
	h.amount(a.AmountAMin)
	h.amount(a.AmountBMin)
	h.address(a.Sender)
	h.address(a.To)
	h.deadline(a.Deadline)
	return h.sum()
}

// Sign sets Signature from key. Sender should be key's address.
func (a *AddLiquidityArgs) Sign(key *ecdsa.PrivateKey) (err error) {
	a.Signature, err = signHash(a.Hash(), key)
	return err
}

// Hash returns the digest Sender signs for amm_removeLiquidity.
func (a *RemoveLiquidityArgs) Hash() common.Hash {
	h := newRequestHasher("removeLiquidity")
	h.address(a.TokenA)
	h.address(a.TokenB)
	h.amount(a.Liquidity)
	h.amount(a.AmountAMin)
	h.amount(a.AmountBMin)
	h.address(a.Sender)
	h.address(a.To)
	h.deadline(a.Deadline)
	return h.sum()
}

func (a *RemoveLiquidityArgs) Sign(key *ecdsa.PrivateKey) (err error) {
	a.Signature, err = signHash(a.Hash(), key)
	return err
}

// Hash returns the digest Sender signs for amm_swapExactTokensForTokens.
func (a *SwapExactInArgs) Hash() common.Hash {
	h := newRequestHasher("swapExactTokensForTokens")
	h.amount(a.AmountIn)
	h.amount(a.AmountOutMin)
	h.path(a.Path)
	h.address(a.Sender)
	h.address(a.To)
	h.deadline(a.Deadline)
	return h.sum()
}

func (a *SwapExactInArgs) Sign(key *ecdsa.PrivateKey) (err error) {
	a.Signature, err = signHash(a.Hash(), key)
	return err
}

// Hash returns the digest Sender signs for amm_swapTokensForExactTokens.
func (a *SwapExactOutArgs) Hash() common.Hash {
	h := newRequestHasher("swapTokensForExactTokens")
	h.amount(a.AmountOut)
	h.amount(a.AmountInMax)
	h.path(a.Path)
	h.address(a.Sender)
	h.address(a.To)
	h.deadline(a.Deadline)
	return h.sum()
}

func (a *SwapExactOutArgs) Sign(key *ecdsa.PrivateKey) (err error) {
	a.Signature, err = signHash(a.Hash(), key)
	return err
}
