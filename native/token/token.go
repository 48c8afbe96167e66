package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"lendingpool/core/events"
	"lendingpool/crypto"
)

var (
	ErrUnknownToken          = errors.New("token: unknown token")
	ErrTokenExists           = errors.New("token: already deployed")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must not be negative")
	ErrOverflow              = errors.New("token: amount overflows 256 bits")
	ErrUnauthorized          = errors.New("token: caller is not the token owner")
)

// Metadata describes a deployed fungible token.
type Metadata struct {
	Address     crypto.Address
	Name        string
	Symbol      string
	Owner       crypto.Address
	TotalSupply *big.Int
}

type tokenState interface {
	TokenMetadata(token crypto.Address) (*Metadata, bool, error)
	PutTokenMetadata(meta *Metadata) error
	TokenList() ([]crypto.Address, error)
	AppendToken(token crypto.Address) error
	TokenBalance(token, owner crypto.Address) (*big.Int, error)
	SetTokenBalance(token, owner crypto.Address, amount *big.Int) error
	TokenAllowance(token, owner, spender crypto.Address) (*big.Int, error)
	SetTokenAllowance(token, owner, spender crypto.Address, amount *big.Int) error
}

// AddressForSymbol derives the deterministic contract address of a token.
func AddressForSymbol(symbol string) crypto.Address {
	digest := ethcrypto.Keccak256([]byte("token:" + strings.ToUpper(strings.TrimSpace(symbol))))
	return crypto.NewAddress(crypto.AccountPrefix, digest[len(digest)-crypto.AddressLength:])
}

// Ledger implements ERC-20 style balances and allowances for any number of
// tokens stored in the shared protocol state.
type Ledger struct {
	state   tokenState
	emitter events.Emitter
}

// NewLedger binds a ledger to the provided state.
func NewLedger(state tokenState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event sink. Passing nil discards events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// Deploy registers a new token and credits the whole supply to owner.
func (l *Ledger) Deploy(addr, owner crypto.Address, name, symbol string, supply *big.Int) (*Metadata, error) {
	if addr.IsZero() || owner.IsZero() {
		return nil, fmt.Errorf("token: address and owner required")
	}
	if _, err := toUint256(supply); err != nil {
		return nil, err
	}
	if _, exists, err := l.state.TokenMetadata(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrTokenExists
	}
	meta := &Metadata{
		Address:     addr,
		Name:        strings.TrimSpace(name),
		Symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		Owner:       owner,
		TotalSupply: cloneOrZero(supply),
	}
	if err := l.state.PutTokenMetadata(meta); err != nil {
		return nil, err
	}
	if err := l.state.AppendToken(addr); err != nil {
		return nil, err
	}
	if err := l.state.SetTokenBalance(addr, owner, meta.TotalSupply); err != nil {
		return nil, err
	}
	l.emitter.Emit(NewTransferEvent(addr, crypto.Address{}, owner, meta.TotalSupply))
	return meta, nil
}

// Metadata returns the token description.
func (l *Ledger) Metadata(token crypto.Address) (*Metadata, error) {
	meta, ok, err := l.state.TokenMetadata(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownToken
	}
	return meta, nil
}

// Tokens lists every deployed token in deployment order.
func (l *Ledger) Tokens() ([]crypto.Address, error) {
	return l.state.TokenList()
}

// BalanceOf returns the token balance of owner.
func (l *Ledger) BalanceOf(token, owner crypto.Address) (*big.Int, error) {
	if _, err := l.Metadata(token); err != nil {
		return nil, err
	}
	return l.state.TokenBalance(token, owner)
}

// TotalSupply returns the circulating supply of token.
func (l *Ledger) TotalSupply(token crypto.Address) (*big.Int, error) {
	meta, err := l.Metadata(token)
	if err != nil {
		return nil, err
	}
	return cloneOrZero(meta.TotalSupply), nil
}

// Allowance returns how much spender may pull from owner.
func (l *Ledger) Allowance(token, owner, spender crypto.Address) (*big.Int, error) {
	if _, err := l.Metadata(token); err != nil {
		return nil, err
	}
	return l.state.TokenAllowance(token, owner, spender)
}

// Approve overwrites the allowance granted by owner to spender.
func (l *Ledger) Approve(token, owner, spender crypto.Address, amount *big.Int) error {
	if _, err := l.Metadata(token); err != nil {
		return err
	}
	if _, err := toUint256(amount); err != nil {
		return err
	}
	if err := l.state.SetTokenAllowance(token, owner, spender, cloneOrZero(amount)); err != nil {
		return err
	}
	l.emitter.Emit(NewApprovalEvent(token, owner, spender, amount))
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(token, from, to crypto.Address, amount *big.Int) error {
	if _, err := l.Metadata(token); err != nil {
		return err
	}
	return l.move(token, from, to, amount)
}

// TransferFrom moves amount on behalf of from, consuming spender's allowance.
func (l *Ledger) TransferFrom(token, spender, from, to crypto.Address, amount *big.Int) error {
	if _, err := l.Metadata(token); err != nil {
		return err
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	allowance, err := l.state.TokenAllowance(token, from, spender)
	if err != nil {
		return err
	}
	current, err := toUint256(allowance)
	if err != nil {
		return err
	}
	if current.Lt(value) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, current.Dec(), value.Dec())
	}
	remaining := new(uint256.Int).Sub(current, value)
	if err := l.state.SetTokenAllowance(token, from, spender, remaining.ToBig()); err != nil {
		return err
	}
	return l.move(token, from, to, amount)
}

// Mint creates new supply. Only the token owner may mint.
func (l *Ledger) Mint(token, caller, to crypto.Address, amount *big.Int) error {
	meta, err := l.Metadata(token)
	if err != nil {
		return err
	}
	if !meta.Owner.Equal(caller) {
		return ErrUnauthorized
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	supply, err := toUint256(meta.TotalSupply)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, value)
	if overflow {
		return ErrOverflow
	}
	balance, err := l.state.TokenBalance(token, to)
	if err != nil {
		return err
	}
	current, err := toUint256(balance)
	if err != nil {
		return err
	}
	// Supply bounds every balance, so this addition cannot overflow.
	credited := new(uint256.Int).Add(current, value)
	meta.TotalSupply = newSupply.ToBig()
	if err := l.state.PutTokenMetadata(meta); err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(token, to, credited.ToBig()); err != nil {
		return err
	}
	l.emitter.Emit(NewTransferEvent(token, crypto.Address{}, to, amount))
	return nil
}

func (l *Ledger) move(token, from, to crypto.Address, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	fromBalance, err := l.state.TokenBalance(token, from)
	if err != nil {
		return err
	}
	debit, err := toUint256(fromBalance)
	if err != nil {
		return err
	}
	if debit.Lt(value) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, debit.Dec(), value.Dec())
	}
	if err := l.state.SetTokenBalance(token, from, new(uint256.Int).Sub(debit, value).ToBig()); err != nil {
		return err
	}
	toBalance, err := l.state.TokenBalance(token, to)
	if err != nil {
		return err
	}
	credit, err := toUint256(toBalance)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(credit, value)
	if overflow {
		return ErrOverflow
	}
	if err := l.state.SetTokenBalance(token, to, sum.ToBig()); err != nil {
		return err
	}
	l.emitter.Emit(NewTransferEvent(token, from, to, amount))
	return nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
