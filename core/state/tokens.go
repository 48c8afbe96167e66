package state

import (
	"math/big"

	"lendingpool/crypto"
	"lendingpool/native/token"
)

// TokenMetadata loads the description of a deployed token.
func (m *Manager) TokenMetadata(addr crypto.Address) (*token.Metadata, bool, error) {
	var meta token.Metadata
	ok, err := m.KVGet(TokenMetadataKey(addr.Bytes()), &meta)
	if err != nil || !ok {
		return nil, ok, err
	}
	if meta.TotalSupply == nil {
		meta.TotalSupply = big.NewInt(0)
	}
	return &meta, true, nil
}

// PutTokenMetadata stores the description of a token.
func (m *Manager) PutTokenMetadata(meta *token.Metadata) error {
	return m.KVPut(TokenMetadataKey(meta.Address.Bytes()), meta)
}

// TokenList returns every deployed token address in deployment order.
func (m *Manager) TokenList() ([]crypto.Address, error) {
	return m.addressList(tokenListKeyBytes)
}

// AppendToken records a newly deployed token.
func (m *Manager) AppendToken(addr crypto.Address) error {
	return m.KVAppend(tokenListKeyBytes, addr.Bytes())
}

// TokenBalance returns owner's balance of the token, zero when unset.
func (m *Manager) TokenBalance(tokenAddr, owner crypto.Address) (*big.Int, error) {
	return m.bigValue(TokenBalanceKey(tokenAddr.Bytes(), owner.Bytes()))
}

// SetTokenBalance overwrites owner's balance of the token.
func (m *Manager) SetTokenBalance(tokenAddr, owner crypto.Address, amount *big.Int) error {
	return m.setBigValue(TokenBalanceKey(tokenAddr.Bytes(), owner.Bytes()), amount)
}

// TokenAllowance returns the allowance granted by owner to spender.
func (m *Manager) TokenAllowance(tokenAddr, owner, spender crypto.Address) (*big.Int, error) {
	return m.bigValue(TokenAllowanceKey(tokenAddr.Bytes(), owner.Bytes(), spender.Bytes()))
}

// SetTokenAllowance overwrites the allowance granted by owner to spender.
func (m *Manager) SetTokenAllowance(tokenAddr, owner, spender crypto.Address, amount *big.Int) error {
	return m.setBigValue(TokenAllowanceKey(tokenAddr.Bytes(), owner.Bytes(), spender.Bytes()), amount)
}

func (m *Manager) bigValue(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// Zero values are deleted so untouched accounts and drained ones look alike.
func (m *Manager) setBigValue(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	if amount.Sign() < 0 {
		return errNegativeValue
	}
	return m.KVPut(key, amount)
}

func (m *Manager) addressList(key []byte) ([]crypto.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, crypto.NewAddress(crypto.AccountPrefix, b))
	}
	return out, nil
}
