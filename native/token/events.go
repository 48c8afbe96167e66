package token

import (
	"math/big"

	"lendingpool/core/types"
	"lendingpool/crypto"
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
)

// NewTransferEvent describes a balance movement. Mints carry an empty sender.
func NewTransferEvent(token, from, to crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"token":  token.String(),
			"from":   from.String(),
			"to":     to.String(),
			"amount": cloneOrZero(amount).String(),
		},
	}
}

// NewApprovalEvent describes an allowance update.
func NewApprovalEvent(token, owner, spender crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   token.String(),
			"owner":   owner.String(),
			"spender": spender.String(),
			"amount":  cloneOrZero(amount).String(),
		},
	}
}
