package state

var (
	rolePrefix = []byte("role:")

	tokenMetaPrefix      = []byte("token/meta/")
	tokenListKeyBytes    = []byte("token/list")
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")

	lendingReservePrefix  = []byte("lending/reserve/")
	lendingReserveListKey = []byte("lending/reserves")
	lendingDepositPrefix  = []byte("lending/deposit/")
	lendingBorrowPrefix   = []byte("lending/borrow/")

	pausePrefix = []byte("pause/")
)

func composeKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}

// TokenMetadataKey returns the KV key storing a token description.
func TokenMetadataKey(token []byte) []byte { return composeKey(tokenMetaPrefix, token) }

// TokenBalanceKey returns the KV key storing owner's balance of token.
func TokenBalanceKey(token, owner []byte) []byte {
	return composeKey(tokenBalancePrefix, token, owner)
}

// TokenAllowanceKey returns the KV key storing the allowance owner granted spender.
func TokenAllowanceKey(token, owner, spender []byte) []byte {
	return composeKey(tokenAllowancePrefix, token, owner, spender)
}

// LendingReserveKey returns the KV key storing a reserve.
func LendingReserveKey(asset []byte) []byte { return composeKey(lendingReservePrefix, asset) }

// LendingDepositKey returns the KV key storing a deposit position.
func LendingDepositKey(asset, owner []byte) []byte {
	return composeKey(lendingDepositPrefix, asset, owner)
}

// LendingBorrowKey returns the KV key storing a borrow position.
func LendingBorrowKey(asset, owner []byte) []byte {
	return composeKey(lendingBorrowPrefix, asset, owner)
}

// PauseKey returns the KV key storing the pause flag of a module.
func PauseKey(module string) []byte { return composeKey(pausePrefix, []byte(module)) }
