package core

import (
	"fmt"
	"log/slog"
	"strings"

	"lendingpool/config"
	"lendingpool/core/events"
	lpstate "lendingpool/core/state"
	"lendingpool/crypto"
	"lendingpool/native/flashloan"
	"lendingpool/native/lending"
	"lendingpool/native/token"
)

var genesisKey = []byte("node/genesis")

type genesisRecord struct {
	AppliedAt uint64
	Tokens    uint64
}

// applyGenesis grants roles, deploys tokens, registers reserves and seeds the
// flash-loan facility. It runs once per database.
func (n *Node) applyGenesis(cfg *config.Config) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var existing genesisRecord
	applied, err := n.state.KVGet(genesisKey, &existing)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if applied {
		return nil
	}

	var buf events.Buffer
	err = n.state.Update(func(tx *lpstate.Manager) error {
		admins, err := grantRoles(tx, lending.RoleAdmin, cfg.Roles.Admins)
		if err != nil {
			return err
		}
		oracles, err := grantRoles(tx, lending.RoleOracle, cfg.Roles.Oracles)
		if err != nil {
			return err
		}
		m, err := n.modules(tx, &buf)
		if err != nil {
			return err
		}
		for _, gt := range cfg.Tokens {
			if err := n.deployGenesisToken(m, gt, admins, oracles); err != nil {
				return fmt.Errorf("genesis: token %s: %w", gt.Symbol, err)
			}
		}
		for module, paused := range map[string]bool{
			lending.ModuleName:   cfg.Pauses.Lending,
			flashloan.ModuleName: cfg.Pauses.FlashLoan,
		} {
			if paused {
				if err := tx.SetPaused(module, true); err != nil {
					return err
				}
			}
		}
		return tx.KVPut(genesisKey, genesisRecord{
			AppliedAt: uint64(n.clock().Unix()),
			Tokens:    uint64(len(cfg.Tokens)),
		})
	})
	if err != nil {
		return err
	}
	n.publish(buf.Drain())
	n.logger.Info("genesis applied",
		slog.Int("tokens", len(cfg.Tokens)),
		slog.Int("admins", len(cfg.Roles.Admins)),
		slog.Int("oracles", len(cfg.Roles.Oracles)))
	return nil
}

func grantRoles(tx *lpstate.Manager, role string, members []string) ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(members))
	for _, member := range members {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(member))
		if err != nil {
			return nil, fmt.Errorf("genesis: %s %q: %w", role, member, err)
		}
		if err := tx.SetRole(role, addr.Bytes()); err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (n *Node) deployGenesisToken(m *txModules, gt config.GenesisToken, admins, oracles []crypto.Address) error {
	owner, err := crypto.DecodeAddress(gt.Owner)
	if err != nil {
		return err
	}
	supply, err := config.ParseAmount(gt.Supply)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(gt.Name)
	if name == "" {
		name = gt.Symbol
	}
	addr := token.AddressForSymbol(gt.Symbol)
	if _, err := m.tokens.Deploy(addr, owner, name, gt.Symbol, supply); err != nil {
		return err
	}

	liquidity, err := config.ParseAmount(gt.FlashLiquidity)
	if err != nil {
		return err
	}
	if liquidity.Sign() > 0 {
		if err := m.tokens.Transfer(addr, owner, n.flashAccount, liquidity); err != nil {
			return fmt.Errorf("seed flash liquidity: %w", err)
		}
	}

	if !gt.Reserve {
		return nil
	}
	if len(admins) == 0 {
		return fmt.Errorf("reserve registration requires an admin")
	}
	if _, err := m.lending.AddReserve(admins[0], addr); err != nil {
		return err
	}
	if strings.TrimSpace(gt.Price) == "" {
		return nil
	}
	if len(oracles) == 0 {
		return fmt.Errorf("initial price requires an oracle")
	}
	price, err := config.ParseAmount(gt.Price)
	if err != nil {
		return err
	}
	return m.lending.SetPrice(oracles[0], addr, price)
}
