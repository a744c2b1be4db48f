package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"treasury-dao/logger"
	"treasury-dao/models"
	"treasury-dao/repository"
)

// Ledger maintains the fungible voting rights balances. Voting power is the
// live balance; there is no snapshotting. The invariant
// sum(balances) == totalSupply holds after every mutation.
type Ledger struct {
	repo  repository.LedgerRepositoryInterface
	owner common.Address
	mux   sync.Mutex
}

func NewLedger(repo repository.LedgerRepositoryInterface, owner common.Address) *Ledger {
	return &Ledger{repo: repo, owner: owner}
}

// Owner returns the administrator account.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// Mint creates amount new tokens for to. Only the owner or an account on the
// minter allow-list may mint. Fails on 256-bit overflow, never wraps.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	l.mux.Lock()
	defer l.mux.Unlock()

	if caller != l.owner {
		allowed, err := l.repo.IsMinter(caller)
		if err != nil {
			return err
		}
		if !allowed {
			return models.ErrUnauthorized
		}
	}
	if to == (common.Address{}) {
		return models.ErrInvalidRecipient
	}
	if !models.ValidAmount(amount) || amount.Sign() == 0 {
		return models.ErrZeroAmount
	}

	supply, err := l.repo.GetTotalSupply()
	if err != nil {
		return err
	}
	newSupply := new(big.Int).Add(supply, amount)
	if !models.FitsUint256(newSupply) {
		return models.ErrOverflow
	}
	balance, err := l.repo.GetBalance(to)
	if err != nil {
		return err
	}
	newBalance := new(big.Int).Add(balance, amount)
	if !models.FitsUint256(newBalance) {
		return models.ErrOverflow
	}

	if err := l.repo.PutBalance(to, newBalance); err != nil {
		return err
	}
	if err := l.repo.PutTotalSupply(newSupply); err != nil {
		return err
	}

	logger.Logger.Info("Minted voting rights",
		zap.String("to", to.Hex()), zap.String("amount", amount.String()))

	return l.repo.AppendEvent(models.EventTokensMinted, map[string]any{
		"to":     to.Hex(),
		"amount": amount.String(),
	})
}

// Burn destroys amount tokens from the caller's own balance.
func (l *Ledger) Burn(caller common.Address, amount *big.Int) error {
	l.mux.Lock()
	defer l.mux.Unlock()

	if !models.ValidAmount(amount) || amount.Sign() == 0 {
		return models.ErrZeroAmount
	}
	balance, err := l.repo.GetBalance(caller)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return models.ErrInsufficientBalance
	}
	supply, err := l.repo.GetTotalSupply()
	if err != nil {
		return err
	}

	if err := l.repo.PutBalance(caller, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := l.repo.PutTotalSupply(new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}

	logger.Logger.Info("Burned voting rights",
		zap.String("from", caller.Hex()), zap.String("amount", amount.String()))

	return l.repo.AppendEvent(models.EventTokensBurned, map[string]any{
		"from":   caller.Hex(),
		"amount": amount.String(),
	})
}

// Transfer moves amount tokens from the caller to to. Voting power follows
// the balance immediately, even mid-proposal.
func (l *Ledger) Transfer(caller, to common.Address, amount *big.Int) error {
	l.mux.Lock()
	defer l.mux.Unlock()

	if to == (common.Address{}) {
		return models.ErrInvalidRecipient
	}
	if !models.ValidAmount(amount) || amount.Sign() == 0 {
		return models.ErrZeroAmount
	}
	fromBalance, err := l.repo.GetBalance(caller)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return models.ErrInsufficientBalance
	}
	// A self-transfer moves nothing; writing only the debit would destroy
	// the amount and break sum(balances) == totalSupply.
	if caller != to {
		toBalance, err := l.repo.GetBalance(to)
		if err != nil {
			return err
		}
		if err := l.repo.PutBalance(caller, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := l.repo.PutBalance(to, new(big.Int).Add(toBalance, amount)); err != nil {
			return err
		}
	}

	logger.Logger.Info("Transferred voting rights",
		zap.String("from", caller.Hex()), zap.String("to", to.Hex()),
		zap.String("amount", amount.String()))

	return l.repo.AppendEvent(models.EventTokensTransferred, map[string]any{
		"from":   caller.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	})
}

// SetAuthorizedMinter toggles an account's minting permission. Owner only,
// idempotent.
func (l *Ledger) SetAuthorizedMinter(caller, account common.Address, allowed bool) error {
	l.mux.Lock()
	defer l.mux.Unlock()

	if caller != l.owner {
		return models.ErrUnauthorized
	}
	if err := l.repo.PutMinter(account, allowed); err != nil {
		return err
	}

	logger.Logger.Info("Updated minter allow-list",
		zap.String("account", account.Hex()), zap.Bool("allowed", allowed))
	return nil
}

// IsAuthorizedMinter reports whether an account is on the minter allow-list.
func (l *Ledger) IsAuthorizedMinter(account common.Address) (bool, error) {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.repo.IsMinter(account)
}

// VotingPowerOf returns an account's current voting power, which equals its
// live token balance.
func (l *Ledger) VotingPowerOf(account common.Address) (*big.Int, error) {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.repo.GetBalance(account)
}

// TotalSupply returns the total voting rights supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.repo.GetTotalSupply()
}
