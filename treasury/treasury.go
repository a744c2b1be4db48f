package treasury

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"treasury-dao/logger"
	"treasury-dao/models"
	"treasury-dao/repository"
	"treasury-dao/token"
)

// DefaultExchangeRate is the number of voting rights base units minted per
// unit of deposited currency.
const DefaultExchangeRate = 100000

// Treasury custodies the pooled funds. Deposits mint voting rights at a
// fixed exchange rate; funds leave the pool only through Release, which is
// called exclusively by the proposal engine's execute path.
type Treasury struct {
	repo         repository.LedgerRepositoryInterface
	token        *token.Ledger
	addr         common.Address
	exchangeRate *big.Int
	mux          sync.Mutex
}

func NewTreasury(repo repository.LedgerRepositoryInterface, tok *token.Ledger, addr common.Address, exchangeRate int64) *Treasury {
	if exchangeRate <= 0 {
		exchangeRate = DefaultExchangeRate
	}
	return &Treasury{
		repo:         repo,
		token:        tok,
		addr:         addr,
		exchangeRate: big.NewInt(exchangeRate),
	}
}

// Address returns the treasury's own account, expected to be on the token
// ledger's minter allow-list.
func (t *Treasury) Address() common.Address {
	return t.addr
}

// Deposit accepts funds into the pool and mints voting rights to the
// depositor. tokenAmount = amount * exchangeRate, computed as a single
// big-int multiplication with no intermediate truncation. The mint happens
// on every nonzero deposit, before the pool balance is updated.
func (t *Treasury) Deposit(depositor common.Address, amount *big.Int) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if !models.ValidAmount(amount) || amount.Sign() == 0 {
		return models.ErrZeroAmount
	}

	tokenAmount := new(big.Int).Mul(amount, t.exchangeRate)
	if err := t.token.Mint(t.addr, depositor, tokenAmount); err != nil {
		return err
	}

	pool, err := t.repo.GetPoolBalance()
	if err != nil {
		return err
	}
	if err := t.repo.PutPoolBalance(new(big.Int).Add(pool, amount)); err != nil {
		return err
	}

	logger.Logger.Info("Funds deposited",
		zap.String("depositor", depositor.Hex()),
		zap.String("amount", amount.String()),
		zap.String("minted", tokenAmount.String()))

	return t.repo.AppendEvent(models.EventFundsDeposited, map[string]any{
		"depositor": depositor.Hex(),
		"amount":    amount.String(),
		"minted":    tokenAmount.String(),
	})
}

// Release transfers amount out of the pool to the recipient. Only the
// proposal engine calls this, inside its execute critical section; it is
// never exposed on the HTTP surface. A pool shortfall is reported as a
// failed transfer so the engine can roll the execution back.
func (t *Treasury) Release(to common.Address, amount *big.Int) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	pool, err := t.repo.GetPoolBalance()
	if err != nil {
		return err
	}
	if pool.Cmp(amount) < 0 {
		return models.ErrTransferFailed
	}
	if err := t.repo.PutPoolBalance(new(big.Int).Sub(pool, amount)); err != nil {
		return err
	}

	logger.Logger.Info("Funds released",
		zap.String("to", to.Hex()), zap.String("amount", amount.String()))

	return t.repo.AppendEvent(models.EventFundsReleased, map[string]any{
		"to":     to.Hex(),
		"amount": amount.String(),
	})
}

// Balance returns the current pool balance.
func (t *Treasury) Balance() (*big.Int, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.repo.GetPoolBalance()
}
