package treasury_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"treasury-dao/logger"
	"treasury-dao/models"
	"treasury-dao/repository"
	"treasury-dao/token"
	"treasury-dao/treasury"
)

var (
	owner        = common.HexToAddress("0x1111111111111111111111111111111111111111")
	treasuryAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	alice        = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	dave         = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
)

func newTestTreasury(t *testing.T) (*treasury.Treasury, *token.Ledger) {
	logger.Logger = zap.NewNop()
	repo := repository.NewMemoryRepository()
	tok := token.NewLedger(repo, owner)
	tre := treasury.NewTreasury(repo, tok, treasuryAddr, treasury.DefaultExchangeRate)
	require.NoError(t, tok.SetAuthorizedMinter(owner, treasuryAddr, true))
	return tre, tok
}

func unit(n int64) *big.Int {
	// n currency units in 18-decimal base units
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestDeposit_RejectsZeroAmount(t *testing.T) {
	tre, _ := newTestTreasury(t)
	err := tre.Deposit(alice, big.NewInt(0))
	require.ErrorIs(t, err, models.ErrZeroAmount)
}

func TestDeposit_ExchangeRateExact(t *testing.T) {
	tre, tok := newTestTreasury(t)

	// 1 unit deposited mints exactly 100000 units of voting rights
	require.NoError(t, tre.Deposit(alice, unit(1)))
	power, err := tok.VotingPowerOf(alice)
	require.NoError(t, err)
	require.Equal(t, unit(100000), power)

	// fractional deposits keep full precision: 0.5 unit -> 50000 units
	half := new(big.Int).Div(unit(1), big.NewInt(2))
	require.NoError(t, tre.Deposit(alice, half))
	power, err = tok.VotingPowerOf(alice)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(unit(100000), unit(50000)), power)

	balance, err := tre.Balance()
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(unit(1), half), balance)
}

func TestDeposit_MintsEvenForTinyAmounts(t *testing.T) {
	tre, tok := newTestTreasury(t)

	require.NoError(t, tre.Deposit(alice, big.NewInt(1)))
	power, err := tok.VotingPowerOf(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100000), power)
}

func TestRelease(t *testing.T) {
	tre, _ := newTestTreasury(t)
	require.NoError(t, tre.Deposit(alice, unit(5)))

	err := tre.Release(dave, unit(6))
	require.ErrorIs(t, err, models.ErrTransferFailed)

	require.NoError(t, tre.Release(dave, unit(2)))
	balance, err := tre.Balance()
	require.NoError(t, err)
	require.Equal(t, unit(3), balance)
}
