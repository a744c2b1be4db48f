package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Budget is a category-scoped spending ceiling
type Budget struct {
	ID        uint64   `json:"id"`
	Category  string   `json:"category"`
	Allocated *big.Int `json:"allocated"`
	Spent     *big.Int `json:"spent"`
	StartDate int64    `json:"start_date"` // unix timestamp in ms
	EndDate   int64    `json:"end_date"`   // unix timestamp in ms
	Active    bool     `json:"active"`
}

// Remaining returns allocated - spent.
func (b *Budget) Remaining() *big.Int {
	return new(big.Int).Sub(b.Allocated, b.Spent)
}

// Initiative is a funding request that rides on a governance proposal:
// propose -> approve -> link to a proposal -> funded on that proposal's
// successful execution.
type Initiative struct {
	ID               uint64         `json:"id"`
	Name             string         `json:"name"`
	Category         string         `json:"category"`
	Description      string         `json:"description"`
	RequestedAmount  *big.Int       `json:"requested_amount"`
	ApprovedAmount   *big.Int       `json:"approved_amount"`
	Recipient        common.Address `json:"recipient"`
	Approved         bool           `json:"approved"`
	Funded           bool           `json:"funded"`
	LinkedProposalID uint64         `json:"linked_proposal_id"` // 0 = not linked
	CreatedAt        int64          `json:"created_at"`
}
