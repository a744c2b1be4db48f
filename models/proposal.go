package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VoteRecord stores one account's vote on a proposal
type VoteRecord struct {
	HasVoted bool     `json:"has_voted"`
	Choice   bool     `json:"choice"` // true = for, false = against
	Weight   *big.Int `json:"weight"` // voting power at the moment the vote was cast
	CastAt   int64    `json:"cast_at"`
}

// Proposal is a treasury spending proposal. Immutable after creation except
// for the vote tallies and the executed flag; proposals are never deleted.
type Proposal struct {
	ID           uint64                         `json:"id"`
	Proposer     common.Address                 `json:"proposer"`
	Recipient    common.Address                 `json:"recipient"`
	Amount       *big.Int                       `json:"amount"` // currency base units requested
	Description  string                         `json:"description"`
	ForVotes     *big.Int                       `json:"for_votes"`
	AgainstVotes *big.Int                       `json:"against_votes"`
	CreatedAt    int64                          `json:"created_at"` // unix timestamp in ms
	Deadline     int64                          `json:"deadline"`   // unix timestamp in ms
	Executed     bool                           `json:"executed"`
	Voters       map[common.Address]*VoteRecord `json:"voters"`
}

// TotalVotesCast returns forVotes + againstVotes.
func (p *Proposal) TotalVotesCast() *big.Int {
	return new(big.Int).Add(p.ForVotes, p.AgainstVotes)
}
