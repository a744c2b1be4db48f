package governance

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"treasury-dao/logger"
	"treasury-dao/models"
	"treasury-dao/repository"
	"treasury-dao/token"
	"treasury-dao/treasury"
)

const (
	// quorumPercent is the fraction of total token supply that must have
	// voted, for or against, for a proposal's outcome to count.
	quorumPercent = 10
	// majorityPercent is the fraction of votes cast that must be "for".
	majorityPercent = 51

	DefaultVotingPeriod = 3 * 24 * time.Hour
	MinVotingPeriod     = time.Minute
	MaxVotingPeriod     = 30 * 24 * time.Hour
)

// ExecutionListener is notified after a proposal's funds have been released.
// The budget tracker implements it to mark linked initiatives funded.
type ExecutionListener interface {
	ProposalExecuted(p *models.Proposal) error
}

// Engine is the proposal state machine: creation, one-vote-per-account
// casting, deadline and passage evaluation, and execution. All mutating
// operations run under a single mutex, which also serves as the reentrancy
// guard around execute: the executed flag is persisted before funds move and
// rolled back in the same critical section if the release fails.
type Engine struct {
	repo     repository.LedgerRepositoryInterface
	token    *token.Ledger
	treasury *treasury.Treasury
	listener ExecutionListener
	now      func() time.Time
	mux      sync.Mutex
}

func NewEngine(repo repository.LedgerRepositoryInterface, tok *token.Ledger, tre *treasury.Treasury) *Engine {
	return &Engine{
		repo:     repo,
		token:    tok,
		treasury: tre,
		now:      time.Now,
	}
}

// SetListener registers the execution listener. Call before serving traffic.
func (e *Engine) SetListener(l ExecutionListener) {
	e.listener = l
}

// SetClock overrides the engine's clock. Tests use this to cross deadlines
// without sleeping.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Create validates and stores a new proposal in the pending state.
func (e *Engine) Create(proposer, recipient common.Address, amount *big.Int, description string, duration time.Duration) (*models.Proposal, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	power, err := e.token.VotingPowerOf(proposer)
	if err != nil {
		return nil, err
	}
	if power.Sign() == 0 {
		return nil, models.ErrNotATokenHolder
	}
	if recipient == (common.Address{}) {
		return nil, models.ErrInvalidRecipient
	}
	if !models.ValidAmount(amount) || amount.Sign() == 0 {
		return nil, models.ErrZeroAmount
	}
	pool, err := e.treasury.Balance()
	if err != nil {
		return nil, err
	}
	if amount.Cmp(pool) > 0 {
		return nil, models.ErrInsufficientTreasuryBalance
	}
	if strings.TrimSpace(description) == "" {
		return nil, models.ErrEmptyDescription
	}
	if duration == 0 {
		duration = DefaultVotingPeriod
	} else if duration < MinVotingPeriod || duration > MaxVotingPeriod {
		return nil, models.ErrDurationOutOfRange
	}

	id, err := e.repo.NextProposalID()
	if err != nil {
		return nil, err
	}
	now := e.now().UnixMilli()
	p := &models.Proposal{
		ID:           id,
		Proposer:     proposer,
		Recipient:    recipient,
		Amount:       new(big.Int).Set(amount),
		Description:  description,
		ForVotes:     big.NewInt(0),
		AgainstVotes: big.NewInt(0),
		CreatedAt:    now,
		Deadline:     now + duration.Milliseconds(),
		Executed:     false,
		Voters:       make(map[common.Address]*models.VoteRecord),
	}
	if err := e.repo.PutProposal(p); err != nil {
		return nil, err
	}

	logger.Logger.Info("Proposal created",
		zap.Uint64("proposal_id", id),
		zap.String("proposer", proposer.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.String()),
		zap.Int64("deadline", p.Deadline))

	if err := e.repo.AppendEvent(models.EventProposalCreated, map[string]any{
		"proposal_id": id,
		"proposer":    proposer.Hex(),
		"recipient":   recipient.Hex(),
		"amount":      amount.String(),
		"deadline":    p.Deadline,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// Vote casts the voter's full current voting power for or against a
// proposal. The deadline boundary is inclusive: a vote at exactly the
// deadline instant is accepted.
func (e *Engine) Vote(voter common.Address, proposalID uint64, support bool) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	p, err := e.repo.GetProposal(proposalID)
	if err != nil {
		return err
	}
	now := e.now().UnixMilli()
	if now > p.Deadline {
		return models.ErrVotingClosed
	}
	if p.Executed {
		return models.ErrAlreadyExecuted
	}
	balance, err := e.token.VotingPowerOf(voter)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return models.ErrNotATokenHolder
	}
	if _, voted := p.Voters[voter]; voted {
		return models.ErrAlreadyVoted
	}

	// The live voting power at this instant is the vote weight; it must
	// still be nonzero.
	weight, err := e.token.VotingPowerOf(voter)
	if err != nil {
		return err
	}
	if weight.Sign() == 0 {
		return models.ErrNoVotingPower
	}

	if support {
		p.ForVotes = new(big.Int).Add(p.ForVotes, weight)
	} else {
		p.AgainstVotes = new(big.Int).Add(p.AgainstVotes, weight)
	}
	p.Voters[voter] = &models.VoteRecord{
		HasVoted: true,
		Choice:   support,
		Weight:   weight,
		CastAt:   now,
	}
	if err := e.repo.PutProposal(p); err != nil {
		return err
	}

	logger.Logger.Info("Vote cast",
		zap.Uint64("proposal_id", proposalID),
		zap.String("voter", voter.Hex()),
		zap.Bool("support", support),
		zap.String("weight", weight.String()))

	return e.repo.AppendEvent(models.EventVoteCast, map[string]any{
		"proposal_id": proposalID,
		"voter":       voter.Hex(),
		"support":     support,
		"weight":      weight.String(),
	})
}

// HasProposalPassed reports whether the proposal would pass right now:
// quorum is 10% of total supply, majority is 51% of votes cast, both with
// truncating integer division. Callable at any time, even before the
// deadline.
func (e *Engine) HasProposalPassed(proposalID uint64) (bool, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	p, err := e.repo.GetProposal(proposalID)
	if err != nil {
		return false, err
	}
	return e.passed(p)
}

func (e *Engine) passed(p *models.Proposal) (bool, error) {
	supply, err := e.token.TotalSupply()
	if err != nil {
		return false, err
	}
	quorum := new(big.Int).Div(new(big.Int).Mul(supply, big.NewInt(quorumPercent)), big.NewInt(100))
	cast := p.TotalVotesCast()
	if cast.Cmp(quorum) < 0 {
		return false, nil
	}
	majority := new(big.Int).Div(new(big.Int).Mul(cast, big.NewInt(majorityPercent)), big.NewInt(100))
	return p.ForVotes.Cmp(majority) >= 0, nil
}

// Execute releases a passed proposal's funds. Anyone may call it once the
// voting period has ended (strictly after the deadline, unlike voting). The
// executed flag is persisted before the release; if the release fails the
// flag is reverted inside the same critical section, so the proposal stays
// executable on retry and no partial state is ever observable.
func (e *Engine) Execute(proposalID uint64) (*models.Proposal, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	p, err := e.repo.GetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if e.now().UnixMilli() <= p.Deadline {
		return nil, models.ErrVotingPeriodNotEnded
	}
	if p.Executed {
		return nil, models.ErrAlreadyExecuted
	}
	ok, err := e.passed(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrProposalDidNotPass
	}

	p.Executed = true
	if err := e.repo.PutProposal(p); err != nil {
		return nil, err
	}

	if err := e.treasury.Release(p.Recipient, p.Amount); err != nil {
		p.Executed = false
		if rbErr := e.repo.PutProposal(p); rbErr != nil {
			logger.Logger.Error("Failed to roll back executed flag",
				zap.Uint64("proposal_id", proposalID), zap.Error(rbErr))
			return nil, rbErr
		}
		logger.Logger.Warn("Proposal execution rolled back",
			zap.Uint64("proposal_id", proposalID), zap.Error(err))
		if errors.Is(err, models.ErrTransferFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	logger.Logger.Info("Proposal executed",
		zap.Uint64("proposal_id", proposalID),
		zap.String("recipient", p.Recipient.Hex()),
		zap.String("amount", p.Amount.String()))

	if err := e.repo.AppendEvent(models.EventProposalExecuted, map[string]any{
		"proposal_id": proposalID,
		"recipient":   p.Recipient.Hex(),
		"amount":      p.Amount.String(),
	}); err != nil {
		return nil, err
	}

	if e.listener != nil {
		// The funds have already moved; a listener failure cannot undo the
		// execution and is only logged.
		if err := e.listener.ProposalExecuted(p); err != nil {
			logger.Logger.Warn("Execution listener failed",
				zap.Uint64("proposal_id", proposalID), zap.Error(err))
		}
	}
	return p, nil
}

// GetProposal returns the full proposal record.
func (e *Engine) GetProposal(proposalID uint64) (*models.Proposal, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.repo.GetProposal(proposalID)
}

// ListProposals returns all proposals in creation order.
func (e *Engine) ListProposals() ([]*models.Proposal, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.repo.GetAllProposals()
}

// HasVoted reports whether the account has voted on the proposal.
func (e *Engine) HasVoted(proposalID uint64, account common.Address) (bool, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	p, err := e.repo.GetProposal(proposalID)
	if err != nil {
		return false, err
	}
	_, voted := p.Voters[account]
	return voted, nil
}

// GetVoteChoice returns the account's recorded vote on the proposal.
func (e *Engine) GetVoteChoice(proposalID uint64, account common.Address) (bool, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	p, err := e.repo.GetProposal(proposalID)
	if err != nil {
		return false, err
	}
	rec, voted := p.Voters[account]
	if !voted {
		return false, models.ErrNotVoted
	}
	return rec.Choice, nil
}
