package budget

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"treasury-dao/logger"
	"treasury-dao/models"
	"treasury-dao/repository"
)

// DefaultCategories are preloaded into the allow-list on startup.
var DefaultCategories = []string{
	"development",
	"marketing",
	"operations",
	"grants",
	"security",
	"community",
	"reserve",
}

// Tracker layers category-scoped spending ceilings and a two-step
// initiative workflow on top of the proposal engine. It holds no votes or
// deadlines of its own; funding happens when the engine reports a linked
// proposal as executed.
type Tracker struct {
	repo  repository.LedgerRepositoryInterface
	owner common.Address
	mux   sync.Mutex
}

func NewTracker(repo repository.LedgerRepositoryInterface, owner common.Address) *Tracker {
	return &Tracker{repo: repo, owner: owner}
}

// InitDefaultCategories loads the default category allow-list. Idempotent.
func (t *Tracker) InitDefaultCategories() error {
	t.mux.Lock()
	defer t.mux.Unlock()

	for _, name := range DefaultCategories {
		if err := t.repo.PutCategory(name); err != nil {
			return err
		}
	}
	return nil
}

// AddCategory adds a category to the allow-list. Owner only.
func (t *Tracker) AddCategory(caller common.Address, name string) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if caller != t.owner {
		return models.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ErrUnknownCategory
	}
	exists, err := t.repo.HasCategory(name)
	if err != nil {
		return err
	}
	if exists {
		return models.ErrCategoryExists
	}
	return t.repo.PutCategory(name)
}

// RemoveCategory removes a category from the allow-list. Owner only.
func (t *Tracker) RemoveCategory(caller common.Address, name string) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if caller != t.owner {
		return models.ErrUnauthorized
	}
	exists, err := t.repo.HasCategory(name)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrUnknownCategory
	}
	return t.repo.DeleteCategory(name)
}

// Categories returns the category allow-list.
func (t *Tracker) Categories() ([]string, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.repo.GetAllCategories()
}

// CreateBudget opens a spending envelope for a category. Owner only.
func (t *Tracker) CreateBudget(caller common.Address, category string, allocated *big.Int, startDate, endDate int64) (*models.Budget, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if caller != t.owner {
		return nil, models.ErrUnauthorized
	}
	exists, err := t.repo.HasCategory(category)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrUnknownCategory
	}
	if !models.ValidAmount(allocated) || allocated.Sign() == 0 {
		return nil, models.ErrZeroAmount
	}
	if endDate != 0 && endDate <= startDate {
		return nil, models.ErrInvalidBudgetPeriod
	}

	id, err := t.repo.NextBudgetID()
	if err != nil {
		return nil, err
	}
	b := &models.Budget{
		ID:        id,
		Category:  category,
		Allocated: new(big.Int).Set(allocated),
		Spent:     big.NewInt(0),
		StartDate: startDate,
		EndDate:   endDate,
		Active:    true,
	}
	if err := t.repo.PutBudget(b); err != nil {
		return nil, err
	}

	logger.Logger.Info("Budget created",
		zap.Uint64("budget_id", id),
		zap.String("category", category),
		zap.String("allocated", allocated.String()))
	return b, nil
}

// DeactivateBudget closes a budget envelope. Owner only.
func (t *Tracker) DeactivateBudget(caller common.Address, id uint64) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if caller != t.owner {
		return models.ErrUnauthorized
	}
	b, err := t.repo.GetBudget(id)
	if err != nil {
		return err
	}
	b.Active = false
	return t.repo.PutBudget(b)
}

// GetBudget returns a budget by id.
func (t *Tracker) GetBudget(id uint64) (*models.Budget, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.repo.GetBudget(id)
}

// ListBudgets returns all budgets in creation order.
func (t *Tracker) ListBudgets() ([]*models.Budget, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.repo.GetAllBudgets()
}

// ProposeInitiative files a funding request against a category. Anyone may
// propose.
func (t *Tracker) ProposeInitiative(proposer common.Address, name, category, description string, requested *big.Int, recipient common.Address) (*models.Initiative, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if strings.TrimSpace(name) == "" || strings.TrimSpace(description) == "" {
		return nil, models.ErrEmptyDescription
	}
	exists, err := t.repo.HasCategory(category)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrUnknownCategory
	}
	if !models.ValidAmount(requested) || requested.Sign() == 0 {
		return nil, models.ErrZeroAmount
	}
	if recipient == (common.Address{}) {
		return nil, models.ErrInvalidRecipient
	}

	id, err := t.repo.NextInitiativeID()
	if err != nil {
		return nil, err
	}
	in := &models.Initiative{
		ID:              id,
		Name:            name,
		Category:        category,
		Description:     description,
		RequestedAmount: new(big.Int).Set(requested),
		ApprovedAmount:  big.NewInt(0),
		Recipient:       recipient,
		CreatedAt:       time.Now().UnixMilli(),
	}
	if err := t.repo.PutInitiative(in); err != nil {
		return nil, err
	}

	logger.Logger.Info("Initiative proposed",
		zap.Uint64("initiative_id", id),
		zap.String("name", name),
		zap.String("category", category),
		zap.String("requested", requested.String()))
	return in, nil
}

// ApproveInitiative approves an initiative for up to the requested amount.
// Owner only.
func (t *Tracker) ApproveInitiative(caller common.Address, id uint64, amount *big.Int) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if caller != t.owner {
		return models.ErrUnauthorized
	}
	in, err := t.repo.GetInitiative(id)
	if err != nil {
		return err
	}
	if in.Funded {
		return models.ErrInitiativeFunded
	}
	if !models.ValidAmount(amount) || amount.Sign() == 0 {
		return models.ErrZeroAmount
	}
	if amount.Cmp(in.RequestedAmount) > 0 {
		return models.ErrApprovalExceedsRequest
	}
	in.Approved = true
	in.ApprovedAmount = new(big.Int).Set(amount)
	if err := t.repo.PutInitiative(in); err != nil {
		return err
	}

	logger.Logger.Info("Initiative approved",
		zap.Uint64("initiative_id", id), zap.String("approved", amount.String()))
	return nil
}

// LinkProposal ties an approved initiative to a governance proposal id.
// Owner only. The initiative becomes funded when that proposal executes.
func (t *Tracker) LinkProposal(caller common.Address, initiativeID, proposalID uint64) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if caller != t.owner {
		return models.ErrUnauthorized
	}
	in, err := t.repo.GetInitiative(initiativeID)
	if err != nil {
		return err
	}
	if !in.Approved {
		return models.ErrInitiativeNotApproved
	}
	if in.Funded {
		return models.ErrInitiativeFunded
	}
	if _, err := t.repo.GetProposal(proposalID); err != nil {
		return err
	}
	in.LinkedProposalID = proposalID
	if err := t.repo.PutInitiative(in); err != nil {
		return err
	}

	logger.Logger.Info("Initiative linked to proposal",
		zap.Uint64("initiative_id", initiativeID), zap.Uint64("proposal_id", proposalID))
	return nil
}

// GetInitiative returns an initiative by id.
func (t *Tracker) GetInitiative(id uint64) (*models.Initiative, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.repo.GetInitiative(id)
}

// ListInitiatives returns all initiatives in creation order.
func (t *Tracker) ListInitiatives() ([]*models.Initiative, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.repo.GetAllInitiatives()
}

// ProposalExecuted implements governance.ExecutionListener. When an executed
// proposal is linked to an approved, unfunded initiative, the matching
// active budget is debited and the initiative marked funded.
func (t *Tracker) ProposalExecuted(p *models.Proposal) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	initiatives, err := t.repo.GetAllInitiatives()
	if err != nil {
		return err
	}
	for _, in := range initiatives {
		if in.LinkedProposalID != p.ID || in.Funded || !in.Approved {
			continue
		}
		b, err := t.activeBudgetFor(in.Category)
		if err != nil {
			return err
		}
		// the envelope's category must still match the initiative's
		if b.Category != in.Category {
			return models.ErrCategoryMismatch
		}
		spent := new(big.Int).Add(b.Spent, in.ApprovedAmount)
		if spent.Cmp(b.Allocated) > 0 {
			return models.ErrBudgetExceeded
		}
		b.Spent = spent
		if err := t.repo.PutBudget(b); err != nil {
			return err
		}
		in.Funded = true
		if err := t.repo.PutInitiative(in); err != nil {
			return err
		}

		logger.Logger.Info("Initiative funded",
			zap.Uint64("initiative_id", in.ID),
			zap.Uint64("proposal_id", p.ID),
			zap.Uint64("budget_id", b.ID),
			zap.String("amount", in.ApprovedAmount.String()))

		if err := t.repo.AppendEvent(models.EventInitiativeFunded, map[string]any{
			"initiative_id": in.ID,
			"proposal_id":   p.ID,
			"budget_id":     b.ID,
			"amount":        in.ApprovedAmount.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) activeBudgetFor(category string) (*models.Budget, error) {
	budgets, err := t.repo.GetAllBudgets()
	if err != nil {
		return nil, err
	}
	inactiveMatch := false
	for _, b := range budgets {
		if b.Category != category {
			continue
		}
		if b.Active {
			return b, nil
		}
		inactiveMatch = true
	}
	if inactiveMatch {
		return nil, models.ErrBudgetInactive
	}
	return nil, models.ErrBudgetNotFound
}
