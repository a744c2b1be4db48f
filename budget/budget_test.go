package budget_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"treasury-dao/budget"
	"treasury-dao/logger"
	"treasury-dao/models"
	"treasury-dao/repository"
)

var (
	owner = common.HexToAddress("0x1111111111111111111111111111111111111111")
	alice = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	dave  = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
)

func newTestTracker(t *testing.T) (*budget.Tracker, *repository.MemoryRepository) {
	logger.Logger = zap.NewNop()
	repo := repository.NewMemoryRepository()
	tr := budget.NewTracker(repo, owner)
	require.NoError(t, tr.InitDefaultCategories())
	return tr, repo
}

func TestDefaultCategories(t *testing.T) {
	tr, _ := newTestTracker(t)
	categories, err := tr.Categories()
	require.NoError(t, err)
	require.Len(t, categories, 7)
	require.Contains(t, categories, "grants")
	require.Contains(t, categories, "security")
}

func TestCategoryManagement(t *testing.T) {
	tr, _ := newTestTracker(t)

	err := tr.AddCategory(alice, "legal")
	require.ErrorIs(t, err, models.ErrUnauthorized)

	require.NoError(t, tr.AddCategory(owner, "legal"))
	err = tr.AddCategory(owner, "legal")
	require.ErrorIs(t, err, models.ErrCategoryExists)

	err = tr.RemoveCategory(owner, "nonexistent")
	require.ErrorIs(t, err, models.ErrUnknownCategory)
	require.NoError(t, tr.RemoveCategory(owner, "legal"))
}

func TestCreateBudget(t *testing.T) {
	tr, _ := newTestTracker(t)

	_, err := tr.CreateBudget(alice, "grants", big.NewInt(1000), 0, 0)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = tr.CreateBudget(owner, "unlisted", big.NewInt(1000), 0, 0)
	require.ErrorIs(t, err, models.ErrUnknownCategory)

	_, err = tr.CreateBudget(owner, "grants", big.NewInt(0), 0, 0)
	require.ErrorIs(t, err, models.ErrZeroAmount)

	_, err = tr.CreateBudget(owner, "grants", big.NewInt(1000), 100, 50)
	require.ErrorIs(t, err, models.ErrInvalidBudgetPeriod)

	b, err := tr.CreateBudget(owner, "grants", big.NewInt(1000), 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), b.ID)
	require.True(t, b.Active)
	require.Zero(t, b.Spent.Sign())
	require.Equal(t, big.NewInt(1000), b.Remaining())
}

func TestInitiativeWorkflow(t *testing.T) {
	tr, repo := newTestTracker(t)

	_, err := tr.CreateBudget(owner, "grants", big.NewInt(1000), 0, 0)
	require.NoError(t, err)

	in, err := tr.ProposeInitiative(alice, "tooling grant", "grants",
		"fund the tooling work", big.NewInt(600), dave)
	require.NoError(t, err)
	require.False(t, in.Approved)
	require.False(t, in.Funded)

	// linking before approval is refused
	err = tr.LinkProposal(owner, in.ID, 1)
	require.ErrorIs(t, err, models.ErrInitiativeNotApproved)

	err = tr.ApproveInitiative(alice, in.ID, big.NewInt(600))
	require.ErrorIs(t, err, models.ErrUnauthorized)
	err = tr.ApproveInitiative(owner, in.ID, big.NewInt(700))
	require.ErrorIs(t, err, models.ErrApprovalExceedsRequest)
	require.NoError(t, tr.ApproveInitiative(owner, in.ID, big.NewInt(500)))

	// the linked proposal must exist
	err = tr.LinkProposal(owner, in.ID, 42)
	require.ErrorIs(t, err, models.ErrProposalNotFound)

	p := &models.Proposal{ID: 1, Recipient: dave, Amount: big.NewInt(500),
		ForVotes: big.NewInt(0), AgainstVotes: big.NewInt(0)}
	require.NoError(t, repo.PutProposal(p))
	require.NoError(t, tr.LinkProposal(owner, in.ID, p.ID))

	// execution of the linked proposal funds the initiative and debits the
	// matching active budget
	require.NoError(t, tr.ProposalExecuted(p))

	got, err := tr.GetInitiative(in.ID)
	require.NoError(t, err)
	require.True(t, got.Funded)

	b, err := tr.GetBudget(1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), b.Spent)
	require.Equal(t, big.NewInt(500), b.Remaining())
}

func TestProposalExecuted_BudgetExceeded(t *testing.T) {
	tr, repo := newTestTracker(t)

	_, err := tr.CreateBudget(owner, "grants", big.NewInt(400), 0, 0)
	require.NoError(t, err)

	in, err := tr.ProposeInitiative(alice, "big ask", "grants",
		"over the envelope", big.NewInt(500), dave)
	require.NoError(t, err)
	require.NoError(t, tr.ApproveInitiative(owner, in.ID, big.NewInt(500)))

	p := &models.Proposal{ID: 7, Recipient: dave, Amount: big.NewInt(500),
		ForVotes: big.NewInt(0), AgainstVotes: big.NewInt(0)}
	require.NoError(t, repo.PutProposal(p))
	require.NoError(t, tr.LinkProposal(owner, in.ID, p.ID))

	err = tr.ProposalExecuted(p)
	require.ErrorIs(t, err, models.ErrBudgetExceeded)

	// the initiative stays unfunded and the budget untouched
	got, err := tr.GetInitiative(in.ID)
	require.NoError(t, err)
	require.False(t, got.Funded)
	b, err := tr.GetBudget(1)
	require.NoError(t, err)
	require.Zero(t, b.Spent.Sign())
}

func TestProposalExecuted_InactiveBudget(t *testing.T) {
	tr, repo := newTestTracker(t)

	b, err := tr.CreateBudget(owner, "grants", big.NewInt(1000), 0, 0)
	require.NoError(t, err)
	require.NoError(t, tr.DeactivateBudget(owner, b.ID))

	in, err := tr.ProposeInitiative(alice, "late ask", "grants",
		"budget already closed", big.NewInt(100), dave)
	require.NoError(t, err)
	require.NoError(t, tr.ApproveInitiative(owner, in.ID, big.NewInt(100)))

	p := &models.Proposal{ID: 3, Recipient: dave, Amount: big.NewInt(100),
		ForVotes: big.NewInt(0), AgainstVotes: big.NewInt(0)}
	require.NoError(t, repo.PutProposal(p))
	require.NoError(t, tr.LinkProposal(owner, in.ID, p.ID))

	// a category whose only envelope is closed reports the closed envelope
	err = tr.ProposalExecuted(p)
	require.ErrorIs(t, err, models.ErrBudgetInactive)
}

func TestProposalExecuted_NoBudgetForCategory(t *testing.T) {
	tr, repo := newTestTracker(t)

	in, err := tr.ProposeInitiative(alice, "unbudgeted ask", "grants",
		"no envelope exists", big.NewInt(100), dave)
	require.NoError(t, err)
	require.NoError(t, tr.ApproveInitiative(owner, in.ID, big.NewInt(100)))

	p := &models.Proposal{ID: 4, Recipient: dave, Amount: big.NewInt(100),
		ForVotes: big.NewInt(0), AgainstVotes: big.NewInt(0)}
	require.NoError(t, repo.PutProposal(p))
	require.NoError(t, tr.LinkProposal(owner, in.ID, p.ID))

	err = tr.ProposalExecuted(p)
	require.ErrorIs(t, err, models.ErrBudgetNotFound)
}

func TestProposalExecuted_UnlinkedProposalIsIgnored(t *testing.T) {
	tr, _ := newTestTracker(t)

	p := &models.Proposal{ID: 9, Recipient: dave, Amount: big.NewInt(100),
		ForVotes: big.NewInt(0), AgainstVotes: big.NewInt(0)}
	require.NoError(t, tr.ProposalExecuted(p))
}
