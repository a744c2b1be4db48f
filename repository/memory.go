package repository

import (
	"encoding/json"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"treasury-dao/models"
)

// MemoryRepository is an in-memory LedgerRepositoryInterface used by tests
// and local runs without a LevelDB directory. Values are cloned through JSON
// on the way in and out, matching the persistence semantics of the LevelDB
// implementation.
type MemoryRepository struct {
	mu          sync.Mutex
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
	minters     map[common.Address]bool
	poolBalance *big.Int
	proposals   map[uint64]*models.Proposal
	categories  map[string]bool
	budgets     map[uint64]*models.Budget
	initiatives map[uint64]*models.Initiative
	events      []*models.Event

	proposalSeq   uint64
	budgetSeq     uint64
	initiativeSeq uint64
	eventSeq      uint64
}

// NewMemoryRepository creates and returns a new MemoryRepository instance
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		balances:    make(map[common.Address]*big.Int),
		totalSupply: big.NewInt(0),
		minters:     make(map[common.Address]bool),
		poolBalance: big.NewInt(0),
		proposals:   make(map[uint64]*models.Proposal),
		categories:  make(map[string]bool),
		budgets:     make(map[uint64]*models.Budget),
		initiatives: make(map[uint64]*models.Initiative),
	}
}

func clone[T any](src *T) *T {
	data, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	dst := new(T)
	if err := json.Unmarshal(data, dst); err != nil {
		panic(err)
	}
	return dst
}

func (m *MemoryRepository) GetBalance(addr common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(b), nil
}

func (m *MemoryRepository) PutBalance(addr common.Address, balance *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] = new(big.Int).Set(balance)
	return nil
}

func (m *MemoryRepository) GetTotalSupply() (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.totalSupply), nil
}

func (m *MemoryRepository) PutTotalSupply(supply *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSupply = new(big.Int).Set(supply)
	return nil
}

func (m *MemoryRepository) PutMinter(addr common.Address, allowed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !allowed {
		delete(m.minters, addr)
		return nil
	}
	m.minters[addr] = true
	return nil
}

func (m *MemoryRepository) IsMinter(addr common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minters[addr], nil
}

func (m *MemoryRepository) GetPoolBalance() (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.poolBalance), nil
}

func (m *MemoryRepository) PutPoolBalance(balance *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolBalance = new(big.Int).Set(balance)
	return nil
}

func (m *MemoryRepository) PutProposal(p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals[p.ID] = clone(p)
	return nil
}

func (m *MemoryRepository) GetProposal(id uint64) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, models.ErrProposalNotFound
	}
	return clone(p), nil
}

func (m *MemoryRepository) GetAllProposals() ([]*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Proposal, 0, len(m.proposals))
	for _, p := range m.proposals {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) NextProposalID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposalSeq++
	return m.proposalSeq, nil
}

func (m *MemoryRepository) PutCategory(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[name] = true
	return nil
}

func (m *MemoryRepository) DeleteCategory(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.categories, name)
	return nil
}

func (m *MemoryRepository) HasCategory(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.categories[name], nil
}

func (m *MemoryRepository) GetAllCategories() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.categories))
	for name := range m.categories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryRepository) PutBudget(b *models.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[b.ID] = clone(b)
	return nil
}

func (m *MemoryRepository) GetBudget(id uint64) (*models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil, models.ErrBudgetNotFound
	}
	return clone(b), nil
}

func (m *MemoryRepository) GetAllBudgets() ([]*models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Budget, 0, len(m.budgets))
	for _, b := range m.budgets {
		out = append(out, clone(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) NextBudgetID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgetSeq++
	return m.budgetSeq, nil
}

func (m *MemoryRepository) PutInitiative(in *models.Initiative) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initiatives[in.ID] = clone(in)
	return nil
}

func (m *MemoryRepository) GetInitiative(id uint64) (*models.Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.initiatives[id]
	if !ok {
		return nil, models.ErrInitiativeNotFound
	}
	return clone(in), nil
}

func (m *MemoryRepository) GetAllInitiatives() ([]*models.Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Initiative, 0, len(m.initiatives))
	for _, in := range m.initiatives {
		out = append(out, clone(in))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) NextInitiativeID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initiativeSeq++
	return m.initiativeSeq, nil
}

func (m *MemoryRepository) AppendEvent(evType string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventSeq++
	m.events = append(m.events, &models.Event{
		Seq:       m.eventSeq,
		Type:      evType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}

func (m *MemoryRepository) GetAllEvents() ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, clone(ev))
	}
	return out, nil
}
