package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"

	"treasury-dao/db"
	"treasury-dao/models"
)

// Key prefixes for the LevelDB layout. Sequential ids are zero-padded so
// iteration order matches creation order.
const (
	prefixBalance    = "balance:"
	prefixMinter     = "minter:"
	prefixProposal   = "proposal:"
	prefixCategory   = "category:"
	prefixBudget     = "budget:"
	prefixInitiative = "initiative:"
	prefixEvent      = "event:"

	keyTotalSupply   = "meta:total_supply"
	keyPoolBalance   = "meta:pool_balance"
	keyProposalSeq   = "meta:proposal_seq"
	keyBudgetSeq     = "meta:budget_seq"
	keyInitiativeSeq = "meta:initiative_seq"
	keyEventSeq      = "meta:event_seq"
)

// It abstracts the storage layer from the business logic
type LedgerRepositoryInterface interface {
	// Voting rights balances
	GetBalance(addr common.Address) (*big.Int, error)
	PutBalance(addr common.Address, balance *big.Int) error
	GetTotalSupply() (*big.Int, error)
	PutTotalSupply(supply *big.Int) error

	// Minter allow-list
	PutMinter(addr common.Address, allowed bool) error
	IsMinter(addr common.Address) (bool, error)

	// Treasury pool
	GetPoolBalance() (*big.Int, error)
	PutPoolBalance(balance *big.Int) error

	// Proposals
	PutProposal(p *models.Proposal) error
	GetProposal(id uint64) (*models.Proposal, error)
	GetAllProposals() ([]*models.Proposal, error)
	NextProposalID() (uint64, error)

	// Budget categories
	PutCategory(name string) error
	DeleteCategory(name string) error
	HasCategory(name string) (bool, error)
	GetAllCategories() ([]string, error)

	// Budgets
	PutBudget(b *models.Budget) error
	GetBudget(id uint64) (*models.Budget, error)
	GetAllBudgets() ([]*models.Budget, error)
	NextBudgetID() (uint64, error)

	// Initiatives
	PutInitiative(in *models.Initiative) error
	GetInitiative(id uint64) (*models.Initiative, error)
	GetAllInitiatives() ([]*models.Initiative, error)
	NextInitiativeID() (uint64, error)

	// Change feed
	AppendEvent(evType string, payload map[string]any) error
	GetAllEvents() ([]*models.Event, error)
}

// LedgerRepository implements the LedgerRepositoryInterface using LevelDB
// as the storage backend
type LedgerRepository struct {
	db *db.LevelDB
}

// NewLedgerRepository creates and returns a new LedgerRepository instance
func NewLedgerRepository(db *db.LevelDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func seqKey(prefix string, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, id))
}

// GetBalance returns an account's voting rights balance, zero if absent
func (r *LedgerRepository) GetBalance(addr common.Address) (*big.Int, error) {
	return r.getAmount([]byte(prefixBalance+addr.Hex()), big.NewInt(0))
}

// PutBalance stores an account's voting rights balance
func (r *LedgerRepository) PutBalance(addr common.Address, balance *big.Int) error {
	return r.putAmount([]byte(prefixBalance+addr.Hex()), balance)
}

// GetTotalSupply returns the total voting rights supply
func (r *LedgerRepository) GetTotalSupply() (*big.Int, error) {
	return r.getAmount([]byte(keyTotalSupply), big.NewInt(0))
}

// PutTotalSupply stores the total voting rights supply
func (r *LedgerRepository) PutTotalSupply(supply *big.Int) error {
	return r.putAmount([]byte(keyTotalSupply), supply)
}

// PutMinter toggles an account's minter authorization
func (r *LedgerRepository) PutMinter(addr common.Address, allowed bool) error {
	key := []byte(prefixMinter + addr.Hex())
	if !allowed {
		return r.db.Delete(key)
	}
	return r.db.Put(key, []byte("1"))
}

// IsMinter reports whether an account is on the minter allow-list
func (r *LedgerRepository) IsMinter(addr common.Address) (bool, error) {
	return r.db.Has([]byte(prefixMinter + addr.Hex()))
}

// GetPoolBalance returns the treasury pool balance
func (r *LedgerRepository) GetPoolBalance() (*big.Int, error) {
	return r.getAmount([]byte(keyPoolBalance), big.NewInt(0))
}

// PutPoolBalance stores the treasury pool balance
func (r *LedgerRepository) PutPoolBalance(balance *big.Int) error {
	return r.putAmount([]byte(keyPoolBalance), balance)
}

// PutProposal stores a proposal
func (r *LedgerRepository) PutProposal(p *models.Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.db.Put(seqKey(prefixProposal, p.ID), data)
}

// GetProposal retrieves a proposal by id
func (r *LedgerRepository) GetProposal(id uint64) (*models.Proposal, error) {
	data, err := r.db.Get(seqKey(prefixProposal, id))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, err
	}
	var p models.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAllProposals retrieves all proposals in creation order
func (r *LedgerRepository) GetAllProposals() ([]*models.Proposal, error) {
	iter := r.db.NewPrefixIterator([]byte(prefixProposal))
	defer iter.Release()

	var proposals []*models.Proposal
	for iter.Next() {
		var p models.Proposal
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, err
		}
		proposals = append(proposals, &p)
	}
	return proposals, iter.Error()
}

// NextProposalID increments and returns the proposal id counter (starts at 1)
func (r *LedgerRepository) NextProposalID() (uint64, error) {
	return r.nextSeq([]byte(keyProposalSeq))
}

// PutCategory adds a category to the allow-list
func (r *LedgerRepository) PutCategory(name string) error {
	return r.db.Put([]byte(prefixCategory+name), []byte("1"))
}

// DeleteCategory removes a category from the allow-list
func (r *LedgerRepository) DeleteCategory(name string) error {
	return r.db.Delete([]byte(prefixCategory + name))
}

// HasCategory reports whether a category is on the allow-list
func (r *LedgerRepository) HasCategory(name string) (bool, error) {
	return r.db.Has([]byte(prefixCategory + name))
}

// GetAllCategories returns all categories in key order
func (r *LedgerRepository) GetAllCategories() ([]string, error) {
	iter := r.db.NewPrefixIterator([]byte(prefixCategory))
	defer iter.Release()

	var categories []string
	for iter.Next() {
		categories = append(categories, string(iter.Key()[len(prefixCategory):]))
	}
	return categories, iter.Error()
}

// PutBudget stores a budget
func (r *LedgerRepository) PutBudget(b *models.Budget) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return r.db.Put(seqKey(prefixBudget, b.ID), data)
}

// GetBudget retrieves a budget by id
func (r *LedgerRepository) GetBudget(id uint64) (*models.Budget, error) {
	data, err := r.db.Get(seqKey(prefixBudget, id))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, models.ErrBudgetNotFound
		}
		return nil, err
	}
	var b models.Budget
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetAllBudgets retrieves all budgets in creation order
func (r *LedgerRepository) GetAllBudgets() ([]*models.Budget, error) {
	iter := r.db.NewPrefixIterator([]byte(prefixBudget))
	defer iter.Release()

	var budgets []*models.Budget
	for iter.Next() {
		var b models.Budget
		if err := json.Unmarshal(iter.Value(), &b); err != nil {
			return nil, err
		}
		budgets = append(budgets, &b)
	}
	return budgets, iter.Error()
}

// NextBudgetID increments and returns the budget id counter
func (r *LedgerRepository) NextBudgetID() (uint64, error) {
	return r.nextSeq([]byte(keyBudgetSeq))
}

// PutInitiative stores an initiative
func (r *LedgerRepository) PutInitiative(in *models.Initiative) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return r.db.Put(seqKey(prefixInitiative, in.ID), data)
}

// GetInitiative retrieves an initiative by id
func (r *LedgerRepository) GetInitiative(id uint64) (*models.Initiative, error) {
	data, err := r.db.Get(seqKey(prefixInitiative, id))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, models.ErrInitiativeNotFound
		}
		return nil, err
	}
	var in models.Initiative
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// GetAllInitiatives retrieves all initiatives in creation order
func (r *LedgerRepository) GetAllInitiatives() ([]*models.Initiative, error) {
	iter := r.db.NewPrefixIterator([]byte(prefixInitiative))
	defer iter.Release()

	var initiatives []*models.Initiative
	for iter.Next() {
		var in models.Initiative
		if err := json.Unmarshal(iter.Value(), &in); err != nil {
			return nil, err
		}
		initiatives = append(initiatives, &in)
	}
	return initiatives, iter.Error()
}

// NextInitiativeID increments and returns the initiative id counter
func (r *LedgerRepository) NextInitiativeID() (uint64, error) {
	return r.nextSeq([]byte(keyInitiativeSeq))
}

// AppendEvent assigns the next sequence number and appends an event to the
// change feed
func (r *LedgerRepository) AppendEvent(evType string, payload map[string]any) error {
	seq, err := r.nextSeq([]byte(keyEventSeq))
	if err != nil {
		return err
	}
	ev := &models.Event{
		Seq:       seq,
		Type:      evType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.db.Put(seqKey(prefixEvent, seq), data)
}

// GetAllEvents retrieves the change feed in sequence order
func (r *LedgerRepository) GetAllEvents() ([]*models.Event, error) {
	iter := r.db.NewPrefixIterator([]byte(prefixEvent))
	defer iter.Release()

	var events []*models.Event
	for iter.Next() {
		var ev models.Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, iter.Error()
}

func (r *LedgerRepository) getAmount(key []byte, def *big.Int) (*big.Int, error) {
	data, err := r.db.Get(key)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return new(big.Int).Set(def), nil
		}
		return nil, err
	}
	a, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return nil, fmt.Errorf("corrupt amount at key %s", key)
	}
	return a, nil
}

func (r *LedgerRepository) putAmount(key []byte, a *big.Int) error {
	return r.db.Put(key, []byte(a.String()))
}

func (r *LedgerRepository) nextSeq(key []byte) (uint64, error) {
	cur, err := r.getAmount(key, big.NewInt(0))
	if err != nil {
		return 0, err
	}
	next := cur.Uint64() + 1
	if err := r.db.Put(key, []byte(fmt.Sprintf("%d", next))); err != nil {
		return 0, err
	}
	return next, nil
}
