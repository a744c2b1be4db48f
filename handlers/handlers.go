package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"treasury-dao/budget"
	"treasury-dao/governance"
	"treasury-dao/logger"
	"treasury-dao/models"
	"treasury-dao/repository"
	"treasury-dao/token"
	"treasury-dao/treasury"
)

var errInvalidAddress = errors.New("invalid address")

// Handler contains the HTTP handlers for the governance API endpoints
type Handler struct {
	Token    *token.Ledger
	Treasury *treasury.Treasury
	Engine   *governance.Engine
	Budget   *budget.Tracker
	Repo     repository.LedgerRepositoryInterface
}

// NewHandler creates and returns a new Handler instance
func NewHandler(tok *token.Ledger, tre *treasury.Treasury, eng *governance.Engine, bud *budget.Tracker, repo repository.LedgerRepositoryInterface) *Handler {
	return &Handler{Token: tok, Treasury: tre, Engine: eng, Budget: bud, Repo: repo}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service error kinds to HTTP status codes so clients can
// tell caller mistakes from state conflicts.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrProposalNotFound),
		errors.Is(err, models.ErrBudgetNotFound),
		errors.Is(err, models.ErrInitiativeNotFound),
		errors.Is(err, models.ErrUnknownCategory),
		errors.Is(err, models.ErrNotVoted):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyVoted),
		errors.Is(err, models.ErrAlreadyExecuted),
		errors.Is(err, models.ErrVotingClosed),
		errors.Is(err, models.ErrVotingPeriodNotEnded),
		errors.Is(err, models.ErrProposalDidNotPass),
		errors.Is(err, models.ErrCategoryExists),
		errors.Is(err, models.ErrInitiativeFunded),
		errors.Is(err, models.ErrInitiativeNotApproved),
		errors.Is(err, models.ErrTransferFailed),
		errors.Is(err, models.ErrBudgetExceeded),
		errors.Is(err, models.ErrCategoryMismatch):
		status = http.StatusConflict
	case errors.Is(err, models.ErrZeroAmount),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidRecipient),
		errors.Is(err, models.ErrEmptyDescription),
		errors.Is(err, models.ErrDurationOutOfRange),
		errors.Is(err, models.ErrNotATokenHolder),
		errors.Is(err, models.ErrNoVotingPower),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInsufficientTreasuryBalance),
		errors.Is(err, models.ErrOverflow),
		errors.Is(err, models.ErrApprovalExceedsRequest),
		errors.Is(err, models.ErrInvalidBudgetPeriod),
		errors.Is(err, models.ErrBudgetInactive),
		errors.Is(err, errInvalidAddress):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Logger.Error("Failed to decode request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request payload",
		})
		return false
	}
	return true
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errInvalidAddress
	}
	return common.HexToAddress(s), nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)[name], 10, 64)
}

// --- Treasury ---

type depositRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// Deposit handles POST requests to pay funds into the treasury pool
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Treasury.Deposit(from, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "Deposit accepted",
		"depositor": from.Hex(),
		"amount":    amount.String(),
	})
}

// GetTreasuryBalance handles GET requests for the current pool balance
func (h *Handler) GetTreasuryBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Treasury.Balance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

// --- Proposals ---

type createProposalRequest struct {
	From            string `json:"from"`
	Recipient       string `json:"recipient"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// CreateProposal handles POST requests to submit a spending proposal
func (h *Handler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Engine.Create(from, recipient, amount, req.Description,
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Proposal created",
		"proposal": p,
	})
}

// ListProposals handles GET requests for all proposals
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.Engine.ListProposals()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

// GetProposal handles GET requests for a single proposal record
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrProposalNotFound)
		return
	}
	p, err := h.Engine.GetProposal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type voteRequest struct {
	From    string `json:"from"`
	Support bool   `json:"support"`
}

// Vote handles POST requests to cast a token-weighted vote
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrProposalNotFound)
		return
	}
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Engine.Vote(from, id, req.Support); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Vote cast",
		"proposal_id": id,
		"voter":       from.Hex(),
		"support":     req.Support,
	})
}

type executeRequest struct {
	From string `json:"from"`
}

// ExecuteProposal handles POST requests to execute a passed proposal.
// Execution is permissionless; the caller address is only logged.
func (h *Handler) ExecuteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrProposalNotFound)
		return
	}
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger.Logger.Info("Execution requested",
		zap.Uint64("proposal_id", id), zap.String("from", req.From))
	p, err := h.Engine.Execute(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Proposal executed",
		"proposal": p,
	})
}

// HasProposalPassed handles GET requests for a proposal's live pass state
func (h *Handler) HasProposalPassed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrProposalNotFound)
		return
	}
	passed, err := h.Engine.HasProposalPassed(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposal_id": id, "passed": passed})
}

// HasVoted handles GET requests asking whether an account voted on a proposal
func (h *Handler) HasVoted(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrProposalNotFound)
		return
	}
	account, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, err)
		return
	}
	voted, err := h.Engine.HasVoted(id, account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposal_id": id,
		"account":     account.Hex(),
		"has_voted":   voted,
	})
}

// GetVoteChoice handles GET requests for an account's recorded vote choice
func (h *Handler) GetVoteChoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrProposalNotFound)
		return
	}
	account, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, err)
		return
	}
	choice, err := h.Engine.GetVoteChoice(id, account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposal_id": id,
		"account":     account.Hex(),
		"support":     choice,
	})
}

// --- Voting rights token ---

type mintRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Mint handles POST requests to mint voting rights tokens
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Token.Mint(from, to, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Tokens minted"})
}

type burnRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// Burn handles POST requests to burn the caller's own tokens
func (h *Handler) Burn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Token.Burn(from, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tokens burned"})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Transfer handles POST requests to transfer voting rights tokens
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Token.Transfer(from, to, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tokens transferred"})
}

type setMinterRequest struct {
	From    string `json:"from"`
	Account string `json:"account"`
	Allowed bool   `json:"allowed"`
}

// SetMinter handles POST requests to toggle the minter allow-list
func (h *Handler) SetMinter(w http.ResponseWriter, r *http.Request) {
	var req setMinterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Token.SetAuthorizedMinter(from, account, req.Allowed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account.Hex(),
		"allowed": req.Allowed,
	})
}

// GetMinter handles GET requests for an account's minter authorization
func (h *Handler) GetMinter(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, err)
		return
	}
	allowed, err := h.Token.IsAuthorizedMinter(account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account.Hex(),
		"allowed": allowed,
	})
}

// GetTokenBalance handles GET requests for an account's voting power
func (h *Handler) GetTokenBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, err)
		return
	}
	power, err := h.Token.VotingPowerOf(account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account": account.Hex(),
		"balance": power.String(),
	})
}

// GetTotalSupply handles GET requests for the total voting rights supply
func (h *Handler) GetTotalSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := h.Token.TotalSupply()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"total_supply": supply.String()})
}

// --- Budget tracker ---

type categoryRequest struct {
	From string `json:"from"`
	Name string `json:"name"`
}

// AddCategory handles POST requests to add a budget category
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Budget.AddCategory(from, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

// RemoveCategory handles DELETE requests for a budget category
func (h *Handler) RemoveCategory(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	name := mux.Vars(r)["name"]
	if err := h.Budget.RemoveCategory(from, name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category removed"})
}

// ListCategories handles GET requests for the category allow-list
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Budget.Categories()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

type createBudgetRequest struct {
	From      string `json:"from"`
	Category  string `json:"category"`
	Allocated string `json:"allocated"`
	StartDate int64  `json:"start_date"`
	EndDate   int64  `json:"end_date"`
}

// CreateBudget handles POST requests to open a category spending envelope
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	allocated, err := models.ParseAmount(req.Allocated)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.Budget.CreateBudget(from, req.Category, allocated, req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"budget": b})
}

// DeactivateBudget handles POST requests to close a budget envelope
func (h *Handler) DeactivateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrBudgetNotFound)
		return
	}
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Budget.DeactivateBudget(from, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Budget deactivated"})
}

// GetBudget handles GET requests for a budget by id
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrBudgetNotFound)
		return
	}
	b, err := h.Budget.GetBudget(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListBudgets handles GET requests for all budgets
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.Budget.ListBudgets()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

type proposeInitiativeRequest struct {
	From            string `json:"from"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	RequestedAmount string `json:"requested_amount"`
	Recipient       string `json:"recipient"`
}

// ProposeInitiative handles POST requests to file a funding request
func (h *Handler) ProposeInitiative(w http.ResponseWriter, r *http.Request) {
	var req proposeInitiativeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	requested, err := models.ParseAmount(req.RequestedAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := h.Budget.ProposeInitiative(from, req.Name, req.Category,
		req.Description, requested, recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"initiative": in})
}

type approveInitiativeRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// ApproveInitiative handles POST requests to approve a funding request
func (h *Handler) ApproveInitiative(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrInitiativeNotFound)
		return
	}
	var req approveInitiativeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Budget.ApproveInitiative(from, id, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Initiative approved"})
}

type linkInitiativeRequest struct {
	From       string `json:"from"`
	ProposalID uint64 `json:"proposal_id"`
}

// LinkInitiative handles POST requests to tie an initiative to a proposal
func (h *Handler) LinkInitiative(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrInitiativeNotFound)
		return
	}
	var req linkInitiativeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Budget.LinkProposal(from, id, req.ProposalID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Initiative linked"})
}

// GetInitiative handles GET requests for an initiative by id
func (h *Handler) GetInitiative(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, models.ErrInitiativeNotFound)
		return
	}
	in, err := h.Budget.GetInitiative(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// ListInitiatives handles GET requests for all initiatives
func (h *Handler) ListInitiatives(w http.ResponseWriter, r *http.Request) {
	initiatives, err := h.Budget.ListInitiatives()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"initiatives": initiatives})
}

// --- Change feed ---

// ListEvents handles GET requests for the emitted-events change feed
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Repo.GetAllEvents()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
