package routers

import (
	"treasury-dao/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the governance API
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Treasury: deposits mint voting rights at the fixed exchange rate
	r.HandleFunc("/treasury/deposit", h.Deposit).Methods("POST")
	r.HandleFunc("/treasury/balance", h.GetTreasuryBalance).Methods("GET")

	// Proposal lifecycle: create, vote, execute after deadline
	r.HandleFunc("/proposals", h.CreateProposal).Methods("POST")
	r.HandleFunc("/proposals", h.ListProposals).Methods("GET")
	r.HandleFunc("/proposals/{id}", h.GetProposal).Methods("GET")
	r.HandleFunc("/proposals/{id}/vote", h.Vote).Methods("POST")
	r.HandleFunc("/proposals/{id}/execute", h.ExecuteProposal).Methods("POST")
	r.HandleFunc("/proposals/{id}/passed", h.HasProposalPassed).Methods("GET")
	r.HandleFunc("/proposals/{id}/voted/{address}", h.HasVoted).Methods("GET")
	r.HandleFunc("/proposals/{id}/choice/{address}", h.GetVoteChoice).Methods("GET")

	// Voting rights token
	r.HandleFunc("/token/mint", h.Mint).Methods("POST")
	r.HandleFunc("/token/burn", h.Burn).Methods("POST")
	r.HandleFunc("/token/transfer", h.Transfer).Methods("POST")
	r.HandleFunc("/token/minters", h.SetMinter).Methods("POST")
	r.HandleFunc("/token/minters/{address}", h.GetMinter).Methods("GET")
	r.HandleFunc("/token/balance/{address}", h.GetTokenBalance).Methods("GET")
	r.HandleFunc("/token/supply", h.GetTotalSupply).Methods("GET")

	// Budget tracker: categories, envelopes, initiatives
	r.HandleFunc("/budget/categories", h.AddCategory).Methods("POST")
	r.HandleFunc("/budget/categories", h.ListCategories).Methods("GET")
	r.HandleFunc("/budget/categories/{name}", h.RemoveCategory).Methods("DELETE")
	r.HandleFunc("/budget/budgets", h.CreateBudget).Methods("POST")
	r.HandleFunc("/budget/budgets", h.ListBudgets).Methods("GET")
	r.HandleFunc("/budget/budgets/{id}", h.GetBudget).Methods("GET")
	r.HandleFunc("/budget/budgets/{id}/deactivate", h.DeactivateBudget).Methods("POST")
	r.HandleFunc("/budget/initiatives", h.ProposeInitiative).Methods("POST")
	r.HandleFunc("/budget/initiatives", h.ListInitiatives).Methods("GET")
	r.HandleFunc("/budget/initiatives/{id}", h.GetInitiative).Methods("GET")
	r.HandleFunc("/budget/initiatives/{id}/approve", h.ApproveInitiative).Methods("POST")
	r.HandleFunc("/budget/initiatives/{id}/link", h.LinkInitiative).Methods("POST")

	// Change feed consumed by external dashboards and tooling
	r.HandleFunc("/events", h.ListEvents).Methods("GET")
}
