package models

// Event types appended to the change feed.
const (
	EventFundsDeposited    = "FundsDeposited"
	EventFundsReleased     = "FundsReleased"
	EventProposalCreated   = "ProposalCreated"
	EventVoteCast          = "VoteCast"
	EventProposalExecuted  = "ProposalExecuted"
	EventTokensMinted      = "TokensMinted"
	EventTokensBurned      = "TokensBurned"
	EventTokensTransferred = "TokensTransferred"
	EventInitiativeFunded  = "InitiativeFunded"
)

// Event is one entry of the append-only change feed consumed by external
// collaborators (dashboard, tooling). Sequence numbers are assigned by the
// repository and never reused.
type Event struct {
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"` // unix timestamp in ms
}
