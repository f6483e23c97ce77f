package model

// Vault event names as emitted by the vault contract.
const (
	EventDeposited           = "Deposited"
	EventWithdrawalQueued    = "WithdrawalQueued"
	EventWithdrawalCancelled = "WithdrawalCancelled"
	EventWithdrawalRedeemed  = "WithdrawalRedeemed"
)

// DepositedEventData is the decoded Deposited event payload.
type DepositedEventData struct {
	User    string `json:"user"`
	AmountX string `json:"amount_x"`
	AmountY string `json:"amount_y"`
	Shares  string `json:"shares"`
}

// WithdrawalQueuedEventData is the decoded WithdrawalQueued event payload.
type WithdrawalQueuedEventData struct {
	Sender string `json:"sender"`
	User   string `json:"user"`
	Round  uint64 `json:"round"`
	Shares string `json:"shares"`
}

// WithdrawalCancelledEventData is the decoded WithdrawalCancelled event payload.
type WithdrawalCancelledEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Round     uint64 `json:"round"`
	Shares    string `json:"shares"`
}

// WithdrawalRedeemedEventData is the decoded WithdrawalRedeemed event payload.
type WithdrawalRedeemedEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Round     uint64 `json:"round"`
	Shares    string `json:"shares"`
	AmountX   string `json:"amount_x"`
	AmountY   string `json:"amount_y"`
}
