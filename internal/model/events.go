package model

import (
	"strconv"
	"time"
)

const (
	EventInitialized    = "custody.initialized"
	EventFeeUpdated     = "custody.fee_updated"
	EventPaused         = "custody.paused"
	EventVaultDeposit   = "vault.deposit"
	EventVaultWithdraw  = "vault.withdraw"
	EventLoanCreated    = "loan.created"
	EventLoanActivated  = "loan.activated"
	EventLoanRepaid     = "loan.repaid"
	EventLoanLiquidated = "loan.liquidated"
)

// Event is a committed custody state change published to subscribers.
type Event struct {
	Type       string            `json:"type"`
	Timestamp  int64             `json:"timestamp"`
	Actor      string            `json:"actor"`
	Pool       string            `json:"pool,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Time returns the event timestamp as UTC time.
func (e Event) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Uint returns an unsigned attribute, or zero when absent or malformed.
func (e Event) Uint(key string) uint64 {
	raw, ok := e.Attributes[key]
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
