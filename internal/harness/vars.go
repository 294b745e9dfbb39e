package harness

import (
	"github.com/spinforge/aleatest/internal/domain"
)

// CapturedVars holds the fields captured from one finalized step for reuse
// by later steps in the same scenario.
type CapturedVars struct {
	ID                      string
	IntegratorTransactionID string
	TransactionID           string
	Round                   *domain.Round
	OriginalRequestType     domain.TransactionType
	OriginalAmount          domain.Cents
	Bet                     *domain.Cents
	Win                     *domain.Cents
}

// VarStore maps reference names to captured variables. The empty name is
// the global namespace. A store lives for exactly one scenario run.
type VarStore map[string]*CapturedVars

func NewVarStore() VarStore {
	return make(VarStore)
}

// Lookup returns the entry for a reference name, or nil.
func (v VarStore) Lookup(ref string) *CapturedVars {
	return v[ref]
}

// Update applies the step's capture spec over the finalized request body.
// No-op when the step declares no capture. New values merge into the target
// entry; existing fields survive unless overwritten.
func (v VarStore) Update(step *domain.Step, built *domain.TransactionRequest) {
	if step.Capture == nil {
		return
	}

	ref := step.Capture.ReferenceName
	target := v[ref]
	if target == nil {
		target = &CapturedVars{}
		v[ref] = target
	}

	for _, path := range step.Capture.Fields {
		switch path {
		case domain.CaptureID:
			target.ID = built.ID
		case domain.CaptureIntegratorTxID:
			target.IntegratorTransactionID = built.IntegratorTransactionID
		case domain.CaptureRound:
			target.Round = built.Round.Clone()
		case domain.CaptureRoundID:
			if built.Round != nil {
				if target.Round == nil {
					target.Round = &domain.Round{}
				}
				target.Round.ID = built.Round.ID
			}
		case domain.CaptureIntegratorRoundID:
			if built.Round != nil {
				if target.Round == nil {
					target.Round = &domain.Round{}
				}
				target.Round.IntegratorRoundID = built.Round.IntegratorRoundID
			}
		case domain.CaptureTransactionID:
			// ROLLBACK steps never overwrite an existing transactionId:
			// the first write in a rollback chain wins. All other types
			// always overwrite.
			if step.Type == domain.TxRollback && target.TransactionID != "" {
				continue
			}
			target.TransactionID = transactionID(built)
		}
	}

	// Every transactional step records what it did, so a later ROLLBACK can
	// invert it.
	target.OriginalRequestType = step.Type
	if step.Capture.RealAmount != nil {
		target.OriginalAmount = *step.Capture.RealAmount
	} else if step.Amount != nil {
		target.OriginalAmount = *step.Amount
	} else {
		target.OriginalAmount = 0
	}
	if step.Type == domain.TxBetWin {
		target.Bet = centsOrZero(step.Bet)
		target.Win = centsOrZero(step.Win)
	}
	if step.Type == domain.TxRollback && step.Capture.RealAmount == nil {
		// A rollback step carries no amount of its own, so store its inverted
		// effect as bet/win parts. A rollback of this rollback then reverses
		// the right sign without the fixture spelling the amount out. An
		// explicit realAmount override keeps the recorded-amount workflow.
		bet, win := domain.Cents(0), domain.Cents(0)
		if inv := -rollbackEffect(built); inv >= 0 {
			bet = inv
		} else {
			win = -inv
		}
		target.Bet = &bet
		target.Win = &win
	}
}

// transactionID extracts the transaction id of a finalized request: the
// explicit transaction reference when present (rollbacks), else the
// request's own id.
func transactionID(built *domain.TransactionRequest) string {
	if built.Transaction != nil && built.Transaction.ID != "" {
		return built.Transaction.ID
	}
	return built.ID
}

func centsOrZero(c *domain.Cents) *domain.Cents {
	v := domain.Cents(0)
	if c != nil {
		v = *c
	}
	return &v
}
