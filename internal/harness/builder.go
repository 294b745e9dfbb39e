package harness

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/spinforge/aleatest/internal/domain"
)

// Defaults is the fixed identity every generated request starts from,
// supplied by configuration at construction time.
type Defaults struct {
	GameID          string
	SoftwareID      string
	IntegratorID    string
	PlayerID        string
	Currency        string
	CasinoSessionID string
}

// Builder turns declarative steps into concrete wire requests. Identity
// generation is injectable so tests can pin ids and timestamps.
type Builder struct {
	defaults   Defaults
	now        func() time.Time
	newTxID    func() string
	newRoundID func() string
}

// NewBuilder creates a production builder: transaction ids derive from the
// current time plus a random suffix, round ids are UUIDs.
func NewBuilder(d Defaults) *Builder {
	return &Builder{
		defaults:   d,
		now:        time.Now,
		newTxID:    NewTransactionID,
		newRoundID: uuid.NewString,
	}
}

// NewTransactionID generates a unique transaction id from the current time
// and a random suffix.
func NewTransactionID() string {
	return fmt.Sprintf("%d%04d", time.Now().UnixMilli(), rand.IntN(10000))
}

// BuildTransaction constructs the wire request for one step, resolving
// stored variables. Each step type applies an explicit field set over the
// generated base; there is no generic merge, so a malformed step cannot
// smuggle unexpected fields onto the wire.
func (b *Builder) BuildTransaction(step *domain.Step, vars VarStore) (*domain.TransactionRequest, error) {
	if err := step.Validate(); err != nil {
		return nil, err
	}

	req := &domain.TransactionRequest{
		ID:                      b.newTxID(),
		IntegratorTransactionID: b.newTxID(),
		Type:                    step.Type,
		RequestedAt:             b.now().UTC().Format(time.RFC3339),
		Game:                    domain.EntityRef{ID: b.defaults.GameID},
		Software:                domain.EntityRef{ID: b.defaults.SoftwareID},
		Integrator:              domain.EntityRef{ID: b.defaults.IntegratorID},
		Player:                  domain.PlayerRef{ID: b.defaults.PlayerID},
		Currency:                b.defaults.Currency,
		CasinoSessionID:         b.defaults.CasinoSessionID,
		Round: &domain.Round{
			ID:                b.newRoundID(),
			IntegratorRoundID: b.newRoundID(),
			Status:            domain.RoundInProgress,
		},
		Secret: step.Secret,
	}

	// Step-supplied round fields win over the generated ones.
	if step.Round != nil {
		if step.Round.ID != "" {
			req.Round.ID = step.Round.ID
		}
		if step.Round.IntegratorRoundID != "" {
			req.Round.IntegratorRoundID = step.Round.IntegratorRoundID
		}
		if step.Round.Status != "" {
			req.Round.Status = step.Round.Status
		}
	}

	switch step.Type {
	case domain.TxBet, domain.TxWin:
		req.Amount = centsOrZero(step.Amount)
		b.applyStoredVars(req, step, vars)

	case domain.TxBetWin:
		// No flat amount on the wire; the bet and win portions carry it.
		req.Amount = nil
		req.Bet = &domain.AmountPart{Amount: derefCents(step.Bet)}
		req.Win = &domain.AmountPart{Amount: derefCents(step.Win)}
		b.applyStoredVars(req, step, vars)

	case domain.TxRollback:
		if err := b.applyRollback(req, step, vars); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// applyStoredVars propagates stored state into a standard (non-rollback)
// step. A named reference contributes only its round, keeping several steps
// on one round while each gets a fresh transaction id. Unnamed global vars,
// when present and no reference is named, merge wholesale.
func (b *Builder) applyStoredVars(req *domain.TransactionRequest, step *domain.Step, vars VarStore) {
	if step.UseVariablesFrom != "" {
		if ref := vars.Lookup(step.UseVariablesFrom); ref != nil && ref.Round != nil {
			req.Round = ref.Round.Clone()
		}
		return
	}
	if g := vars.Lookup(""); g != nil {
		if g.Round != nil {
			req.Round = g.Round.Clone()
		}
		if g.ID != "" {
			req.ID = g.ID
		}
		if g.IntegratorTransactionID != "" {
			req.IntegratorTransactionID = g.IntegratorTransactionID
		}
	}
}

// applyRollback resolves the mandatory reference and points the request at
// the original transaction.
func (b *Builder) applyRollback(req *domain.TransactionRequest, step *domain.Step, vars VarStore) error {
	if step.UseVariablesFrom == "" {
		return domain.ErrSetup("ROLLBACK step requires useVariablesFrom")
	}
	ref := vars.Lookup(step.UseVariablesFrom)
	if ref == nil {
		return domain.ErrSetup(fmt.Sprintf("no stored variables found for reference %q", step.UseVariablesFrom))
	}

	txID := ref.TransactionID
	if txID == "" {
		txID = ref.ID
	}
	req.Transaction = &domain.TransactionRef{ID: txID}

	if step.OnlyRound {
		// Merge the stored round into the generated one field by field.
		if ref.Round != nil {
			if ref.Round.ID != "" {
				req.Round.ID = ref.Round.ID
			}
			if ref.Round.IntegratorRoundID != "" {
				req.Round.IntegratorRoundID = ref.Round.IntegratorRoundID
			}
			if ref.Round.Status != "" {
				req.Round.Status = ref.Round.Status
			}
		}
	} else {
		// Replace identity wholesale from the reference.
		if ref.ID != "" {
			req.ID = ref.ID
		}
		if ref.IntegratorTransactionID != "" {
			req.IntegratorTransactionID = ref.IntegratorTransactionID
		}
		if ref.Round != nil {
			req.Round = ref.Round.Clone()
		}
	}

	req.OriginalRequestType = ref.OriginalRequestType
	req.OriginalAmount = ref.OriginalAmount
	if ref.OriginalRequestType == domain.TxBetWin || ref.OriginalRequestType == domain.TxRollback {
		if ref.Bet != nil {
			req.Bet = &domain.AmountPart{Amount: *ref.Bet}
		}
		if ref.Win != nil {
			req.Win = &domain.AmountPart{Amount: *ref.Win}
		}
	}

	// A rollback never carries a flat amount.
	req.Amount = nil
	return nil
}

func derefCents(c *domain.Cents) domain.Cents {
	if c == nil {
		return 0
	}
	return *c
}
