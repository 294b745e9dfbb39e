package harness

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinforge/aleatest/internal/domain"
)

// newTestBuilder pins identity generation so built requests are predictable:
// transaction ids are tx-1, tx-2, ... and round ids round-1, round-2, ...
func newTestBuilder() *Builder {
	txSeq, roundSeq := 0, 0
	return &Builder{
		defaults: Defaults{
			GameID:          "101",
			SoftwareID:      "42",
			IntegratorID:    "7",
			PlayerID:        "player-1",
			Currency:        "EUR",
			CasinoSessionID: "session-1",
		},
		now: func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
		newTxID: func() string {
			txSeq++
			return fmt.Sprintf("tx-%d", txSeq)
		},
		newRoundID: func() string {
			roundSeq++
			return fmt.Sprintf("round-%d", roundSeq)
		},
	}
}

func cents(v int64) *domain.Cents {
	c := domain.Cents(v)
	return &c
}

func TestBuildBet(t *testing.T) {
	b := newTestBuilder()
	step := &domain.Step{Type: domain.TxBet, Amount: cents(1000)}

	req, err := b.BuildTransaction(step, NewVarStore())
	require.NoError(t, err)

	assert.Equal(t, "tx-1", req.ID)
	assert.Equal(t, "tx-2", req.IntegratorTransactionID)
	assert.Equal(t, domain.TxBet, req.Type)
	assert.Equal(t, "2026-03-14T09:30:00Z", req.RequestedAt)
	assert.Equal(t, "101", req.Game.ID)
	assert.Equal(t, "42", req.Software.ID)
	assert.Equal(t, "7", req.Integrator.ID)
	assert.Equal(t, "player-1", req.Player.ID)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, "session-1", req.CasinoSessionID)

	require.NotNil(t, req.Round)
	assert.Equal(t, "round-1", req.Round.ID)
	assert.Equal(t, "round-2", req.Round.IntegratorRoundID)
	assert.Equal(t, domain.RoundInProgress, req.Round.Status)

	require.NotNil(t, req.Amount)
	assert.Equal(t, domain.Cents(1000), *req.Amount)
	assert.Nil(t, req.Bet)
	assert.Nil(t, req.Win)
	assert.Nil(t, req.Transaction)
}

func TestBuildBetWithoutAmountDefaultsToZero(t *testing.T) {
	b := newTestBuilder()
	req, err := b.BuildTransaction(&domain.Step{Type: domain.TxBet}, NewVarStore())
	require.NoError(t, err)
	require.NotNil(t, req.Amount)
	assert.Equal(t, domain.Cents(0), *req.Amount)
}

func TestBuildBetWin(t *testing.T) {
	b := newTestBuilder()
	step := &domain.Step{Type: domain.TxBetWin, Bet: cents(400), Win: cents(1000)}

	req, err := b.BuildTransaction(step, NewVarStore())
	require.NoError(t, err)

	// The bet and win portions carry the money; no flat amount on the wire.
	assert.Nil(t, req.Amount)
	require.NotNil(t, req.Bet)
	require.NotNil(t, req.Win)
	assert.Equal(t, domain.Cents(400), req.Bet.Amount)
	assert.Equal(t, domain.Cents(1000), req.Win.Amount)
}

func TestBuildWirePayloadAllowList(t *testing.T) {
	b := newTestBuilder()
	step := &domain.Step{
		Type:             domain.TxBet,
		Amount:           cents(1000),
		Secret:           "override",
		UseVariablesFrom: "",
		Capture:          &domain.CaptureSpec{Fields: []domain.CapturePath{domain.CaptureRound}},
	}

	req, err := b.BuildTransaction(step, NewVarStore())
	require.NoError(t, err)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	want := []string{
		"id", "integratorTransactionId", "type", "requestedAt",
		"game", "software", "integrator", "player",
		"currency", "casinoSessionId", "round", "amount",
	}
	assert.Len(t, m, len(want))
	for _, k := range want {
		_, ok := m[k]
		assert.True(t, ok, "wire payload missing %q", k)
	}
}

func TestBuildStepRoundOverride(t *testing.T) {
	b := newTestBuilder()
	step := &domain.Step{
		Type:   domain.TxWin,
		Amount: cents(500),
		Round:  &domain.Round{ID: "pinned-round", Status: domain.RoundCompleted},
	}

	req, err := b.BuildTransaction(step, NewVarStore())
	require.NoError(t, err)

	assert.Equal(t, "pinned-round", req.Round.ID)
	// Unset step round fields keep the generated values.
	assert.Equal(t, "round-2", req.Round.IntegratorRoundID)
	assert.Equal(t, domain.RoundCompleted, req.Round.Status)
}

func TestBuildNamedReferencePropagatesRoundOnly(t *testing.T) {
	b := newTestBuilder()
	vars := NewVarStore()
	vars["bet"] = &CapturedVars{
		ID:                      "orig-tx",
		IntegratorTransactionID: "orig-itx",
		Round:                   &domain.Round{ID: "shared-round", IntegratorRoundID: "shared-iround"},
	}

	step := &domain.Step{Type: domain.TxWin, Amount: cents(2500), UseVariablesFrom: "bet"}
	req, err := b.BuildTransaction(step, vars)
	require.NoError(t, err)

	// Same round, fresh transaction identity.
	assert.Equal(t, "shared-round", req.Round.ID)
	assert.Equal(t, "shared-iround", req.Round.IntegratorRoundID)
	assert.Equal(t, "tx-1", req.ID)
	assert.Equal(t, "tx-2", req.IntegratorTransactionID)
}

func TestBuildGlobalVarsMergeWholesale(t *testing.T) {
	b := newTestBuilder()
	vars := NewVarStore()
	vars[""] = &CapturedVars{
		ID:                      "dup-tx",
		IntegratorTransactionID: "dup-itx",
		Round:                   &domain.Round{ID: "dup-round", IntegratorRoundID: "dup-iround"},
	}

	req, err := b.BuildTransaction(&domain.Step{Type: domain.TxBet, Amount: cents(500)}, vars)
	require.NoError(t, err)

	assert.Equal(t, "dup-tx", req.ID)
	assert.Equal(t, "dup-itx", req.IntegratorTransactionID)
	assert.Equal(t, "dup-round", req.Round.ID)
}

func TestBuildMissingReferenceIsNoOpForStandardSteps(t *testing.T) {
	b := newTestBuilder()
	req, err := b.BuildTransaction(&domain.Step{
		Type:             domain.TxWin,
		Amount:           cents(100),
		UseVariablesFrom: "ghost",
	}, NewVarStore())
	require.NoError(t, err)
	assert.Equal(t, "tx-1", req.ID)
	assert.Equal(t, "round-1", req.Round.ID)
}

func TestBuildRollbackOnlyRound(t *testing.T) {
	b := newTestBuilder()
	vars := NewVarStore()
	vars["bet"] = &CapturedVars{
		ID:                  "orig-tx",
		Round:               &domain.Round{ID: "orig-round"},
		OriginalRequestType: domain.TxBet,
		OriginalAmount:      1000,
	}

	step := &domain.Step{Type: domain.TxRollback, UseVariablesFrom: "bet", OnlyRound: true}
	req, err := b.BuildTransaction(step, vars)
	require.NoError(t, err)

	require.NotNil(t, req.Transaction)
	assert.Equal(t, "orig-tx", req.Transaction.ID)

	// onlyRound keeps a fresh transaction identity, merging just the round.
	assert.Equal(t, "tx-1", req.ID)
	assert.Equal(t, "orig-round", req.Round.ID)
	assert.Equal(t, "round-2", req.Round.IntegratorRoundID)

	assert.Equal(t, domain.TxBet, req.OriginalRequestType)
	assert.Equal(t, domain.Cents(1000), req.OriginalAmount)
	assert.Nil(t, req.Amount)
}

func TestBuildRollbackWholesale(t *testing.T) {
	b := newTestBuilder()
	vars := NewVarStore()
	vars["bet"] = &CapturedVars{
		ID:                      "orig-tx",
		IntegratorTransactionID: "orig-itx",
		Round:                   &domain.Round{ID: "orig-round", IntegratorRoundID: "orig-iround"},
		OriginalRequestType:     domain.TxWin,
		OriginalAmount:          2500,
	}

	step := &domain.Step{Type: domain.TxRollback, UseVariablesFrom: "bet"}
	req, err := b.BuildTransaction(step, vars)
	require.NoError(t, err)

	assert.Equal(t, "orig-tx", req.ID)
	assert.Equal(t, "orig-itx", req.IntegratorTransactionID)
	assert.Equal(t, "orig-round", req.Round.ID)
	assert.Equal(t, "orig-iround", req.Round.IntegratorRoundID)
	require.NotNil(t, req.Transaction)
	assert.Equal(t, "orig-tx", req.Transaction.ID)
}

func TestBuildRollbackPrefersStoredTransactionID(t *testing.T) {
	b := newTestBuilder()
	vars := NewVarStore()
	vars["chain"] = &CapturedVars{
		ID:            "rollback-tx",
		TransactionID: "first-in-chain",
	}

	req, err := b.BuildTransaction(&domain.Step{
		Type:             domain.TxRollback,
		UseVariablesFrom: "chain",
		OnlyRound:        true,
	}, vars)
	require.NoError(t, err)
	assert.Equal(t, "first-in-chain", req.Transaction.ID)
}

func TestBuildRollbackOfBetWinCopiesParts(t *testing.T) {
	b := newTestBuilder()
	vars := NewVarStore()
	vars["bw"] = &CapturedVars{
		ID:                  "bw-tx",
		OriginalRequestType: domain.TxBetWin,
		Bet:                 cents(400),
		Win:                 cents(1000),
	}

	req, err := b.BuildTransaction(&domain.Step{
		Type:             domain.TxRollback,
		UseVariablesFrom: "bw",
		OnlyRound:        true,
	}, vars)
	require.NoError(t, err)

	require.NotNil(t, req.Bet)
	require.NotNil(t, req.Win)
	assert.Equal(t, domain.Cents(400), req.Bet.Amount)
	assert.Equal(t, domain.Cents(1000), req.Win.Amount)
}

func TestBuildRollbackErrors(t *testing.T) {
	b := newTestBuilder()

	t.Run("missing reference name", func(t *testing.T) {
		_, err := b.BuildTransaction(&domain.Step{Type: domain.TxRollback}, NewVarStore())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ROLLBACK step requires useVariablesFrom")
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := b.BuildTransaction(&domain.Step{
			Type:             domain.TxRollback,
			UseVariablesFrom: "never-stored",
		}, NewVarStore())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no stored variables found for reference "never-stored"`)
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "SETUP_ERROR", appErr.Code)
	})
}

func TestBuildPromoPayout(t *testing.T) {
	t.Run("defaults fill identity", func(t *testing.T) {
		b := newTestBuilder()
		req, err := b.BuildPromoPayout(PromoStep{
			PromoType:  domain.PromoFreeSpin,
			CampaignID: "camp-1",
			Amount:     500,
		})
		require.NoError(t, err)
		assert.Equal(t, "tx-1", req.ID)
		assert.Equal(t, "player-1", req.PlayerID)
		assert.Equal(t, "101", req.Details.GameID)
		assert.Equal(t, "EUR", req.Details.Currency)
		assert.Equal(t, "2026-03-14T09:30:00Z", req.RequestedAt)
	})

	t.Run("pinned id kept", func(t *testing.T) {
		b := newTestBuilder()
		req, err := b.BuildPromoPayout(PromoStep{
			PromoType: domain.PromoPrize,
			Amount:    100,
			ID:        "promo-42",
		})
		require.NoError(t, err)
		assert.Equal(t, "promo-42", req.ID)
	})

	t.Run("tournament requires place", func(t *testing.T) {
		b := newTestBuilder()
		_, err := b.BuildPromoPayout(PromoStep{PromoType: domain.PromoTournament, Amount: 100})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires place")
	})

	t.Run("unknown promo type", func(t *testing.T) {
		b := newTestBuilder()
		_, err := b.BuildPromoPayout(PromoStep{PromoType: "MYSTERY"})
		require.Error(t, err)
	})
}

func TestNewTransactionID(t *testing.T) {
	id := NewTransactionID()
	assert.Len(t, id, 17)
	for _, r := range id {
		assert.True(t, r >= '0' && r <= '9', "id %q contains non-digit %q", id, r)
	}
}
