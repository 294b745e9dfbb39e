package harness

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinforge/aleatest/internal/domain"
	"github.com/spinforge/aleatest/internal/walletserver"
)

const testSecret = "test-secret"

// walletEnv wires the runner against an in-process stub wallet over real HTTP.
type walletEnv struct {
	ledger  *walletserver.Ledger
	client  *Client
	builder *Builder
	runner  *Runner
}

func newWalletEnv(t *testing.T, initial domain.Cents) *walletEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger := walletserver.NewLedger()
	ledger.CreatePlayer("player-1", initial)

	srv := httptest.NewServer(walletserver.NewRouter(ledger, testSecret, logger))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, testSecret, "1", srv.Client(), logger)
	builder := newTestBuilder()
	return &walletEnv{
		ledger:  ledger,
		client:  client,
		builder: builder,
		runner:  NewRunner(client, builder, logger),
	}
}

func (e *walletEnv) balanceParams() BalanceParams {
	d := e.builder.defaults
	return BalanceParams{
		PlayerID:        d.PlayerID,
		CasinoSessionID: d.CasinoSessionID,
		Currency:        d.Currency,
		GameID:          d.GameID,
		SoftwareID:      d.SoftwareID,
		IntegratorID:    d.IntegratorID,
	}
}

// fullExpected builds the complete expectation a successful non-rollback step
// must declare. An empty id resolves to the id the request is sent with.
func fullExpected(realAmount float64, already bool) *domain.Expectation {
	return &domain.Expectation{StatusCode: 200, Body: map[string]any{
		"id":                 "",
		"realAmount":         realAmount,
		"bet":                nil,
		"win":                nil,
		"isAlreadyProcessed": already,
	}}
}

func stepBalances(result *ScenarioResult) []domain.Cents {
	out := make([]domain.Cents, len(result.Steps))
	for i, s := range result.Steps {
		out[i] = s.Balance
	}
	return out
}

// Runs the shipped fixture document end to end: bet/win/rollback, duplicate
// replay, and single-call settlement, checking the running balance at every
// step against the oracle.
func TestRunScenariosFromFixture(t *testing.T) {
	env := newWalletEnv(t, 10000)
	scenarios, err := LoadScenarios("testdata/scenarios.json")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	ctx := context.Background()

	// 100.00 - 10.00 bet, + 25.00 win, + 10.00 rollback refund.
	result := env.runner.RunScenario(ctx, &scenarios[0])
	require.NoError(t, result.Err)
	assert.Equal(t, []domain.Cents{9000, 11500, 12500}, stepBalances(result))

	// The duplicate bet replays: one debit of 5.00, not two.
	result = env.runner.RunScenario(ctx, &scenarios[1])
	require.NoError(t, result.Err)
	assert.Equal(t, []domain.Cents{12000, 12000}, stepBalances(result))
	assert.False(t, result.Steps[0].AlreadyProcessed)
	assert.True(t, result.Steps[1].AlreadyProcessed)

	// BET_WIN: -4.00 +10.00 in one call.
	result = env.runner.RunScenario(ctx, &scenarios[2])
	require.NoError(t, result.Err)
	assert.Equal(t, []domain.Cents{12600}, stepBalances(result))

	bal, err := env.client.Balance(ctx, env.balanceParams())
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(12600), bal.RealBalance)
}

// Stored variables must not leak between scenarios: a second scenario
// betting the same amount gets a fresh transaction id, not a replay.
func TestRunScenarioIsolation(t *testing.T) {
	env := newWalletEnv(t, 10000)
	ctx := context.Background()

	first := &domain.Scenario{TestName: "capture globals", Steps: []domain.Step{{
		Type:   domain.TxBet,
		Amount: cents(1000),
		Capture: &domain.CaptureSpec{Fields: []domain.CapturePath{
			domain.CaptureID, domain.CaptureIntegratorTxID, domain.CaptureRound,
		}},
		Expected: fullExpected(10, false),
	}}}
	result := env.runner.RunScenario(ctx, first)
	require.NoError(t, result.Err)
	assert.Equal(t, domain.Cents(9000), result.Steps[0].Balance)

	second := &domain.Scenario{TestName: "fresh identity", Steps: []domain.Step{{
		Type:     domain.TxBet,
		Amount:   cents(1000),
		Expected: fullExpected(10, false),
	}}}
	result = env.runner.RunScenario(ctx, second)
	require.NoError(t, result.Err)
	assert.False(t, result.Steps[0].AlreadyProcessed)
	assert.Equal(t, domain.Cents(8000), result.Steps[0].Balance)
}

func TestRunScenarioIncompleteExpectationIsSetupError(t *testing.T) {
	env := newWalletEnv(t, 10000)

	sc := &domain.Scenario{TestName: "incomplete", Steps: []domain.Step{{
		Type:   domain.TxBet,
		Amount: cents(1000),
		Expected: &domain.Expectation{StatusCode: 200, Body: map[string]any{
			"id": "", "realAmount": 10.0,
		}},
	}}}
	result := env.runner.RunScenario(context.Background(), sc)
	require.Error(t, result.Err)
	assert.Empty(t, result.Steps)

	var appErr *domain.AppError
	require.ErrorAs(t, result.Err, &appErr)
	assert.Equal(t, "SETUP_ERROR", appErr.Code)

	// Nothing reached the wire.
	bal, err := env.client.Balance(context.Background(), env.balanceParams())
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(10000), bal.RealBalance)
}

// An expectation that omits statusCode defaults to expecting 200, so the
// required-field check still applies and nothing reaches the wire.
func TestRunScenarioIncompleteExpectationWithoutStatusCode(t *testing.T) {
	env := newWalletEnv(t, 10000)

	sc := &domain.Scenario{TestName: "no status code", Steps: []domain.Step{{
		Type:     domain.TxBet,
		Amount:   cents(1000),
		Expected: &domain.Expectation{Body: map[string]any{"id": ""}},
	}}}
	result := env.runner.RunScenario(context.Background(), sc)
	require.Error(t, result.Err)
	assert.Empty(t, result.Steps)

	var appErr *domain.AppError
	require.ErrorAs(t, result.Err, &appErr)
	assert.Equal(t, "SETUP_ERROR", appErr.Code)

	bal, err := env.client.Balance(context.Background(), env.balanceParams())
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(10000), bal.RealBalance)
}

// A rollback of a rollback re-applies the reversed debit; the oracle and the
// wallet must agree without the fixture pinning the amount.
func TestRunScenarioChainedRollback(t *testing.T) {
	env := newWalletEnv(t, 10000)

	sc := &domain.Scenario{TestName: "rollback of a rollback", Steps: []domain.Step{
		{
			Type:   domain.TxBet,
			Amount: cents(1000),
			Capture: &domain.CaptureSpec{ReferenceName: "bet", Fields: []domain.CapturePath{
				domain.CaptureRound, domain.CaptureTransactionID,
			}},
			Expected: fullExpected(10, false),
		},
		{
			Type:             domain.TxRollback,
			UseVariablesFrom: "bet",
			OnlyRound:        true,
			Capture: &domain.CaptureSpec{ReferenceName: "undo", Fields: []domain.CapturePath{
				domain.CaptureID, domain.CaptureRound,
			}},
			Expected: &domain.Expectation{StatusCode: 200},
		},
		{
			Type:             domain.TxRollback,
			UseVariablesFrom: "undo",
			OnlyRound:        true,
			Expected:         &domain.Expectation{StatusCode: 200},
		},
	}}
	result := env.runner.RunScenario(context.Background(), sc)
	require.NoError(t, result.Err)
	assert.Equal(t, []domain.Cents{9000, 10000, 9000}, stepBalances(result))
}

func TestRunScenarioStatusMismatch(t *testing.T) {
	env := newWalletEnv(t, 10000)

	sc := &domain.Scenario{TestName: "over bet", Steps: []domain.Step{{
		Type:     domain.TxBet,
		Amount:   cents(20000),
		Expected: fullExpected(200, false),
	}}}
	result := env.runner.RunScenario(context.Background(), sc)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "status code mismatch: expected 200, got 400")
	require.Len(t, result.Steps, 1)
	assert.Equal(t, 400, result.Steps[0].StatusCode)
}

// A step expecting a failure status passes without moving the running
// balance; the following step reconciles against the untouched balance.
func TestRunScenarioExpectedFailureStatus(t *testing.T) {
	env := newWalletEnv(t, 10000)

	sc := &domain.Scenario{TestName: "insufficient then bet", Steps: []domain.Step{
		{
			Type:     domain.TxBet,
			Amount:   cents(20000),
			Expected: &domain.Expectation{StatusCode: 400},
		},
		{
			Type:     domain.TxBet,
			Amount:   cents(1000),
			Expected: fullExpected(10, false),
		},
	}}
	result := env.runner.RunScenario(context.Background(), sc)
	require.NoError(t, result.Err)
	assert.Equal(t, 400, result.Steps[0].StatusCode)
	assert.Equal(t, domain.Cents(9000), result.Steps[1].Balance)
}

func TestRunScenarioBadSecretRejected(t *testing.T) {
	env := newWalletEnv(t, 10000)

	sc := &domain.Scenario{TestName: "wrong secret", Steps: []domain.Step{{
		Type:     domain.TxBet,
		Amount:   cents(1000),
		Secret:   "not-the-shared-secret",
		Expected: &domain.Expectation{StatusCode: 401},
	}}}
	result := env.runner.RunScenario(context.Background(), sc)
	require.NoError(t, result.Err)

	bal, err := env.client.Balance(context.Background(), env.balanceParams())
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(10000), bal.RealBalance)
}

func TestClientBalance(t *testing.T) {
	env := newWalletEnv(t, 10000)

	bal, err := env.client.Balance(context.Background(), env.balanceParams())
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(10000), bal.RealBalance)
	assert.Equal(t, domain.Cents(0), bal.BonusBalance)

	params := env.balanceParams()
	params.PlayerID = "ghost"
	_, err = env.client.Balance(context.Background(), params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestPromoPayoutEndToEnd(t *testing.T) {
	env := newWalletEnv(t, 10000)
	ctx := context.Background()

	req, err := env.builder.BuildPromoPayout(PromoStep{
		PromoType:  domain.PromoFreeSpin,
		CampaignID: "camp-1",
		Amount:     500,
		ID:         "promo-1",
	})
	require.NoError(t, err)

	res, err := env.client.PostPromoPayout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, domain.Cents(10500), res.Parsed.RealBalance)
	assert.False(t, res.Parsed.IsAlreadyProcessed)

	// Replaying the same payout id credits nothing.
	res, err = env.client.PostPromoPayout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.True(t, res.Parsed.IsAlreadyProcessed)
	assert.Equal(t, domain.Cents(10500), res.Parsed.RealBalance)

	place := 1
	tournament, err := env.builder.BuildPromoPayout(PromoStep{
		PromoType:  domain.PromoTournament,
		CampaignID: "camp-2",
		Amount:     2500,
		Place:      &place,
	})
	require.NoError(t, err)

	res, err = env.client.PostPromoPayout(ctx, tournament)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, domain.Cents(13000), res.Parsed.RealBalance)
}
