package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spinforge/aleatest/internal/domain"
)

// Runner drives scenarios against a target: build → sign → send → validate →
// reconcile → propagate, strictly sequentially within a scenario. Scenarios
// are independent; a Runner is safe to use from multiple goroutines as long
// as each goroutine runs its own scenarios.
type Runner struct {
	client  *Client
	builder *Builder
	logger  *slog.Logger
}

func NewRunner(client *Client, builder *Builder, logger *slog.Logger) *Runner {
	return &Runner{client: client, builder: builder, logger: logger}
}

// scenarioState is the mutable per-scenario state, threaded explicitly
// through the steps. Never shared across scenarios.
type scenarioState struct {
	vars    VarStore
	balance domain.Cents
}

// StepResult records the observed outcome of one step.
type StepResult struct {
	Index            int
	Type             domain.TransactionType
	StatusCode       int
	Balance          domain.Cents
	AlreadyProcessed bool
}

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Scenario   string
	Steps      []StepResult
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

func (r *ScenarioResult) Passed() bool { return r.Err == nil }

// RunScenario executes every step of a scenario in declared order. State
// (stored variables, running balance) is created fresh here, so back-to-back
// scenarios cannot leak into each other. The first failing step aborts the
// scenario; nothing is retried.
func (r *Runner) RunScenario(ctx context.Context, sc *domain.Scenario) *ScenarioResult {
	result := &ScenarioResult{Scenario: sc.TestName, StartedAt: time.Now()}
	defer func() { result.FinishedAt = time.Now() }()

	state := scenarioState{vars: NewVarStore()}

	bal, err := r.client.Balance(ctx, r.balanceParams())
	if err != nil {
		result.Err = fmt.Errorf("scenario %q: fetch initial balance: %w", sc.TestName, err)
		return result
	}
	state.balance = bal.RealBalance

	r.logger.Info("scenario starting",
		"scenario", sc.TestName,
		"steps", len(sc.Steps),
		"initial_balance", state.balance.String())

	for i := range sc.Steps {
		stepResult, err := r.runStep(ctx, sc, i, &state)
		if stepResult != nil {
			result.Steps = append(result.Steps, *stepResult)
		}
		if err != nil {
			result.Err = err
			return result
		}
	}

	r.logger.Info("scenario passed",
		"scenario", sc.TestName,
		"final_balance", state.balance.String())
	return result
}

func (r *Runner) runStep(ctx context.Context, sc *domain.Scenario, index int, state *scenarioState) (*StepResult, error) {
	step := &sc.Steps[index]
	stepCtx := StepContext{Scenario: sc.TestName, StepIndex: index, StepType: step.Type}

	expectedStatus := 200
	if step.Expected != nil && step.Expected.StatusCode != 0 {
		expectedStatus = step.Expected.StatusCode
	}

	// Incomplete expectations are a setup defect, caught before any network
	// call.
	if err := step.Expected.CheckComplete(step.Type, expectedStatus); err != nil {
		return nil, fmt.Errorf("%s: %w", stepCtx.describe(), err)
	}

	built, err := r.builder.BuildTransaction(step, state.vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stepCtx.describe(), err)
	}

	res, err := r.client.PostTransaction(ctx, built)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stepCtx.describe(), err)
	}

	stepResult := &StepResult{
		Index:      index,
		Type:       step.Type,
		StatusCode: res.StatusCode,
	}

	if res.StatusCode != expectedStatus {
		return stepResult, domain.ErrAssertion(fmt.Sprintf("%s: status code mismatch: expected %d, got %d",
			stepCtx.describe(), expectedStatus, res.StatusCode))
	}

	ok := res.StatusCode >= 200 && res.StatusCode < 300
	if ok {
		if err := Validate(res.Body, resolveExpected(step.Expected, built), stepCtx); err != nil {
			return stepResult, err
		}

		already := res.Parsed.IsAlreadyProcessed
		want := ExpectedBalance(state.balance, built, already)
		if res.Parsed.RealBalance != want {
			return stepResult, domain.ErrAssertion(fmt.Sprintf("%s: balance mismatch: expected %s, got %s",
				stepCtx.describe(), want.String(), res.Parsed.RealBalance.String()))
		}
		// Advance only on success; a failed step must never move the
		// running balance.
		state.balance = want
		stepResult.Balance = want
		stepResult.AlreadyProcessed = already
	}

	state.vars.Update(step, built)

	r.logger.Debug("step done",
		"scenario", sc.TestName,
		"step", index+1,
		"type", step.Type,
		"status", res.StatusCode,
		"balance", state.balance.String())
	return stepResult, nil
}

// resolveExpected copies the expectation, resolving an empty expected id to
// the id the request was actually sent with. Fixtures cannot know generated
// transaction ids ahead of time.
func resolveExpected(expected *domain.Expectation, built *domain.TransactionRequest) *domain.Expectation {
	if expected == nil {
		return nil
	}
	v, ok := expected.Body["id"]
	if !ok {
		return expected
	}
	if s, isStr := v.(string); !isStr || s != "" {
		return expected
	}

	body := make(map[string]any, len(expected.Body))
	for k, val := range expected.Body {
		body[k] = val
	}
	body["id"] = built.ID
	return &domain.Expectation{StatusCode: expected.StatusCode, Body: body}
}

func (r *Runner) balanceParams() BalanceParams {
	d := r.builder.defaults
	return BalanceParams{
		PlayerID:        d.PlayerID,
		CasinoSessionID: d.CasinoSessionID,
		Currency:        d.Currency,
		GameID:          d.GameID,
		SoftwareID:      d.SoftwareID,
		IntegratorID:    d.IntegratorID,
	}
}
