package domain

import (
	"encoding/json"
	"fmt"
)

// Scenario is an ordered sequence of steps sharing one player identity and
// one initial balance snapshot. Loaded once from a fixture; immutable.
type Scenario struct {
	TestName string `json:"testName"`
	Steps    []Step `json:"steps"`
}

// Step is one simulated transaction attempt within a scenario.
type Step struct {
	Type   TransactionType `json:"type"`
	Amount *Cents          `json:"amount,omitempty"`
	Bet    *Cents          `json:"bet,omitempty"`
	Win    *Cents          `json:"win,omitempty"`
	Round  *Round          `json:"round,omitempty"`

	// Secret overrides the shared signing secret for this step.
	Secret string `json:"secret,omitempty"`

	// Capture declares which fields of the finalized request to store for
	// later steps.
	Capture *CaptureSpec `json:"storeVariablesForNextStep,omitempty"`

	// UseVariablesFrom names a previously stored reference. Required for
	// ROLLBACK.
	UseVariablesFrom string `json:"useVariablesFrom,omitempty"`

	// OnlyRound restricts which fields a ROLLBACK pulls from its reference.
	OnlyRound bool `json:"onlyRound,omitempty"`

	Expected *Expectation `json:"expectedValues,omitempty"`
}

// Validate checks the closed-variant constraints of a step.
func (s *Step) Validate() error {
	if !StepTypes[s.Type] {
		return ErrSetup(fmt.Sprintf("unknown step type: %s", s.Type))
	}
	if s.Type == TxRollback && s.UseVariablesFrom == "" {
		return ErrSetup("ROLLBACK step requires useVariablesFrom")
	}
	if s.Capture != nil {
		for _, p := range s.Capture.Fields {
			if !p.Valid() {
				return ErrSetup(fmt.Sprintf("unknown capture path: %s", p))
			}
		}
	}
	return nil
}

// CapturePath is one of the enumerated fields the propagator may capture.
// Keeping this a closed list makes exactly what can be stored auditable.
type CapturePath string

const (
	CaptureID                CapturePath = "id"
	CaptureIntegratorTxID    CapturePath = "integratorTransactionId"
	CaptureRound             CapturePath = "round"
	CaptureRoundID           CapturePath = "round.id"
	CaptureIntegratorRoundID CapturePath = "round.integratorRoundId"
	CaptureTransactionID     CapturePath = "transaction.id"
)

func (p CapturePath) Valid() bool {
	switch p {
	case CaptureID, CaptureIntegratorTxID, CaptureRound,
		CaptureRoundID, CaptureIntegratorRoundID, CaptureTransactionID:
		return true
	}
	return false
}

// CaptureSpec declares what a step stores for later steps.
type CaptureSpec struct {
	// ReferenceName files the captured values under a name; empty means the
	// global namespace.
	ReferenceName string `json:"referenceName,omitempty"`

	Fields []CapturePath `json:"fields,omitempty"`

	// RealAmount overrides the recorded originalAmount (used when the
	// server-side real amount differs from the requested one).
	RealAmount *Cents `json:"realAmount,omitempty"`
}

// Expectation is the oracle's expectation for one step: a status code plus a
// partial response template compared field-by-field.
type Expectation struct {
	StatusCode int
	Body       map[string]any
}

// requiredExpectedFields must all be present when a non-ROLLBACK step
// expects a 200.
var requiredExpectedFields = []string{"id", "realAmount", "bet", "win", "isAlreadyProcessed"}

func (e *Expectation) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if v, ok := m["statusCode"]; ok {
		f, isNum := v.(float64)
		if !isNum {
			return fmt.Errorf("expectedValues.statusCode must be a number")
		}
		e.StatusCode = int(f)
		delete(m, "statusCode")
	}
	e.Body = m
	return nil
}

func (e *Expectation) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Body)+1)
	for k, v := range e.Body {
		m[k] = v
	}
	if e.StatusCode != 0 {
		m["statusCode"] = e.StatusCode
	}
	return json.Marshal(m)
}

// CheckComplete enforces that the expectation carries every required field
// for a successful non-ROLLBACK step. Absence is a setup error, not an
// assertion failure. The caller resolves the effective expected status; an
// omitted statusCode defaults to 200 and is enforced like an explicit one.
func (e *Expectation) CheckComplete(stepType TransactionType, expectedStatus int) error {
	if expectedStatus != 200 || stepType == TxRollback {
		return nil
	}
	if e == nil {
		return ErrSetup("expectedValues missing")
	}
	for _, f := range requiredExpectedFields {
		if _, ok := e.Body[f]; !ok {
			return ErrSetup(fmt.Sprintf("expectedValues missing required field %q", f))
		}
	}
	return nil
}
