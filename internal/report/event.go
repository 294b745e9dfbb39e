package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spinforge/aleatest/internal/infra"
)

// RunEvent is the payload emitted when a scenario run finishes.
type RunEvent struct {
	Scenario   string    `json:"scenario"`
	Target     string    `json:"target"`
	Passed     bool      `json:"passed"`
	Failure    string    `json:"failure,omitempty"`
	StepsRun   int       `json:"stepsRun"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Publisher emits run-finished events to Kafka. Keyed by scenario name so
// one scenario's history lands on one partition.
type Publisher struct {
	producer *infra.KafkaProducer
	topic    string
}

func NewPublisher(producer *infra.KafkaProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// RunFinished publishes the outcome of one scenario run.
func (p *Publisher) RunFinished(ctx context.Context, run *ScenarioRun) error {
	event := RunEvent{
		Scenario:   run.Scenario,
		Target:     run.Target,
		Passed:     run.Passed,
		Failure:    run.Failure,
		StepsRun:   run.StepsRun,
		FinishedAt: run.FinishedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	return p.producer.Publish(ctx, p.topic, []byte(run.Scenario), value)
}
