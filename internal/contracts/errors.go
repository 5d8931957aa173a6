package contracts

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures
type Kind string

const (
	KindConfig         Kind = "config"
	KindFetch          Kind = "fetch"
	KindClassification Kind = "classification"
	KindSimulation     Kind = "simulation"
	KindPersistence    Kind = "persistence"
)

// Sentinels matched with errors.Is
var (
	ErrConfig         = errors.New("configuration error")
	ErrFetch          = errors.New("fetch error")
	ErrClassification = errors.New("classification error")
	ErrSimulation     = errors.New("simulation error")
	ErrPersistence    = errors.New("persistence error")
)

var sentinels = map[Kind]error{
	KindConfig:         ErrConfig,
	KindFetch:          ErrFetch,
	KindClassification: ErrClassification,
	KindSimulation:     ErrSimulation,
	KindPersistence:    ErrPersistence,
}

// PipelineError carries the failure kind and a human readable stage prefix
type PipelineError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes both the cause and the kind sentinel
func (e *PipelineError) Unwrap() []error {
	return []error{e.Err, sentinels[e.Kind]}
}

// NewConfigError reports missing or invalid configuration
func NewConfigError(err error) error {
	return &PipelineError{Kind: KindConfig, Stage: "invalid configuration", Err: err}
}

// NewFetchError reports a feed transport, status or decode failure
func NewFetchError(err error) error {
	return &PipelineError{Kind: KindFetch, Stage: "failed to fetch stock data", Err: err}
}

// NewClassificationError reports an unusable model response for a batch
func NewClassificationError(err error) error {
	return &PipelineError{Kind: KindClassification, Stage: "failed to classify companies", Err: err}
}

// NewSimulationError reports an unusable forecast for one stock
func NewSimulationError(ticker string, err error) error {
	return &PipelineError{Kind: KindSimulation, Stage: fmt.Sprintf("failed to simulate %s", ticker), Err: err}
}

// NewPersistenceError reports a database failure during op
func NewPersistenceError(op string, err error) error {
	return &PipelineError{Kind: KindPersistence, Stage: op, Err: err}
}

// KindOf returns the kind of the first PipelineError in err's chain, or ""
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
