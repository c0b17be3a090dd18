package processor

import (
	"context"
	"errors"
	"time"

	"github.com/weak-head/smartmeter-pipe/internal/logger"
	"github.com/weak-head/smartmeter-pipe/internal/reading"
)

const (
	// outcomeMalformed labels records that could not be decoded.
	outcomeMalformed = "malformed"
)

var (
	// ErrNoTransformerProvided happens when transformer is not provided.
	ErrNoTransformerProvided = errors.New("no transformer provided")

	// ErrNoReporterProvided happens when reporter is not provided.
	ErrNoReporterProvided = errors.New("no reporter provided")
)

// Transformer is the interface that wraps the basic Transform method.
//
// Transform converts a raw reading payload. Records that fail validation
// or conversion are reported through the Result outcome.
// Transform must return a non-nil error if the payload can not be decoded.
type Transformer interface {
	Transform(raw []byte) (reading.Result, error)
}

// Reporter collects the per-record metrics.
type Reporter interface {
	RecordProcessed(outcome string, seconds float64)
}

// processor is a wrapper over the transformer that
// times every record and reports its outcome.
type processor struct {
	transformer Transformer
	reporter    Reporter

	now func() time.Time
	log logger.Log
}

// NewProcessor creates a new record processor.
// It returns an error if the creation failed.
func NewProcessor(
	transformer Transformer,
	reporter Reporter,
	log logger.Log,
) (*processor, error) {
	if transformer == nil {
		return nil, ErrNoTransformerProvided
	}

	if reporter == nil {
		return nil, ErrNoReporterProvided
	}

	return &processor{
		transformer: transformer,
		reporter:    reporter,
		now:         time.Now,
		log:         log.WithField(logger.FieldPackage, "processor"),
	}, nil
}

// Process transforms a single payload.
// Process returns an error if the payload is malformed or the context is done,
// dropped records are not errors.
func (p *processor) Process(ctx context.Context, payload []byte) (reading.Result, error) {
	if err := ctx.Err(); err != nil {
		return reading.Result{}, err
	}

	log := p.log.WithField(logger.FieldFunction, "processor.Process")

	start := p.now()
	res, err := p.transformer.Transform(payload)
	elapsed := p.now().Sub(start).Seconds()

	if err != nil {
		p.reporter.RecordProcessed(outcomeMalformed, elapsed)
		log.Warn(err, "Failed to decode the record.")
		return reading.Result{}, err
	}

	p.reporter.RecordProcessed(res.Outcome.String(), elapsed)

	if res.Outcome.Dropped() {
		log.WithField("outcome", res.Outcome.String()).Debug("Record has been dropped.")
	} else {
		log.Trace("Record has been converted.")
	}

	return res, nil
}
