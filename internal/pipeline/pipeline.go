package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	"github.com/weak-head/smartmeter-pipe/internal/logger"
	"github.com/weak-head/smartmeter-pipe/internal/reading"
)

const (
	// retryFetchCount defines the number of retries
	// to fetch a message from the reader before giving up.
	retryFetchCount = 3

	// retryWriteCount defines the number of retries
	// to write a message to the writer before giving up.
	retryWriteCount = 3

	// retryDeadLetterCount defines the number of retries
	// to dead-letter a malformed message before giving up.
	retryDeadLetterCount = 3

	// retryCommitCount defines the number of retries
	// to commit a message to the reader before giving up.
	retryCommitCount = 3

	// defaultDrainTimeout is the idle time after which
	// a batch pipeline considers the subscription drained.
	defaultDrainTimeout = 10 * time.Second
)

const (
	failureFetch      = "fetch"
	failureWrite      = "write"
	failureDeadLetter = "deadletter"
	failureCommit     = "commit"
	failureProcess    = "process"
)

var (
	// ErrNoReaderProvided happens when reader is not provided.
	ErrNoReaderProvided = errors.New("no reader provided")

	// ErrNoWriterProvided happens when writer is not provided.
	ErrNoWriterProvided = errors.New("no writer provided")

	// ErrNoSleeperProvided happens when sleeper is not provided.
	ErrNoSleeperProvided = errors.New("no sleeper provided")

	// ErrNoProcessorProvided happens when processor is not provided.
	ErrNoProcessorProvided = errors.New("no processor provided")

	// ErrNoReporterProvided happens when reporter is not provided.
	ErrNoReporterProvided = errors.New("no reporter provided")

	// errStopped interrupts the message handling once the pipeline is stopped.
	errStopped = errors.New("pipeline stopped")
)

// Config
type Config struct {
	// Streaming pipelines wait for new messages forever.
	// Batch pipelines stop once no message arrives within the DrainTimeout.
	Streaming    bool
	DrainTimeout time.Duration
}

// Reader is a transactional message reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Writer is an atomic message writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Processor transforms a single reading payload.
type Processor interface {
	Process(ctx context.Context, payload []byte) (reading.Result, error)
}

// DeadLetterer takes over the messages that could not be decoded.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, m kafka.Message, cause error) error
}

// Sleeper is a routine sleeper with some sleeping strategy
// and ability to reset the strategy state.
type Sleeper interface {
	Sleep()
	Reset()
}

// Reporter is a pipeline status reporter that collects
// and aggregates metrics related to pipeline flow.
type Reporter interface {
	RecordDeadLettered()
	PipelineFailed(failure string)
}

// retryPolicy describes how a single pipeline step is retried and reported.
type retryPolicy struct {
	attempts  int
	failure   string
	failedMsg string
	giveUpMsg string
}

var (
	writePolicy = retryPolicy{
		attempts:  retryWriteCount,
		failure:   failureWrite,
		failedMsg: "Failed to write the message to the kafka writer",
		giveUpMsg: "Giving up writing the message. Stopping pipeline because of %d consecutive failed writes",
	}

	deadLetterPolicy = retryPolicy{
		attempts:  retryDeadLetterCount,
		failure:   failureDeadLetter,
		failedMsg: "Failed to dead-letter the malformed message",
		giveUpMsg: "Giving up dead-lettering the message. Stopping pipeline because of %d consecutive failed attempts",
	}

	commitPolicy = retryPolicy{
		attempts:  retryCommitCount,
		failure:   failureCommit,
		failedMsg: "Failed to commit read message to the kafka reader",
		giveUpMsg: "Giving up committing the message. Stopping pipeline because of %d consecutive failed commits",
	}
)

// Pipeline moves readings from the source subscription to the destination topic.
type Pipeline struct {
	config Config

	processor    Processor
	reader       Reader
	writer       Writer
	deadLetterer DeadLetterer

	sleeper  Sleeper
	reporter Reporter

	log logger.Log
}

// NewPipeline creates and initializes a new reading pipeline.
// The dead-letterer is optional, without it a malformed message stops the pipeline.
func NewPipeline(
	config Config,
	reader Reader,
	writer Writer,
	processor Processor,
	deadLetterer DeadLetterer,
	sleeper Sleeper,
	reporter Reporter,
	log logger.Log,
) (*Pipeline, error) {
	if reader == nil {
		return nil, ErrNoReaderProvided
	}

	if writer == nil {
		return nil, ErrNoWriterProvided
	}

	if processor == nil {
		return nil, ErrNoProcessorProvided
	}

	if sleeper == nil {
		return nil, ErrNoSleeperProvided
	}

	if reporter == nil {
		return nil, ErrNoReporterProvided
	}

	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaultDrainTimeout
	}

	return &Pipeline{
		config:       config,
		processor:    processor,
		reader:       reader,
		writer:       writer,
		deadLetterer: deadLetterer,
		sleeper:      sleeper,
		reporter:     reporter,
		log: log.WithFields(logger.Fields{
			logger.FieldPackage: "pipeline",
			"pipeline_id":       uuid.New().String(),
		}),
	}, nil
}

// Run starts the reading pipeline,
// that ensures that each reading is processed at least once.
//
// A reading is fetched from the subscription and converted.
// Converted readings are written to the destination topic,
// invalid readings are dropped and malformed ones are dead-lettered.
// The source message is committed only after that.
func (p *Pipeline) Run(ctx context.Context) error {
	log := p.log.WithField(logger.FieldFunction, "Pipeline.Run")
	log.Info("Starting the pipeline.")

	failedFetches := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("Pipeline has been stopped.")
			return nil
		default:
			// Nop
		}

		log.Trace("Fetching the next message from the reader.")
		m, err := p.fetch(ctx)
		if err != nil {
			if p.drained(ctx, err) {
				log.Info("Subscription has been drained. Stopping pipeline.")
				return nil
			}

			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				continue
			}

			log.Error(err, "Failed to fetch a message from the kafka reader")
			p.reporter.PipelineFailed(failureFetch)

			failedFetches += 1
			if failedFetches >= retryFetchCount {
				log.Errorf(err,
					"Giving up fetching the message. Stopping pipeline because of %d consecutive failed fetches",
					retryFetchCount)
				return err
			}

			p.sleeper.Sleep()
			continue
		}
		failedFetches = 0

		if err := p.handle(ctx, log, m); err != nil {
			if errors.Is(err, errStopped) {
				continue
			}
			return err
		}

		p.sleeper.Reset()
	}
}

// fetch waits for the next message.
// Batch pipelines wait no longer than the drain timeout.
func (p *Pipeline) fetch(ctx context.Context) (kafka.Message, error) {
	if p.config.Streaming {
		return p.reader.FetchMessage(ctx)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.DrainTimeout)
	defer cancel()

	return p.reader.FetchMessage(fetchCtx)
}

// drained
func (p *Pipeline) drained(ctx context.Context, err error) bool {
	return !p.config.Streaming &&
		ctx.Err() == nil &&
		errors.Is(err, context.DeadlineExceeded)
}

// handle processes a single message and commits it.
func (p *Pipeline) handle(ctx context.Context, log logger.Log, m kafka.Message) error {
	log = log.WithFields(logger.Fields{
		"topic":     m.Topic,
		"partition": m.Partition,
		"offset":    m.Offset,
	})

	res, cause := p.processor.Process(ctx, m.Value)
	switch {
	case cause == nil && res.Outcome == reading.Published:
		out := kafka.Message{
			Key:   m.Key,
			Value: res.Payload,
		}
		if err := p.retry(ctx, log, writePolicy, func() error {
			return p.writer.WriteMessages(ctx, out)
		}); err != nil {
			return err
		}

	case cause == nil:
		log.WithField("outcome", res.Outcome.String()).Debug("Reading has been dropped.")

	case ctx.Err() != nil:
		return errStopped

	case reading.IsMalformedInput(cause) && p.deadLetterer != nil:
		log.Warn(cause, "Sending the malformed message to the dead-letter topic.")
		if err := p.retry(ctx, log, deadLetterPolicy, func() error {
			return p.deadLetterer.DeadLetter(ctx, m, cause)
		}); err != nil {
			return err
		}
		p.reporter.RecordDeadLettered()

	default:
		log.Error(cause, "Failed to process the message. Stopping pipeline.")
		p.reporter.PipelineFailed(failureProcess)
		return cause
	}

	return p.retry(ctx, log, commitPolicy, func() error {
		return p.reader.CommitMessages(ctx, m)
	})
}

// retry runs the step until it succeeds or runs out of attempts,
// sleeping between the attempts.
func (p *Pipeline) retry(ctx context.Context, log logger.Log, policy retryPolicy, step func() error) error {
	attempt := 0
	for {
		err := step()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return errStopped
		}

		log.Error(err, policy.failedMsg)
		p.reporter.PipelineFailed(policy.failure)

		attempt += 1
		if attempt >= policy.attempts {
			log.Errorf(err, policy.giveUpMsg, policy.attempts)
			return err
		}

		p.sleeper.Sleep()
	}
}
