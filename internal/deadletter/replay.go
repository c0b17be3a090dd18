package deadletter

import (
	"context"
	"errors"
	"time"

	proto "github.com/gogo/protobuf/proto"
	kafka "github.com/segmentio/kafka-go"

	api "github.com/weak-head/smartmeter-pipe/api/v1"
	"github.com/weak-head/smartmeter-pipe/internal/logger"
)

const (
	// defaultDrainTimeout is the idle time after which
	// the dead-letter topic is considered drained.
	defaultDrainTimeout = 10 * time.Second
)

var (
	// ErrNoReaderProvided happens when reader is not provided.
	ErrNoReaderProvided = errors.New("no reader provided")

	// ErrNoSourceTopic happens when a dead letter does not name its source topic.
	ErrNoSourceTopic = errors.New("dead letter has no source topic")
)

// Reader is a transactional message reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ReplayConfig
type ReplayConfig struct {
	DrainTimeout time.Duration
}

// replayer publishes dead-lettered payloads back to the topics they were read from.
type replayer struct {
	config ReplayConfig

	reader  Reader
	writer  Writer
	storage Storage

	log logger.Log
}

// NewReplayer creates a new dead letter replayer.
// Storage is optional, without it only inline payloads can be replayed.
// The writer must not be bound to a topic, every message names its own.
func NewReplayer(
	config ReplayConfig,
	reader Reader,
	writer Writer,
	storage Storage,
	log logger.Log,
) (*replayer, error) {
	if reader == nil {
		return nil, ErrNoReaderProvided
	}

	if writer == nil {
		return nil, ErrNoWriterProvided
	}

	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaultDrainTimeout
	}

	return &replayer{
		config:  config,
		reader:  reader,
		writer:  writer,
		storage: storage,
		log:     log.WithField(logger.FieldPackage, "deadletter"),
	}, nil
}

// Replay republishes dead letters until the topic is drained or the context is done.
// A dead letter is committed only after its payload has been republished.
// Replay returns the number of replayed records.
func (r *replayer) Replay(ctx context.Context) (int, error) {
	log := r.log.WithField(logger.FieldFunction, "replayer.Replay")
	log.Info("Starting the replay.")

	replayed := 0
	for {
		m, err := r.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Replay has been stopped.")
				return replayed, nil
			}

			if errors.Is(err, context.DeadlineExceeded) {
				log.Infof("Dead-letter topic has been drained, %d records replayed.", replayed)
				return replayed, nil
			}

			log.Error(err, "Failed to fetch a dead letter.")
			return replayed, err
		}

		if err := r.replay(ctx, log, m); err != nil {
			if ctx.Err() != nil {
				log.Info("Replay has been stopped.")
				return replayed, nil
			}
			return replayed, err
		}
		replayed++
	}
}

func (r *replayer) fetch(ctx context.Context) (kafka.Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.config.DrainTimeout)
	defer cancel()

	return r.reader.FetchMessage(fetchCtx)
}

func (r *replayer) replay(ctx context.Context, log logger.Log, m kafka.Message) error {
	log = log.WithFields(logger.Fields{
		"partition": m.Partition,
		"offset":    m.Offset,
	})

	letter := &api.DeadLetter{}
	if err := proto.Unmarshal(m.Value, letter); err != nil {
		log.Error(err, "Failed to unmarshal the dead letter.")
		return err
	}

	log = log.WithField("record", letter.GetRecordId())
	if letter.SourceTopic == "" {
		log.Error(ErrNoSourceTopic, "Failed to replay the dead letter.")
		return ErrNoSourceTopic
	}

	payload, err := Payload(ctx, r.storage, letter)
	if err != nil {
		log.Error(err, "Failed to retrieve the record payload.")
		return err
	}

	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Topic: letter.SourceTopic,
		Key:   letter.SourceKey,
		Value: payload,
	}); err != nil {
		log.Error(err, "Failed to republish the record.")
		return err
	}

	if err := r.reader.CommitMessages(ctx, m); err != nil {
		log.Error(err, "Failed to commit the dead letter.")
		return err
	}

	log.Debug("Record has been replayed.")
	return nil
}
