package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	proto "github.com/gogo/protobuf/proto"
	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	api "github.com/weak-head/smartmeter-pipe/api/v1"
	"github.com/weak-head/smartmeter-pipe/internal/logger"
	"github.com/weak-head/smartmeter-pipe/internal/storage"
)

const (
	contentTypeBLOB = "application/octet-stream"

	// headerReason carries the failure reason next to the envelope.
	headerReason = "deadletter-reason"
)

var (
	// ErrNoWriterProvided happens when writer is not provided.
	ErrNoWriterProvided = errors.New("no writer provided")

	// ErrNoBucketProvided happens when storage is provided without a staging bucket.
	ErrNoBucketProvided = errors.New("no staging bucket provided")

	// ErrNoStorageProvided happens when an archived payload is requested without storage.
	ErrNoStorageProvided = errors.New("no storage provided")

	// recordNamespace derives stable record ids from the source position,
	// so a redelivered record is archived under the same name.
	recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("smartmeter-pipe/deadletter"))
)

// Config
type Config struct {
	JobName string

	// Staging is where the raw payloads are archived.
	Staging storage.Location
}

// Writer is an atomic message writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Storage
type Storage interface {
	Store(ctx context.Context, bucket string, objectName string, objectBytes []byte, contentType string) error
	Retrieve(ctx context.Context, bucket string, objectName string) ([]byte, error)
}

// deadLetterer publishes records that could not be decoded to the dead-letter topic.
// With storage the raw payload is archived and the envelope references it,
// without storage the payload travels inline.
type deadLetterer struct {
	config Config

	writer  Writer
	storage Storage

	now func() time.Time
	log logger.Log
}

// NewDeadLetterer creates a new dead-letter publisher. Storage is optional.
func NewDeadLetterer(
	config Config,
	writer Writer,
	storage Storage,
	log logger.Log,
) (*deadLetterer, error) {
	if writer == nil {
		return nil, ErrNoWriterProvided
	}

	if storage != nil && config.Staging.Bucket == "" {
		return nil, ErrNoBucketProvided
	}

	return &deadLetterer{
		config:  config,
		writer:  writer,
		storage: storage,
		now:     time.Now,
		log:     log.WithField(logger.FieldPackage, "deadletter"),
	}, nil
}

// DeadLetter archives the message payload and publishes the envelope.
func (d *deadLetterer) DeadLetter(ctx context.Context, m kafka.Message, cause error) error {
	id := RecordID(m)
	log := d.log.WithFields(logger.Fields{
		logger.FieldFunction: "deadLetterer.DeadLetter",
		"record":             id,
	})

	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}

	letter := &api.DeadLetter{
		RecordId:               id,
		JobName:                d.config.JobName,
		SourceTopic:            m.Topic,
		SourcePartition:        int32(m.Partition),
		SourceOffset:           m.Offset,
		SourceKey:              m.Key,
		Reason:                 reason,
		DeadLetteredAtUnixNano: d.now().UnixNano(),
	}

	if d.storage != nil {
		objectName := d.config.Staging.ObjectName("deadletter", d.config.JobName, id+".bin")
		if err := d.storage.Store(ctx, d.config.Staging.Bucket, objectName, m.Value, contentTypeBLOB); err != nil {
			log.Error(err, "Failed to archive the record payload.")
			return err
		}

		letter.PayloadLocation = &api.Location{
			Kind:       api.Location_MINIO,
			Bucket:     d.config.Staging.Bucket,
			ObjectName: objectName,
		}
	} else {
		letter.Payload = m.Value
		letter.PayloadLocation = &api.Location{Kind: api.Location_INLINE}
	}

	b, err := proto.Marshal(letter)
	if err != nil {
		log.Error(err, "Failed to marshal the dead letter.")
		return err
	}

	if err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(id),
		Value: b,
		Headers: []kafka.Header{
			{Key: headerReason, Value: []byte(reason)},
		},
	}); err != nil {
		log.Error(err, "Failed to publish the dead letter.")
		return err
	}

	log.Info("Record has been dead-lettered.")
	return nil
}

// Payload returns the raw payload of the dead letter,
// downloading it from the storage if it was archived.
func Payload(ctx context.Context, store Storage, letter *api.DeadLetter) ([]byte, error) {
	location := letter.GetPayloadLocation()
	if location.GetKind() == api.Location_INLINE {
		return letter.GetPayload(), nil
	}

	if store == nil {
		return nil, ErrNoStorageProvided
	}

	return store.Retrieve(ctx, location.GetBucket(), location.GetObjectName())
}

// RecordID is the stable id of the message, derived from its position in the source.
func RecordID(m kafka.Message) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset))).String()
}
