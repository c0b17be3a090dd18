package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/weak-head/smartmeter-pipe/internal/logger"
	"github.com/weak-head/smartmeter-pipe/internal/metrics"
	"github.com/weak-head/smartmeter-pipe/internal/storage"
	"github.com/weak-head/smartmeter-pipe/internal/stream"
)

const (
	// EnvPrefix prefixes the environment variables that back the flags,
	// --job-name is read from SMARTMETER_JOB_NAME.
	EnvPrefix = "SMARTMETER"

	// MaxWorkers defines the maximum number of pipelines that
	// could be started in a single instance of the service.
	MaxWorkers = 10000
)

var (
	// ErrNoBrokers happens when no broker is configured.
	ErrNoBrokers = errors.New("no brokers configured")

	// ErrNoSubscription happens when the input subscription is not configured.
	ErrNoSubscription = errors.New("no input subscription configured")

	// ErrNoOutputTopic happens when the output topic is not configured.
	ErrNoOutputTopic = errors.New("no output topic configured")

	// ErrInvalidWorkers happens when the number of workers is out of range.
	ErrInvalidWorkers = fmt.Errorf("workers must be within 1..%d", MaxWorkers)

	// ErrNoDeadLetterTopic happens when the dead-letter topic is required but not configured.
	ErrNoDeadLetterTopic = errors.New("no dead-letter topic configured")

	// ErrNoStorageEndpoint happens when the temp location is set without a storage endpoint.
	ErrNoStorageEndpoint = errors.New("temp location requires a storage endpoint")
)

// Job identifies the deployment of the job.
type Job struct {
	Project string
	Region  string
	Name    string

	// Streaming jobs run until stopped, batch jobs stop once the subscription is drained.
	Streaming    bool
	DrainTimeout time.Duration
	Workers      int
}

// Identity is the execution identity of the job.
// It authenticates the job against the staging storage.
type Identity struct {
	ServiceAccount string
	Secret         string
}

// Config is the complete configuration of the service.
type Config struct {
	Job      Job
	Identity Identity

	Brokers           []string
	InputSubscription string
	OutputTopic       string
	DeadLetterTopic   string
	CreateTopics      bool
	Balancer          string

	TempLocation    string
	StorageEndpoint string
	StorageUseSSL   bool

	Backoff        time.Duration
	BackoffCeiling time.Duration

	Log     logger.Config
	Metrics metrics.Config
}

// Default returns the configuration with the defaults applied.
func Default() Config {
	return Config{
		Job: Job{
			Name:         "smartmeter-preprocess",
			Streaming:    true,
			DrainTimeout: 10 * time.Second,
			Workers:      1,
		},
		Brokers:        []string{"localhost:9092"},
		Balancer:       "hash",
		Backoff:        100 * time.Millisecond,
		BackoffCeiling: 10 * time.Second,
		Log: logger.Config{
			Level:  "info",
			Format: logger.FormatJSON,
		},
		Metrics: metrics.Config{
			Addr: ":9090",
		},
	}
}

// BindFlags registers a flag for every configuration value.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Job.Project, "project", c.Job.Project, "execution environment the job runs in")
	fs.StringVar(&c.Job.Region, "region", c.Job.Region, "region of the job and the staging storage")
	fs.StringVar(&c.Job.Name, "job-name", c.Job.Name, "name of the job")
	fs.BoolVar(&c.Job.Streaming, "streaming", c.Job.Streaming, "keep waiting for new readings instead of stopping once drained")
	fs.DurationVar(&c.Job.DrainTimeout, "drain-timeout", c.Job.DrainTimeout, "idle time after which a batch job is considered drained")
	fs.IntVar(&c.Job.Workers, "workers", c.Job.Workers, "number of concurrent pipelines")

	fs.StringVar(&c.Identity.ServiceAccount, "service-account", c.Identity.ServiceAccount, "execution identity used for the staging storage")
	fs.StringVar(&c.Identity.Secret, "service-account-secret", c.Identity.Secret, "secret of the execution identity")

	fs.StringSliceVar(&c.Brokers, "brokers", c.Brokers, "kafka brokers")
	fs.StringVar(&c.InputSubscription, "input-subscription", c.InputSubscription, "source subscription in the topic@group form")
	fs.StringVar(&c.OutputTopic, "output-topic", c.OutputTopic, "destination topic of the converted readings")
	fs.StringVar(&c.DeadLetterTopic, "deadletter-topic", c.DeadLetterTopic, "topic of the malformed readings, malformed readings stop the job if empty")
	fs.BoolVar(&c.CreateTopics, "create-topics", c.CreateTopics, "create the topics if they do not exist")
	fs.StringVar(&c.Balancer, "balancer", c.Balancer, "partition balancer of the writers: roundrobin, leastbytes, hash, crc32, murmur2")

	fs.StringVar(&c.TempLocation, "temp-location", c.TempLocation, "staging location for archived payloads, s3://bucket/prefix")
	fs.StringVar(&c.StorageEndpoint, "storage-endpoint", c.StorageEndpoint, "endpoint of the staging storage")
	fs.BoolVar(&c.StorageUseSSL, "storage-ssl", c.StorageUseSSL, "connect to the staging storage over TLS")

	fs.DurationVar(&c.Backoff, "backoff", c.Backoff, "initial retry backoff")
	fs.DurationVar(&c.BackoffCeiling, "backoff-ceiling", c.BackoffCeiling, "maximum retry backoff")

	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: json or text")
	fs.StringVar(&c.Metrics.Addr, "metrics-addr", c.Metrics.Addr, "address of the metrics endpoint")
}

// LoadEnv sets every flag that was not given on the command line
// from its environment variable.
func LoadEnv(fs *pflag.FlagSet, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}

		value, ok := lookup(EnvName(f.Name))
		if !ok {
			return
		}

		if setErr := fs.Set(f.Name, value); setErr != nil {
			err = fmt.Errorf("invalid %s: %w", EnvName(f.Name), setErr)
		}
	})
	return err
}

// EnvName is the environment variable that backs the flag.
func EnvName(flag string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	if c.InputSubscription == "" {
		return ErrNoSubscription
	}

	if _, _, err := c.Subscription(); err != nil {
		return err
	}

	if c.OutputTopic == "" {
		return ErrNoOutputTopic
	}

	if c.Job.Workers < 1 || c.Job.Workers > MaxWorkers {
		return ErrInvalidWorkers
	}

	return c.validateStorage()
}

// ValidateReplay checks that the configuration is complete
// for replaying the dead-letter topic.
func (c *Config) ValidateReplay() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	if c.DeadLetterTopic == "" {
		return ErrNoDeadLetterTopic
	}

	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	if c.TempLocation == "" {
		return nil
	}

	if _, err := storage.ParseLocation(c.TempLocation); err != nil {
		return err
	}

	if c.StorageEndpoint == "" {
		return ErrNoStorageEndpoint
	}

	return nil
}

// Subscription returns the source topic and consumer group.
// The job name is the group when the subscription names none.
func (c *Config) Subscription() (topic, group string, err error) {
	return stream.ParseSubscription(c.InputSubscription, c.Job.Name)
}

// Reader is the configuration of the source subscription reader.
func (c *Config) Reader() (stream.ReaderConfig, error) {
	topic, group, err := c.Subscription()
	if err != nil {
		return stream.ReaderConfig{}, err
	}

	return stream.ReaderConfig{
		TopicConfig: c.topic(topic),
		Brokers:     c.Brokers,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
	}, nil
}

// ReplayReader is the configuration of the dead-letter topic reader.
// The replay runs in its own consumer group, named after the job.
func (c *Config) ReplayReader() stream.ReaderConfig {
	return stream.ReaderConfig{
		TopicConfig: c.topic(c.DeadLetterTopic),
		Brokers:     c.Brokers,
		GroupID:     c.Job.Name + "-replay",
		MinBytes:    1,
		MaxBytes:    10e6,
	}
}

// ReplayWriter is the configuration of the writer that republishes dead letters.
// It is not bound to a topic, every replayed message names its source topic.
func (c *Config) ReplayWriter() stream.WriterConfig {
	return stream.WriterConfig{
		Brokers:  c.Brokers,
		Balancer: c.Balancer,
	}
}

// Writer is the configuration of the destination topic writer.
func (c *Config) Writer() stream.WriterConfig {
	return c.writer(c.OutputTopic)
}

// DeadLetterWriter is the configuration of the dead-letter topic writer.
func (c *Config) DeadLetterWriter() stream.WriterConfig {
	return c.writer(c.DeadLetterTopic)
}

// Storage is the configuration of the staging storage.
// The staging storage is optional, ok is false if it is not configured.
func (c *Config) Storage() (conf storage.StorageConfig, location storage.Location, ok bool, err error) {
	if c.TempLocation == "" {
		return storage.StorageConfig{}, storage.Location{}, false, nil
	}

	location, err = storage.ParseLocation(c.TempLocation)
	if err != nil {
		return storage.StorageConfig{}, storage.Location{}, false, err
	}

	return storage.StorageConfig{
		Endpoint:               c.StorageEndpoint,
		UseSSL:                 c.StorageUseSSL,
		AccessKey:              c.Identity.ServiceAccount,
		SecretKey:              c.Identity.Secret,
		Region:                 c.Job.Region,
		CreateBucketIfNotExist: true,
	}, location, true, nil
}

func (c *Config) writer(topic string) stream.WriterConfig {
	return stream.WriterConfig{
		TopicConfig: c.topic(topic),
		Brokers:     c.Brokers,
		Balancer:    c.Balancer,
	}
}

func (c *Config) topic(topic string) stream.TopicConfig {
	return stream.TopicConfig{
		Topic:             topic,
		CreateIfNotExist:  c.CreateTopics,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}
}
