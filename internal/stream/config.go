package stream

import "time"

// TopicConfig
type TopicConfig struct {
	Topic             string
	CreateIfNotExist  bool
	NumPartitions     int
	ReplicationFactor int
}

// ReaderConfig describes a subscription: a consumer group reading a topic.
type ReaderConfig struct {
	TopicConfig

	Brokers        []string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	CommitInterval time.Duration
}

// WriterConfig
type WriterConfig struct {
	TopicConfig

	Brokers      []string
	Balancer     string
	BatchTimeout time.Duration
}
