package stream

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	kafka "github.com/segmentio/kafka-go"
)

var (
	// ErrNoBrokers happens when no broker address is configured.
	ErrNoBrokers = errors.New("no brokers provided")

	// ErrInvalidSubscription happens when a subscription can not be parsed.
	ErrInvalidSubscription = errors.New("invalid subscription")
)

// ParseSubscription splits a subscription in the topic@group form.
// When the group is omitted the default group is used.
func ParseSubscription(subscription, defaultGroup string) (topic, group string, err error) {
	topic, group = subscription, defaultGroup
	if i := strings.LastIndex(subscription, "@"); i >= 0 {
		topic, group = subscription[:i], subscription[i+1:]
	}

	if topic == "" || group == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSubscription, subscription)
	}
	return topic, group, nil
}

// NewReader creates a consumer group reader.
// Messages are committed explicitly, so the reader never commits on fetch.
func NewReader(config ReaderConfig) (*kafka.Reader, error) {
	if len(config.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	if err := createTopic(config.Brokers[0], config.TopicConfig); err != nil {
		return nil, err
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		GroupID:        config.GroupID,
		Topic:          config.Topic,
		MinBytes:       config.MinBytes,
		MaxBytes:       config.MaxBytes,
		CommitInterval: config.CommitInterval,
	}), nil
}

// NewWriter
func NewWriter(config WriterConfig) (*kafka.Writer, error) {
	if len(config.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	if err := createTopic(config.Brokers[0], config.TopicConfig); err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     createBalancer(config.Balancer),
		BatchTimeout: config.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}, nil
}

// createTopic
func createTopic(addr string, config TopicConfig) error {
	if !config.CreateIfNotExist {
		return nil
	}

	// Connect to some node
	conn, err := kafka.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Topics can be created on the controller only
	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	controllerConn, err := kafka.Dial(
		"tcp",
		net.JoinHostPort(
			controller.Host,
			strconv.Itoa(controller.Port),
		),
	)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	return controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             config.Topic,
		NumPartitions:     config.NumPartitions,
		ReplicationFactor: config.ReplicationFactor,
	})
}

// createBalancer
func createBalancer(balancer string) kafka.Balancer {
	switch balancer {

	// Classical round robin
	case "roundrobin":
		return &kafka.RoundRobin{}

	// Partition that received the least bytes
	case "leastbytes":
		return &kafka.LeastBytes{}

	// FNV-1a
	case "hash":
		return &kafka.Hash{}

	// CRC32 hash
	case "crc32":
		return &kafka.CRC32Balancer{}

	// Murmur2 hash
	case "murmur2":
		return &kafka.Murmur2Balancer{}

	// Readings of the same meter keep their order
	default:
		return &kafka.Hash{}
	}
}
