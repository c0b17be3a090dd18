package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/weak-head/smartmeter-pipe/internal/logger"
)

var (
	// ErrInvalidLocation happens when a storage location can not be parsed.
	ErrInvalidLocation = errors.New("invalid storage location")
)

// ParseLocation parses a location in the s3://bucket/prefix form.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	switch u.Scheme {
	case "s3", "gs", "minio":
	default:
		return Location{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocation, u.Scheme)
	}

	if u.Host == "" {
		return Location{}, fmt.Errorf("%w: no bucket in %q", ErrInvalidLocation, raw)
	}

	return Location{
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// ObjectName joins the location prefix with the object path.
func (l Location) ObjectName(elem ...string) string {
	return path.Join(append([]string{l.Prefix}, elem...)...)
}

func (l Location) String() string {
	if l.Prefix == "" {
		return "s3://" + l.Bucket
	}
	return "s3://" + l.Bucket + "/" + l.Prefix
}

// minioStorage is an S3 compatible object storage.
type minioStorage struct {
	config StorageConfig
	client *minio.Client

	mu      sync.Mutex
	buckets map[string]bool

	log logger.Log
}

// NewMinioStorage
func NewMinioStorage(conf StorageConfig, log logger.Log) (*minioStorage, error) {
	l := log.WithFields(logger.Fields{
		logger.FieldPackage:  "storage",
		logger.FieldFunction: "NewMinioStorage",
	})

	minioClient, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
		Region: conf.Region,
	})
	if err != nil {
		l.Error(err, "Failed to create a new minio client.")
		return nil, err
	}

	l.Info("Created a new minio storage client.")

	return &minioStorage{
		config:  conf,
		client:  minioClient,
		buckets: make(map[string]bool),
		log:     log.WithField(logger.FieldPackage, "storage"),
	}, nil
}

// Store uploads the object, creating the bucket first if configured to.
func (m *minioStorage) Store(
	ctx context.Context,
	bucket string,
	objectName string,
	objectBytes []byte,
	contentType string,
) error {
	log := m.log.WithFields(logger.Fields{
		logger.FieldFunction: "minioStorage.Store",
		"bucket":             bucket,
		"objectName":         objectName,
	})

	if m.config.CreateBucketIfNotExist {
		if err := m.ensureBucket(ctx, bucket); err != nil {
			log.Error(err, "Failed to create a new bucket.")
			return err
		}
	}

	r := bytes.NewReader(objectBytes)
	_, err := m.client.PutObject(ctx, bucket, objectName, r, r.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		log.Error(err, "Failed to store the object.")
		return err
	}

	log.Debug("Uploaded a new object to the storage.")
	return nil
}

// Retrieve downloads the whole object.
func (m *minioStorage) Retrieve(
	ctx context.Context,
	bucket string,
	objectName string,
) ([]byte, error) {
	log := m.log.WithFields(logger.Fields{
		logger.FieldFunction: "minioStorage.Retrieve",
		"bucket":             bucket,
		"objectName":         objectName,
	})

	stream, err := m.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		log.Error(err, "Failed to retrieve the object stream from the storage.")
		return nil, err
	}
	defer stream.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(stream); err != nil {
		log.Error(err, "Failed to read the object from the storage.")
		return nil, err
	}

	log.Debug("Retrieved the object from the storage.")
	return buf.Bytes(), nil
}

// ensureBucket creates the bucket once per storage instance.
func (m *minioStorage) ensureBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.buckets[bucket] {
		return nil
	}

	log := m.log.WithFields(logger.Fields{
		logger.FieldFunction: "minioStorage.ensureBucket",
		"bucket":             bucket,
	})

	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if !exists {
		if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.config.Region}); err != nil {
			return err
		}
		log.Info("A new bucket has been created.")
	} else {
		log.Trace("Bucket already exist.")
	}

	m.buckets[bucket] = true
	return nil
}
