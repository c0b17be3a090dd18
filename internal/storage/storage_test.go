package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weak-head/smartmeter-pipe/internal/logger"
)

func TestParseLocation(t *testing.T) {
	for raw, want := range map[string]Location{
		"s3://readings-bucket/temp":         {Bucket: "readings-bucket", Prefix: "temp"},
		"gs://readings-bucket/temp/staging/": {Bucket: "readings-bucket", Prefix: "temp/staging"},
		"minio://readings-bucket":           {Bucket: "readings-bucket"},
	} {
		got, err := ParseLocation(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	for _, raw := range []string{
		"readings-bucket/temp",
		"http://readings-bucket/temp",
		"s3:///temp",
		"s3://%zz",
	} {
		_, err := ParseLocation(raw)
		require.True(t, errors.Is(err, ErrInvalidLocation), raw)
	}
}

func TestLocationObjectName(t *testing.T) {
	l := Location{Bucket: "b", Prefix: "temp"}
	require.Equal(t, "temp/deadletter/job/id.bin", l.ObjectName("deadletter", "job", "id.bin"))
	require.Equal(t, "s3://b/temp", l.String())

	l = Location{Bucket: "b"}
	require.Equal(t, "deadletter/id.bin", l.ObjectName("deadletter", "id.bin"))
	require.Equal(t, "s3://b", l.String())
}

func TestNewMinioStorage(t *testing.T) {
	log, hook := logger.NewNullLogger()

	s, err := NewMinioStorage(StorageConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-central1",
	}, log)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "Created a new minio storage client.", hook.LastEntry().Message)

	s, err = NewMinioStorage(StorageConfig{Endpoint: "http://localhost:9000"}, log)
	require.Error(t, err)
	require.Nil(t, s)
	require.Equal(t, "Failed to create a new minio client.", hook.LastEntry().Message)
}
