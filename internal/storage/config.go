package storage

// StorageConfig
type StorageConfig struct {
	Endpoint  string
	UseSSL    bool
	AccessKey string
	SecretKey string

	Region                 string
	CreateBucketIfNotExist bool
}

// Location is a bucket and an object prefix within it,
// written as s3://bucket/prefix.
type Location struct {
	Bucket string
	Prefix string
}
