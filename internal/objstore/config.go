package objstore

// Provider identifies the object-storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the connection settings shared by every session's store.
// Credentials are deliberately absent: they arrive per session through
// Connector.Connect.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint string) *Config {
	return &Config{
		Provider: ProviderMinIO,
		Endpoint: endpoint,
		UseSSL:   false,
	}
}
