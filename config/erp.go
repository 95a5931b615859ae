package config

import (
	"sync"

	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/errkind"
)

// ERPConfiguration describes how to reach one ERP for one client.
// Loaded once per run and treated as read-only thereafter.
type ERPConfiguration struct {
	AccessType       string `json:"accessType" errorTxt:"access type (api|database)" mandatory:"yes"`
	BaseUrl          string `json:"baseUrl"`          // api access only.
	ConnectionString string `json:"connectionString"` // database access only.
	Schema           string `json:"schema"`
	BatchSize        int    `json:"batchSize"`
	PageSize         int    `json:"pageSize"`
	TimeoutSeconds   int    `json:"timeoutSeconds"`
	MaxRetries       int    `json:"maxRetries"`
	SupportsCDC      bool   `json:"supportsCDC"`
	WatermarkColumn  string `json:"watermarkColumn"`
	// Resilience thresholds.
	CircuitBreakerThreshold int  `json:"circuitBreakerThreshold"`
	BreakSeconds            int  `json:"breakSeconds"`
	BulkheadLimit           int  `json:"bulkheadLimit"`
	BulkheadFailFast        bool `json:"bulkheadFailFast"`
	// Upload target.
	BucketName   string `json:"bucketName" errorTxt:"bucket name" mandatory:"yes"`
	BucketRegion string `json:"bucketRegion" errorTxt:"bucket region" mandatory:"yes"`
	BucketPrefix string `json:"bucketPrefix"`
	// API rate limiting (requests per second, 0 = unlimited).
	RateLimitPerSecond float64 `json:"rateLimitPerSecond"`
}

// ApplyDefaults fills optional numeric fields that the stored document omitted.
func (c *ERPConfiguration) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = constants.DefaultBatchSize
	}
	if c.PageSize <= 0 {
		c.PageSize = constants.DefaultPageSize
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = constants.DefaultTimeoutSeconds
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = constants.DefaultMaxRetries
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = constants.DefaultBreakerThreshold
	}
	if c.BreakSeconds <= 0 {
		c.BreakSeconds = constants.DefaultBreakSeconds
	}
	if c.BulkheadLimit <= 0 {
		c.BulkheadLimit = constants.DefaultBulkheadLimit
	}
}

// Validate asserts the document is complete for its access type.
func (c *ERPConfiguration) Validate() error {
	switch c.AccessType {
	case constants.AccessTypeApi:
		if c.BaseUrl == "" {
			return errkind.New(errkind.KindConfiguration, "api access requires baseUrl")
		}
	case constants.AccessTypeDatabase:
		if c.ConnectionString == "" {
			return errkind.New(errkind.KindConfiguration, "database access requires connectionString")
		}
		if c.Schema == "" {
			return errkind.New(errkind.KindConfiguration, "database access requires schema")
		}
	default:
		return errkind.Newf(errkind.KindConfiguration, "unsupported access type %q", c.AccessType)
	}
	if c.BucketName == "" || c.BucketRegion == "" {
		return errkind.New(errkind.KindConfiguration, "upload target requires bucketName and bucketRegion")
	}
	return nil
}

// Provider is the configuration store contract the orchestrator relies on.
type Provider interface {
	GetConfiguration(erpType string, clientId string) (ERPConfiguration, error)
}

// ErpConfigKey builds the document key for an (erpType, clientId) pair.
func ErpConfigKey(erpType, clientId string) string {
	return erpType + "/" + clientId
}

// FileProvider loads ERP configuration from the local YAML document.
type FileProvider struct {
	file *File
}

// NewFileProvider creates a provider over the default erp-config document.
func NewFileProvider() *FileProvider {
	return &FileProvider{file: NewFile(MustGetHomeDir(), constants.ErpConfigFileName)}
}

// NewFileProviderWithFile creates a provider over an explicit document, used by tests.
func NewFileProviderWithFile(f *File) *FileProvider {
	return &FileProvider{file: f}
}

// GetConfiguration fetches, defaults and validates the document for the pair.
func (p *FileProvider) GetConfiguration(erpType string, clientId string) (ERPConfiguration, error) {
	var cfg ERPConfiguration
	key := ErpConfigKey(erpType, clientId)
	if err := p.file.Get(key, &cfg); err != nil {
		return cfg, errkind.Wrapf(errkind.KindConfiguration, err, "loading ERP configuration for %v", key)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CachingProvider wraps an inner Provider with a process-wide cache.
// Constructed explicitly at startup; decorators compose rather than intercept.
type CachingProvider struct {
	inner Provider
	mu    sync.Mutex
	cache map[string]ERPConfiguration
}

// NewCachingProvider wraps inner with a cache.
func NewCachingProvider(inner Provider) *CachingProvider {
	return &CachingProvider{inner: inner, cache: make(map[string]ERPConfiguration)}
}

// GetConfiguration serves from cache, falling back to the inner provider.
func (p *CachingProvider) GetConfiguration(erpType string, clientId string) (ERPConfiguration, error) {
	key := ErpConfigKey(erpType, clientId)
	p.mu.Lock()
	cfg, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return cfg, nil
	}
	cfg, err := p.inner.GetConfiguration(erpType, clientId)
	if err != nil {
		return cfg, err
	}
	p.mu.Lock()
	p.cache[key] = cfg
	p.mu.Unlock()
	return cfg, nil
}
