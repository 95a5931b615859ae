package config

import (
	"os"
	"path"
	"testing"

	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/errkind"
)

func tempConfigFile(t *testing.T) *File {
	t.Helper()
	dir, err := os.MkdirTemp("", "siphon-config-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return NewFile(dir, "erp-config.yaml")
}

func TestFileProviderGetConfiguration(t *testing.T) {
	f := tempConfigFile(t)
	p := NewFileProviderWithFile(f)
	// Test 1, missing document is a configuration error.
	_, err := p.GetConfiguration("dynamics", "client1")
	if errkind.KindOf(err) != errkind.KindConfiguration {
		t.Fatalf("expected configuration error; got %v", err)
	}
	// Test 2, a stored document round-trips with defaults applied.
	stored := ERPConfiguration{
		AccessType:       constants.AccessTypeDatabase,
		ConnectionString: "sqlserver://u:p@host/instance",
		Schema:           "dbo",
		SupportsCDC:      true,
		WatermarkColumn:  "modified_at",
		BucketName:       "extracts",
		BucketRegion:     "eu-west-1",
	}
	if err := f.Set(ErpConfigKey("dynamics", "client1"), stored); err != nil {
		t.Fatal(err)
	}
	got, err := p.GetConfiguration("dynamics", "client1")
	if err != nil {
		t.Fatal(err)
	}
	if got.BatchSize != constants.DefaultBatchSize {
		t.Fatalf("expected default batch size %v; got %v", constants.DefaultBatchSize, got.BatchSize)
	}
	if got.CircuitBreakerThreshold != constants.DefaultBreakerThreshold {
		t.Fatalf("expected default breaker threshold; got %v", got.CircuitBreakerThreshold)
	}
	if !got.SupportsCDC || got.WatermarkColumn != "modified_at" {
		t.Fatal("expected CDC fields to round-trip")
	}
	// Test 3, invalid access type is rejected.
	bad := stored
	bad.AccessType = "carrier-pigeon"
	if err := f.Set(ErpConfigKey("dynamics", "client2"), bad); err != nil {
		t.Fatal(err)
	}
	_, err = p.GetConfiguration("dynamics", "client2")
	if errkind.KindOf(err) != errkind.KindConfiguration {
		t.Fatalf("expected configuration error for bad access type; got %v", err)
	}
}

func TestCachingProvider(t *testing.T) {
	f := tempConfigFile(t)
	cfg := ERPConfiguration{
		AccessType:   constants.AccessTypeApi,
		BaseUrl:      "https://erp.example.com/api",
		BucketName:   "extracts",
		BucketRegion: "eu-west-1",
	}
	if err := f.Set(ErpConfigKey("netsuite", "client1"), cfg); err != nil {
		t.Fatal(err)
	}
	p := NewCachingProvider(NewFileProviderWithFile(f))
	first, err := p.GetConfiguration("netsuite", "client1")
	if err != nil {
		t.Fatal(err)
	}
	// Remove the underlying file; the cached copy must still be served.
	if err := os.Remove(path.Join(path.Dir(f.FullPath), "erp-config.yaml")); err != nil {
		t.Fatal(err)
	}
	second, err := p.GetConfiguration("netsuite", "client1")
	if err != nil {
		t.Fatal("expected cached configuration; got error: ", err)
	}
	if first.BaseUrl != second.BaseUrl {
		t.Fatal("expected cached configuration to match the first load")
	}
}

func TestEncryptedFileRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "siphon-encr-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	f := NewEncryptedFile(dir, "secrets.yaml")
	plain := []byte("apiKey: super-secret")
	if err := f.Set(plain); err != nil {
		t.Fatal(err)
	}
	// Test 1, the on-disk bytes are not the plaintext.
	onDisk, err := os.ReadFile(f.FullPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) == string(plain) {
		t.Fatal("expected encrypted bytes on disk")
	}
	// Test 2, Get returns the original document.
	got, err := f.Get()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(plain) {
		t.Fatalf("expected %q; got %q", plain, got)
	}
}
