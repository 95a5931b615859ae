package actions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/siphon-data/siphon/aws/s3"
	"github.com/siphon-data/siphon/config"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/credentials"
	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/lineage"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/rdbms"
	"github.com/siphon-data/siphon/resilience"
	"github.com/siphon-data/siphon/upload"
	"github.com/siphon-data/siphon/watermark"
)

// fakeConfigProvider serves one canned configuration.
type fakeConfigProvider struct {
	cfg config.ERPConfiguration
	err error
}

func (f *fakeConfigProvider) GetConfiguration(erpType, clientId string) (config.ERPConfiguration, error) {
	if f.err != nil {
		return config.ERPConfiguration{}, f.err
	}
	return f.cfg, nil
}

// fakeCredentialProvider serves one canned credential bundle.
type fakeCredentialProvider struct {
	creds credentials.Credentials
	err   error
}

func (f *fakeCredentialProvider) GetCredentials(erpType, clientId, dataType string) (credentials.Credentials, error) {
	if f.err != nil {
		return credentials.Credentials{}, f.err
	}
	return f.creds, nil
}

// fakeDoer serves canned HTTP responses in order, repeating the last.
type fakeDoer struct {
	responses []*http.Response
	requests  []*http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func invoicePage(n, startId int, token string) string {
	buf := bytes.Buffer{}
	buf.WriteString(`{"items": [`)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, `{"id": "INV-%d", "entity": "C-9", "amount": "10.00", "currency": "USD", "tranDate": "2026-03-01", "isPaid": "N"}`, startId+i)
	}
	buf.WriteString(`]`)
	if token != "" {
		fmt.Fprintf(&buf, `, "nextToken": "%v"`, token)
	}
	buf.WriteString(`}`)
	return buf.String()
}

// fakeObjectStore implements s3.Client in memory.
type fakeObjectStore struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
	puts     int
	moves    int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (f *fakeObjectStore) List(ctx context.Context, key string) ([]string, error) { return nil, nil }

func (f *fakeObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, s3.ErrKeyNotFound
	}
	return data, nil
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	f.puts++
	f.objects[key] = data
	f.metadata[key] = metadata
	return nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) Move(ctx context.Context, src, dst string) error {
	f.moves++
	data, ok := f.objects[src]
	if !ok {
		return s3.ErrKeyNotFound
	}
	f.objects[dst] = data
	f.metadata[dst] = f.metadata[src]
	delete(f.objects, src)
	delete(f.metadata, src)
	return nil
}

func (f *fakeObjectStore) finalKeys() []string {
	keys := make([]string, 0)
	for k := range f.objects {
		if !strings.Contains(k, ".tmp-") {
			keys = append(keys, k)
		}
	}
	return keys
}

type testHarness struct {
	orch  *Orchestrator
	store *fakeObjectStore
	doer  *fakeDoer
	files *lineage.FileStore
}

func apiConfig() config.ERPConfiguration {
	return config.ERPConfiguration{
		AccessType:              constants.AccessTypeApi,
		BaseUrl:                 "https://erp.example.com",
		BatchSize:               1000,
		PageSize:                100,
		TimeoutSeconds:          5,
		MaxRetries:              1,
		CircuitBreakerThreshold: 5,
		BreakSeconds:            30,
		BulkheadLimit:           2,
		BucketName:              "siphon-landing",
		BucketRegion:            "eu-west-1",
		BucketPrefix:            "extracts",
	}
}

func dbConfig() config.ERPConfiguration {
	cfg := apiConfig()
	cfg.AccessType = constants.AccessTypeDatabase
	cfg.BaseUrl = ""
	cfg.ConnectionString = "postgres://svc:pw@erp-db/warehouse"
	cfg.Schema = "dbo"
	return cfg
}

func newHarness(t *testing.T, cfg config.ERPConfiguration) *testHarness {
	t.Helper()
	config.SetHomeDir(t.TempDir())
	log := logger.NewLogger("siphon-test", "error", false)
	files, err := lineage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := newFakeObjectStore()
	doer := &fakeDoer{}
	orch := &Orchestrator{
		Log:            log,
		ConfigProvider: &fakeConfigProvider{cfg: cfg},
		CredentialProvider: &fakeCredentialProvider{creds: credentials.Credentials{
			Kind:   credentials.KindApiKey,
			Values: map[string]string{"apiKey": "secret"},
		}},
		Lineage:    lineage.NewTracker(log, files),
		Watermarks: watermark.NewFileStore(log),
		Registry:   resilience.NewRegistry(),
		Metrics:    resilience.NewCollector(prometheus.NewRegistry()),
		HTTPClient: doer,
		S3Clients:  func(bucket s3.AwsS3Bucket) s3.Client { return store },
		Now:        func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	return &testHarness{orch: orch, store: store, doer: doer, files: files}
}

func invoiceRequest() ExtractionRequest {
	return ExtractionRequest{ErpType: "netsuite", ClientId: "acme", DataType: "invoices"}
}

func requireLineageClosed(t *testing.T, h *testHarness, result *ExtractionResult, status lineage.Status) lineage.Record {
	t.Helper()
	ids, err := h.files.List()
	require.NoError(t, err)
	require.Len(t, ids, 1, "exactly one lineage record per run")
	record, err := h.files.Get(result.LineageId)
	require.NoError(t, err)
	require.Equal(t, status, record.Status)
	require.NotNil(t, record.CompletedAt, "lineage record never left in progress")
	return record
}

func TestRunApiHappyPath(t *testing.T) {
	// Three pages of 100/100/40 accumulate 240 records end to end.
	h := newHarness(t, apiConfig())
	h.doer.responses = []*http.Response{
		jsonResponse(200, invoicePage(100, 0, "t1")),
		jsonResponse(200, invoicePage(100, 100, "t2")),
		jsonResponse(200, invoicePage(40, 200, "")),
	}
	result := h.orch.Run(context.Background(), invoiceRequest())
	require.NoError(t, result.Err)
	require.Equal(t, StateCompleted, result.State)
	require.Equal(t, constants.ExitOk, result.ExitCode())
	require.Equal(t, 240, result.RecordCount)
	require.Equal(t, constants.ExtractModeFull, result.ExtractMode)
	require.Equal(t, 240, result.Upload.RecordCount)
	require.NotEmpty(t, result.Upload.Checksum)

	require.Equal(t, []string{"netsuite/invoices/20260301T120000Z/data.parquet"}, h.store.finalKeys())
	meta := h.store.metadata["netsuite/invoices/20260301T120000Z/data.parquet"]
	require.Equal(t, "acme", meta[upload.MetaClientId])
	require.Equal(t, "240", meta[upload.MetaRecordCount])
	require.Equal(t, result.LineageId, meta[upload.MetaLineageId])

	record := requireLineageClosed(t, h, result, lineage.StatusSucceeded)
	require.Contains(t, record.DestinationDescriptor, "data.parquet")
	require.Len(t, record.Transformations, 4) // extract, transform, validate, upload.
}

func TestRunEmptyDatabaseResultStillUploads(t *testing.T) {
	// No rows matching the unprocessed filter is a valid result.
	h := newHarness(t, dbConfig())
	mock := rdbms.NewMockConnector([]string{"invoice_no", "cust_account", "invoice_amount", "currency_code", "invoice_date"}, nil)
	h.orch.OpenDb = func(log logger.Logger, cs string) (rdbms.Connector, error) { return mock, nil }
	request := ExtractionRequest{ErpType: "dynamics", ClientId: "acme", DataType: "invoices"}

	result := h.orch.Run(context.Background(), request)
	require.NoError(t, result.Err)
	require.Equal(t, StateCompleted, result.State)
	require.Equal(t, 0, result.RecordCount)
	// The default unprocessed filter reaches the query.
	require.Contains(t, mock.Queries[0], "processed_flag = 0")
	// An empty but well-formed object still lands.
	require.Len(t, h.store.finalKeys(), 1)
	require.Equal(t, "0", h.store.metadata[h.store.finalKeys()[0]][upload.MetaRecordCount])
	requireLineageClosed(t, h, result, lineage.StatusSucceeded)
}

func TestRunBreakerOpensAndFailsFastAcrossRuns(t *testing.T) {
	// Five consecutive 500s open the circuit; the next run fails fast with no
	// HTTP call attempted.
	cfg := apiConfig()
	cfg.MaxRetries = 4 // five attempts in the first run.
	h := newHarness(t, cfg)
	h.doer.responses = []*http.Response{jsonResponse(500, `{}`)}

	first := h.orch.Run(context.Background(), invoiceRequest())
	require.Error(t, first.Err)
	require.Equal(t, StateFailed, first.State)
	require.Equal(t, constants.ExitExtractError, first.ExitCode())
	require.Len(t, h.doer.requests, 5)

	second := h.orch.Run(context.Background(), invoiceRequest())
	require.Error(t, second.Err)
	require.ErrorIs(t, second.Err, resilience.ErrCircuitOpen)
	require.Len(t, h.doer.requests, 5, "no HTTP call while the circuit is open")

	statuses := h.orch.Registry.Snapshot()
	require.NotEmpty(t, statuses)
	found := false
	for _, st := range statuses {
		if st.Key == resilience.Key("netsuite", "extract") {
			require.Equal(t, "open", st.State)
			found = true
		}
	}
	require.True(t, found)
}

func TestRunCriticalValidationBlocksUpload(t *testing.T) {
	// Records missing the required amount field yield exit code 4 and no
	// object store call.
	h := newHarness(t, apiConfig())
	h.doer.responses = []*http.Response{jsonResponse(200,
		`{"items": [{"id": "INV-1", "entity": "C-9", "currency": "USD", "tranDate": "2026-03-01"}]}`)}

	result := h.orch.Run(context.Background(), invoiceRequest())
	require.Error(t, result.Err)
	require.Equal(t, StateFailed, result.State)
	require.Equal(t, constants.ExitDataQuality, result.ExitCode())
	require.Equal(t, errkind.KindDataQuality, errkind.KindOf(result.Err))
	require.Contains(t, result.Err.Error(), "amount")
	require.Equal(t, 0, h.store.puts, "uploader must not be called")

	record := requireLineageClosed(t, h, result, lineage.StatusFailed)
	require.Equal(t, "DataQualityError", record.ErrorKind)
}

func TestRunWarningsDoNotBlockUpload(t *testing.T) {
	h := newHarness(t, apiConfig())
	h.doer.responses = []*http.Response{jsonResponse(200,
		`{"items": [{"id": "INV-1", "entity": "C-9", "amount": "-5.00", "currency": "USD", "tranDate": "2026-03-01"}]}`)}

	result := h.orch.Run(context.Background(), invoiceRequest())
	require.NoError(t, result.Err)
	require.Equal(t, StateCompleted, result.State)
	require.Equal(t, 1, result.Warnings)
	require.Len(t, h.store.finalKeys(), 1)
}

func TestRunMissingConfigIsExitOne(t *testing.T) {
	h := newHarness(t, apiConfig())
	h.orch.ConfigProvider = &fakeConfigProvider{err: errkind.New(errkind.KindConfiguration, "no configuration document for netsuite/acme")}
	result := h.orch.Run(context.Background(), invoiceRequest())
	require.Equal(t, constants.ExitConfigError, result.ExitCode())
	requireLineageClosed(t, h, result, lineage.StatusFailed)
}

func TestRunMissingCredentialsIsExitTwo(t *testing.T) {
	h := newHarness(t, apiConfig())
	h.orch.CredentialProvider = &fakeCredentialProvider{err: errkind.New(errkind.KindCredential, "no secret for scope")}
	result := h.orch.Run(context.Background(), invoiceRequest())
	require.Equal(t, constants.ExitCredError, result.ExitCode())
	record := requireLineageClosed(t, h, result, lineage.StatusFailed)
	require.Equal(t, "CredentialError", record.ErrorKind)
}

func TestRunUnpopulatedRequestFailsBeforeLineage(t *testing.T) {
	h := newHarness(t, apiConfig())
	result := h.orch.Run(context.Background(), ExtractionRequest{ErpType: "netsuite"})
	require.Equal(t, constants.ExitConfigError, result.ExitCode())
	require.Empty(t, result.LineageId)
	ids, err := h.files.List()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, apiConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := h.orch.Run(ctx, invoiceRequest())
	require.Error(t, result.Err)
	require.Equal(t, errkind.KindCancelled, errkind.KindOf(result.Err))
	require.Empty(t, h.doer.requests)
	record := requireLineageClosed(t, h, result, lineage.StatusFailed)
	require.Equal(t, "Cancelled", record.ErrorKind)
}

func TestRunIncrementalDatabaseExtractAdvancesWatermark(t *testing.T) {
	cfg := dbConfig()
	cfg.SupportsCDC = true
	cfg.WatermarkColumn = "modified_at"
	h := newHarness(t, cfg)
	request := ExtractionRequest{ErpType: "dynamics", ClientId: "acme", DataType: "invoices"}

	// Seed a prior watermark so the run goes incremental.
	_, err := h.orch.Watermarks.Advance("dynamics", "acme", "invoices", watermark.KindTimestamp, "2026-02-01T00:00:00Z")
	require.NoError(t, err)

	cols := []string{"invoice_no", "cust_account", "invoice_amount", "currency_code", "invoice_date", "modified_at"}
	rows := [][]interface{}{
		{"1001", "C-1", "10.00", "USD", "2026-02-10", "2026-02-10T08:00:00Z"},
		{"1002", "C-2", "20.00", "USD", "2026-02-20", "2026-02-20T09:30:00Z"},
	}
	mock := rdbms.NewMockConnector(cols, rows)
	h.orch.OpenDb = func(log logger.Logger, cs string) (rdbms.Connector, error) { return mock, nil }

	result := h.orch.Run(context.Background(), request)
	require.NoError(t, result.Err)
	require.Equal(t, constants.ExtractModeIncremental, result.ExtractMode)
	// The query binds the prior watermark rather than splicing it in.
	require.Contains(t, mock.Queries[0], `"modified_at" > $1`)
	require.Equal(t, []interface{}{"2026-02-01T00:00:00Z"}, mock.Args[0])
	require.Equal(t, "incremental", h.store.metadata[h.store.finalKeys()[0]][upload.MetaExtractMode])

	entry, found, err := h.orch.Watermarks.Get("dynamics", "acme", "invoices")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2026-02-20T09:30:00Z", entry.Value, "watermark advances to the max observed value")
}

func TestRunIncrementalWithoutPriorWatermarkFallsBackToFull(t *testing.T) {
	cfg := dbConfig()
	cfg.SupportsCDC = true
	cfg.WatermarkColumn = "modified_at"
	h := newHarness(t, cfg)
	mock := rdbms.NewMockConnector([]string{"invoice_no", "cust_account", "invoice_amount", "currency_code", "invoice_date", "modified_at"}, nil)
	h.orch.OpenDb = func(log logger.Logger, cs string) (rdbms.Connector, error) { return mock, nil }

	result := h.orch.Run(context.Background(), ExtractionRequest{ErpType: "dynamics", ClientId: "acme", DataType: "invoices"})
	require.NoError(t, result.Err)
	require.Equal(t, constants.ExtractModeFull, result.ExtractMode)
	require.Contains(t, mock.Queries[0], "processed_flag = 0")
	require.NotContains(t, mock.Queries[0], "$1")
}

func TestRunIdempotentContent(t *testing.T) {
	// Re-running a full extract over identical source data yields identical
	// object content irrespective of the run itself.
	h := newHarness(t, apiConfig())
	h.doer.responses = []*http.Response{jsonResponse(200, invoicePage(5, 0, ""))}
	first := h.orch.Run(context.Background(), invoiceRequest())
	require.NoError(t, first.Err)

	h2 := newHarness(t, apiConfig())
	h2.doer.responses = []*http.Response{jsonResponse(200, invoicePage(5, 0, ""))}
	second := h2.orch.Run(context.Background(), invoiceRequest())
	require.NoError(t, second.Err)

	require.Equal(t, first.Upload.Checksum, second.Upload.Checksum)
}
