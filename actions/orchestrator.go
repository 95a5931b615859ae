// Package actions hosts the top-level behaviours behind the CLI commands:
// the extraction orchestrator and the admin web server.
package actions

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/xo/dburl"
	"golang.org/x/time/rate"

	"github.com/siphon-data/siphon/aws/s3"
	"github.com/siphon-data/siphon/config"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/credentials"
	"github.com/siphon-data/siphon/erp"
	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/helper"
	"github.com/siphon-data/siphon/lineage"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/rdbms"
	"github.com/siphon-data/siphon/resilience"
	"github.com/siphon-data/siphon/stream"
	"github.com/siphon-data/siphon/transform"
	"github.com/siphon-data/siphon/upload"
	"github.com/siphon-data/siphon/validate"
	"github.com/siphon-data/siphon/watermark"
)

// State is the orchestrator's position in the linear run state machine.
type State string

const (
	StateInitiated          State = "Initiated"
	StateConfigResolved     State = "ConfigResolved"
	StateCredentialResolved State = "CredentialResolved"
	StateExtracting         State = "Extracting"
	StateTransforming       State = "Transforming"
	StateValidating         State = "Validating"
	StateUploading          State = "Uploading"
	StateCompleted          State = "Completed"
	StateFailed             State = "Failed"
)

// ExtractionRequest names one extraction run. Immutable once created.
type ExtractionRequest struct {
	ErpType          string `errorTxt:"erp type" mandatory:"yes"`
	ClientId         string `errorTxt:"client id" mandatory:"yes"`
	DataType         string `errorTxt:"data type" mandatory:"yes"`
	ForceFullExtract bool
}

func (r ExtractionRequest) String() string {
	return fmt.Sprintf("%v/%v/%v", r.ErpType, r.ClientId, r.DataType)
}

// ExtractionResult is the structured outcome of one run, successful or not.
type ExtractionResult struct {
	State       State
	LineageId   string
	ExtractMode string
	RecordCount int
	Warnings    int
	Upload      upload.UploadResult
	Err         error
}

// ExitCode maps the run outcome to the process exit code contract.
func (r *ExtractionResult) ExitCode() int {
	return errkind.ExitCode(r.Err)
}

// Orchestrator drives one extraction request through the full pipeline.
// Construct it once at startup with explicit dependencies; the resilience
// registry and metrics collector are the only state shared across runs.
type Orchestrator struct {
	Log                logger.Logger
	ConfigProvider     config.Provider
	CredentialProvider credentials.Provider
	Lineage            *lineage.Tracker
	Watermarks         watermark.Store
	Registry           *resilience.Registry
	Metrics            *resilience.Collector
	// HTTPClient serves API extractions; tests inject a fake.
	HTTPClient erp.HttpDoer
	// OpenDb opens database connections; tests inject a mock.
	OpenDb func(log logger.Logger, connectionString string) (rdbms.Connector, error)
	// S3Clients builds an object store client per bucket; tests inject a fake.
	S3Clients func(bucket s3.AwsS3Bucket) s3.Client
	Now       func() time.Time
}

func NewOrchestrator(log logger.Logger) *Orchestrator {
	return &Orchestrator{
		Log:                log,
		ConfigProvider:     config.NewCachingProvider(config.NewFileProvider()),
		CredentialProvider: credentials.NewCachingProvider(credentials.NewFileStore()),
		Lineage:            mustFileTracker(log),
		Watermarks:         watermark.NewFileStore(log),
		Registry:           resilience.NewRegistry(),
		Metrics:            resilience.NewCollector(nil),
		HTTPClient:         &http.Client{},
		OpenDb:             rdbms.OpenDbConnection,
		S3Clients: func(bucket s3.AwsS3Bucket) s3.Client {
			return s3.NewClient(bucket.Name, bucket.Region, bucket.Prefix)
		},
		Now: time.Now,
	}
}

// Run executes the request to completion. It always returns a result whose
// lineage record has been closed with a terminal status; Err carries the
// failure, also surfaced in the result for exit-code mapping.
func (o *Orchestrator) Run(ctx context.Context, request ExtractionRequest) *ExtractionResult {
	result := &ExtractionResult{State: StateInitiated}
	if err := helper.ValidateStructIsPopulated(&request); err != nil {
		result.State = StateFailed
		result.Err = errkind.Wrap(errkind.KindConfiguration, err)
		return result
	}
	o.Log.Info("starting extraction run for ", request.String())

	// The lineage record opens before any external call and closes exactly
	// once on every path out of run().
	handle, err := o.Lineage.Start(request.ErpType, request.ClientId, request.DataType)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		return result
	}
	return o.runWithHandle(ctx, request, handle)
}

// runWithHandle executes the run against an already-opened lineage handle,
// guaranteeing the handle completes exactly once on every path.
func (o *Orchestrator) runWithHandle(ctx context.Context, request ExtractionRequest, handle *lineage.Handle) *ExtractionResult {
	result := &ExtractionResult{State: StateInitiated, LineageId: handle.Id()}
	destination, runErr := o.run(ctx, request, handle, result)
	if runErr != nil {
		result.State = StateFailed
		result.Err = runErr
		if err := handle.Complete("", lineage.StatusFailed, runErr); err != nil {
			o.Log.Error("failed to close lineage record ", handle.Id(), ": ", err)
		}
		o.Log.Error("extraction run ", handle.Id(), " failed: ", runErr)
		return result
	}
	result.State = StateCompleted
	if err := handle.Complete(destination, lineage.StatusSucceeded, nil); err != nil {
		o.Log.Error("failed to close lineage record ", handle.Id(), ": ", err)
	}
	o.Log.Info("extraction run ", handle.Id(), " completed with ", result.RecordCount, " records")
	return result
}

// run walks the state machine; the caller owns lineage completion.
func (o *Orchestrator) run(ctx context.Context, request ExtractionRequest, handle *lineage.Handle, result *ExtractionResult) (string, error) {
	// Resolve configuration.
	if err := o.checkCancelled(ctx); err != nil {
		return "", err
	}
	var erpCfg config.ERPConfiguration
	err := o.policyFor(request.ErpType, "config", constants.DefaultMaxRetries, constants.DefaultBreakerThreshold, false, 0).
		Execute(ctx, func(ctx context.Context) error {
			var err error
			erpCfg, err = o.ConfigProvider.GetConfiguration(request.ErpType, request.ClientId)
			return err
		})
	if err != nil {
		return "", err
	}
	o.transition(result, StateConfigResolved, handle)

	// Resolve credentials.
	if err := o.checkCancelled(ctx); err != nil {
		return "", err
	}
	var creds credentials.Credentials
	err = o.policyFor(request.ErpType, "credentials", constants.DefaultMaxRetries, constants.DefaultBreakerThreshold, false, 0).
		Execute(ctx, func(ctx context.Context) error {
			var err error
			creds, err = o.CredentialProvider.GetCredentials(request.ErpType, request.ClientId, request.DataType)
			return err
		})
	if err != nil {
		return "", err
	}
	o.transition(result, StateCredentialResolved, handle)

	// Extract.
	if err := o.checkCancelled(ctx); err != nil {
		return "", err
	}
	spec, err := erp.Resolve(request.ErpType)
	if err != nil {
		return "", err
	}
	lastWatermark := ""
	if erpCfg.SupportsCDC {
		entry, found, err := o.Watermarks.Get(request.ErpType, request.ClientId, request.DataType)
		if err != nil {
			return "", err
		}
		if found {
			lastWatermark = entry.Value
		}
	}
	extractCfg := erp.NewExtractConfig(o.Log, erpCfg, request.ErpType, request.ClientId, request.DataType, lastWatermark, request.ForceFullExtract)
	result.ExtractMode = extractCfg.Mode()
	o.transition(result, StateExtracting, handle)

	raw, source, err := o.extract(ctx, erpCfg, spec, creds, extractCfg)
	if err != nil {
		return "", err
	}
	handle.SetSource(source)
	handle.RecordTransformation("extract", fmt.Sprintf("%v extract of %v records from %v", extractCfg.Mode(), raw.Count(), source))

	// Transform.
	if err := o.checkCancelled(ctx); err != nil {
		return "", err
	}
	o.transition(result, StateTransforming, handle)
	transformer, err := transform.NewTransformer(o.Log, request.ErpType, request.DataType)
	if err != nil {
		return "", err
	}
	transformed, err := transformer.Transform(raw)
	if err != nil {
		return "", err
	}
	note := fmt.Sprintf("mapped %v records onto the standard schema", transformed.Data.Count())
	if skip := transformed.SkipNote(); skip != "" {
		note = note + "; " + skip
	}
	handle.RecordTransformation("transform", note)
	result.RecordCount = transformed.Data.Count()

	// Validate.
	if err := o.checkCancelled(ctx); err != nil {
		return "", err
	}
	o.transition(result, StateValidating, handle)
	validator, err := validate.NewValidator(o.Log, request.ErpType, request.DataType)
	if err != nil {
		return "", err
	}
	validation := validator.Validate(transformed.Data)
	handle.RecordTransformation("validate", validation.Summary())
	result.Warnings = len(validation.Warnings())
	for _, issue := range validation.Warnings() {
		o.Log.Warn("validation warning on ", issue.Field, " (", issue.Rule, "): ", issue.Message, " [", issue.RecordCount, " records]")
	}
	if !validation.IsValid() {
		crit := validation.Criticals()[0]
		return "", errkind.Newf(errkind.KindDataQuality, "critical validation failure on field %q (%v): %v [%v records]", crit.Field, crit.Rule, crit.Message, crit.RecordCount)
	}

	// Upload.
	if err := o.checkCancelled(ctx); err != nil {
		return "", err
	}
	o.transition(result, StateUploading, handle)
	bucket := s3.AwsS3Bucket{Name: erpCfg.BucketName, Prefix: erpCfg.BucketPrefix, Region: erpCfg.BucketRegion}
	if err := bucket.Validate(); err != nil {
		return "", errkind.Wrap(errkind.KindConfiguration, err)
	}
	uploader := &upload.Uploader{
		Log:    o.Log,
		Client: o.S3Clients(bucket),
		Bucket: bucket,
		Policy: o.policyFor(request.ErpType, "upload", erpCfg.MaxRetries, erpCfg.CircuitBreakerThreshold, erpCfg.BulkheadFailFast, erpCfg.BulkheadLimit),
	}
	uploadResult, err := uploader.Upload(ctx, transformed.Data, upload.Metadata{
		ErpType:          request.ErpType,
		ClientId:         request.ClientId,
		DataType:         request.DataType,
		ExtractTimestamp: o.Now().UTC(),
		LineageId:        handle.Id(),
		ExtractMode:      extractCfg.Mode(),
	})
	if err != nil {
		return "", err
	}
	result.Upload = uploadResult
	handle.RecordTransformation("upload", fmt.Sprintf("wrote %v bytes (sha256 %v) to %v", uploadResult.ByteSize, uploadResult.Checksum, uploadResult.Location))

	// Advance the watermark only after the destination object is final.
	if erpCfg.SupportsCDC && erpCfg.WatermarkColumn != "" {
		if err := o.advanceWatermark(request, erpCfg.WatermarkColumn, raw); err != nil {
			o.Log.Error("watermark advancement failed for ", request.String(), ": ", err)
		}
	}
	return uploadResult.Location, nil
}

// extract runs the access-type specific extractor and returns the raw record
// set plus a source descriptor for lineage.
func (o *Orchestrator) extract(ctx context.Context, erpCfg config.ERPConfiguration, spec erp.Spec, creds credentials.Credentials, extractCfg erp.ExtractConfig) (*stream.RecordSet, string, error) {
	policy := o.policyFor(extractCfg.ErpType, "extract", erpCfg.MaxRetries, erpCfg.CircuitBreakerThreshold, erpCfg.BulkheadFailFast, erpCfg.BulkheadLimit)
	switch erpCfg.AccessType {
	case constants.AccessTypeApi:
		if spec.Api == nil {
			return nil, "", errkind.Newf(errkind.KindConfiguration, "connector %v does not support API access", spec.Name)
		}
		builder := erp.NewRequestBuilder().
			WithEndpoint(erpCfg.BaseUrl, spec.Api.PathFor(extractCfg.DataType)).
			WithMethod(spec.Api.Method).
			WithCredentials(creds)
		if extractCfg.Incremental && spec.Api.WatermarkParam != "" {
			builder.WithQueryParam(spec.Api.WatermarkParam, extractCfg.LastWatermark)
		}
		template, err := builder.Build()
		if err != nil {
			return nil, "", err
		}
		var limiter *rate.Limiter
		if erpCfg.RateLimitPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(erpCfg.RateLimitPerSecond), 1)
		}
		extractor := &erp.ApiExtractor{Log: o.Log, Client: o.HTTPClient, Policy: policy, Limiter: limiter, Spec: *spec.Api}
		rs, err := extractor.Extract(ctx, template, extractCfg)
		if err != nil {
			return nil, "", err
		}
		return rs, template.String(), nil
	case constants.AccessTypeDatabase:
		if spec.Db == nil {
			return nil, "", errkind.Newf(errkind.KindConfiguration, "connector %v does not support database access", spec.Name)
		}
		builder := erp.NewQueryBuilder(dbTypeOf(erpCfg.ConnectionString)).
			WithConnection(erpCfg.ConnectionString).
			WithTable(erpCfg.Schema, spec.Db.TableFor(extractCfg.DataType)).
			WithDefaultFilter(spec.Db.DefaultFilter).
			WithOrderBy(spec.Db.OrderBy)
		if extractCfg.Incremental {
			builder.WithWatermark(extractCfg.WatermarkColumn, extractCfg.LastWatermark)
		}
		query, err := builder.Build()
		if err != nil {
			return nil, "", err
		}
		extractor := &erp.DbExtractor{Log: o.Log, Policy: policy, OpenFn: o.OpenDb}
		rs, err := extractor.ExtractFromDatabase(ctx, erpCfg.ConnectionString, query, extractCfg)
		if err != nil {
			return nil, "", err
		}
		return rs, fmt.Sprintf("%v.%v", erpCfg.Schema, spec.Db.TableFor(extractCfg.DataType)), nil
	default:
		return nil, "", errkind.Newf(errkind.KindConfiguration, "unsupported access type %q", erpCfg.AccessType)
	}
}

// advanceWatermark persists the max watermark value observed in the raw data.
func (o *Orchestrator) advanceWatermark(request ExtractionRequest, column string, raw *stream.RecordSet) error {
	maxSeen := ""
	var kind watermark.Kind
	for _, rec := range raw.Records() {
		value := rec.GetString(column)
		if value == "" {
			continue
		}
		if maxSeen == "" {
			kind = watermark.KindForValue(value)
		}
		greater, err := watermark.Max(kind, maxSeen, value)
		if err != nil {
			return err
		}
		maxSeen = greater
	}
	if maxSeen == "" {
		return nil
	}
	_, err := o.Watermarks.Advance(request.ErpType, request.ClientId, request.DataType, kind, maxSeen)
	return err
}

// policyFor assembles the resilience policy around one external dependency,
// sharing breaker/bulkhead state process-wide via the registry.
func (o *Orchestrator) policyFor(erpType, operation string, maxRetries, breakerThreshold int, bulkheadFailFast bool, bulkheadLimit int) *resilience.Policy {
	key := resilience.Key(erpType, operation)
	if maxRetries <= 0 {
		maxRetries = constants.DefaultMaxRetries
	}
	if breakerThreshold <= 0 {
		breakerThreshold = constants.DefaultBreakerThreshold
	}
	if bulkheadLimit <= 0 {
		bulkheadLimit = constants.DefaultBulkheadLimit
	}
	return &resilience.Policy{
		Log:      o.Log,
		Key:      key,
		Retry:    resilience.NewRetryPolicy(maxRetries, constants.DefaultRetryBaseMillis*time.Millisecond, constants.DefaultRetryCapMillis*time.Millisecond, constants.DefaultRetryJitterMills*time.Millisecond),
		Breaker:  o.Registry.Breaker(key, breakerThreshold, time.Duration(constants.DefaultBreakSeconds)*time.Second),
		Bulkhead: o.Registry.Bulkhead(key, bulkheadLimit, bulkheadFailFast),
		Metrics:  o.Metrics,
	}
}

func (o *Orchestrator) transition(result *ExtractionResult, to State, handle *lineage.Handle) {
	o.Log.Debug("run ", handle.Id(), " state ", result.State, " -> ", to)
	result.State = to
}

func (o *Orchestrator) checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errkind.Wrap(errkind.KindCancelled, ctx.Err())
	default:
		return nil
	}
}

func mustFileTracker(log logger.Logger) *lineage.Tracker {
	store, err := lineage.NewFileStore(config.LineageDir())
	if err != nil {
		log.Fatal("unable to create lineage store: ", err)
	}
	return lineage.NewTracker(log, store)
}

// dbTypeOf picks the bind-placeholder dialect from the connection string scheme.
func dbTypeOf(connectionString string) string {
	u, err := dburl.Parse(connectionString)
	if err != nil {
		return constants.ConnectionTypePostgres
	}
	if u.Driver == constants.ConnectionTypeSqlServer {
		return constants.ConnectionTypeSqlServer
	}
	return constants.ConnectionTypePostgres
}
