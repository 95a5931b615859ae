package erp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/resilience"
	"github.com/siphon-data/siphon/stream"
)

// HttpDoer is the subset of http.Client the extractor needs, for mocking.
type HttpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ApiExtractor pages through an ERP HTTP API, accumulating a RecordSet.
// Every page call runs under the resilience policy; an optional rate limiter
// spaces requests out.
type ApiExtractor struct {
	Log     logger.Logger
	Client  HttpDoer
	Policy  *resilience.Policy
	Limiter *rate.Limiter
	Spec    ApiSpec
}

// maxPages bounds a runaway pagination loop; a paging bug upstream must not
// turn into an unbounded extract.
const maxPages = 100000

// Extract issues the initial request and follows pagination until the ERP
// reports no more data: an empty page, a short page without a continuation
// token, or a token-less response. Cancellation is checked per page.
func (e *ApiExtractor) Extract(ctx context.Context, template *BuiltRequest, cfg ExtractConfig) (*stream.RecordSet, error) {
	var recordSet *stream.RecordSet
	offset := 0
	token := ""
	for page := 0; page < maxPages; page++ {
		select {
		case <-ctx.Done():
			return nil, errkind.Wrap(errkind.KindCancelled, ctx.Err())
		default:
		}
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				return nil, errkind.Wrap(errkind.KindCancelled, err)
			}
		}
		req := template.Clone()
		q := req.URL.Query()
		if e.Spec.PageSizeParam != "" {
			q.Set(e.Spec.PageSizeParam, strconv.Itoa(cfg.PageSize))
		}
		if token != "" && e.Spec.TokenParam != "" {
			q.Set(e.Spec.TokenParam, token)
		} else if e.Spec.OffsetParam != "" {
			q.Set(e.Spec.OffsetParam, strconv.Itoa(offset))
		}
		req.URL.RawQuery = q.Encode()

		var envelope apiEnvelope
		err := e.Policy.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			envelope, callErr = e.fetchPage(ctx, req)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		if recordSet == nil {
			recordSet = stream.NewRecordSet(inferApiSchema(envelope.records))
		}
		for _, raw := range envelope.records {
			recordSet.Append(stream.NewRecordFromMap(raw))
		}
		e.Log.Debug("fetched page ", page+1, " with ", len(envelope.records), " records")
		offset += len(envelope.records)
		token = envelope.token
		// An empty incremental window is a valid result, not an error.
		if len(envelope.records) == 0 {
			break
		}
		if token == "" && len(envelope.records) < cfg.PageSize {
			break
		}
	}
	if recordSet == nil {
		recordSet = stream.NewRecordSet(nil)
	}
	e.Log.Info("api extraction complete for ", cfg.ErpType, "/", cfg.DataType, " with ", recordSet.Count(), " records (", cfg.Mode(), ")")
	return recordSet, nil
}

// apiEnvelope is one decoded page.
type apiEnvelope struct {
	records []map[string]interface{}
	token   string
}

// fetchPage performs a single HTTP call and decodes the page envelope.
func (e *ApiExtractor) fetchPage(ctx context.Context, req *BuiltRequest) (apiEnvelope, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
	if err != nil {
		return apiEnvelope{}, errkind.Wrap(errkind.KindPersistent, err)
	}
	httpReq.Header = req.Headers
	resp, err := e.Client.Do(httpReq)
	if err != nil {
		// Transport-level failures (dial, reset, timeout) are worth retrying.
		return apiEnvelope{}, errkind.Wrapf(errkind.KindTransient, err, "calling %v", req)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		kind := errkind.FromHTTPStatus(resp.StatusCode)
		if kind == errkind.KindUnknown {
			kind = errkind.KindPersistent
		}
		return apiEnvelope{}, errkind.Newf(kind, "%v returned HTTP %v", req, resp.StatusCode)
	}
	return e.decodeEnvelope(resp.Body)
}

// decodeEnvelope pulls the record array and continuation token out of the
// response using the connector's envelope field names.
func (e *ApiExtractor) decodeEnvelope(body io.Reader) (apiEnvelope, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return apiEnvelope{}, errkind.Wrapf(errkind.KindPersistent, err, "decoding response envelope")
	}
	env := apiEnvelope{}
	if raw, ok := doc[e.Spec.RecordsField]; ok {
		if err := json.Unmarshal(raw, &env.records); err != nil {
			return apiEnvelope{}, errkind.Wrapf(errkind.KindPersistent, err, "decoding %q array", e.Spec.RecordsField)
		}
	}
	if e.Spec.TokenField != "" {
		if raw, ok := doc[e.Spec.TokenField]; ok {
			_ = json.Unmarshal(raw, &env.token) // a null token means last page.
		}
	}
	return env, nil
}

// inferApiSchema derives a raw schema from the first record. All raw API
// fields are strings semantically until the transformer coerces them; field
// names are sorted for a deterministic raw schema.
func inferApiSchema(records []map[string]interface{}) *stream.Schema {
	schema := stream.NewSchema()
	if len(records) == 0 {
		return schema
	}
	names := make([]string, 0, len(records[0]))
	for name := range records[0] {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		schema.WithField(name, stream.FieldString)
	}
	return schema
}
