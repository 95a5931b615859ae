package erp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/resilience"
)

// mockDoer serves canned responses in order and records every request.
type mockDoer struct {
	responses []*http.Response
	errs      []error
	requests  []*http.Request
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	i := len(m.requests) - 1
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.responses) {
		return jsonResponse(200, `{"items": []}`), nil
	}
	return m.responses[i], nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// pageBody renders n records as a netsuite-style envelope, with an optional
// continuation token.
func pageBody(n int, startId int, token string) string {
	buf := bytes.Buffer{}
	buf.WriteString(`{"items": [`)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, `{"id": "%d", "amount": "%d.50"}`, startId+i, i)
	}
	buf.WriteString(`]`)
	if token != "" {
		fmt.Fprintf(&buf, `, "nextToken": "%v"`, token)
	}
	buf.WriteString(`}`)
	return buf.String()
}

func testApiExtractor(doer *mockDoer, maxRetries int) *ApiExtractor {
	spec, err := Resolve("netsuite")
	if err != nil {
		panic(err)
	}
	return &ApiExtractor{
		Log:    logger.NewLogger("siphon-test", "error", false),
		Client: doer,
		Policy: &resilience.Policy{
			Log:   logger.NewLogger("siphon-test", "error", false),
			Key:   resilience.Key("netsuite", "extract"),
			Retry: resilience.NewRetryPolicy(maxRetries, time.Millisecond, 5*time.Millisecond, time.Millisecond),
		},
		Spec: *spec.Api,
	}
}

func testTemplate(t *testing.T) *BuiltRequest {
	t.Helper()
	req, err := NewRequestBuilder().
		WithEndpoint("https://erp.example.com", "/services/rest/record/v1/invoices").
		WithMethod("GET").
		WithCredentials(apiKeyCreds()).
		Build()
	require.NoError(t, err)
	return req
}

func TestApiExtractorFollowsPagination(t *testing.T) {
	// Three pages of 100, 100 and 40 records; the short final page stops the loop.
	doer := &mockDoer{responses: []*http.Response{
		jsonResponse(200, pageBody(100, 0, "t1")),
		jsonResponse(200, pageBody(100, 100, "t2")),
		jsonResponse(200, pageBody(40, 200, "")),
	}}
	e := testApiExtractor(doer, 0)
	rs, err := e.Extract(context.Background(), testTemplate(t), ExtractConfig{ErpType: "netsuite", DataType: "invoices", PageSize: 100})
	require.NoError(t, err)
	require.Equal(t, 240, rs.Count())
	require.Len(t, doer.requests, 3)
	// Page 2 carries the continuation token from page 1.
	require.Equal(t, "t1", doer.requests[1].URL.Query().Get("pageToken"))
	require.Equal(t, "100", doer.requests[0].URL.Query().Get("limit"))
}

func TestApiExtractorEmptyFirstPageIsValid(t *testing.T) {
	doer := &mockDoer{responses: []*http.Response{jsonResponse(200, `{"items": []}`)}}
	e := testApiExtractor(doer, 0)
	rs, err := e.Extract(context.Background(), testTemplate(t), ExtractConfig{PageSize: 100})
	require.NoError(t, err)
	require.Equal(t, 0, rs.Count())
	require.Len(t, doer.requests, 1)
}

func TestApiExtractorAuthFailureIsNotRetried(t *testing.T) {
	doer := &mockDoer{responses: []*http.Response{jsonResponse(401, `{}`)}}
	e := testApiExtractor(doer, 3)
	_, err := e.Extract(context.Background(), testTemplate(t), ExtractConfig{PageSize: 100})
	require.Error(t, err)
	require.Equal(t, errkind.KindPersistent, errkind.KindOf(err))
	require.Len(t, doer.requests, 1)
}

func TestApiExtractorRetriesServerErrors(t *testing.T) {
	doer := &mockDoer{responses: []*http.Response{
		jsonResponse(503, `{}`),
		jsonResponse(503, `{}`),
		jsonResponse(200, pageBody(5, 0, "")),
	}}
	e := testApiExtractor(doer, 3)
	rs, err := e.Extract(context.Background(), testTemplate(t), ExtractConfig{PageSize: 100})
	require.NoError(t, err)
	require.Equal(t, 5, rs.Count())
	require.Len(t, doer.requests, 3)
}

func TestApiExtractorTransportErrorsAreTransient(t *testing.T) {
	doer := &mockDoer{errs: []error{fmt.Errorf("connection reset by peer")}}
	e := testApiExtractor(doer, 0)
	_, err := e.Extract(context.Background(), testTemplate(t), ExtractConfig{PageSize: 100})
	require.Error(t, err)
	require.Equal(t, errkind.KindTransient, errkind.KindOf(err))
}

func TestApiExtractorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doer := &mockDoer{}
	e := testApiExtractor(doer, 0)
	_, err := e.Extract(ctx, testTemplate(t), ExtractConfig{PageSize: 100})
	require.Error(t, err)
	require.Equal(t, errkind.KindCancelled, errkind.KindOf(err))
	require.Empty(t, doer.requests)
}

func TestApiExtractorInfersSchemaFromFirstRecord(t *testing.T) {
	doer := &mockDoer{responses: []*http.Response{jsonResponse(200, pageBody(2, 0, ""))}}
	e := testApiExtractor(doer, 0)
	rs, err := e.Extract(context.Background(), testTemplate(t), ExtractConfig{PageSize: 100})
	require.NoError(t, err)
	require.Equal(t, []string{"amount", "id"}, rs.Schema().FieldNames())
}
