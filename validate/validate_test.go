package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/stream"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(logger.NewLogger("siphon-test", "error", false), "netsuite", "invoices")
	require.NoError(t, err)
	return v
}

func validInvoice() stream.Record {
	return stream.NewRecordFromMap(map[string]interface{}{
		"record_id":   "INV-1",
		"customer_id": "C-9",
		"amount":      "1234.56",
		"currency":    "EUR",
		"issued_at":   time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		"is_paid":     true,
	})
}

func recordSetOf(records ...stream.Record) *stream.RecordSet {
	rs := stream.NewRecordSet(nil)
	for _, r := range records {
		rs.Append(r)
	}
	return rs
}

func TestValidateCleanRecordSet(t *testing.T) {
	res := testValidator(t).Validate(recordSetOf(validInvoice()))
	require.True(t, res.IsValid())
	require.Empty(t, res.Issues)
}

func TestValidateEmptyRecordSetIsValid(t *testing.T) {
	res := testValidator(t).Validate(recordSetOf())
	require.True(t, res.IsValid())
}

func TestValidateMissingRequiredFieldIsCritical(t *testing.T) {
	rec := validInvoice()
	rec = rec.Project([]string{"record_id", "customer_id", "currency", "issued_at", "is_paid"})
	res := testValidator(t).Validate(recordSetOf(rec))
	require.False(t, res.IsValid())
	criticals := res.Criticals()
	require.Len(t, criticals, 1)
	require.Equal(t, "amount", criticals[0].Field)
	require.Equal(t, "required", criticals[0].Rule)
}

func TestValidateAggregatesPerFieldAndRule(t *testing.T) {
	rec1 := validInvoice()
	rec1.Set("amount", nil)
	rec2 := validInvoice()
	rec2.Set("amount", nil)
	res := testValidator(t).Validate(recordSetOf(rec1, rec2))
	require.Len(t, res.Criticals(), 1)
	require.Equal(t, 2, res.Criticals()[0].RecordCount)
}

func TestValidateTypeMismatchIsCritical(t *testing.T) {
	rec := validInvoice()
	rec.Set("issued_at", "03/01/2026 oops")
	res := testValidator(t).Validate(recordSetOf(rec))
	require.False(t, res.IsValid())
	require.Equal(t, "type", res.Criticals()[0].Rule)
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	// Negative amounts and future dates only warn; the set remains valid.
	rec := validInvoice()
	rec.Set("amount", "-10.00")
	rec.Set("issued_at", time.Now().UTC().Add(48*time.Hour))
	res := testValidator(t).Validate(recordSetOf(rec))
	require.True(t, res.IsValid())
	require.Len(t, res.Warnings(), 2)
	require.Empty(t, res.Criticals())
}

func TestValidateUnknownCurrencyIsCritical(t *testing.T) {
	rec := validInvoice()
	rec.Set("currency", "XYZ")
	res := testValidator(t).Validate(recordSetOf(rec))
	require.False(t, res.IsValid())
	require.Equal(t, "currency", res.Criticals()[0].Field)
	require.Equal(t, "enumeration", res.Criticals()[0].Rule)
}

func TestValidateSummary(t *testing.T) {
	rec := validInvoice()
	rec.Set("currency", "XYZ")
	rec.Set("amount", "-1")
	res := testValidator(t).Validate(recordSetOf(rec))
	require.Equal(t, "1 critical, 1 warning", res.Summary())
}
