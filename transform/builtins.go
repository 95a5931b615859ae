package transform

import "github.com/siphon-data/siphon/stream"

// Built-in mapping tables onto the standard schema. The standard field names
// are shared across ERPs; only the source spellings differ.
func init() {
	RegisterMapping(Mapping{
		ErpType:  "netsuite",
		DataType: "invoices",
		Fields: []FieldMapping{
			{Source: "id", Standard: "record_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "entity", Standard: "customer_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "amount", Standard: "amount", Type: stream.FieldDecimal, Coerce: CoerceDecimal, Required: true},
			{Source: "currency", Standard: "currency", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "tranDate", Standard: "issued_at", Type: stream.FieldTimestamp, Coerce: CoerceTimestamp, Required: true},
			{Source: "dueDate", Standard: "due_at", Type: stream.FieldTimestamp, Coerce: CoerceTimestamp},
			{Source: "isPaid", Standard: "is_paid", Type: stream.FieldBoolean, Coerce: CoerceBoolean},
			{Source: "memo", Standard: "notes", Type: stream.FieldString, Coerce: CoerceNone},
		},
	})
	RegisterMapping(Mapping{
		ErpType:  "netsuite",
		DataType: "customers",
		Fields: []FieldMapping{
			{Source: "id", Standard: "record_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "companyName", Standard: "name", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "email", Standard: "email", Type: stream.FieldString, Coerce: CoerceNone},
			{Source: "isInactive", Standard: "is_inactive", Type: stream.FieldBoolean, Coerce: CoerceBoolean},
			{Source: "dateCreated", Standard: "created_at", Type: stream.FieldTimestamp, Coerce: CoerceTimestamp},
		},
	})
	RegisterMapping(Mapping{
		ErpType:  "dynamics",
		DataType: "invoices",
		Fields: []FieldMapping{
			{Source: "invoice_no", Standard: "record_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "cust_account", Standard: "customer_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "invoice_amount", Standard: "amount", Type: stream.FieldDecimal, Coerce: CoerceDecimal, Required: true},
			{Source: "currency_code", Standard: "currency", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "invoice_date", Standard: "issued_at", Type: stream.FieldTimestamp, Coerce: CoerceTimestamp, Required: true},
			{Source: "due_date", Standard: "due_at", Type: stream.FieldTimestamp, Coerce: CoerceTimestamp},
			{Source: "is_settled", Standard: "is_paid", Type: stream.FieldBoolean, Coerce: CoerceBoolean},
		},
	})
	RegisterMapping(Mapping{
		ErpType:  "sageintacct",
		DataType: "invoices",
		Fields: []FieldMapping{
			{Source: "record_no", Standard: "record_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "customer_id", Standard: "customer_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "total_amount", Standard: "amount", Type: stream.FieldDecimal, Coerce: CoerceDecimal, Required: true},
			{Source: "currency", Standard: "currency", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "when_created", Standard: "issued_at", Type: stream.FieldTimestamp, Coerce: CoerceTimestamp, Required: true},
			{Source: "state", Standard: "state", Type: stream.FieldString, Coerce: CoerceNone},
		},
	})
	RegisterMapping(Mapping{
		ErpType:  "sapbyd",
		DataType: "invoices",
		Fields: []FieldMapping{
			{Source: "ObjectID", Standard: "record_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "BuyerPartyID", Standard: "customer_id", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "TotalGrossAmount", Standard: "amount", Type: stream.FieldDecimal, Coerce: CoerceDecimal, Required: true},
			{Source: "CurrencyCode", Standard: "currency", Type: stream.FieldString, Coerce: CoerceNone, Required: true},
			{Source: "CreationDateTime", Standard: "issued_at", Type: stream.FieldTimestamp, Coerce: CoerceTimestamp, Required: true},
		},
	})
}
