// Package upload converts validated record sets to compressed parquet and
// writes them atomically to object storage with lineage metadata.
package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/helper"
	"github.com/siphon-data/siphon/stream"
)

const parquetParallelism = 4

// EncodeParquet renders the record set as a snappy-compressed parquet file.
// A zero-record set still yields a well-formed file carrying the schema.
func EncodeParquet(data *stream.RecordSet) ([]byte, error) {
	schema := data.Schema()
	if schema == nil || schema.Len() == 0 {
		return nil, errkind.New(errkind.KindUpload, "cannot encode parquet without a schema")
	}
	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(buildParquetSchema(schema), pfw, parquetParallelism)
	if err != nil {
		return nil, errkind.Wrapf(errkind.KindUpload, err, "creating parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, rec := range data.Records() {
		row, err := parquetRow(schema, rec)
		if err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, err
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, errkind.Wrapf(errkind.KindUpload, err, "writing parquet row")
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = pfw.Close()
		return nil, errkind.Wrapf(errkind.KindUpload, err, "finalizing parquet file")
	}
	_ = pfw.Close()
	return buf.Bytes(), nil
}

// buildParquetSchema renders the JSON schema document the writer expects,
// with columns in schema order.
func buildParquetSchema(schema *stream.Schema) string {
	fields := make([]map[string]string, 0, schema.Len())
	for _, name := range schema.FieldNames() {
		t, _ := schema.TypeOf(name)
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", name, parquetPhysicalType(t)),
		})
	}
	out := map[string]interface{}{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func parquetPhysicalType(t stream.FieldType) string {
	switch t {
	case stream.FieldInteger:
		return "INT64"
	case stream.FieldDecimal:
		return "DOUBLE"
	case stream.FieldBoolean:
		return "BOOLEAN"
	default: // strings and timestamps travel as UTF8 text.
		return "BYTE_ARRAY, convertedtype=UTF8"
	}
}

// parquetRow renders one record as the JSON document the writer consumes,
// converting values to the column's physical type. Absent fields become
// explicit nulls.
func parquetRow(schema *stream.Schema, rec stream.Record) (string, error) {
	row := make(map[string]interface{}, schema.Len())
	for _, name := range schema.FieldNames() {
		v, ok := rec.Get(name)
		if !ok || v == nil {
			row[name] = nil
			continue
		}
		t, _ := schema.TypeOf(name)
		converted, err := parquetValue(t, v)
		if err != nil {
			return "", errkind.Wrapf(errkind.KindUpload, err, "converting field %q", name)
		}
		row[name] = converted
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", errkind.Wrapf(errkind.KindUpload, err, "encoding parquet row")
	}
	return string(b), nil
}

func parquetValue(t stream.FieldType, v interface{}) (interface{}, error) {
	switch t {
	case stream.FieldInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
		return strconv.ParseInt(helper.ValueToString(v), 10, 64)
	case stream.FieldDecimal:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return strconv.ParseFloat(helper.ValueToString(v), 64)
	case stream.FieldBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return helper.ParseBool(helper.ValueToString(v))
	case stream.FieldTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339Nano), nil
		}
		return helper.ValueToString(v), nil
	default:
		return helper.ValueToString(v), nil
	}
}
