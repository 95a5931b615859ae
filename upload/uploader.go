package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/siphon-data/siphon/aws/s3"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/resilience"
	"github.com/siphon-data/siphon/stream"
)

// Object metadata keys stamped on every uploaded file.
const (
	MetaErpType          = "erp_type"
	MetaClientId         = "client_id"
	MetaDataType         = "data_type"
	MetaExtractTimestamp = "extract_timestamp"
	MetaLineageId        = "lineage_id"
	MetaRecordCount      = "record_count"
	MetaExtractMode      = "extract_mode"
)

const parquetContentType = "application/vnd.apache.parquet"

// Metadata describes the run whose output is being uploaded.
type Metadata struct {
	ErpType          string
	ClientId         string
	DataType         string
	ExtractTimestamp time.Time
	LineageId        string
	ExtractMode      string
}

// UploadResult reports where the object landed and what it contained.
type UploadResult struct {
	Location    string
	ByteSize    int64
	Checksum    string
	RecordCount int
}

// ObjectKey builds the deterministic destination key for one run.
func ObjectKey(erpType, dataType string, extractTimestamp time.Time) string {
	return fmt.Sprintf("%s/%s/%s/data.parquet", erpType, dataType, extractTimestamp.UTC().Format(constants.TimeFormatObjectKey))
}

// Uploader writes record sets to object storage. The write is atomic: data
// lands on a run-unique temporary key first and is renamed to the final key
// only once fully written, so a failed run never leaves a partial object at
// the destination key.
type Uploader struct {
	Log    logger.Logger
	Client s3.Client
	Bucket s3.AwsS3Bucket
	Policy *resilience.Policy
}

// Upload encodes, checksums and writes the record set. An empty record set
// still produces a well-formed parquet object.
func (u *Uploader) Upload(ctx context.Context, data *stream.RecordSet, meta Metadata) (UploadResult, error) {
	encoded, err := EncodeParquet(data)
	if err != nil {
		return UploadResult{}, err
	}
	sum := sha256.Sum256(encoded)
	checksum := hex.EncodeToString(sum[:])
	finalKey := ObjectKey(meta.ErpType, meta.DataType, meta.ExtractTimestamp)
	objectMeta := map[string]string{
		MetaErpType:          meta.ErpType,
		MetaClientId:         meta.ClientId,
		MetaDataType:         meta.DataType,
		MetaExtractTimestamp: meta.ExtractTimestamp.UTC().Format(time.RFC3339),
		MetaLineageId:        meta.LineageId,
		MetaRecordCount:      strconv.Itoa(data.Count()),
		MetaExtractMode:      meta.ExtractMode,
	}
	err = u.Policy.Execute(ctx, func(ctx context.Context) error {
		tempKey := finalKey + ".tmp-" + xid.New().String() // unique per attempt.
		if err := u.Client.Put(ctx, tempKey, encoded, parquetContentType, objectMeta); err != nil {
			return errkind.Wrapf(errkind.KindUpload, err, "writing temporary object %v", tempKey)
		}
		if err := u.Client.Move(ctx, tempKey, finalKey); err != nil {
			// best effort; an orphaned temp key is invisible to readers.
			_ = u.Client.Delete(ctx, tempKey)
			return errkind.Wrapf(errkind.KindUpload, err, "finalizing object %v", finalKey)
		}
		return nil
	})
	if err != nil {
		return UploadResult{}, err
	}
	result := UploadResult{
		Location:    fmt.Sprintf("%s/%s", u.Bucket.String(), finalKey),
		ByteSize:    int64(len(encoded)),
		Checksum:    checksum,
		RecordCount: data.Count(),
	}
	u.Log.Info("uploaded ", result.RecordCount, " records (", result.ByteSize, " bytes) to ", result.Location)
	return result, nil
}
