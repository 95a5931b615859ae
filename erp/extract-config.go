// Package erp builds and executes extraction calls against external ERP
// systems, over HTTP APIs or direct database queries.
package erp

import (
	"time"

	"github.com/siphon-data/siphon/config"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/logger"
)

// ExtractConfig is derived from the ERP configuration plus the extraction
// request. It is the single source of truth for extraction mode.
type ExtractConfig struct {
	ErpType   string
	ClientId  string
	DataType  string
	PageSize  int
	BatchSize int
	Timeout   time.Duration
	// Incremental extraction state.
	Incremental     bool
	LastWatermark   string // empty when no prior watermark exists.
	WatermarkColumn string
}

// Mode returns the extraction mode string recorded in metadata and lineage.
func (c ExtractConfig) Mode() string {
	if c.Incremental {
		return constants.ExtractModeIncremental
	}
	return constants.ExtractModeFull
}

// NewExtractConfig derives the extraction config. Incremental mode requires
// CDC support and a non-empty prior watermark; anything else falls back to a
// full extract. forceFull always wins.
func NewExtractConfig(log logger.Logger, erpCfg config.ERPConfiguration, erpType, clientId, dataType string, lastWatermark string, forceFull bool) ExtractConfig {
	incremental := erpCfg.SupportsCDC && lastWatermark != "" && !forceFull
	if erpCfg.SupportsCDC && lastWatermark == "" && !forceFull {
		log.Info("no prior watermark for ", erpType, "/", clientId, "/", dataType, "; falling back to full extract")
	}
	cfg := ExtractConfig{
		ErpType:         erpType,
		ClientId:        clientId,
		DataType:        dataType,
		PageSize:        erpCfg.PageSize,
		BatchSize:       erpCfg.BatchSize,
		Timeout:         time.Duration(erpCfg.TimeoutSeconds) * time.Second,
		Incremental:     incremental,
		WatermarkColumn: erpCfg.WatermarkColumn,
	}
	if incremental {
		cfg.LastWatermark = lastWatermark
	}
	return cfg
}
