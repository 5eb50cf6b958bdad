package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/layerforge/layerforge/internal/flagx"
	"github.com/layerforge/layerforge/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept either strings like "1h" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddr         string         `json:"endpoint_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SiteOrigin           string         `json:"site_origin"`
	BillingAPIBase       string         `json:"billing_api_base"`
	BillingCatalogTag    string         `json:"billing_catalog_tag"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	UploadTicketValidity timex.Duration `json:"upload_ticket_validity"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// Secrets never appear in JSON; they come from the environment only.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	overlayString(&cfg.EndpointAddr, jc.EndpointAddr)
	overlayString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	overlayString(&cfg.SiteOrigin, jc.SiteOrigin)
	overlayString(&cfg.BillingAPIBase, jc.BillingAPIBase)
	overlayString(&cfg.BillingCatalogTag, jc.BillingCatalogTag)
	overlayString(&cfg.S3Bucket, jc.S3Bucket)
	overlayString(&cfg.S3Region, jc.S3Region)
	overlayString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	if jc.UploadTicketValidity.Duration != 0 {
		cfg.UploadTicketValidity = time.Duration(jc.UploadTicketValidity.Duration)
	}
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
