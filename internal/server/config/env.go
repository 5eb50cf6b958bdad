package config

import "os"

// parseEnv overlays cfg with environment variables. The environment is the
// final word: it is the only source for secrets and wins over JSON and
// flags for everything else.
func parseEnv(cfg *Config) {
	overlay := map[string]*string{
		"LAYERFORGE_ADDR":                &cfg.EndpointAddr,
		"LAYERFORGE_DATABASE_DSN":        &cfg.DatabaseDSN,
		"LAYERFORGE_SITE_ORIGIN":         &cfg.SiteOrigin,
		"LAYERFORGE_IDENTITY_SECRET":     &cfg.IdentitySecret,
		"LAYERFORGE_OPERATOR_KEY_HASH":   &cfg.OperatorKeyHash,
		"LAYERFORGE_BILLING_API_BASE":    &cfg.BillingAPIBase,
		"LAYERFORGE_BILLING_SECRET_KEY":  &cfg.BillingSecretKey,
		"LAYERFORGE_BILLING_CATALOG_TAG": &cfg.BillingCatalogTag,
		"LAYERFORGE_S3_ACCESS_KEY":       &cfg.S3AccessKey,
		"LAYERFORGE_S3_SECRET_KEY":       &cfg.S3SecretKey,
		"LAYERFORGE_S3_BUCKET":           &cfg.S3Bucket,
		"LAYERFORGE_S3_REGION":           &cfg.S3Region,
		"LAYERFORGE_S3_BASE_ENDPOINT":    &cfg.S3BaseEndpoint,
	}
	for name, dst := range overlay {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
}
