package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 2
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 5
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/fairscan/data/db/audits.db"
	}
	if cfg.Audit.Metric == "" {
		cfg.Audit.Metric = "divergence"
	}
	if cfg.Audit.Threshold == 0 {
		cfg.Audit.Threshold = 0.1
	}
	if cfg.Audit.TopK == 0 {
		cfg.Audit.TopK = 10
	}
	if cfg.Audit.Timeout == 0 {
		cfg.Audit.Timeout = 30 * time.Minute
	}
	if cfg.Audit.Parallel == 0 {
		cfg.Audit.Parallel = 4
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".params", ".txt", ".yaml", ".yml", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
