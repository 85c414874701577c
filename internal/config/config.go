package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Suryanandx/2d-code-verifier/internal/analyzer"
	"github.com/Suryanandx/2d-code-verifier/internal/decoder"
	"github.com/Suryanandx/2d-code-verifier/internal/storage"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	DecodeTimeout      time.Duration
	MaxRequestBodySize int64
	MaxConcurrent      int

	UploadDir       string
	UploadRetention storage.Retention

	Decoder        decoder.Mode
	DecoderCommand string

	// GradeTablesPath is an optional YAML file overriding the default tables
	GradeTablesPath string
	// ReportsDBPath is the BoltDB file for verification reports; empty disables persistence
	ReportsDBPath string

	AzureAccount   string
	AzureKey       string
	AzureContainer string

	AllowedImageHosts []string
	BlockPrivateURLs  bool
	CORSAllowOrigin   string

	ScanThreshold      int
	GridSize           int
	ScanChannel        string
	ScanAxis           string
	QuietZoneModules   float64
	MinQuietZonePixels int
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AnalysisOptions builds the default request options from the scan settings
func (c *Config) AnalysisOptions() (analyzer.AnalysisOptions, error) {
	channel, err := analyzer.ParseChannel(c.ScanChannel)
	if err != nil {
		return analyzer.AnalysisOptions{}, fmt.Errorf("invalid SCAN_CHANNEL: %w", err)
	}
	axis, err := analyzer.ParseAxis(c.ScanAxis)
	if err != nil {
		return analyzer.AnalysisOptions{}, fmt.Errorf("invalid SCAN_AXIS: %w", err)
	}

	opts := analyzer.DefaultOptions().
		WithThreshold(uint8(c.ScanThreshold)).
		WithGridSize(c.GridSize).
		WithChannel(channel).
		WithAxis(axis)
	opts.QuietZone = analyzer.QuietZoneRules{
		Modules:   c.QuietZoneModules,
		MinPixels: c.MinQuietZonePixels,
	}
	return opts, opts.Validate()
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		DecodeTimeout:      parseDurationOrDefault("DECODE_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxConcurrent:      int(parseIntOrDefault("MAX_CONCURRENT_VERIFICATIONS", int64(runtime.NumCPU()))),

		UploadDir:      getEnvOrDefault("UPLOAD_DIR", "uploads"),
		DecoderCommand: getEnvOrDefault("DECODER_COMMAND", decoder.DefaultCommand),

		GradeTablesPath: os.Getenv("GRADE_TABLES_PATH"),
		ReportsDBPath:   getEnvOrDefault("REPORTS_DB_PATH", "reports.db"),

		AzureAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer: getEnvOrDefault("AZURE_CONTAINER", "verified-uploads"),

		AllowedImageHosts: splitList(os.Getenv("ALLOWED_IMAGE_HOSTS")),
		BlockPrivateURLs:  parseBoolOrDefault("BLOCK_PRIVATE_URLS", true),
		CORSAllowOrigin:   getEnvOrDefault("CORS_ALLOW_ORIGIN", "*"),

		ScanThreshold:      int(parseIntOrDefault("SCAN_THRESHOLD", 127)),
		GridSize:           int(parseIntOrDefault("GRID_SIZE", 5)),
		ScanChannel:        getEnvOrDefault("SCAN_CHANNEL", string(analyzer.ChannelRed)),
		ScanAxis:           getEnvOrDefault("SCAN_AXIS", string(analyzer.AxisHorizontal)),
		QuietZoneModules:   parseFloatOrDefault("QUIET_ZONE_MODULES", 1),
		MinQuietZonePixels: int(parseIntOrDefault("MIN_QUIET_ZONE_PIXELS", 1)),
	}

	var err error
	if cfg.UploadRetention, err = storage.ParseRetention(getEnvOrDefault("UPLOAD_RETENTION", string(storage.RetentionDelete))); err != nil {
		return nil, err
	}
	if cfg.Decoder, err = decoder.ParseMode(getEnvOrDefault("DECODER", string(decoder.ModeAuto))); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_VERIFICATIONS must be >= 1 (got %d)", c.MaxConcurrent)
	}
	if c.ScanThreshold < 0 || c.ScanThreshold > analyzer.MaxIntensity {
		return fmt.Errorf("SCAN_THRESHOLD must be within [0, 255] (got %d)", c.ScanThreshold)
	}
	if c.UploadRetention == storage.RetentionArchive && (c.AzureAccount == "" || c.AzureKey == "") {
		return fmt.Errorf("UPLOAD_RETENTION=archive requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
	}
	if _, err := c.AnalysisOptions(); err != nil {
		return err
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
