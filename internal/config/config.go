package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	DBStatementTimeout time.Duration `mapstructure:"DB_STATEMENT_TIMEOUT"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	JWTSigningKey string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTTTL        time.Duration `mapstructure:"JWT_TTL"`
	OTPTTL        time.Duration `mapstructure:"OTP_TTL"`
	OTPLength     int           `mapstructure:"OTP_LENGTH"`
	SMSAPIURL     string        `mapstructure:"SMS_API_URL"`
	SMSAPIKey     string        `mapstructure:"SMS_API_KEY"`

	StorageURL                 string `mapstructure:"STORAGE_URL"`
	StorageServiceKey          string `mapstructure:"STORAGE_SERVICE_KEY"`
	StorageBucketDocuments     string `mapstructure:"STORAGE_BUCKET_DOCUMENTS"`
	StorageBucketPrescriptions string `mapstructure:"STORAGE_BUCKET_PRESCRIPTIONS"`
	StorageBucketReports       string `mapstructure:"STORAGE_BUCKET_REPORTS"`

	LLMAPIURL string `mapstructure:"LLM_API_URL"`
	LLMAPIKey string `mapstructure:"LLM_API_KEY"`
	LLMModel  string `mapstructure:"LLM_MODEL"`

	PDFProvider    string `mapstructure:"PDF_PROVIDER"`
	PDFAPIURL      string `mapstructure:"PDF_API_URL"`
	PDFAPIKey      string `mapstructure:"PDF_API_KEY"`
	PDFShiftAPIKey string `mapstructure:"PDFSHIFT_API_KEY"`

	VideoAppID     string `mapstructure:"VIDEO_APP_ID"`
	VideoAppSecret string `mapstructure:"VIDEO_APP_SECRET"`

	FieldEncryptionKey string `mapstructure:"FIELD_ENCRYPTION_KEY"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_STATEMENT_TIMEOUT", "REDIS_URL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"JWT_SIGNING_KEY", "JWT_TTL", "OTP_TTL", "OTP_LENGTH", "SMS_API_URL", "SMS_API_KEY",
	"STORAGE_URL", "STORAGE_SERVICE_KEY", "STORAGE_BUCKET_DOCUMENTS",
	"STORAGE_BUCKET_PRESCRIPTIONS", "STORAGE_BUCKET_REPORTS",
	"LLM_API_URL", "LLM_API_KEY", "LLM_MODEL",
	"PDF_PROVIDER", "PDF_API_URL", "PDF_API_KEY", "PDFSHIFT_API_KEY",
	"VIDEO_APP_ID", "VIDEO_APP_SECRET", "FIELD_ENCRYPTION_KEY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("STORAGE_BUCKET_DOCUMENTS", "documents")
	v.SetDefault("STORAGE_BUCKET_PRESCRIPTIONS", "prescriptions")
	v.SetDefault("STORAGE_BUCKET_REPORTS", "lab-reports")
	v.SetDefault("LLM_API_URL", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("PDF_PROVIDER", "html2pdf")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: X-Dev-User / X-Dev-Role headers are trusted and OTPs are logged.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LLMEnabled reports whether screening should call the chat completion API
// instead of going straight to the static question list.
func (c *Config) LLMEnabled() bool {
	return c.LLMAPIKey != "" && c.LLMAPIURL != ""
}

// StorageEnabled reports whether uploads go to the remote bucket service.
// Without it the server keeps uploads in memory, which only suits development.
func (c *Config) StorageEnabled() bool {
	return c.StorageURL != "" && c.StorageServiceKey != ""
}

// Validate checks that the configuration is safe to run. Outside development a
// JWT signing key is mandatory. In production FIELD_ENCRYPTION_KEY is required
// and must be a 64-character hex string (32 bytes decoded).
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.JWTSigningKey != "" && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 characters")
	}

	if c.IsProduction() && c.FieldEncryptionKey == "" {
		return fmt.Errorf("FIELD_ENCRYPTION_KEY is required in production")
	}
	if c.FieldEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.FieldEncryptionKey)
		if err != nil {
			return fmt.Errorf("FIELD_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("FIELD_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	switch c.PDFProvider {
	case "html2pdf", "pdfshift":
	default:
		return fmt.Errorf("PDF_PROVIDER must be \"html2pdf\" or \"pdfshift\", got %q", c.PDFProvider)
	}

	if c.OTPLength < 4 || c.OTPLength > 8 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 8, got %d", c.OTPLength)
	}

	return nil
}

// FieldKey returns the decoded field encryption key, or nil when unset.
func (c *Config) FieldKey() []byte {
	if c.FieldEncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.FieldEncryptionKey)
	if err != nil {
		return nil
	}
	return key
}
