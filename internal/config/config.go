package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	Email     EmailConfig     `yaml:"email"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	Blog      BlogConfig      `yaml:"blog"`
	Brief     BriefConfig     `yaml:"brief"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	PublicURL      string   `yaml:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are honoured. Empty means RemoteAddr is always used.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds Redis settings. An empty URL disables Redis and the
// in-memory fallbacks are used instead.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig selects and configures the language-model provider
type LLMConfig struct {
	Provider       string        `yaml:"provider"` // "openai" or "bedrock"
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	OpenAI         OpenAIConfig  `yaml:"openai"`
	Bedrock        BedrockConfig `yaml:"bedrock"`
}

// Timeout returns the configured timeout as a duration
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxRetries        int    `yaml:"max_retries"`
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// EmailConfig holds outbound email configuration
type EmailConfig struct {
	Provider       string `yaml:"provider"` // "ses" or "log"
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	NotifyEmail    string `yaml:"notify_email"` // agency inbox for leads and briefs
	ReplyTo        string `yaml:"reply_to"`
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c EmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig holds S3 upload configuration
type StorageConfig struct {
	S3Bucket                 string `yaml:"s3_bucket"`
	AWSRegion                string `yaml:"aws_region"`
	AWSProfile               string `yaml:"aws_profile"` // Empty string uses default credential chain
	CDNDomain                string `yaml:"cdn_domain"`
	CloudFrontDistributionID string `yaml:"cloudfront_distribution_id"`
	MaxUploadMB              int    `yaml:"max_upload_mb"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// AuthConfig holds token verification and staff login configuration
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	JWTAudience        string `yaml:"jwt_audience"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	AllowedDomain      string `yaml:"allowed_domain"`
	CookieName         string `yaml:"cookie_name"`
	CookieSecure       bool   `yaml:"cookie_secure"`
	IdleTimeoutMinutes int    `yaml:"idle_timeout_minutes"`
	MaxSessionHours    int    `yaml:"max_session_hours"`
	WarnBeforeMinutes  int    `yaml:"warn_before_minutes"`
}

// GoogleEnabled reports whether staff Google login is configured.
func (c AuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// IdleTimeout is how long a session survives without activity.
func (c AuthConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// AbsoluteTimeout caps a session's total lifetime regardless of activity.
func (c AuthConfig) AbsoluteTimeout() time.Duration {
	return time.Duration(c.MaxSessionHours) * time.Hour
}

// WarnBefore is the window before idle expiry in which clients are told to warn.
func (c AuthConfig) WarnBefore() time.Duration {
	return time.Duration(c.WarnBeforeMinutes) * time.Minute
}

// RateLimitRule is a sliding-window budget
type RateLimitRule struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// Window returns the rule window as a duration
func (r RateLimitRule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// SecurityConfig holds rate limits and input limits
type SecurityConfig struct {
	MaxMessageLength int                      `yaml:"max_message_length"`
	MaxHistory       int                      `yaml:"max_history"`
	MaxFieldLength   int                      `yaml:"max_field_length"`
	RateLimits       map[string]RateLimitRule `yaml:"rate_limits"`
}

// Rule returns the configured rule, or the default for that name.
func (c SecurityConfig) Rule(name string) RateLimitRule {
	if r, ok := c.RateLimits[name]; ok && r.Requests > 0 && r.WindowSeconds > 0 {
		return r
	}
	if r, ok := defaultRateLimits[name]; ok {
		return r
	}
	return RateLimitRule{Requests: 60, WindowSeconds: 60}
}

var defaultRateLimits = map[string]RateLimitRule{
	"chat":    {Requests: 10, WindowSeconds: 60},
	"brief":   {Requests: 20, WindowSeconds: 60},
	"contact": {Requests: 3, WindowSeconds: 600},
	"email":   {Requests: 5, WindowSeconds: 60},
	"api":     {Requests: 120, WindowSeconds: 60},
	"upload":  {Requests: 10, WindowSeconds: 60},
}

// BlogConfig holds external feed import settings
type BlogConfig struct {
	Feeds           []string `yaml:"feeds"`
	IntervalMinutes int      `yaml:"interval_minutes"`
	AutoPublish     bool     `yaml:"auto_publish"`
	MaxItemsPerFeed int      `yaml:"max_items_per_feed"`
}

// Interval returns the import interval as a duration
func (c BlogConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// BriefConfig holds project brief wizard settings
type BriefConfig struct {
	DraftStore    string `yaml:"draft_store"` // "memory", "redis" or "dynamodb"
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	DraftTTLHours int    `yaml:"draft_ttl_hours"`
	MaxTurns      int    `yaml:"max_turns"`
}

// DraftTTL returns how long an unfinished brief is kept
func (c BriefConfig) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLHours) * time.Hour
}

// RetentionConfig holds data retention settings
type RetentionConfig struct {
	SecurityLogDays int `yaml:"security_log_days"`
}

// Load reads and parses the configuration file. A missing file yields the
// defaults so the service can run from environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 3
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 800
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.LLM.OpenAI.BaseURL == "" {
		cfg.LLM.OpenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.LLM.OpenAI.RequestsPerMinute == 0 {
		cfg.LLM.OpenAI.RequestsPerMinute = 60
	}
	if cfg.LLM.OpenAI.MaxRetries == 0 {
		cfg.LLM.OpenAI.MaxRetries = 2
	}
	if cfg.LLM.Bedrock.Region == "" {
		cfg.LLM.Bedrock.Region = "us-east-1"
	}
	if cfg.LLM.Bedrock.ModelID == "" {
		cfg.LLM.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "log"
	}
	if cfg.Email.Region == "" {
		cfg.Email.Region = "us-east-1"
	}
	if cfg.Email.TimeoutSeconds == 0 {
		cfg.Email.TimeoutSeconds = 30
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "BrightPixel Studio"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.MaxUploadMB == 0 {
		cfg.Storage.MaxUploadMB = 10
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "portal_session"
	}
	if cfg.Auth.IdleTimeoutMinutes == 0 {
		cfg.Auth.IdleTimeoutMinutes = 30
	}
	if cfg.Auth.MaxSessionHours == 0 {
		cfg.Auth.MaxSessionHours = 12
	}
	if cfg.Auth.WarnBeforeMinutes == 0 {
		cfg.Auth.WarnBeforeMinutes = 5
	}
	if cfg.Security.MaxMessageLength == 0 {
		cfg.Security.MaxMessageLength = 2000
	}
	if cfg.Security.MaxHistory == 0 {
		cfg.Security.MaxHistory = 20
	}
	if cfg.Security.MaxFieldLength == 0 {
		cfg.Security.MaxFieldLength = 500
	}
	if cfg.Blog.IntervalMinutes == 0 {
		cfg.Blog.IntervalMinutes = 60
	}
	if cfg.Blog.MaxItemsPerFeed == 0 {
		cfg.Blog.MaxItemsPerFeed = 10
	}
	if cfg.Brief.DraftStore == "" {
		cfg.Brief.DraftStore = "memory"
	}
	if cfg.Brief.DraftTTLHours == 0 {
		cfg.Brief.DraftTTLHours = 24
	}
	if cfg.Brief.MaxTurns == 0 {
		cfg.Brief.MaxTurns = 30
	}
	if cfg.Brief.AWSRegion == "" {
		cfg.Brief.AWSRegion = cfg.Storage.AWSRegion
	}
	if cfg.Retention.SecurityLogDays == 0 {
		cfg.Retention.SecurityLogDays = 90
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.OpenAI.Model = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.LLM.Bedrock.ModelID = v
	}

	if v := os.Getenv("EMAIL_PROVIDER"); v != "" {
		cfg.Email.Provider = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Email.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Email.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Email.Region = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("EMAIL_NOTIFY"); v != "" {
		cfg.Email.NotifyEmail = v
	}

	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("CDN_DOMAIN"); v != "" {
		cfg.Storage.CDNDomain = v
	}
	if v := os.Getenv("CLOUDFRONT_DISTRIBUTION_ID"); v != "" {
		cfg.Storage.CloudFrontDistributionID = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.GoogleClientSecret = v
	}
	if v := os.Getenv("AUTH_ALLOWED_DOMAIN"); v != "" {
		cfg.Auth.AllowedDomain = v
	}

	if v := os.Getenv("BRIEF_DRAFT_STORE"); v != "" {
		cfg.Brief.DraftStore = v
	}
	if v := os.Getenv("BRIEF_DYNAMODB_TABLE"); v != "" {
		cfg.Brief.DynamoDBTable = v
	}
	if v := os.Getenv("BLOG_FEEDS"); v != "" {
		cfg.Blog.Feeds = splitList(v)
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
