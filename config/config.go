package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Secrets should be provided via config/config.json, a .env file or the environment.
type AppConfig struct {
	AppPort            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	MaxRequestBytes    int64
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: mysql (default), postgres or sqlite
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	// Redis for list/detail caching and captcha answers
	RedisHost       string
	RedisPort       int
	RedisDB         int
	RedisPassword   string
	CacheEnabled    bool
	CacheTTLSeconds int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Captcha
	CaptchaEnabled    bool
	CaptchaTTLSeconds int
	// Attachments
	UploadMaxFileBytes int
	UploadMaxTextBytes int
	UploadMaxFiles     int
	ImageMaxWidth      int
	ImageMaxHeight     int
	ImageMaxPixels     int
	JPEGQuality        int
	// Listing
	PageDefaultLimit int
	PageMaxLimit     int
	// Sanitizer allow-list
	SanitizeTags       []string
	SanitizeAttrs      map[string][]string
	SanitizeURLSchemes []string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration once during boot.
// Precedence: .env -> config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	c, err := Parse(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Parse builds a configuration from the JSON file at path (missing file is fine),
// defaults and environment overrides. It does not touch the cached configuration.
func Parse(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections from a JSON file. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	// on unless a file says otherwise
	out.CaptchaEnabled = true

	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
		return 0
	}
	getBool := func(m map[string]any, key string, def bool) bool {
		if b, ok := m[key].(bool); ok {
			return b
		}
		return def
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.MaxRequestBytes = int64(getInt(app, "MaxRequestBytes"))
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.DBSSLMode = getString(dbs, "DBSSLMode")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
		out.CacheEnabled = getBool(rds, "CacheEnabled", false)
		out.CacheTTLSeconds = getInt(rds, "CacheTTLSeconds")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinMode = getString(lg, "GinMode")
		out.GinPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress", false)
	}

	if cp, ok := raw["captcha"].(map[string]any); ok {
		out.CaptchaEnabled = getBool(cp, "Enabled", true)
		out.CaptchaTTLSeconds = getInt(cp, "TTLSeconds")
	}

	if up, ok := raw["upload"].(map[string]any); ok {
		out.UploadMaxFileBytes = getInt(up, "MaxFileBytes")
		out.UploadMaxTextBytes = getInt(up, "MaxTextBytes")
		out.UploadMaxFiles = getInt(up, "MaxFiles")
		out.ImageMaxWidth = getInt(up, "ImageMaxWidth")
		out.ImageMaxHeight = getInt(up, "ImageMaxHeight")
		out.ImageMaxPixels = getInt(up, "ImageMaxPixels")
		out.JPEGQuality = getInt(up, "JPEGQuality")
	}

	if ls, ok := raw["listing"].(map[string]any); ok {
		out.PageDefaultLimit = getInt(ls, "DefaultLimit")
		out.PageMaxLimit = getInt(ls, "MaxLimit")
	}

	if sn, ok := raw["sanitize"].(map[string]any); ok {
		out.SanitizeTags = getStringSlice(sn, "Tags")
		out.SanitizeURLSchemes = getStringSlice(sn, "URLSchemes")
		if attrs, ok := sn["Attrs"].(map[string]any); ok {
			out.SanitizeAttrs = make(map[string][]string, len(attrs))
			for tag := range attrs {
				out.SanitizeAttrs[tag] = getStringSlice(attrs, tag)
			}
		}
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.MaxRequestBytes == 0 {
		c.MaxRequestBytes = 55 << 20
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DBDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "threadbbs"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 3600
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.CaptchaTTLSeconds == 0 {
		c.CaptchaTTLSeconds = 600
	}
	if c.UploadMaxFileBytes == 0 {
		c.UploadMaxFileBytes = 5 << 20
	}
	if c.UploadMaxTextBytes == 0 {
		c.UploadMaxTextBytes = 100 << 10
	}
	if c.UploadMaxFiles == 0 {
		c.UploadMaxFiles = 10
	}
	if c.ImageMaxWidth == 0 {
		c.ImageMaxWidth = 320
	}
	if c.ImageMaxHeight == 0 {
		c.ImageMaxHeight = 240
	}
	if c.ImageMaxPixels == 0 {
		c.ImageMaxPixels = 40_000_000
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = 85
	}
	if c.PageDefaultLimit == 0 {
		c.PageDefaultLimit = 25
	}
	if c.PageMaxLimit == 0 {
		c.PageMaxLimit = 100
	}
	if len(c.SanitizeTags) == 0 {
		c.SanitizeTags = []string{"a", "code", "i", "strong"}
	}
	if c.SanitizeAttrs == nil {
		c.SanitizeAttrs = map[string][]string{"a": {"href", "title"}}
	}
	if len(c.SanitizeURLSchemes) == 0 {
		c.SanitizeURLSchemes = []string{"http", "https", "mailto"}
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("MAX_REQUEST_BYTES", ""); v != "" {
		c.MaxRequestBytes = int64(mustParseInt(v))
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("DB_SSLMODE", ""); v != "" {
		c.DBSSLMode = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("CACHE_ENABLED", ""); v != "" {
		c.CacheEnabled = v == "true"
	}
	if v := getEnv("CACHE_TTL_SECONDS", ""); v != "" {
		c.CacheTTLSeconds = mustParseInt(v)
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("CAPTCHA_ENABLED", ""); v != "" {
		c.CaptchaEnabled = v == "true"
	}
	if v := getEnv("CAPTCHA_TTL_SECONDS", ""); v != "" {
		c.CaptchaTTLSeconds = mustParseInt(v)
	}
	if v := getEnv("UPLOAD_MAX_FILE_BYTES", ""); v != "" {
		c.UploadMaxFileBytes = mustParseInt(v)
	}
	if v := getEnv("UPLOAD_MAX_TEXT_BYTES", ""); v != "" {
		c.UploadMaxTextBytes = mustParseInt(v)
	}
	if v := getEnv("UPLOAD_MAX_FILES", ""); v != "" {
		c.UploadMaxFiles = mustParseInt(v)
	}
	if v := getEnv("UPLOAD_JPEG_QUALITY", ""); v != "" {
		c.JPEGQuality = mustParseInt(v)
	}
	if v := getEnv("PAGE_DEFAULT_LIMIT", ""); v != "" {
		c.PageDefaultLimit = mustParseInt(v)
	}
	if v := getEnv("PAGE_MAX_LIMIT", ""); v != "" {
		c.PageMaxLimit = mustParseInt(v)
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
