package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseMissingFileUsesDefaults(t *testing.T) {
	c, err := Parse(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "3306", c.DBPort)
	assert.True(t, c.CaptchaEnabled)
	assert.Equal(t, int64(55<<20), c.MaxRequestBytes)
	assert.Equal(t, 5<<20, c.UploadMaxFileBytes)
	assert.Equal(t, 100<<10, c.UploadMaxTextBytes)
	assert.Equal(t, 320, c.ImageMaxWidth)
	assert.Equal(t, 240, c.ImageMaxHeight)
	assert.Equal(t, 25, c.PageDefaultLimit)
	assert.Equal(t, 100, c.PageMaxLimit)
	assert.Equal(t, []string{"a", "code", "i", "strong"}, c.SanitizeTags)
	assert.Equal(t, []string{"href", "title"}, c.SanitizeAttrs["a"])
}

func TestParseReadsSections(t *testing.T) {
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "AllowedOrigins": ["https://a.example"]},
		"database": {"Driver": "postgres", "DBName": "board"},
		"captcha": {"Enabled": false},
		"upload": {"MaxFiles": 3, "ImageMaxWidth": 640},
		"listing": {"DefaultLimit": 10, "MaxLimit": 50},
		"sanitize": {"Tags": ["i"], "Attrs": {"a": ["href"]}}
	}`)

	c, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, []string{"https://a.example"}, c.AllowedOrigins)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "5432", c.DBPort)
	assert.Equal(t, "board", c.DBName)
	assert.False(t, c.CaptchaEnabled)
	assert.Equal(t, 3, c.UploadMaxFiles)
	assert.Equal(t, 640, c.ImageMaxWidth)
	assert.Equal(t, 10, c.PageDefaultLimit)
	assert.Equal(t, 50, c.PageMaxLimit)
	assert.Equal(t, []string{"i"}, c.SanitizeTags)
	assert.Equal(t, map[string][]string{"a": {"href"}}, c.SanitizeAttrs)
}

func TestParseEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"app": {"AppPort": "9000"}, "redis": {"CacheEnabled": false}}`)
	t.Setenv("APP_PORT", "7000")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("PAGE_DEFAULT_LIMIT", "5")

	c, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", c.AppPort)
	assert.True(t, c.CacheEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 5, c.PageDefaultLimit)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse(writeConfig(t, `{"app":`))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file.db", DSN(AppConfig{DBDriver: "sqlite", DBName: "file"}))
	assert.Equal(t, "custom", DSN(AppConfig{DBDriver: "postgres", DatabaseURI: "custom"}))
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable",
		DSN(AppConfig{DBDriver: "postgres", DBHost: "h", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable"}))
	assert.Equal(t, "u:p@tcp(h:3306)/n?charset=utf8mb4&parseTime=True&loc=Local",
		DSN(AppConfig{DBDriver: "mysql", DBHost: "h", DBPort: "3306", DBUser: "u", DBPassword: "p", DBName: "n"}))
}

func TestOpenDatabaseInMemory(t *testing.T) {
	type widget struct {
		ID   uint
		Name string
	}
	conn, err := OpenDatabase("sqlite", ":memory:", "silent")
	require.NoError(t, err)
	require.NoError(t, Migrate(conn, &widget{}))
	// second run is a no-op on existing tables
	require.NoError(t, Migrate(conn, &widget{}))
	assert.True(t, conn.Migrator().HasTable(&widget{}))

	_, err = OpenDatabase("oracle", "x", "silent")
	assert.Error(t, err)
}

func TestParseCaptchaDefaultsOn(t *testing.T) {
	c, err := Parse(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.True(t, c.CaptchaEnabled, "no config file")

	c, err = Parse(writeConfig(t, `{"app": {"AppPort": "9000"}}`))
	require.NoError(t, err)
	assert.True(t, c.CaptchaEnabled, "file without captcha section")

	t.Setenv("CAPTCHA_ENABLED", "false")
	c, err = Parse(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.False(t, c.CaptchaEnabled, "disabled through the environment")
}
