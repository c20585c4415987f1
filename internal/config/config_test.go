package config

import (
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
env: local
database:
  host: localhost
  user: gym
  dbname: gymsmart
jwt:
  secret: a-very-long-test-secret
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(baseYAML))
	require.NoError(t, err)

	assert.Equal(t, 8082, cfg.Server.Port)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 100, cfg.Chat.FetchLimit)
	assert.Equal(t, 3600, cfg.JWT.ExpiresIn)
	assert.True(t, cfg.IsDevelopment())
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("PORT", "9090")

	cfg, err := Parse([]byte(baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "groq-key", cfg.AI.GroqKey)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestParse_StorageBucketsDefault(t *testing.T) {
	cfg, err := Parse([]byte(baseYAML + "storage:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"audio-messages", "gym_uploads"}, cfg.Storage.Buckets)
}

func TestParse_MissingSecret(t *testing.T) {
	_, err := Parse([]byte(`
database:
  host: localhost
  user: gym
  dbname: gymsmart
`))
	assert.Error(t, err)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unterminated"))
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 3306, User: "u", Password: "p", DBName: "db"}
	assert.Equal(t, "u:p@tcp(h:3306)/db?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true", d.GetDSN())

	parsed, err := mysqldriver.ParseDSN(d.GetDSN())
	require.NoError(t, err)
	assert.True(t, parsed.ClientFoundRows)
	assert.True(t, parsed.ParseTime)
}
