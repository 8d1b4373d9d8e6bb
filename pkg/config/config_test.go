package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CURRENCY_LAYER_API_KEY", "test-key")
	t.Setenv("SUBREDDITS", "borrow,borrowtest")
	t.Setenv("KARMA_MIN", "1000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"borrow", "borrowtest"}, cfg.Reddit.Subreddits)
	assert.Equal(t, "borrow", cfg.Reddit.PrimarySubreddit())
	assert.Equal(t, 4*time.Hour, cfg.Currency.CacheTime)
	assert.Equal(t, 1000, cfg.Permissions.KarmaMin)
	// COMMENT_KARMA_MIN defaults to 40% of KARMA_MIN.
	assert.Equal(t, 400, cfg.Permissions.CommentKarmaMin)
	assert.True(t, cfg.Permissions.IsIgnored("LoansBot"))
	assert.True(t, cfg.Permissions.IsIgnored("loansbot"))
	assert.False(t, cfg.Permissions.IsIgnored("someone"))
}

func TestLoadConfigCommentKarmaOverride(t *testing.T) {
	t.Setenv("CURRENCY_LAYER_API_KEY", "test-key")
	t.Setenv("SUBREDDITS", "borrow")
	t.Setenv("COMMENT_KARMA_MIN", "77")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Permissions.CommentKarmaMin)
}

func TestLoadConfigMissingAPIKey(t *testing.T) {
	t.Setenv("CURRENCY_LAYER_API_KEY", "")
	t.Setenv("SUBREDDITS", "borrow")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestAMQPURL(t *testing.T) {
	cfg := AMQPConfig{Host: "mq", Port: 5672, VHost: "/", Username: "guest", Password: "guest"}
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.URL())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "postgres", Password: "secret",
		Name: "loansbot", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=postgres password=secret dbname=loansbot sslmode=disable",
		cfg.DSN())
}
