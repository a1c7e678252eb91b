package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AI_PROVIDER", "STORE_DRIVER", "STORE_DSN", "PERSONA_ID", "DEFAULT_STREAM_TITLE", "TWITCH_CHANNEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "file:aituber.db", cfg.Store.DSN)
	assert.Equal(t, "nike", cfg.Stream.PersonaID)
	assert.Equal(t, "配信", cfg.Stream.DefaultTitle)
	assert.False(t, cfg.Twitch.Enabled())
}

func TestLoadServerAddrForms(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	server, err := loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", server.Addr)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,*.b.example")
	server, err = loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "*.b.example"}, server.AllowedOrigins)

	t.Setenv("PORT", "80 80")
	_, err = loadServerConfig()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "llama")
	_, err := Load()
	assert.ErrorContains(t, err, "AI_PROVIDER")
}

func TestLoadRejectsBadTemperature(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("ARK_TEMPERATURE", "warm")
	_, err := Load()
	assert.ErrorContains(t, err, "ARK_TEMPERATURE")
}

func TestPostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_DSN", "")
	_, err := loadStoreConfig()
	assert.Error(t, err)
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{Provider: ProviderArk, Model: "ep-1"}.Enabled())
	assert.True(t, AIConfig{Provider: ProviderArk, Model: "ep-1", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Provider: ProviderOpenAI, OpenAIKey: "sk"}.Enabled())
	assert.False(t, AIConfig{Provider: ProviderOpenAI}.Enabled())
}

func TestTwitchChannelStripsHash(t *testing.T) {
	t.Setenv("TWITCH_CHANNEL", "#nike_ch")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nike_ch", cfg.Twitch.Channel)
	assert.True(t, cfg.Twitch.Anonymous())
}
