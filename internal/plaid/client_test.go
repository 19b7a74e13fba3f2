package plaid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		ClientID:    "client",
		Secret:      "secret",
		AccessToken: "token",
		Environment: "sandbox",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing client id", mutate: func(c *Config) { c.ClientID = "" }},
		{name: "missing secret", mutate: func(c *Config) { c.Secret = "" }},
		{name: "missing access token", mutate: func(c *Config) { c.AccessToken = "" }},
		{name: "missing environment", mutate: func(c *Config) { c.Environment = "" }},
		{name: "bogus environment", mutate: func(c *Config) { c.Environment = "staging" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestCleanPayeeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Corner Store  ", "Corner Store"},
		{"SUPERMARKET 00482910", "SUPERMARKET"},
		{"SHOP 123", "SHOP 123"},
		{"12345678", "12345678"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanPayeeName(tt.in), "input %q", tt.in)
	}
}
