package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("READ_TIMEOUT_SECONDS", "12")
	t.Setenv("ACCEPTED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("AUTO_MIGRATE", "true")

	c := New()

	assert.Equal(t, "9090", GetString(c, "PORT", "8080"))
	assert.Equal(t, 12, GetInt(c, "READ_TIMEOUT_SECONDS", 180))
	assert.Equal(t, 180, GetInt(c, "WRITE_TIMEOUT_SECONDS", 180))
	assert.True(t, GetBool(c, "AUTO_MIGRATE", false))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, GetStrings(c, "ACCEPTED_ORIGINS"))
	assert.Equal(t, "fallback", GetString(c, "NOT_SET_ANYWHERE", "fallback"))
}

func TestNilConfigUsesDefaults(t *testing.T) {
	assert.Equal(t, "x", GetString(nil, "PORT", "x"))
	assert.Equal(t, 3, GetInt(nil, "PORT", 3))
	assert.False(t, GetBool(nil, "PORT", false))
}
