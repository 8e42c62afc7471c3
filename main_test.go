package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionString(t *testing.T) {
	t.Run("database url wins", func(t *testing.T) {
		v := viper.New()
		v.Set("DATABASE_URL", "postgres://u:p@localhost/db")
		v.Set("DB_TYPE", "supa")

		dsn, err := connectionString(v)
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@localhost/db", dsn)
	})

	t.Run("supabase parts", func(t *testing.T) {
		v := viper.New()
		v.Set("DB_TYPE", "supa")
		v.Set("SUPABASE_DB_HOST", "db.example")
		v.Set("SUPABASE_DB_USER", "author")
		v.Set("SUPABASE_DB_PASSWORD", "secret")
		v.Set("SUPABASE_DB_NAME", "posts")

		dsn, err := connectionString(v)
		require.NoError(t, err)
		assert.Equal(t, "host=db.example user=author password=secret dbname=posts port=5432 sslmode=require", dsn)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := connectionString(viper.New())
		assert.Error(t, err)
	})
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	v := viper.New()
	v.Set("LOG_LEVEL", "DEBUG")
	setupLogging(v)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	v.Set("LOG_LEVEL", "loud")
	setupLogging(v)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestMigrateGotoRejectsBadVersion(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"migrate", "goto", "latest"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid version "latest"`)
}
