package resources

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	v := viper.New()
	require.NoError(t, LoadConfig(v, "tzevents-test-missing"))

	assert.Equal(t, "8080", v.GetString("HTTP_PORT"))
	assert.Equal(t, "6060", v.GetString("DEBUG_PORT"))
	assert.Equal(t, uint(10), v.GetUint("DB_CONNECT_ATTEMPTS"))
	assert.Equal(t, 2*time.Second, v.GetDuration("DB_CONNECT_DELAY"))
	assert.False(t, v.GetBool("OTEL_ENABLED"))
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("HTTP_PORT: \"9090\"\nDB_CONNECT_DELAY: 5s\n"), 0o600))

	v := viper.New()
	v.AddConfigPath(dir)
	require.NoError(t, LoadConfig(v, "tzevents-test"))

	assert.Equal(t, "9090", v.GetString("HTTP_PORT"))
	assert.Equal(t, 5*time.Second, v.GetDuration("DB_CONNECT_DELAY"))
}

func TestErrorDetailsEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want bool
	}{
		{env: "local", want: true},
		{env: "Development", want: true},
		{env: "staging", want: false},
		{env: "production", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			v := viper.New()
			v.Set("APP_ENV", tt.env)

			assert.Equal(t, tt.want, ErrorDetailsEnabled(v))
		})
	}
}
