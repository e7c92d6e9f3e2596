package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEnvFile(t *testing.T) {
	for _, key := range []string{"SUPABASE_FUNCTIONS_URL", "SUPABASE_ANON_KEY", "SKYSENSE_JWT_SECRET"} {
		t.Setenv(key, "")
	}

	path := writeEnv(t, `# remote profile service
SUPABASE_FUNCTIONS_URL="https://example.supabase.co/functions/v1"
SUPABASE_ANON_KEY='anon'

not a pair
SKYSENSE_JWT_SECRET = spaced
`)
	require.NoError(t, loadEnvFile(path))

	assert.Equal(t, "https://example.supabase.co/functions/v1", os.Getenv("SUPABASE_FUNCTIONS_URL"))
	assert.Equal(t, "anon", os.Getenv("SUPABASE_ANON_KEY"))
	assert.Equal(t, "spaced", os.Getenv("SKYSENSE_JWT_SECRET"))
}

func TestLoadEnvFileKeepsExisting(t *testing.T) {
	t.Setenv("SKYSENSE_API_KEY", "from-shell")

	require.NoError(t, loadEnvFile(writeEnv(t, "SKYSENSE_API_KEY=from-file\n")))
	assert.Equal(t, "from-shell", os.Getenv("SKYSENSE_API_KEY"))
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.Error(t, loadEnvFile(filepath.Join(t.TempDir(), "nope.env")))
}

func TestResolveEnvWithAliases(t *testing.T) {
	for _, key := range []string{"SKYSENSE_REMOTE_API_KEY", "SUPABASE_ANON_KEY", "SKYSENSE_API_KEY"} {
		t.Setenv(key, "")
	}
	assert.Empty(t, ResolveEnvWithAliases("SKYSENSE_REMOTE_API_KEY"))

	t.Setenv("SKYSENSE_API_KEY", "second")
	assert.Equal(t, "second", ResolveEnvWithAliases("SKYSENSE_REMOTE_API_KEY"))

	t.Setenv("SUPABASE_ANON_KEY", "first")
	assert.Equal(t, "first", ResolveEnvWithAliases("SKYSENSE_REMOTE_API_KEY"), "aliases are tried in order")

	t.Setenv("SKYSENSE_REMOTE_API_KEY", "canonical")
	assert.Equal(t, "canonical", ResolveEnvWithAliases("SKYSENSE_REMOTE_API_KEY"))

	assert.Empty(t, ResolveEnvWithAliases("SKYSENSE_UNKNOWN"))
}

func TestAliasesFeedLoad(t *testing.T) {
	t.Setenv("SKYSENSE_REMOTE_BASE_URL", "")
	t.Setenv("SUPABASE_FUNCTIONS_URL", "https://fn.example.com/")
	t.Setenv("SKYSENSE_SECURITY_JWT_SECRET", "")
	t.Setenv("SKYSENSE_JWT_SECRET", "shh")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "https://fn.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "shh", cfg.Security.JWTSecret)
	assert.False(t, cfg.Offline())
}

func BenchmarkLoadEnvFile(b *testing.B) {
	path := filepath.Join(b.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("A=1\nB=\"2\"\nC='3'\n"), 0o600); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		loadEnvFile(path)
	}
}
