package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("COURTPULSE_DOTENV_NEW=from-file\nCOURTPULSE_DOTENV_SET=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("COURTPULSE_DOTENV_SET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("COURTPULSE_DOTENV_NEW") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("COURTPULSE_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("COURTPULSE_DOTENV_NEW = %q, want from-file", got)
	}
	if got := os.Getenv("COURTPULSE_DOTENV_SET"); got != "from-env" {
		t.Fatalf("COURTPULSE_DOTENV_SET = %q, want from-env", got)
	}
}
