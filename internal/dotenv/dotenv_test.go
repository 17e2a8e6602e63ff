package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadFile_MissingFileIsNoop(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFile_ProcessEnvWins(t *testing.T) {
	path := writeEnvFile(t, ""+
		"# clinic branding\n"+
		"INTAKE_TEST_CLINIC_NAME=\"Riverside Clinic\"\n"+
		"export INTAKE_TEST_VOICE_MODEL=Kore\n"+
		"INTAKE_TEST_ADDR=:9000\n")

	t.Setenv("INTAKE_TEST_ADDR", ":8000")
	// Registered so t.Setenv restores the unset state after the test.
	t.Setenv("INTAKE_TEST_CLINIC_NAME", "")
	t.Setenv("INTAKE_TEST_VOICE_MODEL", "")
	os.Unsetenv("INTAKE_TEST_CLINIC_NAME")
	os.Unsetenv("INTAKE_TEST_VOICE_MODEL")

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	want := map[string]string{
		"INTAKE_TEST_CLINIC_NAME": "Riverside Clinic",
		"INTAKE_TEST_VOICE_MODEL": "Kore",
		"INTAKE_TEST_ADDR":        ":8000",
	}
	for key, val := range want {
		if got := os.Getenv(key); got != val {
			t.Fatalf("%s=%q, want %q", key, got, val)
		}
	}
}

func TestLoadFile_MalformedFileReturnsError(t *testing.T) {
	path := writeEnvFile(t, "INTAKE_TEST_BROKEN=\"unterminated\n")
	if err := LoadFile(path); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}

func TestLoadFile_DirectoryIsError(t *testing.T) {
	if err := LoadFile(t.TempDir()); err == nil {
		t.Fatalf("expected error when path is a directory")
	}
}
