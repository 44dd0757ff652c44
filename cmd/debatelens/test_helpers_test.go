package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"debatelens/internal/config"
	"debatelens/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, mutate func(*config.Config), opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	for _, key := range []string{
		"DEBATELENS_CHUNK_SECONDS",
		"DEBATELENS_OVERLAP_SECONDS",
		"DEBATELENS_TRANSCRIBE_BACKEND",
		"DEBATELENS_TRANSCRIBE_MODEL",
		"DEBATELENS_DIARIZE_MODEL",
		"DEBATELENS_STANCE_BACKEND",
		"DEBATELENS_STANCE_MODEL",
		"HF_TOKEN",
		"HUGGING_FACE_HUB_TOKEN",
		"OPENAI_API_KEY",
		"OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	if mutate != nil {
		mutate(cfg)
	}

	configPath := filepath.Join(homeDir, ".config", "debatelens", "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
