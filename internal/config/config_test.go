package config

import (
	"os"
	"testing"
)

func clearJudgeEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"JUDGE_TOKEN", "JUDGE_PORT", "JUDGE_HOST", "JUDGE_THREADS", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearJudgeEnv(t)
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when JUDGE_TOKEN is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearJudgeEnv(t)
	os.Setenv("JUDGE_TOKEN", "secret")
	defer clearJudgeEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 3235 {
		t.Errorf("got default port %d, want 3235", cfg.Port)
	}
	if cfg.Threads != 1 {
		t.Errorf("got default threads %d, want 1", cfg.Threads)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearJudgeEnv(t)
	os.Setenv("JUDGE_TOKEN", "secret")
	os.Setenv("JUDGE_PORT", "9090")
	os.Setenv("JUDGE_THREADS", "8")
	defer clearJudgeEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Token != "secret" {
		t.Errorf("got token %q", cfg.Token)
	}
	if cfg.Port != 9090 {
		t.Errorf("got port %d, want 9090", cfg.Port)
	}
	if cfg.Threads != 8 {
		t.Errorf("got threads %d, want 8", cfg.Threads)
	}
	if cfg.Addr() != cfg.Host+":9090" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}

func TestLoadRejectsNonPositiveThreads(t *testing.T) {
	clearJudgeEnv(t)
	os.Setenv("JUDGE_TOKEN", "secret")
	os.Setenv("JUDGE_THREADS", "0")
	defer clearJudgeEnv(t)

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for zero threads")
	}
}
