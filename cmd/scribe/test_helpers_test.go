package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/artifact"
	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobs.Store
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	homeDir := filepath.Join(filepath.Dir(cfg.Paths.DataDir), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SCRIBE_LLM_API_KEY", "")

	configPath := filepath.Join(homeDir, ".config", "scribe", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
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
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\nexport_dir = %q\n\n[cache]\npath = %q\n\n[llm]\napi_key = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.ExportDir,
		cfg.Cache.Path,
		"sk-test-secret",
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// completeJob walks a pending job through the pipeline states and stores notes.
func completeJob(t *testing.T, store *jobs.Store, job *jobs.Job) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.SaveTranscript(ctx, jobs.Transcript{
		JobID: job.ID, SourceID: job.SourceID, Language: "en", Provider: "fake",
		Title: "Go Concurrency", RawText: "Goroutines are cheap.", DurationSeconds: 600,
	}); err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	if err := store.SaveNotes(ctx, job.ID, artifact.Notes{
		SchemaVersion: artifact.SchemaVersion,
		StructuredNotes: artifact.StructuredNotes{
			Summary:    "Channels and goroutines.",
			Bullets:    []string{"Share memory by communicating"},
			Flashcards: []artifact.Flashcard{{Front: "What is a goroutine?", Back: "A lightweight thread"}},
		},
		Chapters: []artifact.Chapter{{Title: "Introduction", StartTime: 0, EndTime: 600}},
	}); err != nil {
		t.Fatalf("save notes: %v", err)
	}
	for _, state := range []jobs.State{jobs.StateFetchingSource, jobs.StateTransforming, jobs.StateGenerating} {
		job.State = state
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("advance to %s: %v", state, err)
		}
	}
	job.SetCompleted("Completed")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("complete job: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
