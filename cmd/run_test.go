package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/codebook-cli/internal/config"
	"github.com/sells-group/codebook-cli/internal/model"
	"github.com/sells-group/codebook-cli/internal/pipeline"
	"github.com/sells-group/codebook-cli/internal/prompt"
	"github.com/sells-group/codebook-cli/internal/source"
)

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{Key: "sk-test", Model: "claude-haiku-4-5-20251001"},
		Source:    config.SourceConfig{Kind: "drive"},
		Drive:     config.DriveConfig{Token: "tok", FolderID: "folder-1"},
		Pipeline:  config.PipelineConfig{Workers: 1},
		Output:    config.OutputConfig{Path: "codebook.xlsx"},
	}
}

func TestBuildSource(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = testConfig()
	src, err := buildSource()
	require.NoError(t, err)
	assert.IsType(t, &source.Drive{}, src)

	cfg.Source.Kind = "local"
	cfg.Source.Dir = "./docs"
	src, err = buildSource()
	require.NoError(t, err)
	assert.IsType(t, &source.Local{}, src)

	cfg.Source.Kind = "ftp"
	cfg.Source.FTPURL = "ftp://example.org/docs"
	src, err = buildSource()
	require.NoError(t, err)
	assert.IsType(t, &source.FTP{}, src)

	cfg.Source.Kind = "carrier-pigeon"
	_, err = buildSource()
	assert.Error(t, err)
}

func TestBuildPresetModelFromConfig(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = testConfig()
	cfg.Anthropic.Model = "claude-sonnet-4-5-20250929"

	preset, err := buildPreset()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5-20250929", preset.Model)
	assert.Equal(t, prompt.Default().System, preset.System)
}

func TestBuildPresetFileOverrides(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system: custom instruction\ntemperature: 0.5\n"), 0o644))

	cfg = testConfig()
	cfg.Pipeline.PromptFile = path

	preset, err := buildPreset()
	require.NoError(t, err)
	assert.Equal(t, "custom instruction", preset.System)
	assert.InDelta(t, 0.5, preset.Temperature, 0.001)
	// Model still comes from config when the file leaves it unset.
	assert.Equal(t, cfg.Anthropic.Model, preset.Model)
}

func TestFinishRun(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	failedReport := &pipeline.Report{Documents: []pipeline.DocumentResult{
		{Name: "a.docx", Err: assert.AnError},
		{Name: "b.docx", Err: assert.AnError},
	}}
	okReport := &pipeline.Report{Documents: []pipeline.DocumentResult{
		{Name: "a.docx", SheetID: "a", Rows: 2},
	}}

	t.Run("all documents failed, nothing written, nonzero exit", func(t *testing.T) {
		cfg = testConfig()
		cfg.Output.Path = filepath.Join(t.TempDir(), "codebook.xlsx")

		err := finishRun(model.NewCodebook(), failedReport)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 document(s) failed")
		assert.NoFileExists(t, cfg.Output.Path)
	})

	t.Run("empty source without failures exits clean", func(t *testing.T) {
		cfg = testConfig()
		cfg.Output.Path = filepath.Join(t.TempDir(), "codebook.xlsx")

		require.NoError(t, finishRun(model.NewCodebook(), &pipeline.Report{}))
		assert.NoFileExists(t, cfg.Output.Path)
	})

	t.Run("partial codebook written but run still fails", func(t *testing.T) {
		cfg = testConfig()
		cfg.Output.Path = filepath.Join(t.TempDir(), "codebook.xlsx")

		cb := model.NewCodebook()
		cb.Put("a", model.Table{{Theme: "t", Coding: "c", Verbatim: "v"}})
		partial := &pipeline.Report{Documents: append(okReport.Documents, failedReport.Documents...)}

		err := finishRun(cb, partial)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "codebook is partial")
		assert.FileExists(t, cfg.Output.Path)
	})

	t.Run("clean run writes and exits zero", func(t *testing.T) {
		cfg = testConfig()
		cfg.Output.Path = filepath.Join(t.TempDir(), "codebook.xlsx")

		cb := model.NewCodebook()
		cb.Put("a", model.Table{{Theme: "t", Coding: "c", Verbatim: "v"}})

		require.NoError(t, finishRun(cb, okReport))
		assert.FileExists(t, cfg.Output.Path)
	})
}

func TestApplyRunFlags(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = testConfig()

	require.NoError(t, runCmd.Flags().Set("out", "other.xlsx"))
	require.NoError(t, runCmd.Flags().Set("workers", "3"))
	require.NoError(t, runCmd.Flags().Set("keep-going", "true"))
	t.Cleanup(func() {
		_ = runCmd.Flags().Set("out", "")
		_ = runCmd.Flags().Set("workers", "0")
		_ = runCmd.Flags().Set("keep-going", "false")
	})

	applyRunFlags(runCmd)

	assert.Equal(t, "other.xlsx", cfg.Output.Path)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.True(t, cfg.Pipeline.KeepGoing)
	// Untouched flags leave config values alone.
	assert.Equal(t, "drive", cfg.Source.Kind)
}
