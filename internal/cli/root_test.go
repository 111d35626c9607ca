// Package cli provides the command-line interface for the predictor.
package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"stock-predictor/internal/config"
	"stock-predictor/internal/models"
)

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "predictor.db")
	return cfg, dir
}

func runCommand(t *testing.T, cfg *config.Config, configDir string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCmd(cfg, configDir, zerolog.Nop())
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if info["version"] != Version {
		t.Errorf("version = %q, want %q", info["version"], Version)
	}
}

func TestConfigPathCommand(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(out) != dir {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), dir)
	}
}

func TestConfigInitCommand(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir, "config", "init", "--json")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	var result struct {
		Written []string `json:"written"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(result.Written) != 2 {
		t.Fatalf("written = %v, want config.toml and credentials.toml", result.Written)
	}
	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}

	// Second init must leave existing files alone.
	out, err = runCommand(t, cfg, dir, "config", "init", "--json")
	if err != nil {
		t.Fatalf("second config init failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(result.Written) != 0 {
		t.Errorf("second init rewrote files: %v", result.Written)
	}
}

func TestStocksAddListDeactivate(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir,
		"stocks", "add", "RELIANCE", "Reliance", "Industries", "--sector", "Energy", "--json")
	if err != nil {
		t.Fatalf("stocks add failed: %v\n%s", err, out)
	}

	var added models.Stock
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if added.ID == 0 {
		t.Error("added stock has no ID")
	}
	if added.Ticker != "RELIANCE" || added.CompanyName != "Reliance Industries" {
		t.Errorf("unexpected stock: %+v", added)
	}
	if !added.IsActive {
		t.Error("new stock should be active")
	}

	// Duplicate ticker must be rejected by the unique constraint.
	if _, err := runCommand(t, cfg, dir, "stocks", "add", "RELIANCE", "Duplicate"); err == nil {
		t.Error("duplicate add succeeded")
	}

	out, err = runCommand(t, cfg, dir, "stocks", "list", "--json")
	if err != nil {
		t.Fatalf("stocks list failed: %v", err)
	}
	var listed []models.Stock
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(listed) != 1 || listed[0].Ticker != "RELIANCE" {
		t.Fatalf("listed = %+v, want one RELIANCE entry", listed)
	}

	if out, err := runCommand(t, cfg, dir, "stocks", "deactivate", "RELIANCE"); err != nil {
		t.Fatalf("stocks deactivate failed: %v\n%s", err, out)
	}

	out, err = runCommand(t, cfg, dir, "stocks", "list", "--json")
	if err != nil {
		t.Fatalf("stocks list failed: %v", err)
	}
	listed = nil
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(listed) != 0 {
		t.Errorf("deactivated stock still listed: %+v", listed)
	}

	out, err = runCommand(t, cfg, dir, "stocks", "list", "--all", "--json")
	if err != nil {
		t.Fatalf("stocks list --all failed: %v", err)
	}
	listed = nil
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(listed) != 1 {
		t.Errorf("--all should include inactive stocks, got %+v", listed)
	}
}

func TestStocksAddRejectsInvalidTicker(t *testing.T) {
	cfg, dir := testConfig(t)

	if _, err := runCommand(t, cfg, dir, "stocks", "add", "BAD TICKER!", "Bad Co"); err == nil {
		t.Error("invalid ticker accepted")
	}
}

func TestTopCommandEmptyStore(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir, "top", "--json")
	if err != nil {
		t.Fatalf("top failed: %v", err)
	}

	var records []models.PredictabilityRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}

	if _, err := runCommand(t, cfg, dir, "top", "nonsense"); err == nil {
		t.Error("non-numeric limit accepted")
	}
}

func TestAnalyzeArgumentValidation(t *testing.T) {
	cfg, dir := testConfig(t)

	if _, err := runCommand(t, cfg, dir, "analyze"); err == nil {
		t.Error("analyze without ticker or --all succeeded")
	}
	if _, err := runCommand(t, cfg, dir, "analyze", "RELIANCE", "--all"); err == nil {
		t.Error("analyze with both ticker and --all succeeded")
	}
}

func TestAnalyzeUnknownStock(t *testing.T) {
	cfg, dir := testConfig(t)

	if _, err := runCommand(t, cfg, dir, "analyze", "GHOST"); err == nil {
		t.Error("analyze of untracked stock succeeded")
	}
}

func TestEventsSentimentCommand(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir,
		"events", "sentiment", "Company", "reports", "record", "quarterly", "profit", "--json")
	if err != nil {
		t.Fatalf("events sentiment failed: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	category, _ := result["category"].(string)
	if category == "" {
		t.Errorf("no category in output: %s", out)
	}
	if _, ok := result["sentiment"]; !ok {
		t.Errorf("no sentiment in output: %s", out)
	}
}

func TestScheduleStatusCommand(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir, "schedule", "status", "--json")
	if err != nil {
		t.Fatalf("schedule status failed: %v", err)
	}

	var jobs []struct {
		Job  string `json:"job"`
		Spec string `json:"spec"`
	}
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}
	if jobs[0].Job != "prices" || jobs[0].Spec == "" {
		t.Errorf("unexpected first job: %+v", jobs[0])
	}
}

func TestCacheClearWhenDisabled(t *testing.T) {
	cfg, dir := testConfig(t)

	out, err := runCommand(t, cfg, dir, "cache", "clear", "--all")
	if err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	if !strings.Contains(out, "disabled") {
		t.Errorf("expected disabled notice, got %q", out)
	}

	if _, err := runCommand(t, cfg, dir, "cache", "clear", "RELIANCE", "--all"); err == nil {
		t.Error("combining ticker with --all succeeded")
	}
}

func TestDataFetchWithoutKite(t *testing.T) {
	cfg, dir := testConfig(t)

	if _, err := runCommand(t, cfg, dir, "stocks", "add", "INFY", "Infosys"); err != nil {
		t.Fatalf("stocks add failed: %v", err)
	}
	if _, err := runCommand(t, cfg, dir, "data", "fetch", "INFY"); err == nil {
		t.Error("data fetch without Kite credentials succeeded")
	}
}

func TestNewsFetchWithoutSources(t *testing.T) {
	cfg, dir := testConfig(t)

	if _, err := runCommand(t, cfg, dir, "stocks", "add", "INFY", "Infosys"); err != nil {
		t.Fatalf("stocks add failed: %v", err)
	}
	if _, err := runCommand(t, cfg, dir, "news", "fetch", "INFY"); err == nil {
		t.Error("news fetch without configured sources succeeded")
	}
}
