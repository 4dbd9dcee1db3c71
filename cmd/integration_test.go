package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "github.com/KaramelBytes/scoutdeck-cli/internal/config"
)

const eventsCSV = `Player,Squad Name,Event Type,x,y,end_x,end_y,minute
Saka,Arsenal,Shot,100,40,120,40,10
Odegaard,Arsenal,Pass,60,30,80,35,22
Palmer,Chelsea,Shot,105,35,120,38,41
Rice,Arsenal,Pass,40,50,55,45,63
`

// isolate points HOME at a temp dir and writes the events fixture into it.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	cfg = &cfgpkg.Global{DPI: 20}
	t.Cleanup(func() { cfg = nil })
	path := filepath.Join(home, "events.csv")
	if err := os.WriteFile(path, []byte(eventsCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

// runCmd is a helper to execute the root command with args and capture
// what commands write through cmd.OutOrStdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flags keep their value and Changed state across invocations
	resetFlags(rootCmd)
	repQuiet = false
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetOut(nil)
	return out.String(), err
}

// resetFlags restores every flag of c and its subcommands to its default.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestCLI_ReportDryRun(t *testing.T) {
	path := isolate(t)
	if _, err := runCmd(t, "report", path, "--type", "Opposition Report", "--subject", "Arsenal", "--visuals", "--dry-run"); err != nil {
		t.Fatalf("dry-run failed: %v", err)
	}
}

func TestCLI_BudgetLimitBlocksGeneration(t *testing.T) {
	path := isolate(t)
	_, err := runCmd(t, "report", path, "--type", "Match Report", "--model", "openai/gpt-4o-mini", "--dry-run", "--budget-limit", "0.0001")
	if err == nil || !strings.Contains(err.Error(), "exceeds budget limit") {
		t.Fatalf("expected error due to budget limit, got %v", err)
	}
}

func TestCLI_ReportValidation(t *testing.T) {
	path := isolate(t)
	if _, err := runCmd(t, "report", path); err == nil || !strings.Contains(err.Error(), "--type is required") {
		t.Fatalf("expected missing type error, got %v", err)
	}
	if _, err := runCmd(t, "report", path, "--type", "Season Review"); err == nil || !strings.Contains(err.Error(), "unknown --type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	_, err := runCmd(t, "report", path, "--type", "Player Report", "--subject", "Henry", "--dry-run")
	if err == nil || !strings.Contains(err.Error(), `subject "Henry" not found`) {
		t.Fatalf("expected unknown subject error, got %v", err)
	}
}

func TestCLI_ReportWithoutKeyFails(t *testing.T) {
	path := isolate(t)
	_, err := runCmd(t, "report", path, "--type", "Match Report", "--provider", "openrouter")
	if err == nil || !strings.Contains(err.Error(), "API key not found") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestCLI_Subjects(t *testing.T) {
	path := isolate(t)
	out, err := runCmd(t, "subjects", path, "--type", "Opposition Report")
	if err != nil {
		t.Fatalf("subjects failed: %v", err)
	}
	for _, want := range []string{"File type: Event Data", `column "Team"`, "- Arsenal", "- Chelsea"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestCLI_Analyze(t *testing.T) {
	path := isolate(t)
	out, err := runCmd(t, "analyze", path)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	for _, want := range []string{"[OVERVIEW]", "Rows: 4", `Column mapping: "Squad Name" → "Team"`, "[DATASET SUMMARY]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in analysis:\n%s", want, out)
		}
	}
}

func TestCLI_Viz(t *testing.T) {
	path := isolate(t)
	dir := filepath.Dir(path)
	code := filepath.Join(dir, "bar.py")
	snippet := "fig, ax = plt.subplots()\ncounts = df['Players'].value_counts()\nax.bar(counts.index, counts.values)\n"
	if err := os.WriteFile(code, []byte(snippet), 0o644); err != nil {
		t.Fatalf("write code: %v", err)
	}
	png := filepath.Join(dir, "plots", "bar.png")
	out, err := runCmd(t, "viz", path, code, "--out", png)
	if err != nil {
		t.Fatalf("viz failed: %v", err)
	}
	if !strings.Contains(out, "Column fix: 'Players' → 'Player'") {
		t.Fatalf("expected repair entry in %q", out)
	}
	b, err := os.ReadFile(png)
	if err != nil || !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Fatalf("expected PNG at %s: %v", png, err)
	}

	blocked := filepath.Join(dir, "evil.py")
	if err := os.WriteFile(blocked, []byte("import os\nos.system('ls')\n"), 0o644); err != nil {
		t.Fatalf("write code: %v", err)
	}
	if _, err := runCmd(t, "viz", path, blocked, "--out", png); err == nil || !strings.Contains(err.Error(), "Code blocked for security reasons") {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

func TestCLI_ReportTypesAndModels(t *testing.T) {
	isolate(t)
	out, err := runCmd(t, "report-types")
	if err != nil || !strings.Contains(out, "Opposition Report") {
		t.Fatalf("report-types: %v %q", err, out)
	}
	out, err = runCmd(t, "models", "list")
	if err != nil || !strings.Contains(out, "meta-llama/llama-3-70b-instruct") {
		t.Fatalf("models list: %v %q", err, out)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { cfgFile = "" })
	if _, err := runCmd(t, "config", "set", "openrouter_api_key", "sk-or-v1-secretvalue", "--config", cfgPath); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := runCmd(t, "config", "set", "safety_profile", "lenient", "--config", cfgPath); err == nil {
		t.Fatal("expected invalid safety_profile error")
	}
	out, err := runCmd(t, "config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "secretvalue") || !strings.Contains(out, "sk-****lue") {
		t.Fatalf("expected masked key in %q", out)
	}
}

func TestCLI_ReportFlagsDoNotCarryOver(t *testing.T) {
	path := isolate(t)
	if _, err := runCmd(t, "report", path, "--type", "Opposition Report", "--subject", "Arsenal", "--dry-run"); err != nil {
		t.Fatalf("dry-run failed: %v", err)
	}
	// run again without resetting bound values: only this parse's flags count
	reportCmd.Flags().VisitAll(func(fl *pflag.Flag) { fl.Changed = false })
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"report", path})
	err := rootCmd.Execute()
	rootCmd.SetOut(nil)
	if err == nil || !strings.Contains(err.Error(), "--type is required") {
		t.Fatalf("expected missing type error, got %v", err)
	}
	if repSubject != "" || repDryRun {
		t.Fatalf("expected subject and dry-run reset, got %q %v", repSubject, repDryRun)
	}
}
