package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/orchestrator"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/submit"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in   string
		want orchestrator.Request
	}{
		{"3a", orchestrator.Request{Mode: orchestrator.ModeSingle, Stage: "3a"}},
		{"from:3a", orchestrator.Request{Mode: orchestrator.ModeFromStage, Stage: "3a"}},
		{"2:3b", orchestrator.Request{Mode: orchestrator.ModeRange, Start: "2", End: "3b"}},
	}
	for _, tc := range tests {
		got, err := parseSelector(tc.in)
		if err != nil {
			t.Fatalf("parseSelector(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("parseSelector(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseSelectorInvalid(t *testing.T) {
	for _, in := range []string{"", "from:", ":3b", "2:"} {
		if _, err := parseSelector(in); err == nil {
			t.Errorf("parseSelector(%q): expected error", in)
		}
	}
}

// Строка запуска из submission-скрипта должна приниматься командой run
// без изменений: позиционный селектор плюс флаги, которые CLI определяет.
func TestSubmitScriptMatchesRunCommand(t *testing.T) {
	stage := &domain.Stage{
		ID: "3a",
		Profile: domain.ResourceProfile{
			Cores:       8,
			MemoryBytes: 64 << 30,
			WallClock:   24 * time.Hour,
			Queue:       domain.QueueHighMem,
		},
	}

	script, err := submit.RenderString(stage, submit.Params{
		Binary:     "extract-pipeline",
		ConfigPath: "config.yaml",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var invocation []string
	for _, line := range strings.Split(strings.TrimSpace(script), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		invocation = strings.Fields(line)
	}
	if len(invocation) == 0 || invocation[0] != "extract-pipeline" {
		t.Fatalf("no binary invocation found in script:\n%s", script)
	}

	app := &App{}
	var jsonOutput bool
	root := &cobra.Command{Use: "extract-pipeline"}
	root.PersistentFlags().StringVar(&app.ConfigPath, "config", "config.yaml", "")
	root.PersistentFlags().StringVar(&app.Dataset, "dataset", "", "")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "")
	root.AddCommand(NewRunCmd(app, func() *Output { return NewOutput(false) }))

	cmd, args, err := root.Find(invocation[1:])
	if err != nil {
		t.Fatalf("find command: %v", err)
	}
	if cmd.Name() != "run" {
		t.Fatalf("script invokes %q, want run", cmd.Name())
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("run command rejects script flags: %v", err)
	}

	positional := cmd.Flags().Args()
	if len(positional) != 1 || positional[0] != "3a" {
		t.Fatalf("positional args = %v, want [3a]", positional)
	}
	if _, err := parseSelector(positional[0]); err != nil {
		t.Errorf("script selector invalid: %v", err)
	}
	if got, _ := cmd.Flags().GetString("config"); got != "config.yaml" {
		t.Errorf("config flag = %q, want config.yaml", got)
	}
}

func TestOutputTable(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{w: &buf, errW: &buf}

	out.Table([]string{"ID", "OUTCOME"}, [][]string{{"3a", "SUCCEEDED"}})

	got := buf.String()
	for _, want := range []string{"ID", "OUTCOME", "3a", "SUCCEEDED", "--"} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}
}

func TestOutputJSONMode(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{jsonMode: true, w: &buf, errW: &buf}

	out.Print([]string{"ID"}, [][]string{{"3a"}}, map[string]string{"id": "3a"})

	got := buf.String()
	if !strings.Contains(got, `"id": "3a"`) {
		t.Errorf("json output missing data: %s", got)
	}
	if strings.Contains(got, "--") {
		t.Errorf("json mode must not render a table: %s", got)
	}
}
