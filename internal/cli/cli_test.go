package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	for _, name := range []string{"watch", "summarize", "check", "init", "describe"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "init", "--config", path)
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "[summarizer]") {
		t.Errorf("config missing summarizer section:\n%s", data)
	}

	// A second init without --force refuses to overwrite.
	if _, err := execute(t, "init", "--config", path); err == nil {
		t.Fatal("init overwrote an existing config")
	}
	if _, err := execute(t, "init", "--config", path, "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestDescribePrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[llm]
provider = "openai"
model = "gpt-4o-mini"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "describe", "--config", path)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !strings.Contains(out, `model = "gpt-4o-mini"`) {
		t.Errorf("file value missing:\n%s", out)
	}
	if !strings.Contains(out, `at = "19:00"`) {
		t.Errorf("default value missing:\n%s", out)
	}
}

func TestDescribeRejectsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[llm]\nmodel = \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "describe", "--config", path); err == nil {
		t.Fatal("invalid config accepted")
	}
}
