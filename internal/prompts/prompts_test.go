package prompts

import (
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	for _, name := range []string{"single", "many"} {
		t.Run(name, func(t *testing.T) {
			got, err := Load(name)
			if err != nil {
				t.Fatalf("Load(%q): %v", name, err)
			}
			if got == "" {
				t.Fatal("empty prompt")
			}
			if strings.HasSuffix(got, "\n") {
				t.Error("prompt not trimmed")
			}
		})
	}
}

func TestLoadUnknown(t *testing.T) {
	if _, err := Load("nonexistent"); err == nil {
		t.Fatal("unknown prompt accepted")
	}
}
