package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIsBinary(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		data []byte
		want bool
	}{
		{"plain text", []byte("hello world\nsecond line\n"), false},
		{"utf8 text", []byte("héllo wörld → done\n"), false},
		{"empty", nil, false},
		{"null byte", []byte("abc\x00def"), true},
		{"control bytes", []byte{0x01, 0x02, 0x03}, true},
		{"tabs and escapes", []byte("a\tb\x1b[0m\n"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, "f", tc.data)
			got, err := IsBinary(path)
			if err != nil {
				t.Fatalf("IsBinary: %v", err)
			}
			if got != tc.want {
				t.Errorf("IsBinary = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("content"))
	b := writeFile(t, dir, "b.txt", []byte("content"))
	c := writeFile(t, dir, "c.txt", []byte("different"))

	ha, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	hb, _ := Fingerprint(b)
	hc, _ := Fingerprint(c)

	if ha != hb {
		t.Errorf("identical content hashed differently: %s vs %s", ha, hb)
	}
	if ha == hc {
		t.Errorf("distinct content collided: %s", ha)
	}
	if len(ha) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(ha))
	}
}

func TestSplitLines(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one\n", []string{"one\n"}},
		{"one\ntwo", []string{"one\n", "two"}},
		{"one\ntwo\n", []string{"one\n", "two\n"}},
		{"\n\n", []string{"\n", "\n"}},
	}
	for _, tc := range cases {
		got := SplitLines(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("SplitLines(%q) = %q, want %q", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("SplitLines(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestFindDirFor(t *testing.T) {
	dirs := []string{"/home/dev/proj", "/home/dev/other"}

	if d, ok := FindDirFor("/home/dev/proj/src/main.go", dirs); !ok || d != "/home/dev/proj" {
		t.Errorf("FindDirFor = %q, %v", d, ok)
	}
	if d, ok := FindDirFor("/home/dev/other/readme.md", dirs); !ok || d != "/home/dev/other" {
		t.Errorf("FindDirFor = %q, %v", d, ok)
	}
	if _, ok := FindDirFor("/tmp/elsewhere.txt", dirs); ok {
		t.Error("FindDirFor matched a path outside every dir")
	}
}

func TestDisplayPath(t *testing.T) {
	got := DisplayPath("/home/dev/proj/src/main.go", "/home/dev/proj")
	if got != "proj/src/main.go" {
		t.Errorf("DisplayPath = %q, want %q", got, "proj/src/main.go")
	}
}
