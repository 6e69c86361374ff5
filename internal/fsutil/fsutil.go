// Package fsutil provides the file-level primitives used by the filesystem
// watcher: binary detection, content fingerprinting and line reads.
package fsutil

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// sniffLen is how many leading bytes are examined for binary detection.
const sniffLen = 4096

// textBytes marks every byte that can appear in a text file: common control
// characters plus the printable range, minus DEL.
var textBytes = func() [256]bool {
	var t [256]bool
	for _, b := range []byte{7, 8, 9, 10, 12, 13, 27} {
		t[b] = true
	}
	for b := 0x20; b < 0x100; b++ {
		t[b] = true
	}
	t[0x7F] = false
	return t
}()

// IsBinary reports whether the file looks binary, judged from a bounded
// prefix of its raw bytes.
func IsBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	for _, b := range buf[:n] {
		if !textBytes[b] {
			return true, nil
		}
	}
	return false, nil
}

// Fingerprint returns the hex-encoded blake3 hash of the file content.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadLines reads a text file as a slice of lines. Line terminators are
// preserved so the slices can be fed straight into diff generation.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits s after every newline, keeping the terminators.
// An empty string yields no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			return lines
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
		if s == "" {
			return lines
		}
	}
}

// FindDirFor returns which of dirs contains path, or false when none does.
func FindDirFor(path string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..") {
			return dir, true
		}
	}
	return "", false
}

// DisplayPath renders path as "<dir base>/<relative path>", the labelling
// used in diff headers and log records.
func DisplayPath(path, watchDir string) string {
	rel, err := filepath.Rel(watchDir, path)
	if err != nil {
		return path
	}
	base := filepath.Base(filepath.Clean(watchDir))
	return base + "/" + filepath.ToSlash(rel)
}
