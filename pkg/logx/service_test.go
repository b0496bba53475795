package logx

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad json line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestServiceFileSinkFollowsApply(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	second := filepath.Join(dir, "b.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: first}})
	defer svc.Close()
	child := log.With(String("comp", "jobs"))

	child.Info("one")
	child.Debug("hidden")
	if svc.Level() != LevelInfo {
		t.Fatalf("Level() = %v, want info", svc.Level())
	}

	// Level change only: same file stays open.
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: first}})
	child.Debug("two")

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: second}})
	child.Info("three")

	a := readLines(t, first)
	if len(a) != 2 || a[0]["message"] != "one" || a[1]["message"] != "two" {
		t.Fatalf("first file = %v", a)
	}
	if a[0]["comp"] != "jobs" {
		t.Fatalf("derived fields missing: %v", a[0])
	}
	b := readLines(t, second)
	if len(b) != 1 || b[0]["message"] != "three" {
		t.Fatalf("second file = %v", b)
	}
}
