package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("int a = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExpandSources(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.nod"))
	touch(t, filepath.Join(dir, "sub", "b.nod"))
	touch(t, filepath.Join(dir, "sub", "notes.txt"))

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "file",
			args: []string{filepath.Join(dir, "a.nod")},
			want: []string{filepath.Join(dir, "a.nod")},
		},
		{
			name: "directory",
			args: []string{dir},
			want: []string{filepath.Join(dir, "a.nod"), filepath.Join(dir, "sub", "b.nod")},
		},
		{
			name: "pattern",
			args: []string{filepath.Join(dir, "**", "b.nod")},
			want: []string{filepath.Join(dir, "sub", "b.nod")},
		},
		{
			name: "duplicates",
			args: []string{filepath.Join(dir, "a.nod"), dir},
			want: []string{filepath.Join(dir, "a.nod"), filepath.Join(dir, "sub", "b.nod")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandSources(tt.args)
			if err != nil {
				t.Fatalf("ExpandSources: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("files mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := ExpandSources([]string{filepath.Join(dir, "*.missing")}); err == nil {
		t.Error("a pattern matching nothing should fail")
	}
}

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.nod")
	touch(t, path)

	src, full, err := ReadSource(path)
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	if src != "int a = 1;" || !filepath.IsAbs(full) {
		t.Errorf("ReadSource = %q, %q", src, full)
	}
	if _, _, err := ReadSource(filepath.Join(dir, "absent.nod")); err == nil {
		t.Error("reading a missing file should fail")
	}
}
