package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var fp = [32]byte{1, 2, 3}

func TestPut(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		data     []byte
		wantErr  error
		wantUsed int
	}{
		{name: "valid", key: "quick", data: []byte{1, 2, 3}, wantUsed: 3},
		{name: "special chars", key: "quick!", data: []byte{1}, wantErr: ErrInvalidName},
		{name: "path traversal", key: "../passwd", data: []byte{1}, wantErr: ErrInvalidName},
		{name: "too long", key: "a_name_much_longer_than_thirty_two_chars", data: []byte{1}, wantErr: ErrInvalidName},
		{name: "quota", key: "big", data: make([]byte, MaxBytes+1), wantErr: ErrQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			err := s.Put(tt.key, fp, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Put = %v, want %v", err, tt.wantErr)
			}
			if s.used != tt.wantUsed {
				t.Errorf("used = %d, want %d", s.used, tt.wantUsed)
			}
		})
	}
}

func TestPutCopiesAndReplaces(t *testing.T) {
	s := New()
	data := []byte{1, 2, 3}
	if err := s.Put("a", fp, data); err != nil {
		t.Fatal(err)
	}
	data[0] = 9
	e, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if e.Data[0] != 1 {
		t.Error("stored data follows the caller's slice")
	}
	if err := s.Put("a", fp, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if s.used != 1 {
		t.Errorf("used = %d after replacing, want 1", s.used)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestPersistAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	s := New()
	if err := s.Put("one", fp, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("two", fp, []byte("second")); err != nil {
		t.Fatal(err)
	}
	if !s.Dirty() {
		t.Fatal("store should be dirty after Put")
	}
	if err := s.PersistTo(dir); err != nil {
		t.Fatalf("PersistTo: %v", err)
	}
	if s.Dirty() {
		t.Error("store still dirty after PersistTo")
	}

	if err := s.Delete("two"); err != nil {
		t.Fatal(err)
	}
	if err := s.PersistTo(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "two"+Ext)); !os.IsNotExist(err) {
		t.Errorf("deleted snapshot still on disk: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded := New()
	if err := loaded.LoadFrom(dir); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got := loaded.List(); !reflect.DeepEqual(got, []string{"one"}) {
		t.Fatalf("List = %v, want [one]", got)
	}
	e, _ := loaded.Get("one")
	if string(e.Data) != "first" || e.Source != fp {
		t.Errorf("loaded entry = %q %v", e.Data, e.Source)
	}

	if err := New().LoadFrom(filepath.Join(dir, "absent")); err != nil {
		t.Errorf("LoadFrom(missing dir) = %v, want nil", err)
	}
}
