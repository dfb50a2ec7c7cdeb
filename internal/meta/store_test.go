// SPDX-License-Identifier: MPL-2.0

package meta

import (
	"errors"
	"os"
	"reflect"
	"testing"

	"runbox-cli/internal/pack"
)

func samplePackage() *pack.Package {
	return &pack.Package{
		Name:        "demo",
		Type:        pack.TypePython,
		Interpreter: "/usr/bin/env python",
		Entrypoint:  "main.py",
		Deps:        []string{"curl"},
	}
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	want := samplePackage()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestStore_LoadWithoutRecord(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	_, err := store.Load()
	if !errors.Is(err, ErrMetadataMissing) {
		t.Fatalf("Load() error = %v, want ErrMetadataMissing", err)
	}
	var missing *MetadataMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("Load() error type = %T, want *MetadataMissingError", err)
	}
}

func TestStore_Exists(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	if store.Exists() {
		t.Error("Exists() = true before any Save()")
	}
	if err := store.Save(samplePackage()); err != nil {
		t.Fatal(err)
	}
	if !store.Exists() {
		t.Error("Exists() = false after Save()")
	}
}

func TestStore_SaveReplacesWholesale(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	first := samplePackage()
	if err := store.Save(first); err != nil {
		t.Fatal(err)
	}

	second := &pack.Package{
		Name:        "demo",
		Type:        pack.TypeShell,
		Interpreter: "/bin/sh",
		Entrypoint:  "run.sh",
	}
	if err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, second) {
		t.Errorf("Load() = %+v, want the replacement record %+v", got, second)
	}
	if len(got.Deps) != 0 {
		t.Errorf("Load().Deps = %v, old record leaked into the new one", got.Deps)
	}
}

func TestStore_LoadToleratesUnknownFields(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `{
  "name": "demo",
  "type": "shell",
  "interpreter": "/bin/sh",
  "entrypoint": "run.sh",
  "future_field": {"nested": true}
}`
	if err := os.WriteFile(store.Path(), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Type != pack.TypeShell || got.Entrypoint != "run.sh" {
		t.Errorf("Load() = %+v, known fields not preserved", got)
	}
}

func TestStore_LoadMalformedDocument(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(); err == nil {
		t.Error("Load() expected error for malformed document")
	}
}
