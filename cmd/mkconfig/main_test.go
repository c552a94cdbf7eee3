package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"hearth/app"
)

func TestDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearth.yaml")
	if err := run(path, false); err != nil {
		t.Fatalf("run() err = %v", err)
	}
	got, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() err = %v", err)
	}
	if want := app.DefaultConfig(); !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadConfig() = %+v, want %+v", got, want)
	}
}

func TestRunKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearth.yaml")
	if err := os.WriteFile(path, []byte("serial: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(path, false); err == nil {
		t.Fatalf("run() over an existing file err = nil")
	}
	if err := run(path, true); err != nil {
		t.Fatalf("run(force) err = %v", err)
	}
}
