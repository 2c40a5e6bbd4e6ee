package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	infraBQ "github.com/dvloznov/gastosmart/internal/infra/bigquery"
)

func TestLoadMigrations_Dir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0001_init.sql":         "CREATE TABLE a (id INT64);",
		"0002_add_column.sql":   "ALTER TABLE a ADD COLUMN b STRING;",
		"001_invalid.sql":       "SELECT 1;",
		"0003_test":             "SELECT 1;",
		"invalid_0004_test.sql": "SELECT 1;",
	}
	for name, sql := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	got, err := loadMigrations(dir)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrations, want 2: %+v", len(got), got)
	}
	if got[0].Name != "init" || got[1].Name != "add_column" {
		t.Errorf("names = %q, %q", got[0].Name, got[1].Name)
	}

	again, err := loadMigrations(dir)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if again[0].Checksum != got[0].Checksum {
		t.Error("same content should produce the same checksum")
	}
	if got[0].Checksum == got[1].Checksum {
		t.Error("different content should produce different checksums")
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	got, err := loadMigrations("")
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no embedded migrations")
	}
	for i, m := range got {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	if _, err := loadMigrations(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestPrintPlan(t *testing.T) {
	all := []infraBQ.Migration{{Version: 1, Name: "init"}, {Version: 2, Name: "add_icon"}}

	var buf bytes.Buffer
	printPlan(&buf, all, all[1:])

	want := "  [SKIP] 0001_init (already applied)\n  [RUN]  0002_add_icon\n"
	if buf.String() != want {
		t.Errorf("printPlan =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestPrintDrift(t *testing.T) {
	var buf bytes.Buffer
	if printDrift(&buf, nil) {
		t.Error("no drift reported as drift")
	}

	buf.Reset()
	drift := []infraBQ.SchemaDrift{{Table: "accounts", Column: "icon", Problem: "missing"}}
	if !printDrift(&buf, drift) {
		t.Error("drift not reported")
	}
	if !strings.Contains(buf.String(), "accounts.icon: missing") {
		t.Errorf("output = %q", buf.String())
	}
}
