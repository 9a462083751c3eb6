package main

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"testing"
)

func TestSourcesAreGofmtClean(t *testing.T) {
	for _, name := range []string{"main.go", "cases.go"} {
		src, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		formatted, err := format.Source(src)
		if err != nil {
			t.Fatalf("format %s: %v", name, err)
		}
		if !bytes.Equal(src, formatted) {
			t.Errorf("%s is not gofmt-formatted", name)
		}
	}
}

func TestMigrationHelpers(t *testing.T) {
	path := filepath.Join("..", "..", "migrations", "0001_booking.sql")
	tables, err := extractTables(path)
	if err != nil {
		t.Fatalf("extract tables: %v", err)
	}
	want := map[string]bool{"service_requests": true, "mechanic_confirmations": true, "reviews": true, "chats": true, "pricing_rates": true}
	if len(tables) != len(want) {
		t.Fatalf("tables = %v", tables)
	}
	for _, tbl := range tables {
		if !want[tbl] {
			t.Errorf("unexpected table %q", tbl)
		}
	}

	stmts := splitSQL("-- header\nCREATE TABLE a (id TEXT);\n\nCREATE INDEX i ON a (id);\n")
	if len(stmts) != 2 || stmts[0] != "CREATE TABLE a (id TEXT)" {
		t.Errorf("split = %q", stmts)
	}
}
