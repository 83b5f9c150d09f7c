package testsupport

import (
	"context"
	"database/sql"
	"flag"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

var update = flag.Bool("update", false, "rewrite golden files with actual output")

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadGolden loads expected test output from a golden file.
// The path is relative to the test package directory.
func LoadGolden(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load golden file from %s: %v", path, err)
	}

	return data
}

// WriteGolden writes test output to a golden file.
func WriteGolden(t *testing.T, path string, data []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden compares actual data byte for byte with a golden file.
// Golden files are part of the wire contract, so a missing file fails the
// test unless -update is set.
func CompareWithGolden(t *testing.T, path string, actual []byte) {
	t.Helper()

	if *update {
		WriteGolden(t, path, actual)
		return
	}

	expected := LoadGolden(t, path)
	if string(actual) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}

// RedisServer starts an in-memory Redis server that is shut down when the
// test ends. It returns the server along with its host and port.
func RedisServer(t testing.TB) (*miniredis.Miniredis, string, int) {
	t.Helper()

	srv := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("invalid miniredis address %q: %v", srv.Addr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("invalid miniredis port %q: %v", portStr, err)
	}

	return srv, host, port
}

// Execer runs a statement. *sql.DB and *bun.DB both satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecSQLFile runs every semicolon separated statement in the file at path.
// Statements must not contain literal semicolons.
func ExecSQLFile(t testing.TB, db Execer, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load sql fixture from %s: %v", path, err)
	}

	for _, stmt := range strings.Split(string(data), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", strings.TrimSpace(stmt), err)
		}
	}
}
