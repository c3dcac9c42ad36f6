package testutil

import (
	"strings"
	"testing"
)

func TestNewTestDSN(t *testing.T) {
	dsn := NewTestDSN("TestName")
	if !strings.HasPrefix(dsn, "file:TestName_") {
		t.Errorf("NewTestDSN did not generate expected DSN, got: %s", dsn)
	}
	if !strings.Contains(dsn, "mode=memory&cache=shared") {
		t.Errorf("expected shared in-memory DSN, got: %s", dsn)
	}
	if !strings.Contains(dsn, "_pragma=foreign_keys(1)") {
		t.Errorf("expected foreign keys to be enabled, got: %s", dsn)
	}
	if NewTestDSN("TestName") == dsn {
		t.Error("expected distinct DSNs for repeated calls")
	}
	if strings.Contains(NewTestDSN("TestParent/sub test"), "/") {
		t.Error("expected subtest separators to be replaced")
	}
}

func TestNewTestDatastore(t *testing.T) {
	ds := NewTestDatastore(t)
	var count int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM teams").Scan(&count); err != nil {
		t.Fatalf("teams table not available: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty teams table, got %d rows", count)
	}
}
