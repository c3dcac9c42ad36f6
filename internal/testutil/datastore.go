package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jbweber/homelab/labpool/internal/datastore"
)

var dsnCounter atomic.Int64

// NewTestDSN generates a DSN for an in-memory SQLite database for testing purposes.
// Each call yields a distinct database, so tests sharing a name stay isolated.
func NewTestDSN(testName string) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(testName)
	return fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite",
		name, dsnCounter.Add(1))
}

// NewTestDatastore opens a migrated in-memory datastore that is closed when the test ends.
func NewTestDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()
	ds, err := datastore.New(NewTestDSN(t.Name()))
	if err != nil {
		t.Fatalf("Failed to create test datastore: %v", err)
	}
	t.Cleanup(func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test datastore: %v", err)
		}
	})
	return ds
}
