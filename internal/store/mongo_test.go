package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMongo needs a reachable server; set DASHBOARD_TEST_MONGO_URI to run it.
func TestMongo(t *testing.T) {
	uri := os.Getenv("DASHBOARD_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DASHBOARD_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	collection := fmt.Sprintf("kv_test_%d", time.Now().UnixNano())

	m, err := ConnectMongo(ctx, uri, "dashboard-builder-test", collection)
	require.NoError(t, err)
	t.Cleanup(func() {
		m.collection.Drop(context.Background())
		m.Close(context.Background())
	})

	exercise(t, m)
}
