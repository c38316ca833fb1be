package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/adapter"
)

func TestBigQuery(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT")
	if projectID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewBigQuery(ctx, projectID)
	gt.NoError(t, err)
	defer client.Close()

	rows, err := client.Query(ctx, "SELECT @name AS name, @n + 1 AS next", map[string]any{
		"name": "songket",
		"n":    41,
	})
	gt.NoError(t, err)
	gt.A(t, rows).Length(1)
	gt.Equal(t, rows[0]["name"], any("songket"))
	gt.Equal(t, rows[0]["next"], any(int64(42)))
}
