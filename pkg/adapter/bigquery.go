package adapter

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// BigQuery runs parametrized statements. Parameters are bound by name (@name).
type BigQuery interface {
	// Query runs a SELECT and returns all rows
	Query(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error)

	// Exec runs a DML statement and returns the number of affected rows
	Exec(ctx context.Context, sql string, params map[string]any) (int64, error)

	Close() error
}

type bigqueryClient struct {
	client   *bigquery.Client
	location string
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithLocation sets the location where query jobs run
func WithLocation(location string) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.location = location
	}
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string, opts ...BigQueryOption) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client: client,
	}

	for _, opt := range opts {
		opt(bq)
	}
	if bq.location != "" {
		bq.client.Location = bq.location
	}

	return bq, nil
}

func (bq *bigqueryClient) newQuery(sql string, params map[string]any) *bigquery.Query {
	q := bq.client.Query(sql)
	for name, value := range params {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Name: name, Value: value})
	}
	return q
}

func (bq *bigqueryClient) Query(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	it, err := bq.newQuery(sql, params).Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query", goerr.V("sql", sql))
	}

	var results []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result", goerr.V("sql", sql))
		}

		// Convert bigquery.Value to any
		rowMap := make(map[string]any, len(row))
		for k, v := range row {
			rowMap[k] = v
		}
		results = append(results, rowMap)
	}

	return results, nil
}

func (bq *bigqueryClient) Exec(ctx context.Context, sql string, params map[string]any) (int64, error) {
	job, err := bq.newQuery(sql, params).Run(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run statement", goerr.V("sql", sql))
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to wait for statement completion", goerr.V("job_id", job.ID()))
	}
	if status.Err() != nil {
		return 0, goerr.Wrap(status.Err(), "statement execution failed", goerr.V("job_id", job.ID()))
	}

	if status.Statistics == nil {
		return 0, nil
	}
	if details, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return details.NumDMLAffectedRows, nil
	}
	return 0, nil
}

func (bq *bigqueryClient) Close() error {
	if err := bq.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close BigQuery client")
	}
	return nil
}
