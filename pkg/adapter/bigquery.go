package adapter

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// BigQuery runs read-only queries used to pull seed examples
type BigQuery interface {
	// DryRun returns the number of bytes the query would scan
	DryRun(ctx context.Context, query string) (int64, error)

	// Query runs the query, waits for completion and returns every row
	Query(ctx context.Context, query string) ([]map[string]any, error)
}

type bigqueryClient struct {
	client *bigquery.Client
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client", goerr.V("project", projectID))
	}

	return &bigqueryClient{client: client}, nil
}

func (bq *bigqueryClient) DryRun(ctx context.Context, query string) (int64, error) {
	q := bq.client.Query(query)
	q.DryRun = true

	job, err := q.Run(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run dry-run query")
	}

	status := job.LastStatus()
	if status == nil || status.Statistics == nil {
		return 0, goerr.New("no statistics available from dry-run")
	}

	return status.Statistics.TotalBytesProcessed, nil
}

func (bq *bigqueryClient) Query(ctx context.Context, query string) ([]map[string]any, error) {
	job, err := bq.client.Query(query).Run(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query")
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to wait for query completion", goerr.V("job", job.ID()))
	}
	if status.Err() != nil {
		return nil, goerr.Wrap(status.Err(), "query execution failed", goerr.V("job", job.ID()))
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read query result", goerr.V("job", job.ID()))
	}

	var results []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result")
		}

		rowMap := make(map[string]any, len(row))
		for k, v := range row {
			rowMap[k] = v
		}
		results = append(results, rowMap)
	}

	return results, nil
}
