package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	recordsTable = "records"
	dateFormat   = "2006-01-02"
)

func tableRef(projectID, datasetID string) string {
	return "`" + projectID + "." + datasetID + "." + recordsTable + "`"
}

// InsertRecordsWithClient streams rows into dataset.records.
func InsertRecordsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*RecordRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(projectID, datasetID).Table(recordsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertRecords: inserting rows: %w", err)
	}

	return nil
}

// ExportedIDsWithClient returns the ids already present in dataset.records.
func ExportedIDsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) (map[string]bool, error) {
	q := client.Query(`SELECT DISTINCT record_id FROM ` + tableRef(projectID, datasetID))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExportedIDs: query read: %w", err)
	}

	ids := make(map[string]bool)
	for {
		var row struct {
			RecordID string `bigquery:"record_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ExportedIDs: iter next: %w", err)
		}
		ids[row.RecordID] = true
	}

	return ids, nil
}

// QueryRecordsByDateRangeWithClient reads exported records whose record_date
// falls within [startDate, endDate].
func QueryRecordsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, startDate, endDate time.Time) ([]*RecordRow, error) {
	q := client.Query(`
		SELECT
			record_id,
			record_date,
			recorded_ts,
			amount,
			kind,
			description,
			recurring,
			auto_labeled,
			tags,
			exported_ts,
			updated_ts
		FROM ` + tableRef(projectID, datasetID) + `
		WHERE record_date >= @start_date
		  AND record_date <= @end_date
		ORDER BY record_date, recorded_ts
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryRecordsByDateRange: query read: %w", err)
	}

	var rows []*RecordRow
	for {
		var r RecordRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryRecordsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
