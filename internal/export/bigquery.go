// Package export streams transaction snapshots into a BigQuery archive table
// for reporting. It reads a cache snapshot only; it takes no part in the
// sync layer's consistency story.
package export

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/avolkov/moneyflow/internal/domain"
)

// TransactionRow is the archive table schema.
type TransactionRow struct {
	TransactionID string     `bigquery:"transaction_id"`
	OwnerID       string     `bigquery:"owner_id"`
	Amount        float64    `bigquery:"amount"`
	Kind          string     `bigquery:"kind"`
	CategoryID    string     `bigquery:"category_id"`
	CategoryLabel string     `bigquery:"category_label"`
	Description   string     `bigquery:"description"`
	OccurredOn    civil.Date `bigquery:"occurred_on"`

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// Archiver writes transaction batches into one dataset.table target.
type Archiver struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewArchiver opens a BigQuery client for the given project and target table.
func NewArchiver(ctx context.Context, projectID, dataset, table string) (*Archiver, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewArchiver: bigquery client: %w", err)
	}
	return &Archiver{client: client, dataset: dataset, table: table}, nil
}

// Close releases the BigQuery client.
func (a *Archiver) Close() error {
	return a.client.Close()
}

// Archive streams the batch into the archive table. An empty batch is a
// no-op.
func (a *Archiver) Archive(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, RowFromTransaction(tx))
	}

	inserter := a.client.Dataset(a.dataset).Table(a.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("Archive: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// RowFromTransaction maps a canonical transaction onto the archive schema.
func RowFromTransaction(tx domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID: tx.ID,
		OwnerID:       tx.OwnerID,
		Amount:        tx.Amount.InexactFloat64(),
		Kind:          string(tx.Kind),
		CategoryID:    tx.CategoryID,
		CategoryLabel: tx.CategoryLabel,
		Description:   tx.Description,
		OccurredOn:    civil.DateOf(tx.OccurredAt),
	}
	if !tx.CreatedAt.IsZero() {
		row.CreatedTS = bigquery.NullTimestamp{Timestamp: tx.CreatedAt, Valid: true}
	}
	if !tx.UpdatedAt.IsZero() {
		row.UpdatedTS = bigquery.NullTimestamp{Timestamp: tx.UpdatedAt, Valid: true}
	}
	return row
}
