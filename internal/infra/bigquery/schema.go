package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gastosmart/internal/logger"
)

// Tables maps each table name to the row struct its schema is inferred from.
var Tables = map[string]interface{}{
	accountsTable:     AccountRow{},
	transactionsTable: TransactionRow{},
}

// requiredColumns are the columns created as REQUIRED; the rest stay NULLABLE.
var requiredColumns = map[string]bool{
	"account_id":       true,
	"transaction_id":   true,
	"user_id":          true,
	"account_name":     true,
	"account_type":     true,
	"currency":         true,
	"initial_balance":  true,
	"transaction_date": true,
	"amount":           true,
	"transaction_type": true,
	"created_ts":       true,
}

// Schema infers the BigQuery schema of a row struct.
func Schema(row interface{}) (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(row)
	if err != nil {
		return nil, fmt.Errorf("Schema: inferring: %w", err)
	}
	for _, f := range schema {
		f.Required = requiredColumns[f.Name]
	}
	return schema, nil
}

// SchemaDrift is a difference between a live table and its row struct.
type SchemaDrift struct {
	Table   string
	Column  string
	Problem string
}

func (d SchemaDrift) String() string {
	return fmt.Sprintf("%s.%s: %s", d.Table, d.Column, d.Problem)
}

// CheckSchema compares the live accounts and transactions tables with the
// schema inferred from their row structs. Columns the table has beyond the
// struct are not drift.
func (s *Store) CheckSchema(ctx context.Context) ([]SchemaDrift, error) {
	ds := s.client.DatasetInProject(s.projectID, s.datasetID)

	var drift []SchemaDrift
	for _, name := range []string{accountsTable, transactionsTable} {
		want, err := Schema(Tables[name])
		if err != nil {
			return nil, fmt.Errorf("CheckSchema: %s: %w", name, err)
		}

		meta, err := ds.Table(name).Metadata(ctx)
		if err != nil {
			return nil, fmt.Errorf("CheckSchema: reading %s: %w", name, classify(err))
		}
		drift = append(drift, compareSchema(name, want, meta.Schema)...)
	}

	log := logger.FromContext(ctx)
	log.Info().Int("drift", len(drift)).Msg("Schema checked")
	return drift, nil
}

func compareSchema(table string, want, got bigquery.Schema) []SchemaDrift {
	live := make(map[string]*bigquery.FieldSchema, len(got))
	for _, f := range got {
		live[f.Name] = f
	}

	var drift []SchemaDrift
	for _, f := range want {
		g, ok := live[f.Name]
		switch {
		case !ok:
			drift = append(drift, SchemaDrift{Table: table, Column: f.Name, Problem: "missing"})
		case g.Type != f.Type:
			drift = append(drift, SchemaDrift{Table: table, Column: f.Name, Problem: fmt.Sprintf("type %s, want %s", g.Type, f.Type)})
		case g.Required != f.Required:
			drift = append(drift, SchemaDrift{Table: table, Column: f.Name, Problem: fmt.Sprintf("required=%t, want %t", g.Required, f.Required)})
		}
	}
	return drift
}
