package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Index describes a database index.
type Index struct {
	Name       string `db:"indexname" json:"name"`
	Table      string `db:"tablename" json:"table"`
	Definition string `db:"indexdef" json:"definition"`
}

func (idx Index) String() string {
	return fmt.Sprintf("%s.%s: %s", idx.Table, idx.Name, idx.Definition)
}

// ListIndexes lists the indexes of table in the current schema.
func ListIndexes(ctx context.Context, db *sqlx.DB, table string) ([]Index, error) {
	indexes := make([]Index, 0)
	q := `SELECT indexname, tablename, indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1
		ORDER BY indexname`
	if err := db.SelectContext(ctx, &indexes, q, table); err != nil {
		return nil, errors.Wrapf(err, "listing indexes of %q", table)
	}
	return indexes, nil
}

// DropIndex drops the index name if it exists. Dropping a missing index is not an error.
func DropIndex(ctx context.Context, db *sqlx.DB, name string) error {
	if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		return errors.Wrapf(err, "dropping index %q", name)
	}
	return nil
}
