package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core/notify"
)

type notificationStore struct {
	db *sqlx.DB
}

var _ notify.Store = (*notificationStore)(nil) // interface compliance check

// NewNotificationStore returns a notify.Store keeping the dismissed notifications in the notification_history table.
func NewNotificationStore(db *sqlx.DB) notify.Store {
	return &notificationStore{db: db}
}

func (s notificationStore) Save(ctx context.Context, rec notify.Record) error {
	q := `INSERT INTO notification_history (id, recipient, message, kind, created_at, dismissed_at)
		VALUES (:id, :recipient, :message, :kind, :created_at, :dismissed_at)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return errors.Wrap(err, "inserting notification record")
	}
	return nil
}

func (s notificationStore) List(ctx context.Context, recipient string, limit int) ([]notify.Record, error) {
	q := `SELECT id, recipient, message, kind, created_at, dismissed_at FROM notification_history
		WHERE recipient = $1 ORDER BY dismissed_at DESC`
	args := []interface{}{recipient}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	recs := make([]notify.Record, 0)
	if err := s.db.SelectContext(ctx, &recs, q, args...); err != nil {
		return nil, errors.Wrap(err, "listing notification records")
	}
	return recs, nil
}

func (s notificationStore) Clear(ctx context.Context, recipient string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM notification_history WHERE recipient = $1", recipient); err != nil {
		return errors.Wrap(err, "clearing notification records")
	}
	return nil
}

func (s notificationStore) Count(ctx context.Context, recipient string) (int, error) {
	var cnt int
	if err := s.db.GetContext(ctx, &cnt, "SELECT COUNT(*) FROM notification_history WHERE recipient = $1", recipient); err != nil {
		return 0, errors.Wrap(err, "counting notification records")
	}
	return cnt, nil
}
