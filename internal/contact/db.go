package contact

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-orders/internal/models"
)

// ErrMessageNotFound is returned when a contact message id does not
// resolve.
var ErrMessageNotFound = errors.New("contact message not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateMessage(ctx context.Context, msg *models.ContactMessage) error {
	_, err := d.Bun.NewInsert().Model(msg).Exec(ctx)
	return err
}

func (d *DB) ListMessages(ctx context.Context) ([]models.ContactMessage, error) {
	var messages []models.ContactMessage
	err := d.Bun.NewSelect().
		Model(&messages).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.ContactMessage{}
	}
	return messages, nil
}

func (d *DB) MarkRead(ctx context.Context, id string) (*models.ContactMessage, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.ContactMessage)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrMessageNotFound
	}

	var msg models.ContactMessage
	err = d.Bun.NewSelect().Model(&msg).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}
