package db

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-orders/internal/models"
)

// ErrOrderNotFound is returned when an order code or id does not resolve.
var ErrOrderNotFound = errors.New("order not found")

// ErrDuplicateOrderCode is returned when an insert collides on the unique
// order_code column. The caller regenerates the code and retries once.
var ErrDuplicateOrderCode = errors.New("duplicate order code")

type DB struct {
	Bun *bun.DB
}

// sortColumns whitelists the sortable fields exposed by the list API.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"fullName":    "full_name",
	"totalAmount": "total_amount",
	"status":      "status",
}

// ---------------- ORDERS ----------------

// CreateOrder inserts a new order.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrderCode
		}
		return err
	}
	return nil
}

// GetOrderByID fetches one order by its internal id.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetOrderByCode fetches one order by its public order code.
func (d *DB) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListOrders returns one page of orders matching the filter together with
// the total count of the filtered set.
func (d *DB) ListOrders(ctx context.Context, filter models.OrderFilter, page models.Pagination) ([]models.Order, int, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = 10
	}

	column, ok := sortColumns[page.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(page.SortOrder, "asc") {
		direction = "ASC"
	}

	var orders []models.Order
	q := d.Bun.NewSelect().Model(&orders)

	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("LOWER(full_name) LIKE ?", pattern).
				WhereOr("LOWER(email) LIKE ?", pattern).
				WhereOr("LOWER(order_code) LIKE ?", pattern)
		})
	}

	total, err := q.
		Order(column + " " + direction).
		Limit(page.Limit).
		Offset((page.Page - 1) * page.Limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, total, nil
}

// UpdateOrder applies a partial field set to the order in one statement
// and bumps updated_at.
func (d *DB) UpdateOrder(ctx context.Context, code string, fields map[string]interface{}) (*models.Order, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("order_code = ?", code)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q = q.Set("? = ?", bun.Ident(k), fields[k])
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrOrderNotFound
	}
	return d.GetOrderByCode(ctx, code)
}

// DeleteOrder removes the order for the given code.
func (d *DB) DeleteOrder(ctx context.Context, code string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Order)(nil)).
		Where("order_code = ?", code).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkVerified performs the admission check-and-set as one conditional
// update: the row is claimed only while it is still CONFIRMED and not yet
// verified, so two concurrent scans can never both admit. Returns whether
// this call claimed the row.
func (d *DB) MarkVerified(ctx context.Context, code string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("is_verified = ?", true).
		Set("verified_at = ?", now).
		Set("status = ?", models.StatusVerified).
		Set("updated_at = ?", now).
		Where("order_code = ?", code).
		Where("is_verified = ?", false).
		Where("status = ?", models.StatusConfirmed).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// DashboardStats aggregates live counts and revenue from the current
// persisted state. Revenue and tickets sold only count orders that were
// paid for, i.e. CONFIRMED or VERIFIED.
func (d *DB) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	var err error
	if stats.TotalOrders, err = d.countByStatus(ctx, nil); err != nil {
		return nil, err
	}
	for status, dst := range map[models.OrderStatus]*int{
		models.StatusPending:   &stats.PendingOrders,
		models.StatusConfirmed: &stats.ConfirmedOrders,
		models.StatusCancelled: &stats.CancelledOrders,
		models.StatusVerified:  &stats.VerifiedOrders,
	} {
		s := status
		if *dst, err = d.countByStatus(ctx, &s); err != nil {
			return nil, err
		}
	}

	var agg struct {
		Revenue float64 `bun:"revenue"`
		Tickets int     `bun:"tickets"`
	}
	err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("COALESCE(SUM(total_amount), 0) AS revenue").
		ColumnExpr("COALESCE(SUM(quantity), 0) AS tickets").
		Where("status IN (?)", bun.In([]models.OrderStatus{models.StatusConfirmed, models.StatusVerified})).
		Scan(ctx, &agg)
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = agg.Revenue
	stats.TotalTicketsSold = agg.Tickets
	return stats, nil
}

func (d *DB) countByStatus(ctx context.Context, status *models.OrderStatus) (int, error) {
	q := d.Bun.NewSelect().Model((*models.Order)(nil))
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	return q.Count(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlite, used by the test suite
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
