package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-orders/internal/models"
	"ms-orders/internal/order/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Order)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create orders table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func testOrder(code string, status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:                 uuid.NewString(),
		OrderCode:          code,
		FullName:           "Jane Doe",
		Phone:              "+11234567890",
		Email:              "jane@x.com",
		EventParticipation: models.ParticipationNo,
		Activities:         []string{},
		TicketType:         "VIP",
		Quantity:           2,
		PricePerTicket:     5000,
		TotalAmount:        10000,
		PaymentMethod:      models.PaymentMCB,
		Status:             status,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := testOrder("OUW100AAAAA", models.StatusPending)
	require.NoError(t, orderDB.CreateOrder(ctx, created))

	byID, err := orderDB.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "OUW100AAAAA", byID.OrderCode)
	assert.Equal(t, models.StatusPending, byID.Status)

	byCode, err := orderDB.GetOrderByCode(ctx, "OUW100AAAAA")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)

	_, err = orderDB.GetOrderByID(ctx, "no-such-id")
	assert.ErrorIs(t, err, db.ErrOrderNotFound)

	_, err = orderDB.GetOrderByCode(ctx, "no-such-code")
	assert.ErrorIs(t, err, db.ErrOrderNotFound)
}

func TestCreateOrderDuplicateCode(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	require.NoError(t, orderDB.CreateOrder(ctx, testOrder("OUW100AAAAA", models.StatusPending)))

	err := orderDB.CreateOrder(ctx, testOrder("OUW100AAAAA", models.StatusPending))
	assert.ErrorIs(t, err, db.ErrDuplicateOrderCode)
}

func TestListOrdersPagination(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, orderDB.CreateOrder(ctx, testOrder(fmt.Sprintf("OUW%03dX", i), models.StatusPending)))
	}

	items, total, err := orderDB.ListOrders(ctx, models.OrderFilter{}, models.Pagination{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, items, 10)
	assert.Equal(t, 25, total)

	// Last page holds the remainder; total still reflects the full set.
	items, total, err = orderDB.ListOrders(ctx, models.OrderFilter{}, models.Pagination{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, 25, total)
}

func TestListOrdersFilters(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	pending := testOrder("OUW001AAAAA", models.StatusPending)
	confirmed := testOrder("OUW002BBBBB", models.StatusConfirmed)
	confirmed.FullName = "John Smith"
	confirmed.Email = "smith@example.com"
	confirmed.UserID = "user-1"
	require.NoError(t, orderDB.CreateOrder(ctx, pending))
	require.NoError(t, orderDB.CreateOrder(ctx, confirmed))

	status := models.StatusConfirmed
	items, total, err := orderDB.ListOrders(ctx, models.OrderFilter{Status: &status}, models.Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "OUW002BBBBB", items[0].OrderCode)

	// Substring search is case-insensitive over name, email and code.
	for _, search := range []string{"smith", "SMITH@EXAMPLE", "ouw002"} {
		_, total, err = orderDB.ListOrders(ctx, models.OrderFilter{Search: search}, models.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, 1, total, "search %q", search)
	}

	_, total, err = orderDB.ListOrders(ctx, models.OrderFilter{UserID: "user-1"}, models.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpdateOrderPartial(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := testOrder("OUW100AAAAA", models.StatusPending)
	created.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, orderDB.CreateOrder(ctx, created))

	updated, err := orderDB.UpdateOrder(ctx, "OUW100AAAAA", map[string]interface{}{
		"status":           models.StatusConfirmed,
		"qr_code_filename": "qr_OUW100AAAAA_x.png",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, "qr_OUW100AAAAA_x.png", updated.QRCodeFilename)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	// Untouched fields survive a partial update.
	assert.Equal(t, "Jane Doe", updated.FullName)

	_, err = orderDB.UpdateOrder(ctx, "no-such-code", map[string]interface{}{"status": models.StatusConfirmed})
	assert.ErrorIs(t, err, db.ErrOrderNotFound)
}

func TestDeleteOrder(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	require.NoError(t, orderDB.CreateOrder(ctx, testOrder("OUW100AAAAA", models.StatusPending)))
	require.NoError(t, orderDB.DeleteOrder(ctx, "OUW100AAAAA"))

	_, err := orderDB.GetOrderByCode(ctx, "OUW100AAAAA")
	assert.ErrorIs(t, err, db.ErrOrderNotFound)

	assert.ErrorIs(t, orderDB.DeleteOrder(ctx, "OUW100AAAAA"), db.ErrOrderNotFound)
}

func TestMarkVerified(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	require.NoError(t, orderDB.CreateOrder(ctx, testOrder("OUWCONF", models.StatusConfirmed)))
	require.NoError(t, orderDB.CreateOrder(ctx, testOrder("OUWPEND", models.StatusPending)))
	require.NoError(t, orderDB.CreateOrder(ctx, testOrder("OUWCANC", models.StatusCancelled)))

	now := time.Now()
	claimed, err := orderDB.MarkVerified(ctx, "OUWCONF", now)
	require.NoError(t, err)
	assert.True(t, claimed)

	verified, err := orderDB.GetOrderByCode(ctx, "OUWCONF")
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Equal(t, models.StatusVerified, verified.Status)
	assert.False(t, verified.VerifiedAt.IsZero())
	firstVerifiedAt := verified.VerifiedAt

	// Second claim on the same credential loses.
	claimed, err = orderDB.MarkVerified(ctx, "OUWCONF", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)

	unchanged, err := orderDB.GetOrderByCode(ctx, "OUWCONF")
	require.NoError(t, err)
	assert.Equal(t, firstVerifiedAt.Unix(), unchanged.VerifiedAt.Unix())

	// Only CONFIRMED orders can be claimed.
	claimed, err = orderDB.MarkVerified(ctx, "OUWPEND", now)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = orderDB.MarkVerified(ctx, "OUWCANC", now)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = orderDB.MarkVerified(ctx, "no-such-code", now)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDashboardStats(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	orders := []struct {
		code   string
		status models.OrderStatus
		total  float64
		qty    int
	}{
		{"OUW1", models.StatusPending, 5000, 1},
		{"OUW2", models.StatusConfirmed, 10000, 2},
		{"OUW3", models.StatusVerified, 15000, 3},
		{"OUW4", models.StatusCancelled, 20000, 4},
	}
	for _, o := range orders {
		ord := testOrder(o.code, o.status)
		ord.TotalAmount = o.total
		ord.Quantity = o.qty
		require.NoError(t, orderDB.CreateOrder(ctx, ord))
	}

	stats, err := orderDB.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalOrders)
	assert.Equal(t, 1, stats.PendingOrders)
	assert.Equal(t, 1, stats.ConfirmedOrders)
	assert.Equal(t, 1, stats.CancelledOrders)
	assert.Equal(t, 1, stats.VerifiedOrders)
	// Revenue and tickets only count CONFIRMED and VERIFIED orders.
	assert.Equal(t, float64(25000), stats.TotalRevenue)
	assert.Equal(t, 5, stats.TotalTicketsSold)
}
