package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-orders/internal/models"
	"ms-orders/internal/order"
	"ms-orders/internal/qrcode"
)

func orderWithStatus(code string, status models.OrderStatus) *models.Order {
	o := confirmedOrder(code)
	o.Status = status
	return o
}

func TestCleanupRemovesOnlyExpiredTerminalArtifacts(t *testing.T) {
	store := new(mockStore)
	issuer := new(mockIssuer)
	svc := newTestService(store, issuer, new(mockNotifier), new(mockPublisher))

	old := time.Now().Add(-40 * 24 * time.Hour)
	fresh := time.Now().Add(-time.Hour)

	issuer.On("ListArtifacts").Return([]qrcode.Artifact{
		{Filename: "qr_OUWVER_a.png", OrderCode: "OUWVER", ModTime: old},
		{Filename: "qr_OUWCAN_b.png", OrderCode: "OUWCAN", ModTime: old},
		{Filename: "qr_OUWCONF_c.png", OrderCode: "OUWCONF", ModTime: old},
		{Filename: "qr_OUWPEND_d.png", OrderCode: "OUWPEND", ModTime: old},
		{Filename: "qr_OUWNEW_e.png", OrderCode: "OUWNEW", ModTime: fresh},
	}, nil)

	store.On("GetOrderByCode", mock.Anything, "OUWVER").Return(orderWithStatus("OUWVER", models.StatusVerified), nil)
	store.On("GetOrderByCode", mock.Anything, "OUWCAN").Return(orderWithStatus("OUWCAN", models.StatusCancelled), nil)
	store.On("GetOrderByCode", mock.Anything, "OUWCONF").Return(orderWithStatus("OUWCONF", models.StatusConfirmed), nil)
	store.On("GetOrderByCode", mock.Anything, "OUWPEND").Return(orderWithStatus("OUWPEND", models.StatusPending), nil)

	issuer.On("Remove", "qr_OUWVER_a.png").Return(nil)
	issuer.On("Remove", "qr_OUWCAN_b.png").Return(nil)

	removed, err := svc.CleanupCredentialArtifacts(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// Live orders keep their artifacts regardless of age, and fresh
	// artifacts are never looked up at all.
	issuer.AssertNotCalled(t, "Remove", "qr_OUWCONF_c.png")
	issuer.AssertNotCalled(t, "Remove", "qr_OUWPEND_d.png")
	store.AssertNotCalled(t, "GetOrderByCode", mock.Anything, "OUWNEW")
}

func TestCleanupRemovesExpiredOrphans(t *testing.T) {
	store := new(mockStore)
	issuer := new(mockIssuer)
	svc := newTestService(store, issuer, new(mockNotifier), new(mockPublisher))

	old := time.Now().Add(-40 * 24 * time.Hour)
	issuer.On("ListArtifacts").Return([]qrcode.Artifact{
		{Filename: "qr_OUWGONE_a.png", OrderCode: "OUWGONE", ModTime: old},
	}, nil)
	store.On("GetOrderByCode", mock.Anything, "OUWGONE").Return(nil, order.ErrNotFound)
	issuer.On("Remove", "qr_OUWGONE_a.png").Return(nil)

	removed, err := svc.CleanupCredentialArtifacts(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestCleanupSkipsOnLookupFailure(t *testing.T) {
	store := new(mockStore)
	issuer := new(mockIssuer)
	svc := newTestService(store, issuer, new(mockNotifier), new(mockPublisher))

	old := time.Now().Add(-40 * 24 * time.Hour)
	issuer.On("ListArtifacts").Return([]qrcode.Artifact{
		{Filename: "qr_OUWERR_a.png", OrderCode: "OUWERR", ModTime: old},
	}, nil)
	store.On("GetOrderByCode", mock.Anything, "OUWERR").Return(nil, assert.AnError)

	removed, err := svc.CleanupCredentialArtifacts(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	issuer.AssertNotCalled(t, "Remove", mock.Anything)
}
