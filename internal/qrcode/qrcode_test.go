package qrcode_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-orders/internal/models"
	"ms-orders/internal/qrcode"
)

func sampleOrder() models.Order {
	return models.Order{
		ID:         "internal-id",
		OrderCode:  "OUW1700000000000ABCDE",
		FullName:   "Jane Doe",
		TicketType: "VIP",
		Quantity:   2,
		Status:     models.StatusPending,
		CreatedAt:  time.Now(),
	}
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	codec := qrcode.NewCodec(t.TempDir(), "http://localhost:8084")
	order := sampleOrder()

	qrString, filename, err := codec.Issue(order)
	require.NoError(t, err)
	assert.NotEmpty(t, qrString)
	assert.Contains(t, qrString, "/api/orders/verify?data=")

	// The rendered artifact exists and is named after the order code.
	_, err = os.Stat(filepath.Join(codec.Dir(), filename))
	require.NoError(t, err)
	code, ok := qrcode.OrderCodeFromFilename(filename)
	require.True(t, ok)
	assert.Equal(t, order.OrderCode, code)

	payload, err := codec.Decode(qrString)
	require.NoError(t, err)
	assert.Equal(t, order.OrderCode, payload.OrderID)
	assert.Equal(t, "Jane Doe", payload.CustomerName)
	assert.Equal(t, "VIP", payload.TicketType)
	assert.Equal(t, 2, payload.Quantity)
}

func TestDecodeRawPayload(t *testing.T) {
	codec := qrcode.NewCodec(t.TempDir(), "http://localhost:8084")

	raw := `{"orderId":"OUW123XYZ","customerName":"Jane Doe","ticketType":"VIP","quantity":2,"createdAt":"2026-01-01T00:00:00Z"}`
	payload, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "OUW123XYZ", payload.OrderID)
}

func TestDecodeMalformed(t *testing.T) {
	codec := qrcode.NewCodec(t.TempDir(), "http://localhost:8084")

	cases := []string{
		"",
		"not json at all",
		`{"quantity":"two"}`,
		`{"customerName":"no order id"}`,
		"http://localhost:8084/api/orders/verify?data=garbage",
	}
	for _, raw := range cases {
		_, err := codec.Decode(raw)
		assert.ErrorIs(t, err, qrcode.ErrMalformedCredential, "input %q", raw)
	}
}

func TestReissueDoesNotOverwrite(t *testing.T) {
	codec := qrcode.NewCodec(t.TempDir(), "http://localhost:8084")
	order := sampleOrder()

	_, first, err := codec.Issue(order)
	require.NoError(t, err)
	_, second, err := codec.Issue(order)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	artifacts, err := codec.ListArtifacts()
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
	for _, artifact := range artifacts {
		assert.Equal(t, order.OrderCode, artifact.OrderCode)
	}
}

func TestRemoveAndList(t *testing.T) {
	codec := qrcode.NewCodec(t.TempDir(), "http://localhost:8084")

	_, filename, err := codec.Issue(sampleOrder())
	require.NoError(t, err)

	require.NoError(t, codec.Remove(filename))
	// Removing a missing file is not an error.
	require.NoError(t, codec.Remove(filename))

	artifacts, err := codec.ListArtifacts()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestImageRejectsPathTraversal(t *testing.T) {
	codec := qrcode.NewCodec(t.TempDir(), "http://localhost:8084")

	_, err := codec.Image("../outside.png")
	assert.Error(t, err)
}
