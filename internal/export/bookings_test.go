package export

import (
	"bytes"
	"testing"
	"time"

	"bookinggate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteBookings(t *testing.T) {
	hk, err := time.LoadLocation("Asia/Hong_Kong")
	require.NoError(t, err)
	price := 120.5

	bookings := []models.Booking{
		{
			ID: "bkg-1", ResourceID: "res-1", ServiceID: "svc-1", LocationID: "loc-1",
			Price: &price, StartsAt: "2030-06-03T02:00:00Z", EndsAt: "2030-06-03T03:00:00Z",
			Metadata: []byte(`{"customer_name":"Lee","customer_id":7}`),
		},
		{ID: "bkg-2", ResourceID: "res-1", StartsAt: "not a time", IsCanceled: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, bookings, hk))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])

	assert.Equal(t, "bkg-1", rows[1][0])
	assert.Equal(t, "2030-06-03 10:00", rows[1][4])
	assert.Equal(t, "2030-06-03 11:00", rows[1][5])
	assert.Equal(t, "120.5", rows[1][6])
	assert.Equal(t, "Lee", rows[1][7])
	assert.Equal(t, "no", rows[1][9])

	assert.Equal(t, "not a time", rows[2][4])
	assert.Equal(t, "yes", rows[2][9])
}

func TestWriteBookingsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "bookings_2030-06-03_101500.xlsx", FileName(time.Date(2030, 6, 3, 10, 15, 0, 0, time.UTC)))
}
