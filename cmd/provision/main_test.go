package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"bookinggate/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
resources:
  - resource_name: Studio 1
    location_id: loc-1
    start_date: "2030-01-01"
    max_duration: PT4H
    capacity: 6
    resource_details:
      floor: 2
      amenities: [mirror, speakers]
    metadata:
      wing: east
      tags:
        - quiet
    rates:
      - name: hourly
        price: 120
        currency: hkd
    defined_timings:
      - weekday: monday
        start_time: "09:00:00"
        end_time: "18:00:00"
  - resource_name: Studio 2
    location_id: loc-1
    start_date: "2030-01-01"
`

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	reqs, err := loadSeed(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	first := reqs[0]
	assert.Equal(t, "Studio 1", first.ResourceName)
	assert.Equal(t, "2030-01-01", first.StartDate)
	assert.Equal(t, []models.Rate{{Name: "hourly", Price: 120, Currency: "hkd"}}, first.Rates)
	assert.Equal(t, []models.BlockInput{{Weekday: "monday", StartTime: "09:00:00", EndTime: "18:00:00"}}, first.DefinedTimings)

	raw, err := json.Marshal(first.FlatMetadata(first.Rates))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"wing": "east",
		"tags": ["quiet"],
		"capacity": 6,
		"resource_details": {"floor": 2, "amenities": ["mirror", "speakers"]},
		"rates": [{"name": "hourly", "price": 120, "currency": "hkd"}]
	}`, string(raw))

	assert.Nil(t, reqs[1].Metadata)
}

func TestLoadSeedErrors(t *testing.T) {
	_, err := loadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resources: [:"), 0o644))
	_, err = loadSeed(path)
	assert.Error(t, err)
}

func TestCheckSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))
	reqs, err := loadSeed(path)
	require.NoError(t, err)
	assert.Empty(t, checkSeed(reqs))

	broken := []models.ProvisionRequest{
		{ResourceName: "Studio 3", StartDate: "2030-01-01"},
		{
			ResourceName: "Studio 4",
			LocationID:   "loc-1",
			StartDate:    "2030-01-01",
			Rates:        []models.Rate{{Name: "", Price: 0}},
			DefinedTimings: []models.BlockInput{
				{Weekday: "someday", StartTime: "09:00:00", EndTime: "10:00:00"},
				{Weekday: "monday", StartTime: "09:00:00"},
			},
		},
	}
	assert.Equal(t, []string{
		"resource 1 (Studio 3): resource_name, start_date and location_id are required",
		"resource 2 (Studio 4): rate 1: name is required",
		"resource 2 (Studio 4): rate 1: price must be a positive number",
		`resource 2 (Studio 4): defined_timings 1: invalid weekday "someday"`,
		"resource 2 (Studio 4): defined_timings 2 needs weekday, start_time and end_time",
	}, checkSeed(broken))
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) Provision(ctx context.Context, req models.ProvisionRequest) (*models.ProvisionResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*models.ProvisionResult)
	return result, args.Error(1)
}

func TestProvisionAllContinuesAfterFailure(t *testing.T) {
	logger := zerolog.New(io.Discard)
	p := new(mockProvisioner)
	reqs := []models.ProvisionRequest{{ResourceName: "a"}, {ResourceName: "b"}, {ResourceName: "c"}}

	p.On("Provision", mock.Anything, reqs[0]).Return(&models.ProvisionResult{ResourceID: "res-1"}, nil)
	p.On("Provision", mock.Anything, reqs[1]).Return(nil, errors.New("upstream down"))
	p.On("Provision", mock.Anything, reqs[2]).Return(&models.ProvisionResult{AlreadyExists: true, ResourceID: "res-3"}, nil)

	summary := provisionAll(context.Background(), p, reqs, &logger)
	assert.Equal(t, provisionSummary{created: 1, existing: 1, failed: 1}, summary)
	p.AssertExpectations(t)
}

func TestProvisionAllStopsOnCancel(t *testing.T) {
	logger := zerolog.New(io.Discard)
	p := new(mockProvisioner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := provisionAll(ctx, p, []models.ProvisionRequest{{ResourceName: "a"}}, &logger)
	assert.Equal(t, provisionSummary{}, summary)
	p.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
}
