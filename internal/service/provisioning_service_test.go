package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"bookinggate/internal/domain"
	"bookinggate/internal/events"
	"bookinggate/internal/models"
	"bookinggate/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provisionRequest() models.ProvisionRequest {
	return models.ProvisionRequest{
		ResourceName:     "Studio 1",
		LocationID:       "loc-1",
		StartDate:        "2030-01-01",
		MaxDuration:      "PT4H",
		MinDuration:      "PT1H",
		DurationInterval: "PT30M",
		Capacity:         6,
		Category:         "studio",
		Metadata:         map[string]any{"floor": 2, "category": "overridden"},
		Rates:            []models.Rate{{Name: "hourly", Price: 120}},
		DefinedTimings: []models.BlockInput{
			{Weekday: "monday", StartTime: "09:00:00", EndTime: "18:00:00"},
			{Weekday: "tuesday", StartTime: "09:00:00", EndTime: "18:00:00"},
		},
	}
}

func TestProvisionRunsEveryStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.provision.Provision(ctx, provisionRequest())
	require.NoError(t, err)
	assert.False(t, result.AlreadyExists)
	assert.Equal(t, msgProvisioned, result.Message)
	require.NotEmpty(t, result.ResourceID)
	require.NotEmpty(t, result.RecurringScheduleID)
	require.NotEmpty(t, result.ServiceID)
	require.NotNil(t, result.Blocks)
	assert.Len(t, result.Blocks.Data, 2)

	res, ok := env.fake.Resource(result.ResourceID)
	require.True(t, ok)
	assert.Equal(t, "Studio 1", res.Name)
	assert.True(t, res.Enabled)
	assert.Equal(t, 1, res.MaxSimultaneousBookings)
	assert.Equal(t, 6.0, res.Metadata["capacity"])
	assert.Equal(t, "studio", res.Metadata["category"])
	assert.Equal(t, 2.0, res.Metadata["floor"])
	assert.NotContains(t, res.Metadata, "photo_url")
	assert.Len(t, res.Metadata["rates"], 1)

	svc, ok := env.fake.Service(result.ServiceID)
	require.True(t, ok)
	assert.Equal(t, "Studio 1_service", svc.Name)
	assert.Equal(t, "PT30M", svc.DurationStep)

	linked, err := env.lookup.ServiceIDByResource(ctx, result.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, result.ServiceID, linked)

	sch, err := env.lookup.GetRecurringSchedule(ctx, result.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, result.RecurringScheduleID, sch.ID)
	assert.Equal(t, "loc-1", sch.LocationID)

	assert.Contains(t, env.published, events.EventResourceProvisioned)
}

func TestProvisionTwiceShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.provision.Provision(ctx, provisionRequest())
	require.NoError(t, err)

	env.fake.ResetCalls()
	second, err := env.provision.Provision(ctx, provisionRequest())
	require.NoError(t, err)

	assert.True(t, second.AlreadyExists)
	assert.Equal(t, first.ResourceID, second.ResourceID)
	assert.Equal(t, `Resource "Studio 1" already exists.`, second.Message)
	for _, c := range env.fake.Calls() {
		assert.Equal(t, http.MethodGet, c.Method, "unexpected %s %s", c.Method, c.Path)
	}
	assert.Zero(t, env.fake.CountCalls(http.MethodPost, "/"))
	assert.Zero(t, env.fake.CountCalls(http.MethodPut, "/"))
}

func TestProvisionIgnoresCachedResourceDeletedUpstream(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.provision.Provision(ctx, provisionRequest())
	require.NoError(t, err)

	cached, err := env.lookup.FindResourceByName(ctx, "Studio 1")
	require.NoError(t, err)
	require.Equal(t, first.ResourceID, cached.ID)

	// removed behind the gateway's back
	_, err = env.client.Delete(ctx, upstream.Path("resources", first.ResourceID))
	require.NoError(t, err)
	_, exists := env.fake.Resource(first.ResourceID)
	require.False(t, exists)

	second, err := env.provision.Provision(ctx, provisionRequest())
	require.NoError(t, err)
	assert.False(t, second.AlreadyExists)
	assert.NotEqual(t, first.ResourceID, second.ResourceID)
	_, exists = env.fake.Resource(second.ResourceID)
	assert.True(t, exists)
}

func TestProvisionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(r *models.ProvisionRequest)
		want   string
	}{
		{"missing name", func(r *models.ProvisionRequest) { r.ResourceName = " " }, msgProvisionMissing},
		{"missing start date", func(r *models.ProvisionRequest) { r.StartDate = "" }, msgProvisionMissing},
		{"missing location", func(r *models.ProvisionRequest) { r.LocationID = "" }, msgProvisionMissing},
		{"bad rate", func(r *models.ProvisionRequest) { r.Rates = []models.Rate{{Name: "", Price: -1}} }, "Rate validation failed: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := provisionRequest()
			tt.mutate(&req)
			_, err := env.provision.Provision(ctx, req)
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, http.StatusBadRequest, ve.Status)
			assert.Contains(t, ve.Message, tt.want)
		})
	}
	assert.Empty(t, env.fake.Calls())
}

func TestProvisionStepFailureStopsPipeline(t *testing.T) {
	env := newTestEnv(t)
	env.fake.FailOn(http.MethodPost, "/services", http.StatusInternalServerError, "service store offline", 1)

	_, err := env.provision.Provision(context.Background(), provisionRequest())
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepCreateService, se.Step)
	assert.Equal(t, []string{StepCreateResource, StepCreateSchedule}, se.Completed)
	status, _ := upstream.StatusOf(err)
	assert.Equal(t, http.StatusInternalServerError, status)

	// completed steps are not compensated
	_, err = env.lookup.FindResourceByName(context.Background(), "Studio 1")
	assert.NoError(t, err)
	assert.Zero(t, env.fake.CountCalls(http.MethodPut, "/services"))
	assert.Zero(t, env.fake.CountCalls(http.MethodDelete, "/"))
}

func TestValidateRates(t *testing.T) {
	out, problems := ValidateRates([]models.Rate{{Name: " day ", Price: 10, Currency: "hkd"}})
	assert.Empty(t, problems)
	assert.Equal(t, "day", out[0].Name)
	assert.Equal(t, "HKD", out[0].Currency)

	_, problems = ValidateRates([]models.Rate{{Name: "a", Price: 0}, {Price: 5}})
	assert.Len(t, problems, 2)
}

func TestCreateRecurringSchedule(t *testing.T) {
	env := newTestEnv(t)
	res := env.fake.AddResource("Room A", nil)

	sch, err := env.provision.CreateRecurringSchedule(context.Background(), res.ID, "loc-9", "2030-02-01")
	require.NoError(t, err)
	assert.Equal(t, "loc-9", sch.LocationID)
	require.NotNil(t, sch.StartDate)
	assert.Equal(t, "2030-02-01", *sch.StartDate)

	_, err = env.provision.CreateRecurringSchedule(context.Background(), res.ID, "", "2030-02-01")
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestUpdateResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.provision.Provision(ctx, provisionRequest())
	require.NoError(t, err)

	result, err := env.provision.UpdateResource(ctx, created.ResourceID, models.ResourceUpdate{
		Name:        "Studio One",
		Capacity:    8,
		MaxDuration: "PT6H",
		Metadata:    map[string]any{"floor": 3},
		DefinedTimings: []models.BlockInput{
			{Weekday: "Monday", StartTime: "08:00:00", EndTime: "12:00:00"},
			{Weekday: "monday", StartTime: "13:00:00", EndTime: "20:00:00"},
			{Weekday: "friday", StartTime: "10:00:00", EndTime: "16:00:00"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.ServiceUpdated)
	require.Contains(t, result.Weekdays, models.Monday)
	assert.Len(t, result.Weekdays[models.Monday].Data, 2)
	assert.Len(t, result.Weekdays[models.Friday].Data, 1)

	res, _ := env.fake.Resource(created.ResourceID)
	assert.Equal(t, "Studio One", res.Name)
	assert.Equal(t, 8.0, res.Metadata["capacity"])
	assert.Equal(t, 3.0, res.Metadata["floor"])
	assert.Equal(t, "studio", res.Metadata["category"], "untouched keys survive the merge")

	svc, _ := env.fake.Service(created.ServiceID)
	assert.Equal(t, "PT6H", svc.MaxDuration)
	assert.Equal(t, "PT1H", svc.MinDuration)

	blocks := env.fake.Blocks(created.RecurringScheduleID)
	byDay := map[string]int{}
	for _, b := range blocks {
		byDay[b.Weekday]++
	}
	assert.Equal(t, map[string]int{"monday": 2, "tuesday": 1, "friday": 1}, byDay)

	_, err = env.lookup.FindResourceByName(ctx, "Studio One")
	assert.NoError(t, err)
}

func TestUpdateResourceValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.fake.AddResource("Room A", nil)

	_, err := env.provision.UpdateResource(ctx, res.ID, models.ResourceUpdate{})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, http.StatusBadRequest, ve.Status)
	assert.Equal(t, "No update fields provided.", ve.Message)

	_, err = env.provision.UpdateResource(ctx, res.ID, models.ResourceUpdate{
		DefinedTimings: []models.BlockInput{{Weekday: "monday", StartTime: "09:00:00"}},
	})
	assert.True(t, errors.As(err, &ve))

	_, err = env.provision.UpdateResource(ctx, "missing", models.ResourceUpdate{Name: "x"})
	status, _ := upstream.StatusOf(err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFlatMetadataKeepsRatesAlways(t *testing.T) {
	meta := models.ProvisionRequest{}.FlatMetadata(nil)
	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rates":[]}`, string(raw))
}
