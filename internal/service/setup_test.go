package service

import (
	"io"
	"testing"

	"bookinggate/internal/config"
	"bookinggate/internal/events"
	"bookinggate/internal/repository"
	"bookinggate/internal/upstream"
	"bookinggate/internal/upstream/upstreamtest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	fake      *upstreamtest.FakeAPI
	client    *upstream.Client
	bus       *events.EventBus
	published []string
	lookup    *LookupService
	schedules *ScheduleService
	provision *ProvisioningService
	bookings  *BookingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake, srv := upstreamtest.NewServer()
	t.Cleanup(srv.Close)
	fake.Token = "test-key"

	logger := zerolog.New(io.Discard)
	client, err := upstream.New(config.UpstreamConfig{BaseURL: srv.URL, APIKey: "test-key"}, nil, &logger)
	require.NoError(t, err)

	env := &testEnv{fake: fake, client: client, bus: events.NewEventBus()}
	env.bus.SubscribeAll(func(e *events.Event) error {
		env.published = append(env.published, e.Type)
		return nil
	})

	env.lookup = NewLookupService(client, repository.NewMemoryCache(), 0, &logger)
	env.schedules = NewScheduleService(client, env.lookup, env.bus, 0, &logger)
	env.provision = NewProvisioningService(client, env.lookup, env.schedules, env.bus, nil, &logger)
	env.bookings = NewBookingService(client, env.bus, BookingOptions{}, &logger)
	return env
}
