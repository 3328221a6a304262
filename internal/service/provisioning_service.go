package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"bookinggate/internal/domain"
	"bookinggate/internal/events"
	"bookinggate/internal/models"
	"bookinggate/internal/upstream"

	"github.com/rs/zerolog"
)

const (
	StepCreateResource  = "create_resource"
	StepCreateSchedule  = "create_recurring_schedule"
	StepCreateService   = "create_service"
	StepAssociate       = "associate_service"
	StepCreateBlocks    = "create_schedule_blocks"
	msgProvisioned      = "Resource and schedule setup completed successfully"
	msgResourceUpdated  = "Resource updated successfully"
	msgProvisionMissing = "resource_name, start_date, and location_id are required"
)

// StepError is the terminal state of a provisioning run: Step failed, the steps in Completed
// already happened upstream and are left in place.
type StepError struct {
	Step      string
	Completed []string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning step %s failed after %v: %v", e.Step, e.Completed, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// RateValidator checks rates and returns the normalized list or a problem per invalid rate.
type RateValidator func(rates []models.Rate) ([]models.Rate, []string)

// ValidateRates requires a name and a positive, finite price on every rate.
func ValidateRates(rates []models.Rate) ([]models.Rate, []string) {
	var problems []string
	out := make([]models.Rate, 0, len(rates))
	for i, r := range rates {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			problems = append(problems, fmt.Sprintf("rate %d: name is required", i+1))
		}
		if r.Price <= 0 || math.IsInf(r.Price, 0) || math.IsNaN(r.Price) {
			problems = append(problems, fmt.Sprintf("rate %d: price must be a positive number", i+1))
		}
		r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
		out = append(out, r)
	}
	return out, problems
}

type ProvisioningService struct {
	api       domain.UpstreamAPI
	lookup    domain.LookupService
	schedules domain.ScheduleService
	eventBus  domain.EventPublisher
	validate  RateValidator
	logger    *zerolog.Logger
}

// NewProvisioningService builds the orchestrator. A nil validator falls back to ValidateRates.
func NewProvisioningService(api domain.UpstreamAPI, lookup domain.LookupService, schedules domain.ScheduleService, eventBus domain.EventPublisher, validate RateValidator, logger *zerolog.Logger) *ProvisioningService {
	if validate == nil {
		validate = ValidateRates
	}
	return &ProvisioningService{
		api:       api,
		lookup:    lookup,
		schedules: schedules,
		eventBus:  eventBus,
		validate:  validate,
		logger:    logger,
	}
}

type provisionRun struct {
	req      models.ProvisionRequest
	metadata map[string]any
	result   *models.ProvisionResult
}

type provisionStep struct {
	name string
	run  func(ctx context.Context, p *provisionRun) error
}

// Provision creates a resource with its schedule, service, association and initial blocks.
// An existing resource with the same name short-circuits the whole run.
func (s *ProvisioningService) Provision(ctx context.Context, req models.ProvisionRequest) (*models.ProvisionResult, error) {
	req.ResourceName = strings.TrimSpace(req.ResourceName)
	if req.ResourceName == "" || strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.LocationID) == "" {
		return nil, domain.NewValidationError(msgProvisionMissing)
	}

	rates := req.Rates
	if len(rates) > 0 {
		validated, problems := s.validate(rates)
		if len(problems) > 0 {
			return nil, domain.NewValidationError("Rate validation failed: " + strings.Join(problems, ", "))
		}
		rates = validated
	}

	// the cache may still hold a resource deleted upstream
	existing, err := s.lookup.RefreshResourceByName(ctx, req.ResourceName)
	switch {
	case err == nil:
		s.logger.Info().Str("resource_name", req.ResourceName).Str("resource_id", existing.ID).Msg("Resource already exists, skipping provisioning")
		return &models.ProvisionResult{
			AlreadyExists: true,
			Message:       fmt.Sprintf("Resource %q already exists.", req.ResourceName),
			ResourceID:    existing.ID,
			Resource:      existing,
		}, nil
	case !isNotFound(err):
		return nil, err
	}

	run := &provisionRun{
		req:      req,
		metadata: req.FlatMetadata(rates),
		result:   &models.ProvisionResult{Message: msgProvisioned},
	}

	steps := []provisionStep{
		{StepCreateResource, s.createResource},
		{StepCreateSchedule, s.createSchedule},
		{StepCreateService, s.createService},
		{StepAssociate, s.associate},
		{StepCreateBlocks, s.createBlocks},
	}

	completed := make([]string, 0, len(steps))
	for _, step := range steps {
		if err := step.run(ctx, run); err != nil {
			s.logger.Error().Err(err).
				Str("resource_name", req.ResourceName).
				Str("step", step.name).
				Strs("completed", completed).
				Msg("Provisioning step failed, no compensation")
			return nil, &StepError{Step: step.name, Completed: completed, Err: err}
		}
		completed = append(completed, step.name)
	}

	s.lookup.Invalidate(ctx, req.ResourceName)
	publishEvent(s.eventBus, s.logger, events.EventResourceProvisioned, events.ResourceEventPayload{
		ResourceID:          run.result.ResourceID,
		ResourceName:        req.ResourceName,
		RecurringScheduleID: run.result.RecurringScheduleID,
		ServiceID:           run.result.ServiceID,
	})
	s.logger.Info().Str("resource_name", req.ResourceName).Str("resource_id", run.result.ResourceID).Msg("Resource provisioned")
	return run.result, nil
}

func (s *ProvisioningService) createResource(ctx context.Context, p *provisionRun) error {
	raw, err := s.api.Post(ctx, "resources", map[string]any{
		"name":                      p.req.ResourceName,
		"max_simultaneous_bookings": models.MaxSimultaneousBookings,
		"enabled":                   true,
		"metadata":                  p.metadata,
	})
	if err != nil {
		return err
	}
	res, err := upstream.DecodeFirst[models.Resource](raw)
	if err != nil {
		return err
	}
	if res == nil || res.ID == "" {
		return fmt.Errorf("upstream returned no resource id")
	}
	p.result.ResourceID = res.ID
	p.result.Resource = res
	return nil
}

func (s *ProvisioningService) createSchedule(ctx context.Context, p *provisionRun) error {
	schedule, err := s.CreateRecurringSchedule(ctx, p.result.ResourceID, p.req.LocationID, p.req.StartDate)
	if err != nil {
		return err
	}
	p.result.RecurringScheduleID = schedule.ID
	return nil
}

func (s *ProvisioningService) createService(ctx context.Context, p *provisionRun) error {
	raw, err := s.api.Post(ctx, "services", models.ServiceUpdate{
		Name:         p.req.ResourceName + models.ServiceNameSuffix,
		MaxDuration:  p.req.MaxDuration,
		MinDuration:  p.req.MinDuration,
		DurationStep: p.req.DurationInterval,
	})
	if err != nil {
		return err
	}
	svc, err := upstream.DecodeFirst[models.Service](raw)
	if err != nil {
		return err
	}
	if svc == nil || svc.ID == "" {
		return fmt.Errorf("upstream returned no service id")
	}
	p.result.ServiceID = svc.ID
	return nil
}

func (s *ProvisioningService) associate(ctx context.Context, p *provisionRun) error {
	_, err := s.api.Put(ctx, upstream.Path("services", p.result.ServiceID, "resources", p.result.ResourceID), struct{}{})
	return err
}

func (s *ProvisioningService) createBlocks(ctx context.Context, p *provisionRun) error {
	if len(p.req.DefinedTimings) == 0 {
		return nil
	}
	batch, err := s.schedules.CreateBlocks(ctx, p.result.ResourceID, p.result.RecurringScheduleID, p.req.DefinedTimings)
	if err != nil {
		return err
	}
	p.result.Blocks = batch
	return nil
}

// CreateRecurringSchedule anchors a new weekly schedule for the resource at startDate.
func (s *ProvisioningService) CreateRecurringSchedule(ctx context.Context, resourceID, locationID, startDate string) (*models.RecurringSchedule, error) {
	if strings.TrimSpace(locationID) == "" || strings.TrimSpace(startDate) == "" {
		return nil, domain.NewValidationError("location_id and start_date are required")
	}
	raw, err := s.api.Post(ctx, upstream.Path("resources", resourceID, "recurring-schedules"), map[string]string{
		"location_id": locationID,
		"start_date":  startDate,
	})
	if err != nil {
		return nil, fmt.Errorf("create recurring schedule: %w", err)
	}
	schedule, err := upstream.DecodeFirst[models.RecurringSchedule](raw)
	if err != nil {
		return nil, fmt.Errorf("create recurring schedule: %w", err)
	}
	if schedule == nil || schedule.ID == "" {
		return nil, fmt.Errorf("create recurring schedule: upstream returned no id")
	}
	return schedule, nil
}

const msgNoUpdateFields = "No update fields provided."

// UpdateResource merge-patches the resource metadata, then updates the linked service durations
// and replaces the blocks of every weekday named in DefinedTimings.
func (s *ProvisioningService) UpdateResource(ctx context.Context, resourceID string, upd models.ResourceUpdate) (*models.ResourceUpdateResult, error) {
	if upd.IsEmpty() {
		return nil, domain.NewValidationError(msgNoUpdateFields)
	}
	var grouped map[models.Weekday][]models.BlockTimes
	if len(upd.DefinedTimings) > 0 {
		var err error
		if grouped, err = groupByWeekday(upd.DefinedTimings); err != nil {
			return nil, err
		}
	}

	path := upstream.Path("resources", resourceID)
	raw, err := s.api.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get resource %s: %w", resourceID, err)
	}
	current, err := upstream.DecodeFirst[models.Resource](raw)
	if err != nil {
		return nil, fmt.Errorf("get resource %s: %w", resourceID, err)
	}
	if current == nil {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Resource %s not found", resourceID))
	}

	merged := make(map[string]any, len(current.Metadata)+len(upd.Metadata)+1)
	for k, v := range current.Metadata {
		merged[k] = v
	}
	for k, v := range upd.Metadata {
		merged[k] = v
	}
	if upd.Capacity != nil {
		merged["capacity"] = upd.Capacity
	}
	patch := map[string]any{"metadata": merged}
	if upd.Name != "" {
		patch["name"] = upd.Name
	}
	if _, err := s.api.Patch(ctx, path, patch); err != nil {
		return nil, fmt.Errorf("update resource %s: %w", resourceID, err)
	}
	s.lookup.Invalidate(ctx, current.Name)
	if upd.Name != "" {
		s.lookup.Invalidate(ctx, upd.Name)
	}

	result := &models.ResourceUpdateResult{Message: msgResourceUpdated, ResourceID: resourceID}

	if upd.HasDurations() {
		serviceID, err := s.lookup.ServiceIDByResource(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		if _, err := s.lookup.UpdateService(ctx, serviceID, models.ServiceUpdate{
			MaxDuration:  upd.MaxDuration,
			MinDuration:  upd.MinDuration,
			DurationStep: upd.DurationInterval,
		}); err != nil {
			return nil, err
		}
		result.ServiceUpdated = true
	}

	if len(grouped) > 0 {
		schedule, err := s.lookup.GetRecurringSchedule(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		result.Weekdays = make(map[models.Weekday]*models.ReplaceResult, len(grouped))
		for _, day := range models.Weekdays {
			blocks, ok := grouped[day]
			if !ok {
				continue
			}
			replaced, err := s.schedules.ReplaceWeekdayBlocks(ctx, resourceID, schedule.ID, models.Replace{Weekday: day, Blocks: blocks})
			if err != nil {
				return nil, err
			}
			result.Weekdays[day] = replaced
		}
	}

	publishEvent(s.eventBus, s.logger, events.EventResourceUpdated, events.ResourceEventPayload{ResourceID: resourceID, ResourceName: current.Name})
	return result, nil
}

func groupByWeekday(blocks []models.BlockInput) (map[models.Weekday][]models.BlockTimes, error) {
	out := make(map[models.Weekday][]models.BlockTimes)
	for _, b := range blocks {
		if !b.Complete() {
			return nil, domain.NewValidationError(msgBlockFieldsMissing)
		}
		day, err := models.ParseWeekday(b.Weekday)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		out[day] = append(out[day], models.BlockTimes{StartTime: b.StartTime, EndTime: b.EndTime})
	}
	return out, nil
}
