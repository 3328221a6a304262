package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"bookinggate/internal/domain"
	"bookinggate/internal/events"
	"bookinggate/internal/metrics"
	"bookinggate/internal/models"
	"bookinggate/internal/upstream"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	msgBlockFieldsMissing = "Each block must include weekday, start_time, and end_time."
	msgBulkFieldsMissing  = "Missing required fields (schedule_block_id, weekday, or newBlocks)."
	msgBulkCompleted      = "Bulk recurring schedule block update completed."
	msgBulkItemUpdated    = "Updated successfully."
	msgReplaced           = "Schedule blocks updated successfully (old weekday blocks replaced)."
)

// ReplaceError reports creations that failed after a weekday's old blocks were already deleted.
// The weekday is left partially replaced.
type ReplaceError struct {
	Weekday models.Weekday
	Deleted []string
	Created []models.ScheduleBlock
	Failed  []models.BlockFailure
}

func (e *ReplaceError) Error() string {
	return fmt.Sprintf("replace %s blocks: %d of %d creations failed: %s",
		e.Weekday, len(e.Failed), len(e.Failed)+len(e.Created), e.Failed[0].Error)
}

// Unwrap exposes the first failure's cause so callers can classify it.
func (e *ReplaceError) Unwrap() error {
	return e.Failed[0].Err
}

// ScheduleService keeps a recurring schedule's blocks in line with the requested state.
type ScheduleService struct {
	api         domain.UpstreamAPI
	lookup      domain.LookupService
	eventBus    domain.EventPublisher
	concurrency int
	logger      *zerolog.Logger
}

// NewScheduleService builds the reconciler. concurrency caps parallel creations; 0 means no cap.
func NewScheduleService(api domain.UpstreamAPI, lookup domain.LookupService, eventBus domain.EventPublisher, concurrency int, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		api:         api,
		lookup:      lookup,
		eventBus:    eventBus,
		concurrency: concurrency,
		logger:      logger,
	}
}

type blockOutcome struct {
	block   *models.ScheduleBlock
	failure *models.BlockFailure
}

// CreateBlocks creates every block concurrently and reports each one as created or failed.
// Individual failures never fail the batch.
func (s *ScheduleService) CreateBlocks(ctx context.Context, resourceID, scheduleID string, blocks []models.BlockInput) (*models.BlockBatchResult, error) {
	if len(blocks) == 0 {
		return nil, domain.NewValidationError("At least one block must be provided.")
	}

	outcomes := make([]blockOutcome, len(blocks))
	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, in := range blocks {
		g.Go(func() error {
			outcomes[i] = s.createOne(ctx, resourceID, scheduleID, in)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BlockBatchResult{
		Status: http.StatusCreated,
		Data:   make([]models.ScheduleBlock, 0, len(blocks)),
		Failed: make([]models.BlockFailure, 0),
	}
	for _, o := range outcomes {
		if o.failure != nil {
			result.Failed = append(result.Failed, *o.failure)
			continue
		}
		result.Data = append(result.Data, *o.block)
	}
	result.Message = fmt.Sprintf("%d block(s) created successfully, %d failed.", len(result.Data), len(result.Failed))

	metrics.AddBlockOutcomes("create", "created", len(result.Data))
	metrics.AddBlockOutcomes("create", "failed", len(result.Failed))
	s.logger.Info().
		Str("resource_id", resourceID).
		Str("recurring_schedule_id", scheduleID).
		Int("created", len(result.Data)).
		Int("failed", len(result.Failed)).
		Msg("Schedule blocks created")

	if len(result.Data) > 0 {
		publishEvent(s.eventBus, s.logger, events.EventScheduleBlocksCreated, events.BlocksEventPayload{
			ResourceID:          resourceID,
			RecurringScheduleID: scheduleID,
			Created:             len(result.Data),
			Failed:              len(result.Failed),
		})
	}
	return result, nil
}

func (s *ScheduleService) createOne(ctx context.Context, resourceID, scheduleID string, in models.BlockInput) blockOutcome {
	fail := func(status int, msg string, err error) blockOutcome {
		return blockOutcome{failure: &models.BlockFailure{
			Weekday: in.Weekday, StartTime: in.StartTime, EndTime: in.EndTime,
			Error: msg, Status: status, Err: err,
		}}
	}

	if !in.Complete() {
		return fail(http.StatusBadRequest, msgBlockFieldsMissing, domain.NewValidationError(msgBlockFieldsMissing))
	}

	raw, err := s.api.Post(ctx, blocksPath(resourceID, scheduleID), in)
	if err != nil {
		status := http.StatusInternalServerError
		if st, ok := upstream.StatusOf(err); ok {
			status = st
		}
		s.logger.Warn().Err(err).Str("weekday", in.Weekday).Str("start_time", in.StartTime).Msg("Schedule block creation failed")
		return fail(status, upstream.ErrorMessage(err), err)
	}

	block, err := upstream.DecodeFirst[models.ScheduleBlock](raw)
	if err != nil || block == nil {
		// upstream accepted the block but did not echo it back
		block = &models.ScheduleBlock{RecurringScheduleID: scheduleID, Weekday: in.Weekday, StartTime: in.StartTime, EndTime: in.EndTime}
	}
	return blockOutcome{block: block}
}

// ReplaceWeekdayBlocks deletes every block of op.Weekday and then creates op.Blocks. The two
// phases are not atomic and nothing is rolled back: a failed delete aborts with the weekday
// partly cleared, failed creations return *ReplaceError next to the partial result.
func (s *ScheduleService) ReplaceWeekdayBlocks(ctx context.Context, resourceID, scheduleID string, op models.Replace) (*models.ReplaceResult, error) {
	day, err := models.ParseWeekday(string(op.Weekday))
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	op.Weekday = day

	existing, err := s.lookup.GetAllBlocks(ctx, resourceID, scheduleID)
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0)
	for _, b := range existing {
		if !day.Matches(b.Weekday) {
			continue
		}
		if _, err := s.api.Delete(ctx, upstream.Path("resources", resourceID, "recurring-schedules", scheduleID, "schedule-blocks", b.ID)); err != nil {
			s.logger.Error().Err(err).Str("schedule_block_id", b.ID).Int("deleted", len(deleted)).
				Msg("Schedule block delete failed, weekday left partially replaced")
			return nil, fmt.Errorf("delete schedule block %s: %w", b.ID, err)
		}
		deleted = append(deleted, b.ID)
	}
	metrics.AddBlockOutcomes("replace", "deleted", len(deleted))

	result := &models.ReplaceResult{
		Status:  http.StatusOK,
		Message: msgReplaced,
		Data:    []models.ScheduleBlock{},
		Deleted: deleted,
	}

	if len(op.Blocks) > 0 {
		batch, err := s.CreateBlocks(ctx, resourceID, scheduleID, op.Inputs())
		if err != nil {
			return nil, err
		}
		result.Data = batch.Data
		if len(batch.Failed) > 0 {
			result.Status = batch.Status
			result.Message = batch.Message
			return result, &ReplaceError{Weekday: day, Deleted: deleted, Created: batch.Data, Failed: batch.Failed}
		}
	}

	publishEvent(s.eventBus, s.logger, events.EventScheduleBlocksReplaced, events.BlocksEventPayload{
		ResourceID:          resourceID,
		RecurringScheduleID: scheduleID,
		Weekday:             string(day),
		Created:             len(result.Data),
		Deleted:             len(deleted),
	})
	return result, nil
}

// BulkUpdate applies each item as a weekday replacement, one after another. Item failures are
// reported in the result; a 422 from the upstream marks the item as skipped.
func (s *ScheduleService) BulkUpdate(ctx context.Context, resourceID, scheduleID string, items []models.BulkUpdateItem) (*models.BulkUpdateResult, error) {
	if len(items) == 0 {
		return nil, domain.NewValidationError("At least one schedule block update must be provided.")
	}

	// an unreachable schedule fails the whole call before any item runs
	if _, err := s.lookup.GetAllBlocks(ctx, resourceID, scheduleID); err != nil {
		return nil, fmt.Errorf("bulk update: %w", err)
	}

	results := make([]models.BulkItemResult, 0, len(items))
	for i := range items {
		item := items[i]
		results = append(results, s.bulkItem(ctx, resourceID, scheduleID, &item))
	}

	return &models.BulkUpdateResult{Message: msgBulkCompleted, Results: results}, nil
}

func (s *ScheduleService) bulkItem(ctx context.Context, resourceID, scheduleID string, item *models.BulkUpdateItem) models.BulkItemResult {
	if item.ScheduleBlockID == "" || item.Weekday == "" || item.NewBlocks == nil {
		metrics.IncBlockOutcome("bulk", "invalid")
		return models.BulkItemResult{Error: msgBulkFieldsMissing, Block: item}
	}

	res := models.BulkItemResult{ScheduleBlockID: item.ScheduleBlockID, Weekday: item.Weekday}

	day, err := models.ParseWeekday(item.Weekday)
	if err != nil {
		metrics.IncBlockOutcome("bulk", "invalid")
		res.Error = err.Error()
		return res
	}

	replaced, err := s.ReplaceWeekdayBlocks(ctx, resourceID, scheduleID, models.Replace{Weekday: day, Blocks: item.NewBlocks})
	switch {
	case err == nil:
		metrics.IncBlockOutcome("bulk", "updated")
		res.Success = true
		res.Message = msgBulkItemUpdated
		res.Result = replaced.Data
	case upstream.IsConflict(err):
		metrics.IncBlockOutcome("bulk", "skipped")
		s.logger.Warn().Str("schedule_block_id", item.ScheduleBlockID).Str("reason", upstream.ErrorMessage(err)).
			Msg("Skipping overlapping schedule block")
		res.Skipped = true
		res.Reason = models.OverlapSkipReason
		res.Error = upstream.ErrorMessage(err)
	default:
		metrics.IncBlockOutcome("bulk", "failed")
		s.logger.Error().Err(err).Str("schedule_block_id", item.ScheduleBlockID).Msg("Bulk schedule block update failed")
		res.Error = upstream.ErrorMessage(err)
	}
	return res
}

func (s *ScheduleService) DeleteBlock(ctx context.Context, resourceID, scheduleID, blockID string) (json.RawMessage, error) {
	raw, err := s.api.Delete(ctx, upstream.Path("resources", resourceID, "recurring-schedules", scheduleID, "schedule-blocks", blockID))
	if err != nil {
		return nil, fmt.Errorf("delete schedule block %s: %w", blockID, err)
	}
	metrics.IncBlockOutcome("delete", "deleted")
	return raw, nil
}
