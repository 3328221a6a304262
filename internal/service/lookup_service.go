package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"bookinggate/internal/domain"
	"bookinggate/internal/models"
	"bookinggate/internal/upstream"

	"github.com/rs/zerolog"
)

const (
	resourceKeyPrefix = "resource:name:"
	serviceKeyPrefix  = "service:resource:"
)

// LookupService resolves resources, schedules and blocks against the upstream API and hides
// the different response envelopes it uses.
type LookupService struct {
	api      domain.UpstreamAPI
	cache    domain.Cache
	cacheTTL time.Duration
	logger   *zerolog.Logger
}

// NewLookupService builds the lookup layer. cache may be nil to disable caching.
func NewLookupService(api domain.UpstreamAPI, cache domain.Cache, cacheTTL time.Duration, logger *zerolog.Logger) *LookupService {
	return &LookupService{
		api:      api,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (s *LookupService) ListResources(ctx context.Context) (json.RawMessage, error) {
	return s.api.Get(ctx, "resources", nil)
}

// FindResourceByName returns the most recently created resource with exactly this name.
func (s *LookupService) FindResourceByName(ctx context.Context, name string) (*models.Resource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("resource_name is required")
	}

	var cached models.Resource
	if s.readCache(ctx, resourceKeyPrefix+name, &cached) {
		return &cached, nil
	}
	return s.fetchResource(ctx, name)
}

// RefreshResourceByName always asks the upstream and rewrites the cache entry.
// A resource that no longer exists drops it.
func (s *LookupService) RefreshResourceByName(ctx context.Context, name string) (*models.Resource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("resource_name is required")
	}

	res, err := s.fetchResource(ctx, name)
	if isNotFound(err) {
		s.dropCache(ctx, resourceKeyPrefix+name, false)
	}
	return res, err
}

func (s *LookupService) fetchResource(ctx context.Context, name string) (*models.Resource, error) {
	raw, err := s.api.Get(ctx, "resources", url.Values{"name[eq]": {name}})
	if err != nil {
		return nil, fmt.Errorf("find resource %q: %w", name, err)
	}
	resources, err := upstream.DecodeList[models.Resource](raw)
	if err != nil {
		return nil, fmt.Errorf("find resource %q: %w", name, err)
	}

	res := models.NewestResource(resources)
	if res == nil {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Resource %q not found", name))
	}
	if len(resources) > 1 {
		s.logger.Warn().Str("resource_name", name).Int("matches", len(resources)).Str("picked", res.ID).
			Msg("Multiple resources share a name, using the newest")
	}

	s.writeCache(ctx, resourceKeyPrefix+name, res)
	return res, nil
}

// GetRecurringSchedule returns the first recurring schedule of the resource.
func (s *LookupService) GetRecurringSchedule(ctx context.Context, resourceID string) (*models.RecurringSchedule, error) {
	raw, err := s.api.Get(ctx, upstream.Path("resources", resourceID, "recurring-schedules"), nil)
	if err != nil {
		return nil, fmt.Errorf("get recurring schedule for %s: %w", resourceID, err)
	}
	schedule, err := upstream.DecodeFirst[models.RecurringSchedule](raw)
	if err != nil {
		return nil, fmt.Errorf("get recurring schedule for %s: %w", resourceID, err)
	}
	if schedule == nil || schedule.ID == "" {
		return nil, domain.NewNotFoundError(fmt.Sprintf("No recurring schedule found for resource %s", resourceID))
	}
	return schedule, nil
}

func (s *LookupService) GetAllBlocks(ctx context.Context, resourceID, scheduleID string) ([]models.ScheduleBlock, error) {
	raw, err := s.api.Get(ctx, blocksPath(resourceID, scheduleID), nil)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	blocks, err := upstream.DecodeList[models.ScheduleBlock](raw)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	if blocks == nil {
		blocks = []models.ScheduleBlock{}
	}
	return blocks, nil
}

// GetBlocksForWeekday filters the schedule's blocks case-insensitively. No match is not an error.
func (s *LookupService) GetBlocksForWeekday(ctx context.Context, resourceID, scheduleID string, weekday models.Weekday) ([]models.ScheduleBlock, error) {
	all, err := s.GetAllBlocks(ctx, resourceID, scheduleID)
	if err != nil {
		return nil, err
	}
	return filterWeekday(all, weekday), nil
}

// ResourceScheduleInfo combines resource, schedule and blocks. An empty weekday returns every block.
func (s *LookupService) ResourceScheduleInfo(ctx context.Context, name, weekday string) (*models.ResourceScheduleInfo, error) {
	var day models.Weekday
	if strings.TrimSpace(weekday) != "" {
		d, err := models.ParseWeekday(weekday)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		day = d
	}

	res, schedule, blocks, err := s.resourceBlocks(ctx, name)
	if err != nil {
		return nil, err
	}

	label := "all"
	if day != "" {
		blocks = filterWeekday(blocks, day)
		label = string(day)
	}

	return &models.ResourceScheduleInfo{
		Resource:          summarize(res),
		RecurringSchedule: *schedule,
		Weekday:           label,
		ScheduleBlocks:    blocks,
	}, nil
}

// WeeklySchedule returns every block of the resource ordered Monday to Sunday.
func (s *LookupService) WeeklySchedule(ctx context.Context, name string) (*models.WeeklySchedule, error) {
	res, schedule, blocks, err := s.resourceBlocks(ctx, name)
	if err != nil {
		return nil, err
	}
	sortBlocks(blocks)
	return &models.WeeklySchedule{
		Resource:                summarize(res),
		RecurringSchedule:       *schedule,
		ScheduleBlocksByWeekday: blocks,
	}, nil
}

func (s *LookupService) BlockIDsByResourceName(ctx context.Context, name string, weekday models.Weekday) (*models.BlockIDs, error) {
	res, schedule, err := s.resourceSchedule(ctx, name)
	if err != nil {
		return nil, err
	}
	blocks, err := s.GetBlocksForWeekday(ctx, res.ID, schedule.ID, weekday)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, domain.NewNotFoundError(fmt.Sprintf("No schedule blocks found for %s on %s", name, weekday))
	}

	out := &models.BlockIDs{
		ResourceName:   res.Name,
		Weekday:        string(weekday),
		TotalBlocks:    len(blocks),
		ScheduleBlocks: make([]models.BlockTimesWithID, 0, len(blocks)),
	}
	for _, b := range blocks {
		out.ScheduleBlocks = append(out.ScheduleBlocks, models.BlockTimesWithID{ID: b.ID, StartTime: b.StartTime, EndTime: b.EndTime})
	}
	return out, nil
}

// ServiceIDByResource returns the id of the first service linked to the resource.
func (s *LookupService) ServiceIDByResource(ctx context.Context, resourceID string) (string, error) {
	var cached string
	if s.readCache(ctx, serviceKeyPrefix+resourceID, &cached) && cached != "" {
		return cached, nil
	}

	raw, err := s.api.Get(ctx, upstream.Path("resources", resourceID, "services"), nil)
	if err != nil {
		return "", fmt.Errorf("list services of resource %s: %w", resourceID, err)
	}
	link, err := upstream.DecodeFirst[models.ResourceService](raw)
	if err != nil {
		return "", fmt.Errorf("list services of resource %s: %w", resourceID, err)
	}
	if link == nil {
		return "", domain.NewNotFoundError(fmt.Sprintf("No service linked to resource %s", resourceID))
	}

	id := link.ServiceID
	if id == "" {
		id = link.ID
	}
	s.writeCache(ctx, serviceKeyPrefix+resourceID, id)
	return id, nil
}

func (s *LookupService) GetService(ctx context.Context, serviceID string) (json.RawMessage, error) {
	return s.api.Get(ctx, upstream.Path("services", serviceID), nil)
}

func (s *LookupService) UpdateService(ctx context.Context, serviceID string, upd models.ServiceUpdate) (json.RawMessage, error) {
	if upd == (models.ServiceUpdate{}) {
		return nil, domain.NewValidationError("Please provide at least one of 'name', 'min_duration', 'max_duration', or 'duration_step' to update.")
	}
	raw, err := s.api.Patch(ctx, upstream.Path("services", serviceID), upd)
	if err != nil {
		return nil, fmt.Errorf("update service %s: %w", serviceID, err)
	}
	return raw, nil
}

func (s *LookupService) DeleteResource(ctx context.Context, resourceID string) (json.RawMessage, error) {
	raw, err := s.api.Delete(ctx, upstream.Path("resources", resourceID))
	if err != nil {
		return nil, fmt.Errorf("delete resource %s: %w", resourceID, err)
	}
	// the name is unknown here
	s.dropCache(ctx, resourceKeyPrefix, true)
	s.dropCache(ctx, serviceKeyPrefix+resourceID, false)
	return raw, nil
}

// Invalidate forgets the cached lookup for a resource name.
func (s *LookupService) Invalidate(ctx context.Context, resourceName string) {
	s.dropCache(ctx, resourceKeyPrefix+resourceName, false)
}

func (s *LookupService) resourceSchedule(ctx context.Context, name string) (*models.Resource, *models.RecurringSchedule, error) {
	res, err := s.FindResourceByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	schedule, err := s.GetRecurringSchedule(ctx, res.ID)
	if err != nil {
		return nil, nil, err
	}
	return res, schedule, nil
}

func (s *LookupService) resourceBlocks(ctx context.Context, name string) (*models.Resource, *models.RecurringSchedule, []models.ScheduleBlock, error) {
	res, schedule, err := s.resourceSchedule(ctx, name)
	if err != nil {
		return nil, nil, nil, err
	}
	blocks, err := s.GetAllBlocks(ctx, res.ID, schedule.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return res, schedule, blocks, nil
}

func (s *LookupService) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return false
	}
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *LookupService) writeCache(ctx context.Context, key string, val any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (s *LookupService) dropCache(ctx context.Context, key string, prefix bool) {
	if s.cache == nil {
		return
	}
	var err error
	if prefix {
		err = s.cache.DeletePrefix(ctx, key)
	} else {
		err = s.cache.Delete(ctx, key)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache invalidation failed")
	}
}

func blocksPath(resourceID, scheduleID string) string {
	return upstream.Path("resources", resourceID, "recurring-schedules", scheduleID, "schedule-blocks")
}

func filterWeekday(blocks []models.ScheduleBlock, weekday models.Weekday) []models.ScheduleBlock {
	out := make([]models.ScheduleBlock, 0, len(blocks))
	for _, b := range blocks {
		if weekday.Matches(b.Weekday) {
			out = append(out, b)
		}
	}
	return out
}

func sortBlocks(blocks []models.ScheduleBlock) {
	order := make(map[models.Weekday]int, len(models.Weekdays))
	for i, d := range models.Weekdays {
		order[d] = i
	}
	rank := func(raw string) int {
		if d, err := models.ParseWeekday(raw); err == nil {
			return order[d]
		}
		return len(order)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		ri, rj := rank(blocks[i].Weekday), rank(blocks[j].Weekday)
		if ri != rj {
			return ri < rj
		}
		return blocks[i].StartTime < blocks[j].StartTime
	})
}

func summarize(r *models.Resource) models.ResourceSummary {
	return models.ResourceSummary{
		ID:        r.ID,
		Name:      r.Name,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
