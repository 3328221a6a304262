// Package upstreamtest provides an in-memory stand-in for the upstream booking API.
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"bookinggate/internal/models"
)

// ScheduleShape selects how GET recurring-schedules is rendered.
type ScheduleShape int

const (
	ShapeEnvelope ScheduleShape = iota // {"data": [...]}
	ShapeList                          // [...]
	ShapeBare                          // {...}
)

type Call struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type failure struct {
	status  int
	message string
	times   int
}

// FakeAPI keeps resources, schedules, blocks, services and bookings in memory. Blocks on the
// same weekday of one schedule may not overlap; violating requests get 422.
type FakeAPI struct {
	mu sync.Mutex

	Token         string
	ScheduleShape ScheduleShape

	seq       int
	clock     time.Time
	resources map[string]*models.Resource
	schedules map[string]*models.RecurringSchedule
	blocks    map[string]*models.ScheduleBlock
	services  map[string]*models.Service
	links     map[string][]string // resource id -> service ids
	bookings  map[string]*models.Booking
	calls     []Call
	failures  map[string]*failure

	mux *http.ServeMux
}

func New() *FakeAPI {
	f := &FakeAPI{
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		resources: map[string]*models.Resource{},
		schedules: map[string]*models.RecurringSchedule{},
		blocks:    map[string]*models.ScheduleBlock{},
		services:  map[string]*models.Service{},
		links:     map[string][]string{},
		bookings:  map[string]*models.Booking{},
		failures:  map[string]*failure{},
		mux:       http.NewServeMux(),
	}
	f.routes()
	return f
}

// NewServer starts an httptest server around a fresh fake.
func NewServer() (*FakeAPI, *httptest.Server) {
	f := New()
	return f, httptest.NewServer(f)
}

func (f *FakeAPI) routes() {
	f.mux.HandleFunc("GET /resources", f.listResources)
	f.mux.HandleFunc("POST /resources", f.createResource)
	f.mux.HandleFunc("GET /resources/{rid}", f.getResource)
	f.mux.HandleFunc("PATCH /resources/{rid}", f.patchResource)
	f.mux.HandleFunc("DELETE /resources/{rid}", f.deleteResource)
	f.mux.HandleFunc("GET /resources/{rid}/services", f.resourceServices)
	f.mux.HandleFunc("GET /resources/{rid}/recurring-schedules", f.listSchedules)
	f.mux.HandleFunc("POST /resources/{rid}/recurring-schedules", f.createSchedule)
	f.mux.HandleFunc("GET /resources/{rid}/recurring-schedules/{sid}/schedule-blocks", f.listBlocks)
	f.mux.HandleFunc("POST /resources/{rid}/recurring-schedules/{sid}/schedule-blocks", f.createBlock)
	f.mux.HandleFunc("DELETE /resources/{rid}/recurring-schedules/{sid}/schedule-blocks/{bid}", f.deleteBlock)
	f.mux.HandleFunc("POST /services", f.createService)
	f.mux.HandleFunc("GET /services/{sid}", f.getService)
	f.mux.HandleFunc("PATCH /services/{sid}", f.patchService)
	f.mux.HandleFunc("PUT /services/{sid}/resources/{rid}", f.linkService)
	f.mux.HandleFunc("GET /bookings", f.listBookings)
	f.mux.HandleFunc("POST /bookings", f.createBooking)
	f.mux.HandleFunc("GET /bookings/{id}", f.getBooking)
	f.mux.HandleFunc("PATCH /bookings/{id}", f.patchBooking)
	f.mux.HandleFunc("DELETE /bookings/{id}", f.deleteBooking)
}

func (f *FakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	token := f.Token
	fail := f.failures[r.Method+" "+r.URL.Path]
	if fail != nil && fail.times != 0 {
		fail.times--
	} else {
		fail = nil
	}
	f.mu.Unlock()

	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	if fail != nil {
		writeJSON(w, fail.status, map[string]string{"message": fail.message})
		return
	}
	f.mux.ServeHTTP(w, r)
}

// FailOn makes the next n requests for method and exact path fail; n < 0 fails forever.
func (f *FakeAPI) FailOn(method, path string, status int, message string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = &failure{status: status, message: message, times: n}
}

// Calls returns a copy of every request received so far.
func (f *FakeAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CountCalls counts requests with the given method whose path starts with prefix.
func (f *FakeAPI) CountCalls(method, prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// LastCall returns the latest request matching method and exact path.
func (f *FakeAPI) LastCall(method, path string) (Call, bool) {
	calls := f.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method && calls[i].Path == path {
			return calls[i], true
		}
	}
	return Call{}, false
}

func (f *FakeAPI) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeAPI) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *FakeAPI) tick() string {
	f.clock = f.clock.Add(time.Second)
	return f.clock.Format(time.RFC3339Nano)
}

// AddResource seeds a resource and returns it.
func (f *FakeAPI) AddResource(name string, metadata map[string]any) models.Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	res := &models.Resource{
		ID: f.nextID("res"), Name: name, Metadata: metadata, Enabled: true,
		MaxSimultaneousBookings: 1, CreatedAt: now, UpdatedAt: now,
	}
	f.resources[res.ID] = res
	return *res
}

// AddSchedule seeds a recurring schedule for a resource.
func (f *FakeAPI) AddSchedule(resourceID, locationID string) models.RecurringSchedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	start := "2024-01-01"
	s := &models.RecurringSchedule{
		ID: f.nextID("sch"), ResourceID: resourceID, LocationID: locationID,
		StartDate: &start, CreatedAt: now, UpdatedAt: now,
	}
	f.schedules[s.ID] = s
	return *s
}

// AddBlock seeds a block without the overlap check.
func (f *FakeAPI) AddBlock(scheduleID, weekday, start, end string) models.ScheduleBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &models.ScheduleBlock{ID: f.nextID("blk"), RecurringScheduleID: scheduleID, Weekday: weekday, StartTime: start, EndTime: end}
	f.blocks[b.ID] = b
	return *b
}

// AddService seeds a service linked to the resource.
func (f *FakeAPI) AddService(resourceID, name string) models.Service {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &models.Service{ID: f.nextID("svc"), Name: name}
	f.services[s.ID] = s
	f.links[resourceID] = append(f.links[resourceID], s.ID)
	return *s
}

// AddBooking seeds a booking; an empty ID is assigned.
func (f *FakeAPI) AddBooking(b models.Booking) models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = f.nextID("bkg")
	}
	f.bookings[b.ID] = &b
	return b
}

// Blocks returns the blocks of a schedule sorted by weekday order then start time.
func (f *FakeAPI) Blocks(scheduleID string) []models.ScheduleBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocksOf(scheduleID)
}

func (f *FakeAPI) Resource(id string) (models.Resource, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok {
		return models.Resource{}, false
	}
	return *r, true
}

func (f *FakeAPI) Service(id string) (models.Service, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[id]
	if !ok {
		return models.Service{}, false
	}
	return *s, true
}

func (f *FakeAPI) Booking(id string) (models.Booking, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return models.Booking{}, false
	}
	return *b, true
}

func (f *FakeAPI) blocksOf(scheduleID string) []models.ScheduleBlock {
	var out []models.ScheduleBlock
	for _, b := range f.blocks {
		if b.RecurringScheduleID == scheduleID {
			out = append(out, *b)
		}
	}
	order := map[string]int{}
	for i, d := range models.Weekdays {
		order[string(d)] = i
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := order[strings.ToLower(out[i].Weekday)], order[strings.ToLower(out[j].Weekday)]
		if oi != oj {
			return oi < oj
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": what + " not found."})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed JSON."})
		return false
	}
	return true
}

func envelope[T any](items []T) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{"data": items}
}

func (f *FakeAPI) listResources(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name[eq]")
	f.mu.Lock()
	var out []models.Resource
	for _, res := range f.resources {
		if name == "" || res.Name == name {
			out = append(out, *res)
		}
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	writeJSON(w, http.StatusOK, envelope(out))
}

func (f *FakeAPI) createResource(w http.ResponseWriter, r *http.Request) {
	var in models.Resource
	if !decode(w, r, &in) {
		return
	}
	if in.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "The name field is required."})
		return
	}
	f.mu.Lock()
	now := f.tick()
	in.ID = f.nextID("res")
	in.CreatedAt, in.UpdatedAt = now, now
	f.resources[in.ID] = &in
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, in)
}

func (f *FakeAPI) getResource(w http.ResponseWriter, r *http.Request) {
	res, ok := f.Resource(r.PathValue("rid"))
	if !ok {
		notFound(w, "Resource")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (f *FakeAPI) patchResource(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     *string        `json:"name"`
		Metadata map[string]any `json:"metadata"`
		Enabled  *bool          `json:"enabled"`
	}
	if !decode(w, r, &in) {
		return
	}
	f.mu.Lock()
	res, ok := f.resources[r.PathValue("rid")]
	if ok {
		if in.Name != nil {
			res.Name = *in.Name
		}
		if in.Metadata != nil {
			res.Metadata = in.Metadata
		}
		if in.Enabled != nil {
			res.Enabled = *in.Enabled
		}
		res.UpdatedAt = f.tick()
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "Resource")
		return
	}
	f.getResource(w, r)
}

func (f *FakeAPI) deleteResource(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	_, ok := f.resources[r.PathValue("rid")]
	delete(f.resources, r.PathValue("rid"))
	f.mu.Unlock()
	if !ok {
		notFound(w, "Resource")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) resourceServices(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	var out []models.ResourceService
	for _, sid := range f.links[r.PathValue("rid")] {
		out = append(out, models.ResourceService{ID: sid, ServiceID: sid})
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, envelope(out))
}

func (f *FakeAPI) listSchedules(w http.ResponseWriter, r *http.Request) {
	rid := r.PathValue("rid")
	f.mu.Lock()
	var out []models.RecurringSchedule
	for _, s := range f.schedules {
		if s.ResourceID == rid {
			out = append(out, *s)
		}
	}
	shape := f.ScheduleShape
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })

	switch shape {
	case ShapeList:
		if out == nil {
			out = []models.RecurringSchedule{}
		}
		writeJSON(w, http.StatusOK, out)
	case ShapeBare:
		if len(out) == 0 {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, out[0])
	default:
		writeJSON(w, http.StatusOK, envelope(out))
	}
}

func (f *FakeAPI) createSchedule(w http.ResponseWriter, r *http.Request) {
	var in models.RecurringSchedule
	if !decode(w, r, &in) {
		return
	}
	rid := r.PathValue("rid")
	f.mu.Lock()
	_, ok := f.resources[rid]
	if ok {
		now := f.tick()
		in.ID = f.nextID("sch")
		in.ResourceID = rid
		in.CreatedAt, in.UpdatedAt = now, now
		f.schedules[in.ID] = &in
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "Resource")
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (f *FakeAPI) listBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope(f.Blocks(r.PathValue("sid"))))
}

func (f *FakeAPI) createBlock(w http.ResponseWriter, r *http.Request) {
	var in models.BlockInput
	if !decode(w, r, &in) {
		return
	}
	if in.StartTime >= in.EndTime {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "The end time must be after the start time."})
		return
	}
	sid := r.PathValue("sid")

	f.mu.Lock()
	if _, ok := f.schedules[sid]; !ok {
		f.mu.Unlock()
		notFound(w, "Recurring schedule")
		return
	}
	for _, b := range f.blocks {
		if b.RecurringScheduleID == sid && strings.EqualFold(b.Weekday, in.Weekday) &&
			in.StartTime < b.EndTime && b.StartTime < in.EndTime {
			f.mu.Unlock()
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "The schedule block overlaps with another schedule block."})
			return
		}
	}
	b := &models.ScheduleBlock{
		ID: f.nextID("blk"), RecurringScheduleID: sid,
		Weekday: strings.ToLower(in.Weekday), StartTime: in.StartTime, EndTime: in.EndTime,
	}
	f.blocks[b.ID] = b
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, b)
}

func (f *FakeAPI) deleteBlock(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	b, ok := f.blocks[r.PathValue("bid")]
	if ok && b.RecurringScheduleID == r.PathValue("sid") {
		delete(f.blocks, b.ID)
	} else {
		ok = false
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "Schedule block")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) createService(w http.ResponseWriter, r *http.Request) {
	var in models.Service
	if !decode(w, r, &in) {
		return
	}
	f.mu.Lock()
	in.ID = f.nextID("svc")
	f.services[in.ID] = &in
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, in)
}

func (f *FakeAPI) getService(w http.ResponseWriter, r *http.Request) {
	s, ok := f.Service(r.PathValue("sid"))
	if !ok {
		notFound(w, "Service")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (f *FakeAPI) patchService(w http.ResponseWriter, r *http.Request) {
	var in models.ServiceUpdate
	if !decode(w, r, &in) {
		return
	}
	f.mu.Lock()
	s, ok := f.services[r.PathValue("sid")]
	if ok {
		if in.Name != "" {
			s.Name = in.Name
		}
		if in.MinDuration != "" {
			s.MinDuration = in.MinDuration
		}
		if in.MaxDuration != "" {
			s.MaxDuration = in.MaxDuration
		}
		if in.DurationStep != "" {
			s.DurationStep = in.DurationStep
		}
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "Service")
		return
	}
	f.getService(w, r)
}

func (f *FakeAPI) linkService(w http.ResponseWriter, r *http.Request) {
	sid, rid := r.PathValue("sid"), r.PathValue("rid")
	f.mu.Lock()
	_, okS := f.services[sid]
	_, okR := f.resources[rid]
	if okS && okR {
		f.links[rid] = append(f.links[rid], sid)
	}
	f.mu.Unlock()
	if !okS || !okR {
		notFound(w, "Service or resource")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"service_id": sid, "resource_id": rid})
}

func (f *FakeAPI) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	var out []models.Booking
	for _, b := range f.bookings {
		if v := q.Get("resource_id"); v != "" && b.ResourceID != v {
			continue
		}
		if v := q.Get("service_id"); v != "" && b.ServiceID != v {
			continue
		}
		if v := q.Get("location_id"); v != "" && b.LocationID != v {
			continue
		}
		out = append(out, *b)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt < out[j].StartsAt })
	writeJSON(w, http.StatusOK, envelope(out))
}

func (f *FakeAPI) createBooking(w http.ResponseWriter, r *http.Request) {
	var in models.BookingPayload
	if !decode(w, r, &in) {
		return
	}
	meta, _ := json.Marshal(in.Metadata)
	b := models.Booking{
		ResourceID: in.ResourceID, ServiceID: in.ServiceID, LocationID: in.LocationID,
		Price: in.Price, StartsAt: in.StartsAt, EndsAt: in.EndsAt, Metadata: meta,
	}
	if in.IsTemporary != nil {
		b.IsTemporary = *in.IsTemporary
	}
	writeJSON(w, http.StatusCreated, f.AddBooking(b))
}

func (f *FakeAPI) getBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := f.Booking(r.PathValue("id"))
	if !ok {
		notFound(w, "Booking")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (f *FakeAPI) patchBooking(w http.ResponseWriter, r *http.Request) {
	var in models.BookingPatch
	if !decode(w, r, &in) {
		return
	}
	f.mu.Lock()
	b, ok := f.bookings[r.PathValue("id")]
	if ok {
		b.StartsAt, b.EndsAt, b.Price = in.StartsAt, in.EndsAt, in.Price
		b.IsTemporary, b.IsCanceled = in.IsTemporary, in.IsCanceled
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "Booking")
		return
	}
	f.getBooking(w, r)
}

func (f *FakeAPI) deleteBooking(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	_, ok := f.bookings[r.PathValue("id")]
	delete(f.bookings, r.PathValue("id"))
	f.mu.Unlock()
	if !ok {
		notFound(w, "Booking")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
