package briefings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/jimdaga/localbrief/internal/events"
	"github.com/jimdaga/localbrief/internal/lock"
	"github.com/jimdaga/localbrief/internal/metrics"
	"github.com/jimdaga/localbrief/internal/models"
	"github.com/jimdaga/localbrief/internal/providers"
	"github.com/jimdaga/localbrief/internal/staleness"
)

// Status tells a caller whether the briefing is ready to render.
type Status string

const (
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
)

// Result is the response to a briefing request.
type Result struct {
	Status     Status `json:"status"`
	SnapshotID string `json:"snapshot_id"`
	Briefing   *View  `json:"briefing,omitempty"`
	// Refreshed lists the categories fetched during this call.
	Refreshed []string `json:"refreshed,omitempty"`
	// RetryAfter is a polling hint when Status is in_progress.
	RetryAfter time.Duration `json:"-"`
}

// Repository is the persistence the service needs. *Store implements it.
type Repository interface {
	lock.RowStore
	CreateSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	GetBriefing(ctx context.Context, snapshotID string) (*models.Briefing, error)
	SaveFields(ctx context.Context, snapshotID string, fields map[string]datatypes.JSON, now time.Time) error
}

// ProviderSource returns the ordered providers for a category.
type ProviderSource interface {
	For(c providers.Category) []providers.Provider
}

// EventCatalog reads discovered events back for a briefing.
type EventCatalog interface {
	Summarize(ctx context.Context, w events.Window) (events.Summary, error)
	ListActive(ctx context.Context, w events.Window) ([]models.DiscoveredEvent, error)
}

// EventDiscoverer runs discovery inline.
type EventDiscoverer interface {
	Discover(ctx context.Context, loc events.Location) (events.Report, error)
}

// Queue hands work to background workers.
type Queue interface {
	EnqueueGenerate(ctx context.Context, snapshotID string) error
	EnqueueDiscovery(ctx context.Context, loc events.Location) error
}

// Notifier announces that a briefing finished generating.
type Notifier interface {
	PublishReady(ctx context.Context, snapshotID string) error
}

// Deps wires the service. Catalog, Discoverer, Queue and Notifier may be nil.
type Deps struct {
	Repo       Repository
	Providers  ProviderSource
	Chain      *providers.Chain
	Catalog    EventCatalog
	Discoverer EventDiscoverer
	Queue      Queue
	Notifier   Notifier
	Logger     *slog.Logger
}

// Options tunes generation.
type Options struct {
	AbandonAfter  time.Duration
	EventsTTL     time.Duration
	LookaheadDays int
}

// Service orchestrates briefing generation: one generation per snapshot per
// process through the registry, one across processes through the row lock.
type Service struct {
	repo       Repository
	providers  ProviderSource
	chain      *providers.Chain
	catalog    EventCatalog
	discoverer EventDiscoverer
	queue      Queue
	notifier   Notifier
	logger     *slog.Logger

	categories  []categoryDef
	lookahead   int
	eventsTTL   time.Duration
	inflight    *lock.Registry[*Result]
	coordinator *lock.Coordinator
	now         func() time.Time
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EventsTTL <= 0 {
		opts.EventsTTL = staleness.DefaultShortTTL
	}
	if opts.LookaheadDays < 0 {
		opts.LookaheadDays = 0
	}

	return &Service{
		repo:        deps.Repo,
		providers:   deps.Providers,
		chain:       deps.Chain,
		catalog:     deps.Catalog,
		discoverer:  deps.Discoverer,
		queue:       deps.Queue,
		notifier:    deps.Notifier,
		logger:      logger.With("component", "briefings"),
		categories:  catalogue(opts.EventsTTL),
		lookahead:   opts.LookaheadDays,
		eventsTTL:   opts.EventsTTL,
		inflight:    lock.NewRegistry[*Result](),
		coordinator: lock.NewCoordinator(deps.Repo, opts.AbandonAfter, logger),
		now:         time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.coordinator.WithClock(now)
	return s
}

// Close rejects new requests and releases waiters.
func (s *Service) Close() {
	s.inflight.Close()
}

// SnapshotInput is the request body for creating a snapshot.
type SnapshotInput struct {
	City      string  `json:"city" binding:"required"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone" binding:"required"`
}

// CreateSnapshot records a new location context and queues its briefing.
func (s *Service) CreateSnapshot(ctx context.Context, in SnapshotInput) (*models.Snapshot, error) {
	in.City = strings.TrimSpace(in.City)
	if in.City == "" {
		return nil, &PreconditionError{Field: "city", Reason: "is required"}
	}
	loc, err := time.LoadLocation(in.Timezone)
	if err != nil || in.Timezone == "" {
		return nil, &PreconditionError{Field: "timezone", Reason: fmt.Sprintf("%q is not a valid IANA zone", in.Timezone)}
	}

	now := s.now()
	snap := &models.Snapshot{
		ID:        uuid.NewString(),
		City:      in.City,
		State:     strings.TrimSpace(in.State),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Timezone:  in.Timezone,
		LocalDate: now.In(loc).Format(time.DateOnly),
		CreatedAt: now.UTC(),
	}
	if err := s.repo.CreateSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	if s.queue != nil {
		if err := s.queue.EnqueueGenerate(ctx, snap.ID); err != nil {
			s.logger.Warn("Failed to enqueue briefing generation",
				"snapshot_id", snap.ID,
				"error", err,
			)
		}
	}
	return snap, nil
}

// Peek returns the stored briefing without generating, nil while it is a
// placeholder or absent.
func (s *Service) Peek(ctx context.Context, snapshotID string) (*View, error) {
	b, err := s.repo.GetBriefing(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if b == nil || rowOf(b).IsPlaceholder() {
		return nil, nil
	}
	return buildView(snapshotID, b, nil, b.UpdatedAt), nil
}

// Get returns the briefing for a snapshot, generating or refreshing it as
// needed. Concurrent calls for the same snapshot share one generation, which
// keeps running if the caller goes away.
func (s *Service) Get(ctx context.Context, snapshotID string) (*Result, error) {
	if snapshotID == "" {
		return nil, ErrSnapshotNotFound
	}

	call, inFlight := s.inflight.Acquire(snapshotID)
	if inFlight {
		metrics.Generations.WithLabelValues("shared").Inc()
	} else {
		go s.run(context.WithoutCancel(ctx), snapshotID)
	}
	return call.Wait(ctx)
}

func (s *Service) run(ctx context.Context, snapshotID string) {
	var (
		res *Result
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Briefing generation panicked", "snapshot_id", snapshotID, "panic", r)
			res, err = nil, fmt.Errorf("generation panicked: %v", r)
		}
		s.inflight.Release(snapshotID, res, err)
	}()
	res, err = s.generate(ctx, snapshotID)
}

type planned struct {
	def      categoryDef
	decision staleness.Decision
}

func (s *Service) generate(ctx context.Context, snapshotID string) (*Result, error) {
	start := s.now()

	snap, err := s.repo.GetSnapshot(ctx, snapshotID)
	if err != nil {
		metrics.Generations.WithLabelValues("failed").Inc()
		return nil, err
	}
	loc, err := checkSnapshot(snap)
	if err != nil {
		metrics.Generations.WithLabelValues("precondition").Inc()
		return nil, err
	}

	existing, err := s.repo.GetBriefing(ctx, snapshotID)
	if err != nil {
		metrics.Generations.WithLabelValues("failed").Inc()
		return nil, err
	}

	claim, err := s.coordinator.Claim(ctx, snapshotID, rowOf(existing))
	if err != nil {
		metrics.Generations.WithLabelValues("failed").Inc()
		return nil, err
	}
	if claim.Outcome == lock.OutcomeInProgress {
		metrics.Generations.WithLabelValues("in_progress").Inc()
		return &Result{
			Status:     StatusInProgress,
			SnapshotID: snapshotID,
			RetryAfter: 2 * time.Second,
		}, nil
	}

	plan := s.plan(existing, claim.Outcome.Owns(), loc)
	if len(plan) == 0 {
		metrics.Generations.WithLabelValues("cached").Inc()
		return &Result{
			Status:     StatusReady,
			SnapshotID: snapshotID,
			Briefing:   buildView(snapshotID, existing, nil, existing.UpdatedAt),
		}, nil
	}

	s.logger.Info("Generating briefing",
		"snapshot_id", snapshotID,
		"claim", string(claim.Outcome),
		"categories", len(plan),
	)

	fetched := s.fetchAll(ctx, snap, loc, plan)

	fields := make(map[string]datatypes.JSON, len(fetched))
	refreshed := make([]string, 0, len(fetched))
	for _, p := range plan {
		r := fetched[p.def.column]
		enc, err := encodeColumn(r)
		if err != nil {
			s.logger.Error("Failed to encode category", "category", p.def.category, "error", err)
			continue
		}
		fields[p.def.column] = enc
		refreshed = append(refreshed, p.def.column)
	}

	savedAt := s.now()
	res := &Result{
		Status:     StatusReady,
		SnapshotID: snapshotID,
		Briefing:   buildView(snapshotID, existing, fetched, savedAt),
		Refreshed:  refreshed,
	}

	if err := s.repo.SaveFields(ctx, snapshotID, fields, savedAt); err != nil {
		metrics.Generations.WithLabelValues("persist_failed").Inc()
		s.logger.Error("Failed to persist briefing",
			"snapshot_id", snapshotID,
			"error", err,
		)
		return res, &PersistenceError{SnapshotID: snapshotID, Err: err}
	}

	s.publishReady(ctx, snapshotID)

	metrics.Generations.WithLabelValues("generated").Inc()
	metrics.GenerationDuration.Observe(s.now().Sub(start).Seconds())
	s.logger.Info("Briefing ready",
		"snapshot_id", snapshotID,
		"refreshed", strings.Join(refreshed, ","),
		"duration", s.now().Sub(start).String(),
	)
	return res, nil
}

func checkSnapshot(snap *models.Snapshot) (*time.Location, error) {
	if strings.TrimSpace(snap.City) == "" {
		return nil, &PreconditionError{SnapshotID: snap.ID, Field: "city", Reason: "is missing"}
	}
	if snap.Timezone == "" {
		return nil, &PreconditionError{SnapshotID: snap.ID, Field: "timezone", Reason: "is missing"}
	}
	loc, err := snap.Location()
	if err != nil {
		return nil, &PreconditionError{SnapshotID: snap.ID, Field: "timezone", Reason: fmt.Sprintf("%q is not a valid IANA zone", snap.Timezone)}
	}
	return loc, nil
}

// plan picks the categories to fetch. An owned claim fetches everything;
// otherwise each stored column is judged by its staleness policy.
func (s *Service) plan(existing *models.Briefing, owns bool, loc *time.Location) []planned {
	now := s.now()
	var out []planned
	for _, def := range s.categories {
		if !def.core && def.category != providers.CategoryEvents && len(s.providersFor(def.category)) == 0 {
			continue
		}

		var rec staleness.Record
		if existing != nil && !owns {
			rec = recordOf(existing.Column(def.column), existing.UpdatedAt)
		} else {
			rec = staleness.Record{Empty: true}
		}

		d := staleness.Decide(def.policy, rec, now, loc)
		metrics.CategoryDecisions.WithLabelValues(string(def.category), string(d)).Inc()
		if d.NeedsFetch() {
			out = append(out, planned{def: def, decision: d})
		}
	}
	return out
}

// recordOf prefers the column's own fetch time over the row's updated_at,
// since an always-fresh category bumps the row on every call.
func recordOf(raw datatypes.JSON, rowUpdated time.Time) staleness.Record {
	r, ok := decodeColumn(raw)
	if !ok {
		return staleness.Record{Empty: true}
	}
	updated := rowUpdated
	if r.FetchedAt != nil {
		updated = *r.FetchedAt
	}
	return staleness.Record{UpdatedAt: updated, Empty: r.Empty()}
}

func (s *Service) providersFor(c providers.Category) []providers.Provider {
	if s.providers == nil {
		return nil
	}
	return s.providers.For(c)
}

// fetchAll runs every planned category in parallel. Failures are contained
// per category and never cancel the others.
func (s *Service) fetchAll(ctx context.Context, snap *models.Snapshot, loc *time.Location, plan []planned) map[string]CategoryResult {
	results := make([]CategoryResult, len(plan))

	var g errgroup.Group
	for i, p := range plan {
		g.Go(func() error {
			if p.def.category == providers.CategoryEvents {
				results[i] = s.eventsFromCatalog(ctx, snap)
			} else {
				results[i] = s.fetchCategory(ctx, snap, loc, p.def)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]CategoryResult, len(plan))
	for i, p := range plan {
		out[p.def.column] = results[i]
	}
	return out
}

func (s *Service) request(snap *models.Snapshot, c providers.Category) providers.Request {
	return providers.Request{
		SnapshotID: snap.ID,
		Category:   c,
		City:       snap.City,
		State:      snap.State,
		Latitude:   snap.Latitude,
		Longitude:  snap.Longitude,
		Timezone:   snap.Timezone,
		LocalDate:  snap.LocalDate,
		Now:        s.now(),
	}
}

func (s *Service) fetchCategory(ctx context.Context, snap *models.Snapshot, loc *time.Location, def categoryDef) CategoryResult {
	if s.chain == nil {
		return degraded("no providers configured", providers.ErrNoProviders.Error())
	}
	out := s.chain.Call(ctx, def.category, s.providersFor(def.category), s.request(snap, def.category))
	if out.OK {
		at := s.now().UTC()
		return CategoryResult{Items: out.Output, Provider: out.Provider, FetchedAt: &at}
	}

	if errors.Is(out.Err, providers.ErrNoProviders) {
		return degraded("no providers configured", out.Err.Error())
	}
	if allEmpty(out.Attempts) {
		return degraded("no data available", "")
	}
	s.logger.Warn("Category degraded",
		"snapshot_id", snap.ID,
		"category", string(def.category),
		"attempts", len(out.Attempts),
		"error", out.Err,
	)
	return degraded("all providers failed", out.Err.Error())
}

func allEmpty(attempts []providers.Attempt) bool {
	if len(attempts) == 0 {
		return false
	}
	for _, a := range attempts {
		if a.Kind != providers.KindEmpty {
			return false
		}
	}
	return true
}

// eventsFromCatalog reads events from the catalogue. An empty window runs
// discovery inline; a stale one queues a background refresh and serves what
// is stored.
func (s *Service) eventsFromCatalog(ctx context.Context, snap *models.Snapshot) CategoryResult {
	if s.catalog == nil {
		return degraded("event catalogue unavailable", "")
	}

	window := s.window(snap)
	loc := events.Location{
		City:      snap.City,
		State:     snap.State,
		Timezone:  snap.Timezone,
		Latitude:  snap.Latitude,
		Longitude: snap.Longitude,
		Date:      snap.LocalDate,
	}

	sum, err := s.catalog.Summarize(ctx, window)
	if err != nil {
		return degraded("event catalogue unavailable", err.Error())
	}

	var discoverErr error
	provider := ""
	switch {
	case sum.Count == 0 && s.discoverer != nil:
		report, err := s.discoverer.Discover(ctx, loc)
		if err != nil {
			discoverErr = err
			s.logger.Warn("Inline event discovery failed",
				"snapshot_id", snap.ID,
				"error", err,
			)
		}
		provider = report.Provider
	case sum.Count > 0 && s.now().Sub(sum.LastUpdated) >= s.eventsTTL && s.queue != nil:
		if err := s.queue.EnqueueDiscovery(ctx, loc); err != nil {
			s.logger.Warn("Failed to enqueue event discovery", "snapshot_id", snap.ID, "error", err)
		}
	}

	rows, err := s.catalog.ListActive(ctx, window)
	if err != nil {
		return degraded("event catalogue unavailable", err.Error())
	}
	at := s.now().UTC()
	if len(rows) == 0 {
		if discoverErr != nil {
			return degraded("event discovery failed", discoverErr.Error())
		}
		// An empty result reads as stale, so the next call checks the catalogue again.
		return CategoryResult{Items: emptyItems, Provider: provider, Reason: "no events found", FetchedAt: &at}
	}

	items, err := marshalEvents(rows)
	if err != nil {
		return degraded("event catalogue unavailable", err.Error())
	}
	return CategoryResult{Items: items, Provider: provider, FetchedAt: &at}
}

func (s *Service) window(snap *models.Snapshot) events.Window {
	from := snap.LocalDate
	to := from
	if d, err := time.Parse(time.DateOnly, from); err == nil {
		to = d.AddDate(0, 0, s.lookahead).Format(time.DateOnly)
	}
	return events.Window{City: snap.City, State: snap.State, From: from, To: to}
}

func (s *Service) publishReady(ctx context.Context, snapshotID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishReady(ctx, snapshotID); err != nil {
		metrics.ReadyPublished.WithLabelValues("error").Inc()
		s.logger.Warn("Failed to publish ready notification", "snapshot_id", snapshotID, "error", err)
		return
	}
	metrics.ReadyPublished.WithLabelValues("ok").Inc()
}
