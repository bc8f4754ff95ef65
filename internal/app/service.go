// Package service assembles the settlement engine, the administrative
// registry and the read models into the operations served over HTTP.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	eventqueue "github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/mq/queue"
	workerpool "github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/mq/worker"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/repository/memory"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/standings"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/achievement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/dedupe"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/season"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errs.E("service", errs.ErrInternal, "service is not started")

// Store is everything the service persists.
type Store interface {
	settlement.Store
	season.Store
	achievement.Store
}

// Service implements the API dependencies of the settlement system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      Store
	engine     *settlement.Engine
	registry   *season.Registry
	recorder   *achievement.Recorder
	standings  *standings.Standings
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool

	// standingsMu orders refreshes of the ranking index.
	standingsMu sync.Mutex

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	settleTimeout time.Duration
	maxLimit      int
	initialScore  int
	kFactor       int
	clock         clock.Clock
	newID         func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to the in-memory store.
func WithStore(store Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of achievement workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the achievement event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSettleTimeout bounds every settlement call.
func WithSettleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.settleTimeout = d
		}
	}
}

// WithMaxLeaderboardLimit caps the n accepted by Standings.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithSeasonDefaults sets the initial score and K-factor of new ELO seasons.
func WithSeasonDefaults(initialScore, kFactor int) Option {
	return func(s *Service) {
		s.initialScore = initialScore
		s.kFactor = kFactor
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator sets the id generator of created records.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   4,
		queueSize:     10000,
		dedupeSize:    10000,
		settleTimeout: 5 * time.Second,
		maxLimit:      1000,
		initialScore:  1200,
		kFactor:       32,
		clock:         clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = memory.New()
	}

	engineOpts := []settlement.Option{settlement.WithClock(s.clock)}
	registryOpts := []season.Option{season.WithClock(s.clock), season.WithDefaults(s.initialScore, s.kFactor)}
	if s.newID != nil {
		engineOpts = append(engineOpts, settlement.WithIDGenerator(s.newID))
		registryOpts = append(registryOpts, season.WithIDGenerator(s.newID))
	}
	s.engine = settlement.NewEngine(s.store, engineOpts...)
	s.registry = season.NewRegistry(s.store, registryOpts...)
	return s
}

// Start rebuilds the read models and starts the background workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting settlement service...")

	s.standings = standings.New(ctx)
	if err := s.rebuildStandings(ctx); err != nil {
		_ = s.standings.Close()
		return err
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.recorder = achievement.NewRecorder(s.store, nil)
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.recorder)
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "settlement service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("standings", s.standings.Total()),
	)
	return nil
}

// Stop drains pending achievement events and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping settlement service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}
	if s.standings != nil {
		_ = s.standings.Close()
	}

	s.started = false
	s.logger.Info(ctx, "settlement service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// rebuildStandings loads every season's live scores into the index.
func (s *Service) rebuildStandings(ctx context.Context) error {
	const op = "service.rebuild_standings"
	seasons, err := s.store.ListSeasons(ctx)
	if err != nil {
		return errs.Wrap(op, err)
	}
	for _, se := range seasons {
		if err := s.resetSeasonStandings(ctx, se.ID); err != nil {
			return errs.Wrap(op, err)
		}
	}
	return nil
}

func (s *Service) resetSeasonStandings(ctx context.Context, seasonID string) error {
	s.standingsMu.Lock()
	defer s.standingsMu.Unlock()
	sps, err := s.store.ListSeasonPlayers(ctx, seasonID)
	if err != nil {
		return err
	}
	entries := make([]standings.Entry, len(sps))
	for i, sp := range sps {
		entries[i] = entryOf(sp)
	}
	s.standings.Reset(ctx, seasonID, entries)
	return nil
}

// refreshStandings copies the committed live scores of ids into the index.
// Reading the store under standingsMu keeps concurrent refreshes from
// writing an older score over a newer one.
func (s *Service) refreshStandings(ctx context.Context, seasonID string, ids []string) {
	s.standingsMu.Lock()
	defer s.standingsMu.Unlock()
	sps, err := s.store.ListSeasonPlayers(ctx, seasonID)
	if err != nil {
		s.logger.Error(ctx, "standings refresh failed", logger.String("season", seasonID), logger.Error(err))
		return
	}
	touched := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		touched[id] = struct{}{}
	}
	for _, sp := range sps {
		if _, ok := touched[sp.ID]; !ok {
			continue
		}
		if !s.standings.SetScore(ctx, seasonID, sp.ID, sp.Score) {
			s.standings.Put(ctx, seasonID, entryOf(sp))
		}
	}
}

func entryOf(sp model.SeasonPlayer) standings.Entry {
	return standings.Entry{SeasonPlayerID: sp.ID, PlayerID: sp.PlayerID, Name: sp.Name, Score: sp.Score}
}

func (s *Service) publish(ctx context.Context, ev achievement.Event) {
	if !s.eventQueue.Enqueue(ctx, ev) {
		s.logger.Warn(ctx, "achievement event dropped",
			logger.String("kind", string(ev.Kind)),
			logger.String("match", ev.MatchID),
		)
	}
}

// CreatePlayer registers a person.
func (s *Service) CreatePlayer(ctx context.Context, name string) (model.Player, error) {
	return s.registry.CreatePlayer(ctx, name)
}

// Players lists every person.
func (s *Service) Players(ctx context.Context) ([]model.Player, error) {
	return s.registry.Players(ctx)
}

// CreateSeason creates a season.
func (s *Service) CreateSeason(ctx context.Context, in season.CreateSeasonInput) (model.Season, error) {
	return s.registry.CreateSeason(ctx, in)
}

// Season returns one season.
func (s *Service) Season(ctx context.Context, seasonID string) (model.Season, error) {
	return s.registry.Season(ctx, seasonID)
}

// Seasons lists every season.
func (s *Service) Seasons(ctx context.Context) ([]model.Season, error) {
	return s.registry.Seasons(ctx)
}

// CloseSeason blocks new matches in a season.
func (s *Service) CloseSeason(ctx context.Context, seasonID string) (model.Season, error) {
	return s.registry.CloseSeason(ctx, seasonID)
}

// JoinSeason adds a player to a season and to its standings.
func (s *Service) JoinSeason(ctx context.Context, seasonID, playerID string) (model.SeasonPlayer, bool, error) {
	if err := s.ready(); err != nil {
		return model.SeasonPlayer{}, false, err
	}
	sp, created, err := s.registry.JoinSeason(ctx, seasonID, playerID)
	if err != nil {
		return model.SeasonPlayer{}, false, err
	}
	if created {
		s.refreshStandings(ctx, seasonID, []string{sp.ID})
	}
	return sp, created, nil
}

// Participants lists the season players of a season.
func (s *Service) Participants(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	return s.registry.Participants(ctx, seasonID)
}

// Teams lists the season teams of a season.
func (s *Service) Teams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error) {
	return s.registry.Teams(ctx, seasonID)
}

// SetParticipantDisabled toggles a season player's eligibility.
func (s *Service) SetParticipantDisabled(ctx context.Context, seasonID, seasonPlayerID string, disabled bool) error {
	return s.registry.SetParticipantDisabled(ctx, seasonID, seasonPlayerID, disabled)
}

// MatchOutcome is the result of CreateMatch. Duplicate is set when the
// idempotency key was seen before and Result describes the original match.
type MatchOutcome struct {
	Result    settlement.MatchResult
	Duplicate bool
}

// CreateMatch settles a match. A non-empty idempotencyKey makes the call
// safe to retry: a replay returns the match settled by the first call.
func (s *Service) CreateMatch(ctx context.Context, idempotencyKey string, in settlement.CreateMatchInput) (MatchOutcome, error) {
	const op = "service.create_match"
	if err := s.ready(); err != nil {
		return MatchOutcome{}, err
	}

	var key string
	if idempotencyKey != "" {
		key = dedupe.Key(in.SeasonID, idempotencyKey)
		if matchID, seen := s.deduper.SeenAndRecord(ctx, key); seen {
			if matchID == "" {
				return MatchOutcome{}, errs.E(op, errs.ErrConflict, "a request with this idempotency key is still in progress")
			}
			res, err := s.loadMatch(ctx, in.SeasonID, matchID)
			if err != nil {
				return MatchOutcome{}, errs.Wrap(op, err)
			}
			metrics.RecordIdempotentReplay()
			return MatchOutcome{Result: res, Duplicate: true}, nil
		}
	}

	sctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()
	res, err := s.engine.CreateMatch(sctx, in)
	if err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return MatchOutcome{}, err
	}
	if key != "" {
		s.deduper.Complete(ctx, key, res.Match.ID)
	}

	ids := res.ParticipantIDs()
	s.refreshStandings(ctx, in.SeasonID, ids)
	s.publish(ctx, achievement.Event{
		Kind:            achievement.EventSettled,
		SeasonID:        in.SeasonID,
		MatchID:         res.Match.ID,
		Mode:            res.Mode,
		SeasonPlayerIDs: ids,
		At:              res.Match.CreatedAt,
	})
	return MatchOutcome{Result: res}, nil
}

// loadMatch rebuilds the MatchResult of a committed match.
func (s *Service) loadMatch(ctx context.Context, seasonID, matchID string) (settlement.MatchResult, error) {
	var res settlement.MatchResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
		se, err := tx.Season(ctx, seasonID)
		if err != nil {
			return err
		}
		m, err := tx.Match(ctx, seasonID, matchID)
		if err != nil {
			return err
		}
		players, err := tx.MatchPlayers(ctx, matchID)
		if err != nil {
			return err
		}
		teams, err := tx.MatchTeams(ctx, matchID)
		if err != nil {
			return err
		}
		res = settlement.MatchResult{Match: m, Mode: se.ScoreType, Players: players, Teams: teams}
		return nil
	})
	return res, err
}

// RemoveMatch reverts the latest match of a season.
func (s *Service) RemoveMatch(ctx context.Context, in settlement.RemoveMatchInput) (settlement.RemovalResult, error) {
	if err := s.ready(); err != nil {
		return settlement.RemovalResult{}, err
	}
	sctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()
	res, err := s.engine.RemoveMatch(sctx, in)
	if err != nil {
		return settlement.RemovalResult{}, err
	}

	s.deduper.Forget(ctx, res.Match.ID)
	s.refreshStandings(ctx, in.SeasonID, res.PlayerIDs)
	s.publish(ctx, achievement.Event{
		Kind:            achievement.EventRemoved,
		SeasonID:        in.SeasonID,
		MatchID:         res.Match.ID,
		SeasonPlayerIDs: res.PlayerIDs,
		At:              s.clock.Now().UTC(),
	})
	return res, nil
}

// Reconcile verifies, and optionally repairs, the live scores of a season.
func (s *Service) Reconcile(ctx context.Context, seasonID string, repair bool) (settlement.ReconcileReport, error) {
	if err := s.ready(); err != nil {
		return settlement.ReconcileReport{}, err
	}
	sctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()
	rep, err := s.engine.Reconcile(sctx, seasonID, repair)
	if err != nil {
		return settlement.ReconcileReport{}, err
	}
	if rep.Repaired {
		if err := s.resetSeasonStandings(ctx, seasonID); err != nil {
			return rep, errs.Wrap("service.reconcile", err)
		}
	}
	return rep, nil
}

// Standings returns the top n season players of a season.
func (s *Service) Standings(ctx context.Context, seasonID string, n int) ([]standings.Entry, error) {
	const op = "service.standings"
	if err := s.ready(); err != nil {
		return nil, err
	}
	if n < 1 || n > s.maxLimit {
		return nil, errs.E(op, errs.ErrValidation, "limit must be between 1 and the configured maximum")
	}
	if _, err := s.registry.Season(ctx, seasonID); err != nil {
		return nil, err
	}
	return s.standings.TopN(ctx, seasonID, n)
}

// Rank returns one season player's standing.
func (s *Service) Rank(ctx context.Context, seasonID, seasonPlayerID string) (standings.Entry, error) {
	if err := s.ready(); err != nil {
		return standings.Entry{}, err
	}
	return s.standings.Rank(ctx, seasonID, seasonPlayerID)
}

// Achievements lists the achievements of a season player.
func (s *Service) Achievements(ctx context.Context, seasonID, seasonPlayerID string) ([]model.Achievement, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.recorder.List(ctx, seasonID, seasonPlayerID)
}

// ListMatches lists up to limit matches of a season, newest first.
func (s *Service) ListMatches(ctx context.Context, seasonID string, limit int) ([]model.Match, error) {
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.registry.Matches(ctx, seasonID, limit)
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return s.ready()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		total := s.standings.Total()
		stats["queueLength"] = queueLen
		stats["standingsEntries"] = total
		stats["idempotencyKeys"] = s.deduper.Size()
		stats["workers"] = s.workerPool.Size()
		stats["eventsProcessed"] = s.workerPool.Processed()
		stats["eventsFailed"] = s.workerPool.Failed()

		metrics.UpdateStandingsEntries(total)
	}
	return stats
}
