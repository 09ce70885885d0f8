package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"touchline/internal/config"
	"touchline/internal/domain"
	"touchline/internal/simclient"
)

var ErrNoSimulation = errors.New("no simulation backend configured")

// snapshot caches the last good simulation values per team.
type snapshot struct {
	mu          sync.RWMutex
	defaults    config.Defaults
	date        domain.GameDate
	teams       map[string]domain.TeamState
	players     map[string][]domain.PlayerState
	events      map[string][]domain.GameEvent
	refreshedAt time.Time
}

type snapshotView struct {
	Date    domain.GameDate
	Team    domain.TeamState
	Players []domain.PlayerState
	Events  []domain.GameEvent
}

func newSnapshot(d config.Defaults) *snapshot {
	return &snapshot{
		defaults: d,
		date:     d.GameDate,
		teams:    make(map[string]domain.TeamState),
		players:  make(map[string][]domain.PlayerState),
		events:   make(map[string][]domain.GameEvent),
	}
}

func (s *snapshot) view(slug string) snapshotView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotView{
		Date:    s.date,
		Team:    MergeTeam(s.teamLocked(slug)),
		Players: append([]domain.PlayerState{}, s.players[slug]...),
		Events:  append([]domain.GameEvent{}, s.events[slug]...),
	}
}

func (s *snapshot) teamLocked(slug string) domain.TeamState {
	if t, ok := s.teams[slug]; ok {
		return t
	}
	return DefaultTeam(slug, s.defaults.Team)
}

// CurrentDate is the latest known game date.
func (e *Engine) CurrentDate() domain.GameDate {
	e.snapshot.mu.RLock()
	defer e.snapshot.mu.RUnlock()
	return e.snapshot.date
}

// LastRefresh is when any simulation source last answered, zero if never.
func (e *Engine) LastRefresh() time.Time {
	e.snapshot.mu.RLock()
	defer e.snapshot.mu.RUnlock()
	return e.snapshot.refreshedAt
}

type sourceError struct {
	source   string
	optional bool
	err      error
}

func (s sourceError) Error() string { return fmt.Sprintf("%s: %v", s.source, s.err) }
func (s sourceError) Unwrap() error { return s.err }

// Refresh queries every simulation source for slug concurrently. Sources
// that fail keep their cached value; the returned error joins the failures.
func (e *Engine) Refresh(ctx context.Context, slug string) error {
	if e.Sim == nil {
		return ErrNoSimulation
	}
	var (
		date          simclient.Date
		team, aiState simclient.Team
		players       []domain.PlayerState
		recent        []domain.GameEvent
	)
	var dateErr, teamErr, aiErr, playersErr, eventsErr error
	var wg conc.WaitGroup
	wg.Go(func() { date, dateErr = e.Sim.Date(ctx) })
	wg.Go(func() { team, teamErr = e.Sim.Team(ctx, slug) })
	wg.Go(func() { aiState, aiErr = e.Sim.TeamAIState(ctx, slug) })
	wg.Go(func() { players, playersErr = e.Sim.SquadState(ctx, slug) })
	wg.Go(func() {
		recent, eventsErr = e.Sim.RecentEvents(ctx, simclient.EventsQuery{
			Limit:    e.Config.Bridge.RecentEventsLimit,
			TeamSlug: slug,
		})
	})
	wg.Wait()

	var failures []sourceError
	s := e.snapshot
	s.mu.Lock()
	if dateErr == nil {
		s.date = MergeGameDate(date, s.defaults.GameDate)
	} else {
		failures = append(failures, sourceError{source: "date", err: dateErr})
	}
	if teamErr == nil {
		layers := []simclient.Team{team}
		if aiErr == nil {
			layers = append(layers, aiState)
		}
		s.teams[slug] = MergeTeam(DefaultTeam(slug, s.defaults.Team), layers...)
	} else {
		failures = append(failures, sourceError{source: "team", err: teamErr})
	}
	if aiErr != nil {
		failures = append(failures, sourceError{source: "team_ai_state", optional: true, err: aiErr})
	}
	if playersErr == nil {
		s.players[slug] = append([]domain.PlayerState{}, players...)
	} else {
		failures = append(failures, sourceError{source: "squad_state", optional: true, err: playersErr})
	}
	if eventsErr == nil {
		s.events[slug] = append([]domain.GameEvent{}, recent...)
	} else {
		failures = append(failures, sourceError{source: "recent_events", optional: true, err: eventsErr})
	}
	// Five sources were queried; any answer counts as a refresh.
	if len(failures) < 5 {
		s.refreshedAt = e.now()
	}
	s.mu.Unlock()

	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		log := e.Logger.Warn
		if f.optional {
			log = e.Logger.Debug
		}
		log("simulation source unavailable, serving cached value", "source", f.source, "team", slug, "err", f.err)
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Observe assembles the agent's view. It never fails: when refresh is set
// and the simulation cannot be reached, the last cached values are served.
func (e *Engine) Observe(ctx context.Context, slug string, refresh bool) domain.Observation {
	if slug == "" {
		slug = e.Config.Bridge.TeamSlug
	}
	if refresh && e.Sim != nil {
		_ = e.Refresh(ctx, slug)
	}
	view := e.snapshot.view(slug)
	obs := domain.Observation{
		GameDate:             view.Date,
		Team:                 view.Team,
		Players:              view.Players,
		RecentEvents:         view.Events,
		PendingNotifications: e.Notifications.Pending(),
		ActivePromises:       e.Memory.ActivePromises(),
		RecentKnowledge:      e.Memory.RecentKnowledge(e.Config.Bridge.RecentKnowledgeLimit),
	}
	if conv, ok := e.Conversations.Active(); ok {
		cc := e.buildContext(conv, view)
		obs.ActiveConversation = &cc
	}
	return obs
}

// SnapshotPatch pushes simulation values into the cache. Nil fields are
// left as they are.
type SnapshotPatch struct {
	TeamSlug string
	GameDate *domain.GameDate
	Team     *domain.TeamState
	Players  []domain.PlayerState
	Events   []domain.GameEvent
}

func (e *Engine) UpdateSnapshot(p SnapshotPatch) error {
	if d := p.GameDate; d != nil && (d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31) {
		return domain.ValidationError{Field: "gameDate", Reason: fmt.Sprintf("%s is not a valid date", d)}
	}
	slug := p.TeamSlug
	if slug == "" && p.Team != nil {
		slug = p.Team.ID
	}
	if slug == "" {
		slug = e.Config.Bridge.TeamSlug
	}
	s := e.snapshot
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.GameDate != nil {
		s.date = *p.GameDate
	}
	if p.Team != nil {
		team := *p.Team
		if team.UpcomingMatches == nil {
			team.UpcomingMatches = []domain.UpcomingMatch{}
		}
		s.teams[slug] = team
	}
	if p.Players != nil {
		s.players[slug] = append([]domain.PlayerState{}, p.Players...)
	}
	if p.Events != nil {
		s.events[slug] = append([]domain.GameEvent{}, p.Events...)
	}
	return nil
}

// Run refreshes the configured team every Simulation.RefreshInterval until
// ctx is done. It returns immediately when polling is disabled.
func (e *Engine) Run(ctx context.Context) {
	interval := e.Config.Simulation.RefreshInterval
	if interval <= 0 || e.Sim == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_ = e.Refresh(ctx, e.Config.Bridge.TeamSlug)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SimulationStatus is "up", "down" or "disabled".
func (e *Engine) SimulationStatus(ctx context.Context) string {
	if e.Sim == nil {
		return "disabled"
	}
	if err := e.Sim.Health(ctx); err != nil {
		return "down"
	}
	return "up"
}
