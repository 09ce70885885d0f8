// Package engine is the bridge state hub. One Engine owns every store for the
// lifetime of the process and is shared by all request handlers.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"touchline/internal/config"
	"touchline/internal/domain"
	"touchline/internal/events"
	"touchline/internal/repo"
	"touchline/internal/simclient"
)

// Simulation is the read-only view of the simulation backend the engine
// refreshes its snapshot from.
type Simulation interface {
	Date(ctx context.Context) (simclient.Date, error)
	Team(ctx context.Context, slug string) (simclient.Team, error)
	TeamAIState(ctx context.Context, slug string) (simclient.Team, error)
	SquadState(ctx context.Context, slug string) ([]domain.PlayerState, error)
	RecentEvents(ctx context.Context, q simclient.EventsQuery) ([]domain.GameEvent, error)
	Health(ctx context.Context) error
}

type Engine struct {
	Notifications *repo.Notifications
	Memory        *repo.Memory
	Conversations *repo.Conversations
	Actions       *repo.Actions
	AgentLog      *repo.AgentLog
	Events        *events.Broadcaster
	Sim           Simulation
	Config        *config.Config
	Logger        *slog.Logger
	Now           func() time.Time

	snapshot *snapshot
}

// New builds an Engine with empty stores. sim may be nil, in which case the
// observation is built from the defaults table and pushed snapshots only.
func New(cfg *config.Config, sim Simulation, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Notifications: repo.NewNotifications(),
		Memory:        repo.NewMemory(),
		Conversations: repo.NewConversations(),
		Actions:       repo.NewActions(cfg.Bridge.ActionQueueLimit),
		AgentLog:      repo.NewAgentLog(cfg.Bridge.AgentLogCapacity),
		Events:        events.NewBroadcaster(logger),
		Sim:           sim,
		Config:        cfg,
		Logger:        logger,
		Now:           time.Now,
		snapshot:      newSnapshot(cfg.Defaults),
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func newID() string {
	return uuid.New().String()
}
