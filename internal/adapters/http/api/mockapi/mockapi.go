// Package mockapi provides a testify mock of the HTTP layer's dependencies.
package mockapi

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/http/api"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/standings"
	service "github.com/thor-coding-cowboys/scorebrawl-sub001/internal/app"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/season"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
)

// Service is a mock implementation of api.Dependencies.
type Service struct {
	mock.Mock
}

var _ api.Dependencies = (*Service)(nil)

func (m *Service) CreatePlayer(ctx context.Context, name string) (model.Player, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Player), args.Error(1)
}

func (m *Service) Players(ctx context.Context) ([]model.Player, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Player), args.Error(1)
}

func (m *Service) CreateSeason(ctx context.Context, in season.CreateSeasonInput) (model.Season, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(model.Season), args.Error(1)
}

func (m *Service) Season(ctx context.Context, seasonID string) (model.Season, error) {
	args := m.Called(ctx, seasonID)
	return args.Get(0).(model.Season), args.Error(1)
}

func (m *Service) Seasons(ctx context.Context) ([]model.Season, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Season), args.Error(1)
}

func (m *Service) CloseSeason(ctx context.Context, seasonID string) (model.Season, error) {
	args := m.Called(ctx, seasonID)
	return args.Get(0).(model.Season), args.Error(1)
}

func (m *Service) JoinSeason(ctx context.Context, seasonID, playerID string) (model.SeasonPlayer, bool, error) {
	args := m.Called(ctx, seasonID, playerID)
	return args.Get(0).(model.SeasonPlayer), args.Bool(1), args.Error(2)
}

func (m *Service) Participants(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	args := m.Called(ctx, seasonID)
	return args.Get(0).([]model.SeasonPlayer), args.Error(1)
}

func (m *Service) Teams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error) {
	args := m.Called(ctx, seasonID)
	return args.Get(0).([]model.SeasonTeam), args.Error(1)
}

func (m *Service) SetParticipantDisabled(ctx context.Context, seasonID, seasonPlayerID string, disabled bool) error {
	args := m.Called(ctx, seasonID, seasonPlayerID, disabled)
	return args.Error(0)
}

func (m *Service) CreateMatch(ctx context.Context, idempotencyKey string, in settlement.CreateMatchInput) (service.MatchOutcome, error) {
	args := m.Called(ctx, idempotencyKey, in)
	return args.Get(0).(service.MatchOutcome), args.Error(1)
}

func (m *Service) RemoveMatch(ctx context.Context, in settlement.RemoveMatchInput) (settlement.RemovalResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(settlement.RemovalResult), args.Error(1)
}

func (m *Service) ListMatches(ctx context.Context, seasonID string, limit int) ([]model.Match, error) {
	args := m.Called(ctx, seasonID, limit)
	return args.Get(0).([]model.Match), args.Error(1)
}

func (m *Service) Reconcile(ctx context.Context, seasonID string, repair bool) (settlement.ReconcileReport, error) {
	args := m.Called(ctx, seasonID, repair)
	return args.Get(0).(settlement.ReconcileReport), args.Error(1)
}

func (m *Service) Standings(ctx context.Context, seasonID string, n int) ([]standings.Entry, error) {
	args := m.Called(ctx, seasonID, n)
	return args.Get(0).([]standings.Entry), args.Error(1)
}

func (m *Service) Rank(ctx context.Context, seasonID, seasonPlayerID string) (standings.Entry, error) {
	args := m.Called(ctx, seasonID, seasonPlayerID)
	return args.Get(0).(standings.Entry), args.Error(1)
}

func (m *Service) Achievements(ctx context.Context, seasonID, seasonPlayerID string) ([]model.Achievement, error) {
	args := m.Called(ctx, seasonID, seasonPlayerID)
	return args.Get(0).([]model.Achievement), args.Error(1)
}

func (m *Service) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Service) GetStats() map[string]interface{} {
	args := m.Called()
	return args.Get(0).(map[string]interface{})
}
