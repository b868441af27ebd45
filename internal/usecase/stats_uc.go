package usecase

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// PanelStatus is the admin view of the panel host.
type PanelStatus struct {
	System   *model.PanelSystemStats
	Inbounds []model.PanelInbound
	Nodes    []model.PanelNode
}

type StatsUseCase interface {
	Overview(ctx context.Context, since time.Time) (*model.Stats, error)
	ActiveSubscriptions(ctx context.Context) (int, error)
	PanelStatus(ctx context.Context) (*PanelStatus, error)
}

type statsUC struct {
	users repository.UserRepository
	panel adapter.PanelClient
	log   *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, panel adapter.PanelClient, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, panel: panel, log: logger}
}

func (s *statsUC) Overview(ctx context.Context, since time.Time) (*model.Stats, error) {
	var (
		st  model.Stats
		err error
	)
	if st.TotalUsers, err = s.users.CountUsers(ctx, repository.NoTX); err != nil {
		return nil, err
	}
	if st.NewUsers, err = s.users.CountNewUsers(ctx, repository.NoTX, since); err != nil {
		return nil, err
	}
	if st.ActiveSubscriptions, err = s.users.CountActive(ctx, repository.NoTX, time.Now()); err != nil {
		return nil, err
	}
	if st.WithFirstPayment, err = s.users.CountByFirstPayment(ctx, repository.NoTX, true); err != nil {
		return nil, err
	}
	if st.WithoutFirstPayment, err = s.users.CountByFirstPayment(ctx, repository.NoTX, false); err != nil {
		return nil, err
	}
	if st.TotalReferrals, err = s.users.CountReferrals(ctx, repository.NoTX); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *statsUC) ActiveSubscriptions(ctx context.Context) (int, error) {
	return s.users.CountActive(ctx, repository.NoTX, time.Now())
}

// PanelStatus returns whatever parts of the panel answered; only a total failure is an error.
func (s *statsUC) PanelStatus(ctx context.Context) (*PanelStatus, error) {
	out := &PanelStatus{}
	sys, sysErr := s.panel.System(ctx)
	if sysErr == nil {
		out.System = sys
	}
	inb, inbErr := s.panel.Inbounds(ctx)
	if inbErr == nil {
		out.Inbounds = inb
	}
	nodes, nodeErr := s.panel.Nodes(ctx)
	if nodeErr == nil {
		out.Nodes = nodes
	} else {
		s.log.Debug().Err(nodeErr).Msg("panel nodes unavailable")
	}
	if sysErr != nil && inbErr != nil {
		return nil, sysErr
	}
	return out, nil
}
