package service

import (
	"context"
	"fmt"

	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
	"golang.org/x/sync/errgroup"
)

const MaxFeedSize = 100

type Dashboard struct {
	Quests          model.QuestStatusCounts `json:"quests"`
	TotalQuests     int                     `json:"totalQuests"`
	AverageProgress int                     `json:"averageProgress"`
	KPICount        int                     `json:"kpiCount"`
	FollowerCount   int                     `json:"followerCount"`
	FollowingCount  int                     `json:"followingCount"`
}

type DashboardService struct {
	questRepo       repository.QuestRepository
	kpiRepo         repository.KPIRepository
	followRepo      repository.FollowRepository
	defaultFeedSize int
}

func NewDashboardService(
	questRepo repository.QuestRepository,
	kpiRepo repository.KPIRepository,
	followRepo repository.FollowRepository,
	defaultFeedSize int,
) *DashboardService {
	return &DashboardService{
		questRepo:       questRepo,
		kpiRepo:         kpiRepo,
		followRepo:      followRepo,
		defaultFeedSize: defaultFeedSize,
	}
}

func (s *DashboardService) Dashboard(ctx context.Context, profileID string) (*Dashboard, error) {
	d := &Dashboard{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.questRepo.StatusCounts(ctx, profileID)
		d.Quests = counts
		d.TotalQuests = counts.Total()
		return err
	})
	g.Go(func() error {
		avg, err := s.questRepo.AverageProgress(ctx, profileID)
		d.AverageProgress = avg
		return err
	})
	g.Go(func() error {
		n, err := s.kpiRepo.CountByProfile(ctx, profileID)
		d.KPICount = n
		return err
	})
	g.Go(func() error {
		n, err := s.followRepo.FollowerCount(ctx, profileID)
		d.FollowerCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.followRepo.FollowingCount(ctx, profileID)
		d.FollowingCount = n
		return err
	})

	err := g.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	return d, nil
}

// Feed returns recent quests of followed public profiles. A limit outside
// 1..MaxFeedSize falls back to the default or is capped.
func (s *DashboardService) Feed(ctx context.Context, profileID string, limit int) ([]*repository.FeedItem, error) {
	if limit <= 0 {
		limit = s.defaultFeedSize
	}
	if limit > MaxFeedSize {
		limit = MaxFeedSize
	}

	return s.questRepo.Feed(ctx, profileID, limit)
}
