package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
)

type FollowService struct {
	profileRepo  repository.ProfileRepository
	followRepo   repository.FollowRepository
	userRepo     repository.UserRepository
	emailService *EmailService
}

func NewFollowService(
	profileRepo repository.ProfileRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	emailService *EmailService,
) *FollowService {
	return &FollowService{
		profileRepo:  profileRepo,
		followRepo:   followRepo,
		userRepo:     userRepo,
		emailService: emailService,
	}
}

// Toggle follows targetID when follower does not follow it yet and unfollows
// it otherwise. FollowerCount is the target's, FollowingCount the follower's.
func (s *FollowService) Toggle(ctx context.Context, follower *model.Profile, targetID string) (*model.FollowState, error) {
	if targetID == "" {
		return nil, invalidf("profileId is required")
	}
	if targetID == follower.ID {
		return nil, ErrCannotFollowSelf
	}

	target, err := s.profileRepo.ByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	removed, err := s.followRepo.Delete(ctx, follower.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to unfollow: %w", err)
	}

	following := false
	if !removed {
		created, err := s.followRepo.Create(ctx, follower.ID, target.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to follow: %w", err)
		}
		following = true
		if created {
			s.notifyFollowed(ctx, target, follower)
		}
	}

	followerCount, err := s.followRepo.FollowerCount(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	followingCount, err := s.followRepo.FollowingCount(ctx, follower.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("follow toggled", "follower_id", follower.ID, "following_id", target.ID, "following", following)

	return &model.FollowState{
		Following:      following,
		FollowerCount:  followerCount,
		FollowingCount: followingCount,
	}, nil
}

func (s *FollowService) notifyFollowed(ctx context.Context, target, follower *model.Profile) {
	user, err := s.userRepo.ByID(ctx, target.UserID)
	if err != nil {
		slog.Warn("failed to load user for follower email", "error", err, "profile_id", target.ID)
		return
	}

	err = s.emailService.SendNewFollowerEmail(ctx, user.Email, target.Name, follower.Name, follower.ID)
	if err != nil {
		slog.Warn("failed to send new follower email", "error", err, "profile_id", target.ID)
	}
}
