package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"slices"
	"strings"

	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
	"github.com/questboard/questboard/internal/validation"
	"golang.org/x/sync/errgroup"
)

// ProfileUpdate is a partial update; nil fields are left alone and an
// empty string clears an optional field.
type ProfileUpdate struct {
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,max=2048,avatar"`
	IsPublic    *bool   `json:"isPublic"`
	Branch      *string `json:"branch" validate:"omitempty,max=100"`
	Section     *string `json:"section" validate:"omitempty,max=50"`
	Year        *int    `json:"year" validate:"omitempty,min=1,max=10"`
	GitHubURL   *string `json:"githubUrl" validate:"omitempty,max=2048,link"`
	LinkedInURL *string `json:"linkedinUrl" validate:"omitempty,max=2048,link"`
	TwitterURL  *string `json:"twitterUrl" validate:"omitempty,max=2048,link"`
	WebsiteURL  *string `json:"websiteUrl" validate:"omitempty,max=2048,link"`
}

// ProfileView is a profile as seen by another user.
type ProfileView struct {
	*model.Profile
	Stats       model.ProfileStats `json:"stats"`
	IsFollowing bool               `json:"isFollowing"`
	IsOwner     bool               `json:"isOwner"`
}

type ProfileService struct {
	profileRepo repository.ProfileRepository
	questRepo   repository.QuestRepository
	followRepo  repository.FollowRepository
	fileService *FileService
}

func NewProfileService(
	profileRepo repository.ProfileRepository,
	questRepo repository.QuestRepository,
	followRepo repository.FollowRepository,
	fileService *FileService,
) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		questRepo:   questRepo,
		followRepo:  followRepo,
		fileService: fileService,
	}
}

func (s *ProfileService) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profileRepo.ByUserID(ctx, userID)
}

// Update applies input to the profile of userID. When the store lacks some
// of the optional columns the write is retried without them and the returned
// warning names what was not saved.
func (s *ProfileService) Update(ctx context.Context, userID string, input ProfileUpdate) (*model.Profile, string, error) {
	for _, field := range []**string{&input.AvatarURL, &input.GitHubURL, &input.LinkedInURL, &input.TwitterURL, &input.WebsiteURL} {
		if *field != nil {
			v := strings.TrimSpace(**field)
			*field = &v
		}
	}

	err := validation.Struct(input)
	if err != nil {
		return nil, "", invalid(err)
	}

	profile, err := s.profileRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	columns, err := applyProfileUpdate(profile, input)
	if err != nil {
		return nil, "", err
	}

	err = s.profileRepo.Update(ctx, profile, columns)
	if err == nil {
		return profile, "", nil
	}
	if !errors.Is(err, repository.ErrMissingColumn) {
		return nil, "", fmt.Errorf("failed to update profile: %w", err)
	}

	kept, dropped := splitOptionalColumns(columns)
	if len(dropped) == 0 {
		return nil, "", fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Warn("profile columns missing, retrying without them", "user_id", userID, "columns", dropped, "error", err)

	err = s.profileRepo.Update(ctx, profile, kept)
	if err != nil {
		return nil, "", fmt.Errorf("failed to update profile: %w", err)
	}

	saved, err := s.profileRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	warning := "some profile fields could not be saved: " + strings.Join(dropped, ", ")
	return saved, warning, nil
}

// UploadAvatar replaces the profile's avatar. header has already passed
// validation.ValidateFile, which produced mimeType. The previous avatar is
// removed only once the profile points at the new one.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, mimeType string, file multipart.File, header *multipart.FileHeader) (*model.Profile, error) {
	profile, err := s.profileRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	previous, err := s.fileService.Avatar(ctx, profile.ID)
	if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
		return nil, fmt.Errorf("failed to load current avatar: %w", err)
	}

	uploaded, err := s.fileService.Upload(ctx, userID, model.FileOwnerProfile, profile.ID, model.FileTypeAvatar, mimeType, file, header, true)
	if err != nil {
		return nil, err
	}

	previousURL := profile.AvatarURL
	profile.AvatarURL = s.fileService.URL(uploaded)
	err = s.profileRepo.Update(ctx, profile, []string{repository.ProfileColAvatarURL})
	if err != nil {
		profile.AvatarURL = previousURL
		delErr := s.fileService.Delete(ctx, uploaded.ID)
		if delErr != nil {
			slog.Error("failed to remove unused avatar upload", "error", delErr, "file_id", uploaded.ID)
		}
		return nil, fmt.Errorf("failed to update avatar url: %w", err)
	}

	if previous != nil && previous.ID != uploaded.ID {
		err = s.fileService.Delete(ctx, previous.ID)
		if err != nil {
			slog.Warn("failed to delete previous avatar", "error", err, "file_id", previous.ID)
		}
	}

	slog.Info("avatar uploaded", "user_id", userID, "file_id", uploaded.ID)
	return profile, nil
}

// View loads profileID as seen by viewerProfileID. Private profiles are only
// visible to their owner.
func (s *ProfileService) View(ctx context.Context, viewerProfileID, profileID string) (*ProfileView, error) {
	profile, err := s.profileRepo.ByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	isOwner := profile.ID == viewerProfileID
	if !profile.IsPublic && !isOwner {
		return nil, ErrProfilePrivate
	}

	view := &ProfileView{Profile: profile, IsOwner: isOwner}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.Stats(gctx, profile.ID)
		if err != nil {
			return err
		}
		view.Stats = stats
		return nil
	})
	if !isOwner {
		g.Go(func() error {
			following, err := s.followRepo.Exists(gctx, viewerProfileID, profile.ID)
			if err != nil {
				return err
			}
			view.IsFollowing = following
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile stats: %w", err)
	}

	return view, nil
}

// Stats loads the follower, quest and progress aggregates concurrently.
func (s *ProfileService) Stats(ctx context.Context, profileID string) (model.ProfileStats, error) {
	var stats model.ProfileStats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.followRepo.FollowerCount(ctx, profileID)
		stats.FollowerCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.followRepo.FollowingCount(ctx, profileID)
		stats.FollowingCount = n
		return err
	})
	g.Go(func() error {
		counts, err := s.questRepo.StatusCounts(ctx, profileID)
		stats.QuestCount = counts.Total()
		return err
	})
	g.Go(func() error {
		avg, err := s.questRepo.AverageProgress(ctx, profileID)
		stats.AverageProgress = avg
		return err
	})

	return stats, g.Wait()
}

func (s *ProfileService) Followers(ctx context.Context, viewerProfileID, profileID string) ([]*model.Profile, error) {
	err := s.checkVisible(ctx, viewerProfileID, profileID)
	if err != nil {
		return nil, err
	}
	return s.followRepo.Followers(ctx, profileID)
}

func (s *ProfileService) Following(ctx context.Context, viewerProfileID, profileID string) ([]*model.Profile, error) {
	err := s.checkVisible(ctx, viewerProfileID, profileID)
	if err != nil {
		return nil, err
	}
	return s.followRepo.Following(ctx, profileID)
}

func (s *ProfileService) checkVisible(ctx context.Context, viewerProfileID, profileID string) error {
	profile, err := s.profileRepo.ByID(ctx, profileID)
	if err != nil {
		return err
	}
	if !profile.IsPublic && profile.ID != viewerProfileID {
		return ErrProfilePrivate
	}
	return nil
}

func applyProfileUpdate(profile *model.Profile, input ProfileUpdate) ([]string, error) {
	var columns []string

	if input.Name != nil {
		name := validation.Normalize(*input.Name)
		err := validation.ValidateName(name)
		if err != nil {
			return nil, invalid(err)
		}
		profile.Name = name
		columns = append(columns, repository.ProfileColName)
	}
	if input.Bio != nil {
		bio := validation.Normalize(*input.Bio)
		err := validation.ValidateBio(bio)
		if err != nil {
			return nil, invalid(err)
		}
		profile.Bio = bio
		columns = append(columns, repository.ProfileColBio)
	}
	if input.AvatarURL != nil {
		profile.AvatarURL = *input.AvatarURL
		columns = append(columns, repository.ProfileColAvatarURL)
	}
	if input.IsPublic != nil {
		profile.IsPublic = *input.IsPublic
		columns = append(columns, repository.ProfileColIsPublic)
	}
	if input.Branch != nil {
		profile.Branch = optionalText(*input.Branch)
		columns = append(columns, repository.ProfileColBranch)
	}
	if input.Section != nil {
		profile.Section = optionalText(*input.Section)
		columns = append(columns, repository.ProfileColSection)
	}
	if input.Year != nil {
		profile.Year = input.Year
		columns = append(columns, repository.ProfileColYear)
	}

	links := []struct {
		column string
		value  *string
		target **string
	}{
		{repository.ProfileColGitHubURL, input.GitHubURL, &profile.GitHubURL},
		{repository.ProfileColLinkedInURL, input.LinkedInURL, &profile.LinkedInURL},
		{repository.ProfileColTwitterURL, input.TwitterURL, &profile.TwitterURL},
		{repository.ProfileColWebsiteURL, input.WebsiteURL, &profile.WebsiteURL},
	}
	for _, link := range links {
		if link.value == nil {
			continue
		}
		*link.target = optionalText(*link.value)
		columns = append(columns, link.column)
	}

	return columns, nil
}

func splitOptionalColumns(columns []string) (kept, dropped []string) {
	for _, col := range columns {
		if slices.Contains(repository.OptionalProfileColumns, col) {
			dropped = append(dropped, col)
		} else {
			kept = append(kept, col)
		}
	}
	return kept, dropped
}

func optionalText(s string) *string {
	s = validation.Normalize(s)
	if s == "" {
		return nil
	}
	return &s
}
