package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
)

// Me is the signed-in user with their profile.
type Me struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
}

type UserService struct {
	userRepository    repository.UserRepository
	profileRepository repository.ProfileRepository
	fileService       *FileService
	emailService      *EmailService
}

func NewUserService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
	fileService *FileService,
	emailService *EmailService,
) *UserService {
	return &UserService{
		userRepository:    userRepository,
		profileRepository: profileRepository,
		fileService:       fileService,
		emailService:      emailService,
	}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

func (s *UserService) Me(ctx context.Context, userID string) (*Me, error) {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Me{User: user, Profile: profile}, nil
}

// DeleteAccount removes userID and everything it owns. Stored files and the
// goodbye email are best effort; the row delete cascades to the profile,
// quests, KPIs, follows and file records.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	name := "there"
	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil {
		slog.Warn("failed to get profile for deletion email", "user_id", userID, "error", err)
	} else if profile.Name != "" {
		name = profile.Name
	}

	err = s.fileService.DeleteAllUserFilesFromStorage(ctx, userID)
	if err != nil {
		slog.Warn("failed to delete user files from storage", "user_id", userID, "error", err)
	}

	err = s.emailService.SendAccountDeletedEmail(ctx, user.Email, name)
	if err != nil {
		slog.Warn("failed to send account deleted email", "user_id", userID, "error", err)
	}

	err = s.userRepository.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("account deleted", "user_id", userID)
	return nil
}
