package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/model"
)

// Profile columns a caller may write through Update.
const (
	ProfileColName        = "name"
	ProfileColBio         = "bio"
	ProfileColAvatarURL   = "avatar_url"
	ProfileColIsPublic    = "is_public"
	ProfileColBranch      = "branch"
	ProfileColSection     = "section"
	ProfileColYear        = "year"
	ProfileColGitHubURL   = "github_url"
	ProfileColLinkedInURL = "linkedin_url"
	ProfileColTwitterURL  = "twitter_url"
	ProfileColWebsiteURL  = "website_url"
)

var updatableProfileColumns = map[string]bool{
	ProfileColName:        true,
	ProfileColBio:         true,
	ProfileColAvatarURL:   true,
	ProfileColIsPublic:    true,
	ProfileColBranch:      true,
	ProfileColSection:     true,
	ProfileColYear:        true,
	ProfileColGitHubURL:   true,
	ProfileColLinkedInURL: true,
	ProfileColTwitterURL:  true,
	ProfileColWebsiteURL:  true,
}

// OptionalProfileColumns were added after the initial schema and may be
// missing on databases that have not run every migration.
var OptionalProfileColumns = []string{
	ProfileColBranch,
	ProfileColSection,
	ProfileColYear,
	ProfileColGitHubURL,
	ProfileColLinkedInURL,
	ProfileColTwitterURL,
	ProfileColWebsiteURL,
}

type ProfileRepository interface {
	ByUserID(ctx context.Context, userID string) (*model.Profile, error)
	ByID(ctx context.Context, id string) (*model.Profile, error)
	Update(ctx context.Context, profile *model.Profile, columns []string) error
	UpdateName(ctx context.Context, userID, name string) error
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = $1`, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) ByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE id = $1`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func insertProfile(ctx context.Context, db sqlx.ExecerContext, profile *model.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = now
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, name, bio, avatar_url, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, profile.ID, profile.UserID, profile.Name, profile.Bio, profile.AvatarURL, profile.IsPublic, profile.CreatedAt, profile.UpdatedAt)

	return err
}

// Update writes only the named columns of profile. A column unknown to the
// live schema yields ErrMissingColumn so callers can retry with fewer columns.
func (r *profileRepository) Update(ctx context.Context, profile *model.Profile, columns []string) error {
	if len(columns) == 0 {
		return nil
	}

	sets := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if !updatableProfileColumns[col] {
			return fmt.Errorf("profile column %q is not updatable", col)
		}
		sets = append(sets, col+" = :"+col)
	}
	sets = append(sets, "updated_at = :updated_at")

	profile.UpdatedAt = time.Now().UTC()
	query := `UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		if isMissingColumn(err) {
			return fmt.Errorf("%w: %v", ErrMissingColumn, err)
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *profileRepository) UpdateName(ctx context.Context, userID, name string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET name = $1, updated_at = $2
		WHERE user_id = $3
	`, name, time.Now().UTC(), userID)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}
