package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/model"
)

type FollowRepository interface {
	// Create reports whether a new edge was written.
	Create(ctx context.Context, followerID, followingID string) (bool, error)
	// Delete reports whether an edge was removed.
	Delete(ctx context.Context, followerID, followingID string) (bool, error)
	Exists(ctx context.Context, followerID, followingID string) (bool, error)
	FollowerCount(ctx context.Context, profileID string) (int, error)
	FollowingCount(ctx context.Context, profileID string) (int, error)
	Followers(ctx context.Context, profileID string) ([]*model.Profile, error)
	Following(ctx context.Context, profileID string) ([]*model.Profile, error)
}

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Create(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `INSERT INTO follows (follower_id, following_id, created_at)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (follower_id, following_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, followerID, followingID, time.Now().UTC())
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`

	result, err := r.db.ExecContext(ctx, query, followerID, followingID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM follows WHERE follower_id = $1 AND following_id = $2`
	err := r.db.QueryRowContext(ctx, query, followerID, followingID).Scan(&count)
	return count > 0, err
}

func (r *followRepository) FollowerCount(ctx context.Context, profileID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE following_id = $1`, profileID).Scan(&count)
	return count, err
}

func (r *followRepository) FollowingCount(ctx context.Context, profileID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE follower_id = $1`, profileID).Scan(&count)
	return count, err
}

func (r *followRepository) Followers(ctx context.Context, profileID string) ([]*model.Profile, error) {
	profiles := []*model.Profile{}
	query := `SELECT p.* FROM profiles p
	          JOIN follows f ON f.follower_id = p.id
	          WHERE f.following_id = $1
	          ORDER BY f.created_at DESC`

	err := r.db.SelectContext(ctx, &profiles, query, profileID)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *followRepository) Following(ctx context.Context, profileID string) ([]*model.Profile, error) {
	profiles := []*model.Profile{}
	query := `SELECT p.* FROM profiles p
	          JOIN follows f ON f.following_id = p.id
	          WHERE f.follower_id = $1
	          ORDER BY f.created_at DESC`

	err := r.db.SelectContext(ctx, &profiles, query, profileID)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
