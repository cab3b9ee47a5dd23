package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/model"
)

const (
	QuestSortRecent   = "recent"
	QuestSortProgress = "progress"
	QuestSortTitle    = "title"
)

// FeedItem is a quest paired with the profile that owns it.
type FeedItem struct {
	model.Quest
	OwnerName      string `db:"owner_name" json:"ownerName"`
	OwnerAvatarURL string `db:"owner_avatar_url" json:"ownerAvatarUrl"`
}

type QuestRepository interface {
	Create(ctx context.Context, quest *model.Quest, kpis []*model.KPI) error
	ByID(ctx context.Context, profileID, questID string) (*model.Quest, error)
	Get(ctx context.Context, questID string) (*model.Quest, error)
	Quests(ctx context.Context, profileID, sortBy, status string) ([]*model.Quest, error)
	Update(ctx context.Context, quest *model.Quest) error
	UpdateProgress(ctx context.Context, questID string, progress int, status string) error
	Delete(ctx context.Context, profileID, questID string) error
	StatusCounts(ctx context.Context, profileID string) (model.QuestStatusCounts, error)
	AverageProgress(ctx context.Context, profileID string) (int, error)
	Feed(ctx context.Context, followerID string, limit int) ([]*FeedItem, error)
	AllIDs(ctx context.Context) ([]string, error)
}

type questRepository struct {
	db *sqlx.DB
}

func NewQuestRepository(db *sqlx.DB) QuestRepository {
	return &questRepository{db: db}
}

const insertQuestQuery = `INSERT INTO quests (id, profile_id, title, description, status, progress, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func questArgs(quest *model.Quest) []any {
	return []any{
		quest.ID,
		quest.ProfileID,
		quest.Title,
		quest.Description,
		quest.Status,
		quest.Progress,
		quest.CreatedAt,
		quest.UpdatedAt,
	}
}

// Create writes the quest and its initial KPIs in one transaction.
func (r *questRepository) Create(ctx context.Context, quest *model.Quest, kpis []*model.KPI) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, insertQuestQuery, questArgs(quest)...)
	if err != nil {
		return err
	}

	err = insertKPIs(ctx, tx, kpis)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ByID loads a quest only if profileID owns it.
func (r *questRepository) ByID(ctx context.Context, profileID, questID string) (*model.Quest, error) {
	quest := &model.Quest{}
	query := `SELECT * FROM quests WHERE id = $1 AND profile_id = $2`

	err := r.db.GetContext(ctx, quest, query, questID, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestNotFound
	}
	if err != nil {
		return nil, err
	}

	return quest, nil
}

func (r *questRepository) Get(ctx context.Context, questID string) (*model.Quest, error) {
	quest := &model.Quest{}

	err := r.db.GetContext(ctx, quest, `SELECT * FROM quests WHERE id = $1`, questID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestNotFound
	}
	if err != nil {
		return nil, err
	}

	return quest, nil
}

func (r *questRepository) Quests(ctx context.Context, profileID, sortBy, status string) ([]*model.Quest, error) {
	quests := []*model.Quest{}

	var orderBy string
	switch sortBy {
	case QuestSortProgress:
		orderBy = "ORDER BY progress DESC, updated_at DESC"
	case QuestSortTitle:
		orderBy = "ORDER BY LOWER(title) ASC"
	default: // QuestSortRecent or empty
		orderBy = "ORDER BY updated_at DESC"
	}

	query := `SELECT * FROM quests WHERE profile_id = $1 `
	args := []any{profileID}
	if status != "" {
		query += `AND status = $2 `
		args = append(args, status)
	}

	err := r.db.SelectContext(ctx, &quests, query+orderBy, args...)
	if err != nil {
		return nil, err
	}

	return quests, nil
}

func (r *questRepository) Update(ctx context.Context, quest *model.Quest) error {
	quest.UpdatedAt = time.Now().UTC()
	query := `UPDATE quests
	          SET title = $1, description = $2, status = $3, progress = $4, updated_at = $5
	          WHERE id = $6 AND profile_id = $7`

	result, err := r.db.ExecContext(ctx, query,
		quest.Title,
		quest.Description,
		quest.Status,
		quest.Progress,
		quest.UpdatedAt,
		quest.ID,
		quest.ProfileID,
	)
	if err != nil {
		return err
	}

	return expectRows(result, ErrQuestNotFound)
}

func (r *questRepository) UpdateProgress(ctx context.Context, questID string, progress int, status string) error {
	query := `UPDATE quests SET progress = $1, status = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, progress, status, time.Now().UTC(), questID)
	if err != nil {
		return err
	}

	return expectRows(result, ErrQuestNotFound)
}

func (r *questRepository) Delete(ctx context.Context, profileID, questID string) error {
	query := `DELETE FROM quests WHERE id = $1 AND profile_id = $2`
	result, err := r.db.ExecContext(ctx, query, questID, profileID)
	if err != nil {
		return err
	}

	return expectRows(result, ErrQuestNotFound)
}

func (r *questRepository) StatusCounts(ctx context.Context, profileID string) (model.QuestStatusCounts, error) {
	var counts model.QuestStatusCounts

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM quests WHERE profile_id = $1 GROUP BY status`
	err := r.db.SelectContext(ctx, &rows, query, profileID)
	if err != nil {
		return counts, err
	}

	for _, row := range rows {
		switch row.Status {
		case model.QuestStatusActive:
			counts.Active = row.Count
		case model.QuestStatusCompleted:
			counts.Completed = row.Count
		case model.QuestStatusPaused:
			counts.Paused = row.Count
		case model.QuestStatusArchived:
			counts.Archived = row.Count
		}
	}

	return counts, nil
}

// AverageProgress ignores archived quests.
func (r *questRepository) AverageProgress(ctx context.Context, profileID string) (int, error) {
	var avg sql.NullFloat64
	query := `SELECT AVG(progress) FROM quests WHERE profile_id = $1 AND status <> $2`
	err := r.db.QueryRowContext(ctx, query, profileID, model.QuestStatusArchived).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return int(avg.Float64 + 0.5), nil
}

// Feed returns recent non-archived quests from public profiles that followerID follows.
func (r *questRepository) Feed(ctx context.Context, followerID string, limit int) ([]*FeedItem, error) {
	items := []*FeedItem{}
	query := `SELECT q.*, p.name AS owner_name, p.avatar_url AS owner_avatar_url
	          FROM quests q
	          JOIN follows f ON f.following_id = q.profile_id
	          JOIN profiles p ON p.id = q.profile_id
	          WHERE f.follower_id = $1 AND p.is_public = $2 AND q.status <> $3
	          ORDER BY q.updated_at DESC
	          LIMIT $4`

	err := r.db.SelectContext(ctx, &items, query, followerID, true, model.QuestStatusArchived, limit)
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *questRepository) AllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM quests ORDER BY created_at ASC`)
	return ids, err
}

func expectRows(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
