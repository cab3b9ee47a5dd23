package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/model"
)

type KPIRepository interface {
	CreateBatch(ctx context.Context, kpis []*model.KPI) error
	KPIs(ctx context.Context, questID string) ([]*model.KPI, error)
	ByID(ctx context.Context, questID, kpiID string) (*model.KPI, error)
	Update(ctx context.Context, kpi *model.KPI) error
	Delete(ctx context.Context, questID, kpiID string) error
	CountByProfile(ctx context.Context, profileID string) (int, error)
}

type kpiRepository struct {
	db *sqlx.DB
}

func NewKPIRepository(db *sqlx.DB) KPIRepository {
	return &kpiRepository{db: db}
}

// CreateBatch inserts all rows in one transaction; either every KPI is
// written or none is.
func (r *kpiRepository) CreateBatch(ctx context.Context, kpis []*model.KPI) error {
	if len(kpis) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = insertKPIs(ctx, tx, kpis)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func insertKPIs(ctx context.Context, tx *sqlx.Tx, kpis []*model.KPI) error {
	query := `INSERT INTO kpis (id, quest_id, name, value, target, unit, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, kpi := range kpis {
		_, err := tx.ExecContext(ctx, query,
			kpi.ID,
			kpi.QuestID,
			kpi.Name,
			kpi.Value,
			kpi.Target,
			kpi.Unit,
			kpi.CreatedAt,
			kpi.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create kpi %d: %w", i, err)
		}
	}

	return nil
}

func (r *kpiRepository) KPIs(ctx context.Context, questID string) ([]*model.KPI, error) {
	kpis := []*model.KPI{}
	query := `SELECT * FROM kpis WHERE quest_id = $1 ORDER BY created_at ASC, name ASC`

	err := r.db.SelectContext(ctx, &kpis, query, questID)
	if err != nil {
		return nil, err
	}

	return kpis, nil
}

func (r *kpiRepository) ByID(ctx context.Context, questID, kpiID string) (*model.KPI, error) {
	kpi := &model.KPI{}
	query := `SELECT * FROM kpis WHERE id = $1 AND quest_id = $2`

	err := r.db.GetContext(ctx, kpi, query, kpiID, questID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKPINotFound
	}
	if err != nil {
		return nil, err
	}

	return kpi, nil
}

func (r *kpiRepository) Update(ctx context.Context, kpi *model.KPI) error {
	kpi.UpdatedAt = time.Now().UTC()
	query := `UPDATE kpis
	          SET name = $1, value = $2, target = $3, unit = $4, updated_at = $5
	          WHERE id = $6 AND quest_id = $7`

	result, err := r.db.ExecContext(ctx, query,
		kpi.Name,
		kpi.Value,
		kpi.Target,
		kpi.Unit,
		kpi.UpdatedAt,
		kpi.ID,
		kpi.QuestID,
	)
	if err != nil {
		return err
	}

	return expectRows(result, ErrKPINotFound)
}

func (r *kpiRepository) Delete(ctx context.Context, questID, kpiID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM kpis WHERE id = $1 AND quest_id = $2`, kpiID, questID)
	if err != nil {
		return err
	}

	return expectRows(result, ErrKPINotFound)
}

func (r *kpiRepository) CountByProfile(ctx context.Context, profileID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM kpis k JOIN quests q ON q.id = k.quest_id WHERE q.profile_id = $1`
	err := r.db.QueryRowContext(ctx, query, profileID).Scan(&count)
	return count, err
}
