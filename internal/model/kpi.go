package model

import "time"

type KPI struct {
	ID        string    `db:"id" json:"id"`
	QuestID   string    `db:"quest_id" json:"questId"`
	Name      string    `db:"name" json:"name"`
	Value     float64   `db:"value" json:"value"`
	Target    *float64  `db:"target" json:"target"`
	Unit      *string   `db:"unit" json:"unit"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
