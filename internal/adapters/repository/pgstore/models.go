package pgstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/judgeboard/internal/domain/model"
)

type judgeRow struct {
	bun.BaseModel `bun:"table:judges,alias:j"`

	ID        string    `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r judgeRow) toModel() model.Judge {
	return model.Judge{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

type teamRow struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID        string    `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r teamRow) toModel() model.Team {
	return model.Team{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

type categoryRow struct {
	bun.BaseModel `bun:"table:score_categories,alias:c"`

	ID        string    `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	MaxScore  int       `bun:"max_score,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r categoryRow) toModel() model.Category {
	return model.Category{ID: r.ID, Name: r.Name, MaxScore: r.MaxScore, CreatedAt: r.CreatedAt}
}

type scoreRow struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	ID         string    `bun:"id,pk,type:uuid"`
	TeamID     string    `bun:"team_id,notnull,type:uuid"`
	JudgeID    string    `bun:"judge_id,notnull,type:uuid"`
	CategoryID string    `bun:"category_id,notnull,type:uuid"`
	Value      int       `bun:"score,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (r scoreRow) toModel() model.Score {
	return model.Score{
		ID:         r.ID,
		TeamID:     r.TeamID,
		JudgeID:    r.JudgeID,
		CategoryID: r.CategoryID,
		Value:      r.Value,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type commentRow struct {
	bun.BaseModel `bun:"table:comments,alias:cm"`

	ID        string    `bun:"id,pk,type:uuid"`
	TeamID    string    `bun:"team_id,notnull,type:uuid"`
	JudgeID   string    `bun:"judge_id,notnull,type:uuid"`
	Body      string    `bun:"comment,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (r commentRow) toModel() model.Comment {
	return model.Comment{
		ID:        r.ID,
		TeamID:    r.TeamID,
		JudgeID:   r.JudgeID,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func mapRows[R any, M any](rows []R, conv func(R) M) []M {
	out := make([]M, len(rows))
	for i, r := range rows {
		out[i] = conv(r)
	}
	return out
}
