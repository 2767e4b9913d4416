package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
)

// StageService serves the configured production pipeline.
type StageService struct {
	db    *pgxpool.Pool
	cache *StagesCache
}

func NewStageService(db *pgxpool.Pool) *StageService {
	return &StageService{db: db, cache: NewStagesCache(config.StageCacheDuration)}
}

func (s *StageService) ListStages(ctx context.Context) ([]domain.Stage, error) {
	if cached := s.cache.Get(); cached != nil {
		return cached, nil
	}

	rows, err := s.db.Query(ctx, `SELECT key, name, position FROM stages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.Stage
	for rows.Next() {
		var st domain.Stage
		if err := rows.Scan(&st.Key, &st.Name, &st.Position); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Set(stages)
	return stages, nil
}
