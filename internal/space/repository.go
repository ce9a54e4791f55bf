package space

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*StudySpace, error)
	List(ctx context.Context, filter Filter) ([]*StudySpace, int, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var spaceColumns = []string{
	"id", "space_id", "building", "campus", "level", "capacity", "is_available", "created_at",
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*StudySpace, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(spaceColumns...).
		From("public.study_spaces").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get space query failed: %w", err)
	}

	var s StudySpace
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.SpaceID, &s.Building, &s.Campus, &s.Level, &s.Capacity, &s.IsAvailable, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get space failed: %w", err)
	}
	return &s, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*StudySpace, int, error) {
	sql, args, err := buildListQuery(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("build list spaces query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list spaces failed: %w", err)
	}
	defer rows.Close()

	var spaces []*StudySpace
	var total int

	for rows.Next() {
		var s StudySpace
		if err := rows.Scan(
			&s.ID, &s.SpaceID, &s.Building, &s.Campus, &s.Level, &s.Capacity, &s.IsAvailable, &s.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan space failed: %w", err)
		}
		spaces = append(spaces, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate spaces failed: %w", err)
	}

	return spaces, total, nil
}

func buildListQuery(filter Filter) (string, []any, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(spaceColumns, "count(*) OVER() as total_count")...).
		From("public.study_spaces")

	if filter.Building != "" {
		query = query.Where(squirrel.Eq{"building": filter.Building})
	}
	if filter.Campus != "" {
		query = query.Where(squirrel.Eq{"campus": filter.Campus})
	}
	if filter.Level != "" {
		query = query.Where(squirrel.Eq{"level": filter.Level})
	}
	if filter.AvailableOnly {
		query = query.Where(squirrel.Eq{"is_available": true})
	}

	query = query.OrderBy("building ASC", "level ASC", "space_id ASC")

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	return query.ToSql()
}
