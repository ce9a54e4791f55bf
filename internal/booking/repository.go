package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxRepository struct {
	pool *pgxpool.Pool
	pgxStore
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool, pgxStore: pgxStore{db: pool}}
}

func (r *pgxRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgxTx{pgxStore: pgxStore{db: tx}})
	})
}

type pgxTx struct {
	pgxStore
}

// Lock takes transaction-scoped advisory locks. Keys are taken in sorted order so two
// transactions locking the same pair cannot deadlock.
func (t *pgxTx) Lock(ctx context.Context, keys ...string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	for _, key := range sorted {
		if _, err := t.db.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return fmt.Errorf("advisory lock %q failed: %w", key, err)
		}
	}
	return nil
}

type pgxStore struct {
	db querier
}

var bookingColumns = []string{
	"id", "student_id", "room_id", "building", "campus", "level",
	"booking_date", "start_time", "end_time", "status", "created_at",
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(
		&b.ID, &b.StudentID, &b.RoomID, &b.Building, &b.Campus, &b.Level,
		&b.BookingDate, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s pgxStore) Insert(ctx context.Context, b *Booking) error {
	query, args, err := buildInsertQuery(b)
	if err != nil {
		return fmt.Errorf("build insert booking query failed: %w", err)
	}

	if err := s.db.QueryRow(ctx, query, args...).Scan(&b.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
			// bookings_no_active_overlap caught a race the validator could not see
			return ErrSlotConflict
		}
		return fmt.Errorf("insert booking failed: %w", err)
	}
	return nil
}

func (s pgxStore) GetByID(ctx context.Context, id string) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (s pgxStore) Delete(ctx context.Context, id string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete booking query failed: %w", err)
	}

	ct, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete booking failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s pgxStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	query, args, err := buildTransitionQuery(id, status)
	if err != nil {
		return fmt.Errorf("build update booking status query failed: %w", err)
	}

	// A concurrent sweep that already moved the row leaves nothing to match
	ct, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update booking status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildTransitionQuery(id string, status Status) (string, []any, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	return psql.Update("public.bookings").
		Set("status", status).
		Where(squirrel.Eq{"id": id, "status": StatusActive}).
		ToSql()
}

func (s pgxStore) QueryByRoomAndOverlap(ctx context.Context, roomID string, start, end time.Time) ([]*Booking, error) {
	query, args, err := buildOverlapQuery(roomID, start, end)
	if err != nil {
		return nil, fmt.Errorf("build overlap query failed: %w", err)
	}
	return s.list(ctx, query, args)
}

func (s pgxStore) QueryByStudentAndStatus(ctx context.Context, studentID string, status Status) ([]*Booking, error) {
	query, args, err := buildStudentStatusQuery(studentID, status)
	if err != nil {
		return nil, fmt.Errorf("build student bookings query failed: %w", err)
	}
	return s.list(ctx, query, args)
}

func (s pgxStore) QueryAll(ctx context.Context) ([]*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		OrderBy("start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings query failed: %w", err)
	}
	return s.list(ctx, query, args)
}

func (s pgxStore) list(ctx context.Context, query string, args []any) ([]*Booking, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings failed: %w", err)
	}
	return bookings, nil
}

func buildInsertQuery(b *Booking) (string, []any, error) {
	// DATE columns only carry the calendar fields
	day := time.Date(b.BookingDate.Year(), b.BookingDate.Month(), b.BookingDate.Day(), 0, 0, 0, 0, time.UTC)

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	return psql.Insert("public.bookings").
		Columns("id", "student_id", "room_id", "building", "campus", "level",
			"booking_date", "start_time", "end_time", "status").
		Values(b.ID, b.StudentID, b.RoomID, b.Building, b.Campus, b.Level,
			day, b.StartTime, b.EndTime, b.Status).
		Suffix("RETURNING created_at").
		ToSql()
}

// buildOverlapQuery selects bookings whose [start_time, end_time) intersects [start, end).
func buildOverlapQuery(roomID string, start, end time.Time) (string, []any, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	return psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"room_id": roomID}).
		Where(squirrel.Lt{"start_time": end}).
		Where(squirrel.Gt{"end_time": start}).
		OrderBy("start_time ASC").
		ToSql()
}

func buildStudentStatusQuery(studentID string, status Status) (string, []any, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	return psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"student_id": studentID}).
		Where(squirrel.Eq{"status": status}).
		OrderBy("start_time ASC").
		ToSql()
}
