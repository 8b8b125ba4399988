package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/codecoach/internal/problem"
)

const problemsTable = "problems"

var problemColumns = []string{"id", "title", "description", "solution_code", "sort_order", "created_at"}

// problemRepo implements ProblemRepo on the problems table. Rows carry an
// auto-increment seq that records insertion order and breaks rank ties.
type problemRepo struct {
	db *sql.DB
}

func (r *problemRepo) List(ctx context.Context) ([]problem.Problem, error) {
	query, args := builder.Select(problemColumns...).
		From(builder.Table(problemsTable)).
		OrderBy("sort_order", "seq").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	out := []problem.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *problemRepo) Get(ctx context.Context, id string) (*problem.Problem, error) {
	query, args := builder.Select(problemColumns...).
		From(builder.Table(problemsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	p, err := scanProblem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, problem.ErrNotFound
	}
	return p, err
}

func (r *problemRepo) Create(ctx context.Context, in problem.CreateInput) (*problem.Problem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	countQuery, countArgs := builder.Select(entsql.Count("*")).
		From(builder.Table(problemsTable)).
		Query()
	var count int
	if err := tx.QueryRowContext(ctx, countQuery, countArgs...).Scan(&count); err != nil {
		return nil, fmt.Errorf("count problems: %w", err)
	}

	p := &problem.Problem{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		SolutionCode: in.SolutionCode,
		Order:        count,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	query, args := builder.Insert(problemsTable).
		Columns(problemColumns...).
		Values(p.ID, p.Title, p.Description, p.SolutionCode, p.Order, p.CreatedAt.UnixMilli()).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert problem: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (r *problemRepo) Update(ctx context.Context, id string, patch problem.Patch) error {
	if patch.Empty() {
		_, err := r.Get(ctx, id)
		return err
	}

	upd := builder.Update(problemsTable).Where(entsql.EQ("id", id))
	if patch.Title != nil {
		upd.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		upd.Set("description", *patch.Description)
	}
	if patch.SolutionCode != nil {
		upd.Set("solution_code", *patch.SolutionCode)
	}
	if patch.Order != nil {
		upd.Set("sort_order", *patch.Order)
	}

	query, args := upd.Query()
	return execOne(ctx, r.db, query, args, "update problem")
}

func (r *problemRepo) Delete(ctx context.Context, id string) error {
	query, args := builder.Delete(problemsTable).Where(entsql.EQ("id", id)).Query()
	return execOne(ctx, r.db, query, args, "delete problem")
}

func (r *problemRepo) Reorder(ctx context.Context, updates []problem.RankUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, u := range updates {
		query, args := builder.Update(problemsTable).
			Set("sort_order", u.Order).
			Where(entsql.EQ("id", u.ID)).
			Query()
		if err := execOne(ctx, tx, query, args, "reorder problem "+u.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execOne runs a statement expected to touch exactly one problem row and
// maps zero affected rows to problem.ErrNotFound.
func execOne(ctx context.Context, db execer, query string, args []any, op string) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, problem.ErrNotFound)
	}
	return nil
}

func scanProblem(row rowScanner) (*problem.Problem, error) {
	var (
		p       problem.Problem
		created int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.SolutionCode, &p.Order, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan problem: %w", err)
	}
	if created > 0 {
		p.CreatedAt = time.UnixMilli(created).UTC()
	}
	return &p, nil
}
