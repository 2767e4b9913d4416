package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vkarpekin/mebelbot/internal/domain"
)

// TaskService stores per-user tasks and computes the attention buckets
// the morning briefing is built from.
type TaskService struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewTaskService(db *pgxpool.Pool) *TaskService {
	return &TaskService{db: db, now: time.Now}
}

// Attention bucket boundaries.
const (
	soonWindow     = 48 * time.Hour
	longRunningAge = 7 * 24 * time.Hour
)

const taskColumns = `id, user_id, title, deadline, priority, done, done_at, created_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Deadline, &t.Priority,
		&t.Done, &t.DoneAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TaskService) CreateTask(ctx context.Context, draft domain.TaskDraft, userID int64) (*domain.Task, error) {
	priority := draft.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	task, err := scanTask(s.db.QueryRow(ctx, `
		INSERT INTO tasks (user_id, title, deadline, priority)
		VALUES ($1, $2, $3, $4)
		RETURNING `+taskColumns,
		userID, draft.Title, draft.Deadline, priority))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// CompleteTask marks the task done; completing twice is an error the
// dialog reports rather than silently ignores.
func (s *TaskService) CompleteTask(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Done {
		return nil, domain.ErrTaskAlreadyDone
	}
	task, err = scanTask(s.db.QueryRow(ctx, `
		UPDATE tasks SET done = true, done_at = now()
		WHERE id = $1 AND NOT done
		RETURNING `+taskColumns, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTaskAlreadyDone
		}
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return task, nil
}

// GetMyTasks returns the user's open tasks, nearest deadline first,
// tasks without a deadline last.
func (s *TaskService) GetMyTasks(ctx context.Context, userID int64) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1 AND NOT done
		ORDER BY deadline NULLS LAST, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetUrgentTasks returns open high-priority tasks plus anything whose
// deadline has already passed.
func (s *TaskService) GetUrgentTasks(ctx context.Context, userID int64) ([]domain.Task, error) {
	tasks, err := s.GetMyTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []domain.Task
	for _, t := range tasks {
		if t.Priority == domain.TaskPriorityHigh || (t.Deadline != nil && t.Deadline.Before(now)) {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetTasksNeedingAttention buckets the user's open tasks for the
// briefing.
func (s *TaskService) GetTasksNeedingAttention(ctx context.Context, userID int64) (*domain.TaskAttention, error) {
	tasks, err := s.GetMyTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return bucketTasks(tasks, s.now()), nil
}

// bucketTasks assigns each task to at most one bucket; overdue beats
// urgent beats soon beats long-running.
func bucketTasks(tasks []domain.Task, now time.Time) *domain.TaskAttention {
	att := &domain.TaskAttention{}
	for _, t := range tasks {
		switch {
		case t.Deadline != nil && t.Deadline.Before(now):
			att.Overdue = append(att.Overdue, t)
		case t.Priority == domain.TaskPriorityHigh:
			att.Urgent = append(att.Urgent, t)
		case t.Deadline != nil && t.Deadline.Sub(now) <= soonWindow:
			att.Soon = append(att.Soon, t)
		case now.Sub(t.CreatedAt) >= longRunningAge:
			att.LongRunning = append(att.LongRunning, t)
		}
	}
	return att
}
