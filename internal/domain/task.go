package domain

import "time"

// Task priorities as stored in the tasks table.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

type Task struct {
	ID        int64
	UserID    int64
	Title     string
	Deadline  *time.Time
	Priority  string
	Done      bool
	DoneAt    *time.Time
	CreatedAt time.Time
}

// TaskDraft holds the fields collected by the task-creation wizard.
type TaskDraft struct {
	Title    string     `json:"title,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Priority string     `json:"priority,omitempty"`
}

// TaskAttention groups tasks that need the user's attention, bucketed
// the way the morning briefing presents them.
type TaskAttention struct {
	Urgent      []Task
	Soon        []Task
	LongRunning []Task
	Overdue     []Task
}

// Empty reports whether all four buckets are empty.
func (a *TaskAttention) Empty() bool {
	return len(a.Urgent) == 0 && len(a.Soon) == 0 && len(a.LongRunning) == 0 && len(a.Overdue) == 0
}
