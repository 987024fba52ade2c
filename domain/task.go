package domain

// Task field keys.
const (
	TaskFieldTitle    = "title"
	TaskFieldStatus   = "status"
	TaskFieldPriority = "priority"
	TaskFieldDue      = "due"
)

// Task statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

// Task represents a user-owned activity item.
type Task struct {
	*Entity
}

func (t *Task) Title() string              { return t.GetString(TaskFieldTitle, "") }
func (t *Task) SetTitle(title string) bool { return t.Set(TaskFieldTitle, title) }

// State is the workflow status; the lifecycle status lives on the descriptor.
func (t *Task) State() string { return t.GetString(TaskFieldStatus, TaskStatusPending) }

func (t *Task) SetState(state string) bool { return t.Set(TaskFieldStatus, state) }

func (t *Task) Priority() int64          { return t.GetInt64(TaskFieldPriority, 0) }
func (t *Task) SetPriority(p int64) bool { return t.Set(TaskFieldPriority, p) }
func (t *Task) DueTS() int64             { return t.GetInt64(TaskFieldDue, 0) }
func (t *Task) SetDueTS(ms int64) bool   { return t.Set(TaskFieldDue, ms) }

func (t *Task) IsCompleted() bool {
	return t != nil && t.State() == TaskStatusCompleted
}

// IsOverdue reports an open task past its due time.
func (t *Task) IsOverdue(clock Clock) bool {
	if clock == nil {
		clock = SystemClock
	}
	due := t.DueTS()
	return due > 0 && !t.IsCompleted() && NowMillis(clock.Now()) > due
}
