package domain

import "time"

// ProjectStatus enumerates the lifecycle states of a client project.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectReview     ProjectStatus = "review"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on_hold"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// projectTransitions lists the statuses reachable from each status.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectPlanning:   {ProjectInProgress, ProjectOnHold, ProjectCancelled},
	ProjectInProgress: {ProjectReview, ProjectOnHold, ProjectCancelled},
	ProjectReview:     {ProjectInProgress, ProjectCompleted, ProjectOnHold},
	ProjectOnHold:     {ProjectPlanning, ProjectInProgress, ProjectCancelled},
	ProjectCompleted:  {ProjectReview},
	ProjectCancelled:  {ProjectPlanning},
}

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	_, ok := projectTransitions[s]
	return ok
}

// CanTransitionTo reports whether a project may move from s to next.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range projectTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether work is ongoing or scheduled.
func (s ProjectStatus) Active() bool {
	return s == ProjectPlanning || s == ProjectInProgress || s == ProjectReview
}

// Project is a piece of client work tracked in the portal.
type Project struct {
	ID          string        `json:"id" db:"id"`
	ClientID    string        `json:"client_id" db:"client_id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	Status      ProjectStatus `json:"status" db:"status"`
	BudgetCents int64         `json:"budget_cents" db:"budget_cents"`
	Progress    int           `json:"progress" db:"progress"`
	StartDate   *time.Time    `json:"start_date" db:"start_date"`
	DueDate     *time.Time    `json:"due_date" db:"due_date"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// MilestoneStatus enumerates milestone states.
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
)

// Valid reports whether s is a known milestone status.
func (s MilestoneStatus) Valid() bool {
	return s == MilestonePending || s == MilestoneInProgress || s == MilestoneCompleted
}

// Milestone is a deliverable inside a project.
type Milestone struct {
	ID          string          `json:"id" db:"id"`
	ProjectID   string          `json:"project_id" db:"project_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Status      MilestoneStatus `json:"status" db:"status"`
	DueDate     *time.Time      `json:"due_date" db:"due_date"`
	CompletedAt *time.Time      `json:"completed_at" db:"completed_at"`
	SortOrder   int             `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// TimeEntry is work logged against a project.
type TimeEntry struct {
	ID          string    `json:"id" db:"id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Description string    `json:"description" db:"description"`
	Minutes     int       `json:"minutes" db:"minutes"`
	Billable    bool      `json:"billable" db:"billable"`
	RateCents   int64     `json:"rate_cents" db:"rate_cents"`
	EntryDate   time.Time `json:"entry_date" db:"entry_date"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AmountCents is the billable value of the entry, rounded to the cent.
func (e *TimeEntry) AmountCents() int64 {
	if !e.Billable {
		return 0
	}
	return (int64(e.Minutes)*e.RateCents + 30) / 60
}

// TimeSummary aggregates the time logged on a project.
type TimeSummary struct {
	ProjectID       string `json:"project_id"`
	TotalMinutes    int    `json:"total_minutes"`
	BillableMinutes int    `json:"billable_minutes"`
	BillableCents   int64  `json:"billable_cents"`
	Entries         int    `json:"entries"`
}
