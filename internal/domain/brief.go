package domain

import "time"

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles accepted from clients.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// BriefStatus tracks a submitted brief.
type BriefStatus string

const (
	BriefSubmitted BriefStatus = "submitted"
	BriefReviewed  BriefStatus = "reviewed"
	BriefConverted BriefStatus = "converted"
)

// Valid reports whether s is a known brief status.
func (s BriefStatus) Valid() bool {
	return s == BriefSubmitted || s == BriefReviewed || s == BriefConverted
}

// BriefDraft is what the wizard has gathered so far.
type BriefDraft struct {
	ProjectType string   `json:"project_type"`
	Goals       string   `json:"goals"`
	Features    []string `json:"features"`
	Budget      string   `json:"budget"`
	Timeline    string   `json:"timeline"`
	Summary     string   `json:"summary"`
}

// BriefSession is the in-progress wizard conversation for one visitor.
type BriefSession struct {
	ID        string        `json:"id" dynamodbav:"id"`
	Messages  []ChatMessage `json:"messages" dynamodbav:"messages"`
	Draft     *BriefDraft   `json:"draft,omitempty" dynamodbav:"draft,omitempty"`
	Complete  bool          `json:"complete" dynamodbav:"complete"`
	Turns     int           `json:"turns" dynamodbav:"turns"`
	CreatedAt time.Time     `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" dynamodbav:"updated_at"`
}

// ProjectBrief is a submitted project brief.
type ProjectBrief struct {
	ID          string        `json:"id" db:"id"`
	SessionID   string        `json:"session_id" db:"session_id"`
	ContactName string        `json:"contact_name" db:"contact_name"`
	Email       string        `json:"email" db:"email"`
	Company     string        `json:"company" db:"company"`
	ProjectType string        `json:"project_type" db:"project_type"`
	Goals       string        `json:"goals" db:"goals"`
	Features    []string      `json:"features" db:"features"`
	Budget      string        `json:"budget" db:"budget"`
	Timeline    string        `json:"timeline" db:"timeline"`
	Summary     string        `json:"summary" db:"summary"`
	Transcript  []ChatMessage `json:"transcript" db:"transcript"`
	Status      BriefStatus   `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
