package domain

import "time"

// RecordingStatus tracks a recording through the processing pipeline.
// Status only advances forward through the enumerated order; failed is
// reachable from any non-terminal state and is retryable by re-invoking
// the stage that failed.
type RecordingStatus string

const (
	StatusPending      RecordingStatus = "pending"
	StatusUploaded     RecordingStatus = "uploaded"
	StatusTranscribing RecordingStatus = "transcribing"
	StatusTranscribed  RecordingStatus = "transcribed"
	StatusSummarizing  RecordingStatus = "summarizing"
	StatusCompleted    RecordingStatus = "completed"
	StatusFailed       RecordingStatus = "failed"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Workspace struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectRef is the project metadata attached to workspace listings.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkspaceListing is a workspace joined with its owning project.
type WorkspaceListing struct {
	Workspace
	Project ProjectRef `json:"project"`
}

// Recording is the pipeline record: exactly one exists per uploaded audio
// artifact, and it is the unit of idempotency for stage triggers.
type Recording struct {
	ID              string          `json:"id"`
	WorkspaceID     string          `json:"workspaceId"`
	UserID          string          `json:"userId"`
	Filename        string          `json:"filename"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	BlobPath        string          `json:"-"`
	DurationSeconds float64         `json:"durationSeconds"`
	Status          RecordingStatus `json:"status"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	ID          string              `json:"id"`
	RecordingID string              `json:"recordingId"`
	Text        string              `json:"text"`
	Language    string              `json:"language"`
	Confidence  *float64            `json:"confidence,omitempty"`
	Segments    []TranscriptSegment `json:"segments"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type ActionItem struct {
	Description string     `json:"description"`
	Assignee    string     `json:"assignee"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

type Summary struct {
	ID           string       `json:"id"`
	TranscriptID string       `json:"transcriptId"`
	Overview     string       `json:"overview,omitempty"`
	KeyPoints    []string     `json:"keyPoints"`
	ActionItems  []ActionItem `json:"actionItems"`
	Decisions    []string     `json:"decisions"`
	NextSteps    []string     `json:"nextSteps"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
