package store

import (
	"errors"

	"meetingminutes/pkg/domain"
)

// ErrDuplicateEmail is returned by SaveUser when another user already
// holds the email. The unique index is the arbiter under concurrent
// registration; callers cannot rely on a prior HasUserEmail check.
var ErrDuplicateEmail = errors.New("email already exists")

// Store defines persistence operations over the shared document store.
// All implementations provide atomic per-document updates; there are no
// cross-document transactions.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// projects
	SaveProject(domain.Project) error
	GetProject(id string) (domain.Project, bool, error)
	ListProjectsByOwner(ownerID string) ([]domain.Project, error)

	// workspaces
	SaveWorkspace(domain.Workspace) error
	GetWorkspace(id string) (domain.Workspace, bool, error)
	ListWorkspacesByProject(projectID string) ([]domain.Workspace, error)

	// recordings
	SaveRecording(domain.Recording) error
	GetRecording(id string) (domain.Recording, bool, error)
	ListRecordingsByWorkspace(workspaceID string) ([]domain.Recording, error)
	// SetRecordingStatus unconditionally moves a recording to status,
	// recording an error message for failed transitions.
	SetRecordingStatus(id string, status domain.RecordingStatus, errMsg string) error
	// ClaimRecordingStatus conditionally advances the status, returning
	// whether this caller won the transition. It is the sole arbiter for
	// per-record stage mutual exclusion: of any number of concurrent
	// claims from the same predecessor set, exactly one succeeds.
	ClaimRecordingStatus(id string, from []domain.RecordingStatus, to domain.RecordingStatus) (bool, error)

	// transcripts
	SaveTranscript(domain.Transcript) error
	GetTranscriptByRecording(recordingID string) (domain.Transcript, bool, error)

	// summaries
	SaveSummary(domain.Summary) error
	GetSummaryByTranscript(transcriptID string) (domain.Summary, bool, error)

	// Ping verifies the backing store is reachable.
	Ping() error
}
