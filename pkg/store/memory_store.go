package store

import (
	"errors"
	"sync"
	"time"

	"meetingminutes/pkg/domain"
)

// MemoryStore keeps all records in-process. Used in tests and local runs
// without a database; it honors the same atomicity contract as GormStore.
type MemoryStore struct {
	mu              sync.RWMutex
	users           map[string]domain.User
	email           map[string]string // email -> user ID
	projects        map[string]domain.Project
	projectOrder    []string
	workspaces      map[string]domain.Workspace
	workspaceOrder  []string
	recordings      map[string]domain.Recording
	recordingOrder  []string
	transcripts     map[string]domain.Transcript // key: recording ID
	summaries       map[string]domain.Summary    // key: transcript ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		email:       make(map[string]string),
		projects:    make(map[string]domain.Project),
		workspaces:  make(map[string]domain.Workspace),
		recordings:  make(map[string]domain.Recording),
		transcripts: make(map[string]domain.Transcript),
		summaries:   make(map[string]domain.Summary),
	}
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping() error {
	return nil
}

// SaveUser registers a user, enforcing email uniqueness like the
// database index does.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ownerID, ok := m.email[u.Email]; ok && ownerID != u.ID {
		return ErrDuplicateEmail
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveProject stores a project, tracking insertion order.
func (m *MemoryStore) SaveProject(p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.projects[p.ID]; !exists {
		m.projectOrder = append(m.projectOrder, p.ID)
	}
	m.projects[p.ID] = p
	return nil
}

// GetProject retrieves a project by ID.
func (m *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	return p, ok, nil
}

// ListProjectsByOwner returns an owner's projects in creation order.
func (m *MemoryStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Project, 0)
	for _, id := range m.projectOrder {
		if p, ok := m.projects[id]; ok && p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	return res, nil
}

// SaveWorkspace stores a workspace, tracking insertion order.
func (m *MemoryStore) SaveWorkspace(w domain.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workspaces[w.ID]; !exists {
		m.workspaceOrder = append(m.workspaceOrder, w.ID)
	}
	m.workspaces[w.ID] = w
	return nil
}

// GetWorkspace retrieves a workspace by ID.
func (m *MemoryStore) GetWorkspace(id string) (domain.Workspace, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[id]
	return w, ok, nil
}

// ListWorkspacesByProject returns a project's workspaces in creation order.
func (m *MemoryStore) ListWorkspacesByProject(projectID string) ([]domain.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Workspace, 0)
	for _, id := range m.workspaceOrder {
		if w, ok := m.workspaces[id]; ok && w.ProjectID == projectID {
			res = append(res, w)
		}
	}
	return res, nil
}

// SaveRecording stores a pipeline record.
func (m *MemoryStore) SaveRecording(r domain.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.recordings[r.ID]; !exists {
		m.recordingOrder = append(m.recordingOrder, r.ID)
	}
	m.recordings[r.ID] = r
	return nil
}

// GetRecording retrieves a pipeline record by ID.
func (m *MemoryStore) GetRecording(id string) (domain.Recording, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recordings[id]
	return r, ok, nil
}

// ListRecordingsByWorkspace returns recordings in creation order.
func (m *MemoryStore) ListRecordingsByWorkspace(workspaceID string) ([]domain.Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Recording, 0)
	for _, id := range m.recordingOrder {
		if r, ok := m.recordings[id]; ok && r.WorkspaceID == workspaceID {
			res = append(res, r)
		}
	}
	return res, nil
}

// SetRecordingStatus updates status and optional error message.
func (m *MemoryStore) SetRecordingStatus(id string, status domain.RecordingStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recordings[id]
	if !ok {
		return errors.New("recording not found")
	}
	r.Status = status
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
	m.recordings[id] = r
	return nil
}

// ClaimRecordingStatus performs the compare-and-set transition under the
// store mutex, matching the GormStore conditional UPDATE.
func (m *MemoryStore) ClaimRecordingStatus(id string, from []domain.RecordingStatus, to domain.RecordingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recordings[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range from {
		if r.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	r.Status = to
	r.ErrorMessage = ""
	r.UpdatedAt = time.Now().UTC()
	m.recordings[id] = r
	return true, nil
}

// SaveTranscript stores a transcript, rejecting duplicates per recording.
func (m *MemoryStore) SaveTranscript(t domain.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transcripts[t.RecordingID]; exists {
		return errors.New("transcript already exists for recording")
	}
	m.transcripts[t.RecordingID] = t
	return nil
}

// GetTranscriptByRecording retrieves the transcript of a recording.
func (m *MemoryStore) GetTranscriptByRecording(recordingID string) (domain.Transcript, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transcripts[recordingID]
	return t, ok, nil
}

// SaveSummary stores a summary, rejecting duplicates per transcript.
func (m *MemoryStore) SaveSummary(s domain.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.summaries[s.TranscriptID]; exists {
		return errors.New("summary already exists for transcript")
	}
	m.summaries[s.TranscriptID] = s
	return nil
}

// GetSummaryByTranscript retrieves the summary of a transcript.
func (m *MemoryStore) GetSummaryByTranscript(transcriptID string) (domain.Summary, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[transcriptID]
	return s, ok, nil
}
