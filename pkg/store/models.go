package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"meetingminutes/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ProjectModel struct {
	ID          string `gorm:"primaryKey"`
	OwnerID     string `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Description string
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time
}

type WorkspaceModel struct {
	ID          string `gorm:"primaryKey"`
	ProjectID   string `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Description string
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time
}

type RecordingModel struct {
	ID              string `gorm:"primaryKey"`
	WorkspaceID     string `gorm:"not null;index"`
	UserID          string `gorm:"not null;index"`
	Filename        string `gorm:"not null"`
	Title           string `gorm:"not null"`
	Description     string
	BlobPath        string `gorm:"not null"`
	DurationSeconds float64
	Status          string `gorm:"not null;index"`
	ErrorMessage    string
	CreatedAt       time.Time `gorm:"not null;index"`
	UpdatedAt       time.Time `gorm:"not null"`
}

type TranscriptModel struct {
	ID          string `gorm:"primaryKey"`
	RecordingID string `gorm:"uniqueIndex;not null"`
	Text        string `gorm:"type:text"`
	Language    string
	Confidence  *float64
	Segments    datatypes.JSON `gorm:"type:jsonb"`
	Status      string         `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

type SummaryModel struct {
	ID           string `gorm:"primaryKey"`
	TranscriptID string `gorm:"uniqueIndex;not null"`
	Overview     string `gorm:"type:text"`
	KeyPoints    datatypes.JSON `gorm:"type:jsonb"`
	ActionItems  datatypes.JSON `gorm:"type:jsonb"`
	Decisions    datatypes.JSON `gorm:"type:jsonb"`
	NextSteps    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func projectToModel(p domain.Project) ProjectModel {
	return ProjectModel{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func projectFromModel(m ProjectModel) domain.Project {
	return domain.Project{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func workspaceToModel(w domain.Workspace) WorkspaceModel {
	return WorkspaceModel{
		ID:          w.ID,
		ProjectID:   w.ProjectID,
		Name:        w.Name,
		Description: w.Description,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func workspaceFromModel(m WorkspaceModel) domain.Workspace {
	return domain.Workspace{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func recordingToModel(r domain.Recording) RecordingModel {
	return RecordingModel{
		ID:              r.ID,
		WorkspaceID:     r.WorkspaceID,
		UserID:          r.UserID,
		Filename:        r.Filename,
		Title:           r.Title,
		Description:     r.Description,
		BlobPath:        r.BlobPath,
		DurationSeconds: r.DurationSeconds,
		Status:          string(r.Status),
		ErrorMessage:    r.ErrorMessage,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func recordingFromModel(m RecordingModel) domain.Recording {
	return domain.Recording{
		ID:              m.ID,
		WorkspaceID:     m.WorkspaceID,
		UserID:          m.UserID,
		Filename:        m.Filename,
		Title:           m.Title,
		Description:     m.Description,
		BlobPath:        m.BlobPath,
		DurationSeconds: m.DurationSeconds,
		Status:          domain.RecordingStatus(m.Status),
		ErrorMessage:    m.ErrorMessage,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func transcriptToModel(t domain.Transcript) (TranscriptModel, error) {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return TranscriptModel{}, err
	}
	return TranscriptModel{
		ID:          t.ID,
		RecordingID: t.RecordingID,
		Text:        t.Text,
		Language:    t.Language,
		Confidence:  t.Confidence,
		Segments:    datatypes.JSON(segments),
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}

func transcriptFromModel(m TranscriptModel) (domain.Transcript, error) {
	t := domain.Transcript{
		ID:          m.ID,
		RecordingID: m.RecordingID,
		Text:        m.Text,
		Language:    m.Language,
		Confidence:  m.Confidence,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if len(m.Segments) > 0 {
		if err := json.Unmarshal(m.Segments, &t.Segments); err != nil {
			return domain.Transcript{}, err
		}
	}
	if t.Segments == nil {
		t.Segments = []domain.TranscriptSegment{}
	}
	return t, nil
}

func summaryToModel(s domain.Summary) (SummaryModel, error) {
	keyPoints, err := json.Marshal(s.KeyPoints)
	if err != nil {
		return SummaryModel{}, err
	}
	actionItems, err := json.Marshal(s.ActionItems)
	if err != nil {
		return SummaryModel{}, err
	}
	decisions, err := json.Marshal(s.Decisions)
	if err != nil {
		return SummaryModel{}, err
	}
	nextSteps, err := json.Marshal(s.NextSteps)
	if err != nil {
		return SummaryModel{}, err
	}
	return SummaryModel{
		ID:           s.ID,
		TranscriptID: s.TranscriptID,
		Overview:     s.Overview,
		KeyPoints:    datatypes.JSON(keyPoints),
		ActionItems:  datatypes.JSON(actionItems),
		Decisions:    datatypes.JSON(decisions),
		NextSteps:    datatypes.JSON(nextSteps),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

func summaryFromModel(m SummaryModel) (domain.Summary, error) {
	s := domain.Summary{
		ID:           m.ID,
		TranscriptID: m.TranscriptID,
		Overview:     m.Overview,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	for _, field := range []struct {
		raw  datatypes.JSON
		dest any
	}{
		{m.KeyPoints, &s.KeyPoints},
		{m.ActionItems, &s.ActionItems},
		{m.Decisions, &s.Decisions},
		{m.NextSteps, &s.NextSteps},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return domain.Summary{}, err
		}
	}
	if s.KeyPoints == nil {
		s.KeyPoints = []string{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []domain.ActionItem{}
	}
	if s.Decisions == nil {
		s.Decisions = []string{}
	}
	if s.NextSteps == nil {
		s.NextSteps = []string{}
	}
	return s, nil
}
