package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetingminutes/pkg/apperr"
	"meetingminutes/pkg/domain"
	"meetingminutes/pkg/storage"
	"meetingminutes/pkg/store"
)

// allowedAudioExts are the upload formats the transcription engine accepts.
var allowedAudioExts = map[string]bool{
	".m4a":  true,
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".flac": true,
}

// Config holds runtime configuration for the recording application.
type Config struct {
	DatabaseURL   string
	MinioEndpoint string
	MinioAccess   string
	MinioSecret   string
	MinioBucket   string
	MinioUseSSL   bool
	Store         store.Store
	Blobs         storage.BlobStore
}

// App wires storage for projects, workspaces and recording intake.
type App struct {
	store store.Store
	blobs storage.BlobStore
}

// New constructs the application with database and blob storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	blobs := cfg.Blobs
	if blobs == nil {
		var err error
		blobs, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccess, cfg.MinioSecret, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init blob store: %w", err)
		}
	}

	return &App{store: dataStore, blobs: blobs}, nil
}

// CreateProject creates a project owned by userID.
func (a *App) CreateProject(userID, name, description string) (domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Project{}, apperr.New(apperr.InvalidArgument, "project name required")
	}
	now := time.Now().UTC()
	project := domain.Project{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

// ListProjects returns the caller's projects in creation order.
func (a *App) ListProjects(userID string) ([]domain.Project, error) {
	return a.store.ListProjectsByOwner(userID)
}

// GetProject fetches one project, enforcing ownership.
func (a *App) GetProject(userID, id string) (domain.Project, error) {
	if err := validateID(id, "project id"); err != nil {
		return domain.Project{}, err
	}
	project, ok, err := a.store.GetProject(id)
	if err != nil {
		return domain.Project{}, fmt.Errorf("fetch project: %w", err)
	}
	if !ok || project.OwnerID != userID {
		return domain.Project{}, apperr.New(apperr.NotFound, "project not found")
	}
	return project, nil
}

// CreateWorkspace creates a workspace under an existing project. The
// project must exist and belong to the caller.
func (a *App) CreateWorkspace(userID, projectID, name, description string) (domain.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Workspace{}, apperr.New(apperr.InvalidArgument, "workspace name required")
	}
	if _, err := a.GetProject(userID, projectID); err != nil {
		return domain.Workspace{}, err
	}
	now := time.Now().UTC()
	ws := domain.Workspace{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveWorkspace(ws); err != nil {
		return domain.Workspace{}, fmt.Errorf("save workspace: %w", err)
	}
	return ws, nil
}

// ListWorkspaces returns every workspace across the caller's projects,
// each joined with its owning project, in creation order.
func (a *App) ListWorkspaces(userID string) ([]domain.WorkspaceListing, error) {
	projects, err := a.store.ListProjectsByOwner(userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	listings := make([]domain.WorkspaceListing, 0)
	for _, p := range projects {
		workspaces, err := a.store.ListWorkspacesByProject(p.ID)
		if err != nil {
			return nil, fmt.Errorf("list workspaces: %w", err)
		}
		for _, ws := range workspaces {
			listings = append(listings, domain.WorkspaceListing{
				Workspace: ws,
				Project:   domain.ProjectRef{ID: p.ID, Name: p.Name},
			})
		}
	}
	return listings, nil
}

// GetWorkspace fetches one workspace, enforcing ownership through its project.
func (a *App) GetWorkspace(userID, id string) (domain.Workspace, error) {
	if err := validateID(id, "workspace id"); err != nil {
		return domain.Workspace{}, err
	}
	ws, ok, err := a.store.GetWorkspace(id)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("fetch workspace: %w", err)
	}
	if !ok {
		return domain.Workspace{}, apperr.New(apperr.NotFound, "workspace not found")
	}
	if _, err := a.GetProject(userID, ws.ProjectID); err != nil {
		return domain.Workspace{}, apperr.New(apperr.NotFound, "workspace not found")
	}
	return ws, nil
}

// UploadRecording stores the audio blob first and creates the pipeline
// record only once the blob write succeeded, so no record ever points at
// a missing blob. The record starts in status uploaded.
func (a *App) UploadRecording(ctx context.Context, userID, workspaceID, title, description, filename string, audio io.Reader, size int64) (domain.Recording, error) {
	if _, err := a.GetWorkspace(userID, workspaceID); err != nil {
		return domain.Recording{}, err
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return domain.Recording{}, apperr.New(apperr.InvalidArgument, "filename required")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAudioExts[ext] {
		return domain.Recording{}, apperr.Newf(apperr.InvalidArgument, "unsupported audio format %q", ext)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(filename, ext)
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := time.Now().UTC()
	blobKey := storage.BlobKey(now, ext)
	if err := a.blobs.Put(ctx, blobKey, audio, size, contentType); err != nil {
		return domain.Recording{}, apperr.Wrap(apperr.Internal, "store audio blob", err)
	}

	rec := domain.Recording{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Filename:    filename,
		Title:       title,
		Description: strings.TrimSpace(description),
		BlobPath:    blobKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveRecording(rec); err != nil {
		_ = a.blobs.Delete(ctx, blobKey)
		return domain.Recording{}, fmt.Errorf("save recording: %w", err)
	}
	slog.Info("recording uploaded", "recordingId", rec.ID, "workspaceId", workspaceID, "blob", blobKey)
	return rec, nil
}

// ListRecordings returns a workspace's recordings in creation order.
func (a *App) ListRecordings(userID, workspaceID string) ([]domain.Recording, error) {
	if _, err := a.GetWorkspace(userID, workspaceID); err != nil {
		return nil, err
	}
	return a.store.ListRecordingsByWorkspace(workspaceID)
}

// GetRecording fetches one recording, enforcing ownership.
func (a *App) GetRecording(userID, id string) (domain.Recording, error) {
	if err := validateID(id, "recording id"); err != nil {
		return domain.Recording{}, err
	}
	rec, ok, err := a.store.GetRecording(id)
	if err != nil {
		return domain.Recording{}, fmt.Errorf("fetch recording: %w", err)
	}
	if !ok || rec.UserID != userID {
		return domain.Recording{}, apperr.New(apperr.NotFound, "recording not found")
	}
	return rec, nil
}

// Ping verifies both the document store and the blob store are reachable.
func (a *App) Ping(ctx context.Context) error {
	if err := a.store.Ping(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := a.blobs.Ping(ctx); err != nil {
		return fmt.Errorf("blobs: %w", err)
	}
	return nil
}

func validateID(id, label string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Newf(apperr.InvalidArgument, "invalid %s", label)
	}
	return nil
}
