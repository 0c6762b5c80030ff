package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"meetingminutes/pkg/domain"
)

const migrateLockID int64 = 48291517

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. The returned handle
// is constructed once at process start and passed to whoever needs it;
// there is no package-level connection state.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ProjectModel{},
			&WorkspaceModel{},
			&RecordingModel{},
			&TranscriptModel{},
			&SummaryModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool. Called at shutdown.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies database connectivity.
func (s *GormStore) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// SaveUser registers or updates a user. Conflicts on id upsert; a
// conflict on the email unique index means another account owns it.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash", "updated_at"}),
	}).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveProject stores a project.
func (s *GormStore) SaveProject(p domain.Project) error {
	model := projectToModel(p)
	return s.db.Create(&model).Error
}

// GetProject retrieves a project.
func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, err
	}
	return projectFromModel(model), true, nil
}

// ListProjectsByOwner returns an owner's projects in creation order.
func (s *GormStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	var models []ProjectModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(models))
	for _, m := range models {
		res = append(res, projectFromModel(m))
	}
	return res, nil
}

// SaveWorkspace stores a workspace.
func (s *GormStore) SaveWorkspace(w domain.Workspace) error {
	model := workspaceToModel(w)
	return s.db.Create(&model).Error
}

// GetWorkspace retrieves a workspace.
func (s *GormStore) GetWorkspace(id string) (domain.Workspace, bool, error) {
	var model WorkspaceModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Workspace{}, false, nil
		}
		return domain.Workspace{}, false, err
	}
	return workspaceFromModel(model), true, nil
}

// ListWorkspacesByProject returns a project's workspaces in creation order.
func (s *GormStore) ListWorkspacesByProject(projectID string) ([]domain.Workspace, error) {
	var models []WorkspaceModel
	if err := s.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Workspace, 0, len(models))
	for _, m := range models {
		res = append(res, workspaceFromModel(m))
	}
	return res, nil
}

// SaveRecording stores a pipeline record.
func (s *GormStore) SaveRecording(r domain.Recording) error {
	model := recordingToModel(r)
	return s.db.Create(&model).Error
}

// GetRecording retrieves a pipeline record.
func (s *GormStore) GetRecording(id string) (domain.Recording, bool, error) {
	var model RecordingModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Recording{}, false, nil
		}
		return domain.Recording{}, false, err
	}
	return recordingFromModel(model), true, nil
}

// ListRecordingsByWorkspace returns recordings in creation order.
func (s *GormStore) ListRecordingsByWorkspace(workspaceID string) ([]domain.Recording, error) {
	var models []RecordingModel
	if err := s.db.Where("workspace_id = ?", workspaceID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Recording, 0, len(models))
	for _, m := range models {
		res = append(res, recordingFromModel(m))
	}
	return res, nil
}

// SetRecordingStatus updates status and optional error message.
func (s *GormStore) SetRecordingStatus(id string, status domain.RecordingStatus, errMsg string) error {
	return s.db.Model(&RecordingModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// ClaimRecordingStatus performs the compare-and-set stage transition.
// The conditional UPDATE is atomic at the database, so of any number of
// concurrent claims exactly one observes rows-affected == 1.
func (s *GormStore) ClaimRecordingStatus(id string, from []domain.RecordingStatus, to domain.RecordingStatus) (bool, error) {
	fromStrings := make([]string, 0, len(from))
	for _, status := range from {
		fromStrings = append(fromStrings, string(status))
	}
	tx := s.db.Model(&RecordingModel{}).
		Where("id = ? AND status IN ?", id, fromStrings).
		Updates(map[string]any{
			"status":        string(to),
			"error_message": "",
			"updated_at":    time.Now().UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// SaveTranscript stores a transcript (at most one per recording, enforced
// by the unique index on recording_id).
func (s *GormStore) SaveTranscript(t domain.Transcript) error {
	model, err := transcriptToModel(t)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return s.db.Create(&model).Error
}

// GetTranscriptByRecording retrieves the transcript of a recording.
func (s *GormStore) GetTranscriptByRecording(recordingID string) (domain.Transcript, bool, error) {
	var model TranscriptModel
	if err := s.db.First(&model, "recording_id = ?", recordingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Transcript{}, false, nil
		}
		return domain.Transcript{}, false, err
	}
	transcript, err := transcriptFromModel(model)
	if err != nil {
		return domain.Transcript{}, false, fmt.Errorf("decode transcript: %w", err)
	}
	return transcript, true, nil
}

// SaveSummary stores a summary (at most one per transcript).
func (s *GormStore) SaveSummary(sum domain.Summary) error {
	model, err := summaryToModel(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return s.db.Create(&model).Error
}

// GetSummaryByTranscript retrieves the summary of a transcript.
func (s *GormStore) GetSummaryByTranscript(transcriptID string) (domain.Summary, bool, error) {
	var model SummaryModel
	if err := s.db.First(&model, "transcript_id = ?", transcriptID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Summary{}, false, nil
		}
		return domain.Summary{}, false, err
	}
	summary, err := summaryFromModel(model)
	if err != nil {
		return domain.Summary{}, false, fmt.Errorf("decode summary: %w", err)
	}
	return summary, true, nil
}
