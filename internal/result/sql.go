package result

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/nuvom/nuvom/internal/job"
)

// jobRecord is the relational schema for the SQL result backend, the
// sqlite-compatible analogue of the teacher's job_run table: same column
// set, with the result/args/kwargs payloads stored as datatypes.JSON
// (sqlite has no native jsonb, but datatypes.JSON still saves every caller
// a manual []byte<->string conversion), and a durable index on
// (status, created_at).
type jobRecord struct {
	JobID       string         `gorm:"column:job_id;primaryKey"`
	FuncName    string         `gorm:"column:func_name;not null;index"`
	Status      string         `gorm:"column:status;not null;index:idx_status_created"`
	Result      datatypes.JSON `gorm:"column:result"`
	ErrorType   string         `gorm:"column:error_type"`
	ErrorMsg    string         `gorm:"column:error_message"`
	ErrorTrace  string         `gorm:"column:error_traceback"`
	Args        datatypes.JSON `gorm:"column:args"`
	Kwargs      datatypes.JSON `gorm:"column:kwargs"`
	Attempts    int            `gorm:"column:attempts"`
	RetriesLeft int            `gorm:"column:retries_left"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null;index:idx_status_created"`
	CompletedAt *time.Time     `gorm:"column:completed_at"`
}

func (jobRecord) TableName() string { return "nuvom_job_results" }

// SQL is a single-table relational result backend. One *gorm.DB (with its
// own connection pool) is shared by every caller; SQLite is opened in WAL mode so
// concurrent worker writers don't serialize behind a single file lock any
// more than necessary.
type SQL struct {
	db *gorm.DB
}

// OpenSQL opens (migrating if needed) a SQLite-backed result store at dsn,
// e.g. "file:nuvom.db?_journal_mode=WAL".
func OpenSQL(dsn string) (*SQL, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, err
	}
	return &SQL{db: db}, nil
}

func (s *SQL) Name() string { return "sql" }

func toRecordRow(rec Record) (jobRecord, error) {
	row := jobRecord{
		JobID:       rec.JobID,
		FuncName:    rec.FuncName,
		Status:      string(rec.Status),
		Attempts:    rec.Attempts,
		RetriesLeft: rec.RetriesLeft,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}
	if rec.Result != nil {
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return row, err
		}
		row.Result = datatypes.JSON(raw)
	}
	if rec.Error != nil {
		row.ErrorType = rec.Error.Type
		row.ErrorMsg = rec.Error.Message
		row.ErrorTrace = rec.Error.Traceback
	}
	if rec.Args != nil {
		raw, err := json.Marshal(rec.Args)
		if err != nil {
			return row, err
		}
		row.Args = datatypes.JSON(raw)
	}
	if rec.Kwargs != nil {
		raw, err := json.Marshal(rec.Kwargs)
		if err != nil {
			return row, err
		}
		row.Kwargs = datatypes.JSON(raw)
	}
	return row, nil
}

func fromRecordRow(row jobRecord) Record {
	rec := Record{
		JobID:       row.JobID,
		FuncName:    row.FuncName,
		Status:      job.Status(row.Status),
		Attempts:    row.Attempts,
		RetriesLeft: row.RetriesLeft,
		CreatedAt:   row.CreatedAt,
		CompletedAt: row.CompletedAt,
	}
	if len(row.Result) > 0 {
		_ = json.Unmarshal(row.Result, &rec.Result)
	}
	if row.ErrorType != "" || row.ErrorMsg != "" {
		rec.Error = &job.ErrorDetail{Type: row.ErrorType, Message: row.ErrorMsg, Traceback: row.ErrorTrace}
	}
	if len(row.Args) > 0 {
		_ = json.Unmarshal(row.Args, &rec.Args)
	}
	if len(row.Kwargs) > 0 {
		_ = json.Unmarshal(row.Kwargs, &rec.Kwargs)
	}
	return rec
}

// upsert preserves created_at from the first write, mirroring the
// teacher's UpdateFieldsUnlessStatus pattern of selective column updates
// inside a single transaction.
func (s *SQL) upsert(ctx context.Context, rec Record) error {
	row, err := toRecordRow(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing jobRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("job_id = ?", row.JobID).First(&existing).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			return tx.Create(&row).Error
		case err != nil:
			return err
		default:
			row.CreatedAt = existing.CreatedAt
			// Select("*") also clears the other status's payload columns.
			return tx.Model(&jobRecord{}).Where("job_id = ?", row.JobID).Select("*").Updates(&row).Error
		}
	})
}

func (s *SQL) SetResult(ctx context.Context, rec Record) error {
	rec.Status = job.StatusSuccess
	rec.Error = nil
	return s.upsert(ctx, rec)
}

func (s *SQL) SetError(ctx context.Context, rec Record) error {
	rec.Status = job.StatusFailed
	rec.Result = nil
	return s.upsert(ctx, rec)
}

func (s *SQL) GetResult(ctx context.Context, jobID string) (interface{}, bool, error) {
	rec, ok, err := s.GetFull(ctx, jobID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.Result, true, nil
}

func (s *SQL) GetError(ctx context.Context, jobID string) (*job.ErrorDetail, bool, error) {
	rec, ok, err := s.GetFull(ctx, jobID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.Error, true, nil
}

func (s *SQL) GetFull(ctx context.Context, jobID string) (*Record, bool, error) {
	var row jobRecord
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec := fromRecordRow(row)
	return &rec, true, nil
}

func (s *SQL) ListJobs(ctx context.Context) ([]Record, error) {
	var rows []jobRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRecordRow(row))
	}
	return out, nil
}
