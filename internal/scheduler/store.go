package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// scheduleRow is the relational schema for the scheduled_jobs table, the
// sqlite-compatible counterpart of the result backend's job table.
type scheduleRow struct {
	ID               string `gorm:"column:id;primaryKey"`
	TaskName         string `gorm:"column:task_name;not null;index"`
	Type             string `gorm:"column:schedule_type;not null"`
	CronExpr         string `gorm:"column:cron_expr"`
	IntervalSecs     *int   `gorm:"column:interval_secs"`
	RunAt            *time.Time `gorm:"column:run_at"`
	Args             string     `gorm:"column:args"`
	Kwargs           string     `gorm:"column:kwargs"`
	Enabled          bool       `gorm:"column:enabled;not null;index"`
	NextRunTS        *time.Time `gorm:"column:next_run_ts;index"`
	Timezone         string     `gorm:"column:timezone;not null"`
	MisfirePolicy    string     `gorm:"column:misfire_policy;not null"`
	ConcurrencyLimit *int       `gorm:"column:concurrency_limit"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null"`
}

func (scheduleRow) TableName() string { return "scheduled_jobs" }

// Store is a single-table relational persistence layer for schedules.
type Store struct {
	db *gorm.DB
}

func OpenStore(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&scheduleRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func toRow(s *Schedule) (scheduleRow, error) {
	row := scheduleRow{
		ID: s.ID, TaskName: s.TaskName, Type: string(s.Type), CronExpr: s.CronExpr,
		IntervalSecs: s.IntervalSecs, RunAt: s.RunAt, Enabled: s.Enabled, NextRunTS: s.NextRunTS,
		Timezone: s.Timezone, MisfirePolicy: string(s.MisfirePolicy), ConcurrencyLimit: s.ConcurrencyLimit,
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
	if s.Args != nil {
		raw, err := json.Marshal(s.Args)
		if err != nil {
			return row, err
		}
		row.Args = string(raw)
	}
	if s.Kwargs != nil {
		raw, err := json.Marshal(s.Kwargs)
		if err != nil {
			return row, err
		}
		row.Kwargs = string(raw)
	}
	return row, nil
}

func fromRow(row scheduleRow) *Schedule {
	s := &Schedule{
		ID: row.ID, TaskName: row.TaskName, Type: Type(row.Type), CronExpr: row.CronExpr,
		IntervalSecs: row.IntervalSecs, RunAt: row.RunAt, Enabled: row.Enabled, NextRunTS: row.NextRunTS,
		Timezone: row.Timezone, MisfirePolicy: MisfirePolicy(row.MisfirePolicy), ConcurrencyLimit: row.ConcurrencyLimit,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	if row.Args != "" {
		_ = json.Unmarshal([]byte(row.Args), &s.Args)
	}
	if row.Kwargs != "" {
		_ = json.Unmarshal([]byte(row.Kwargs), &s.Kwargs)
	}
	return s
}

func (st *Store) Add(ctx context.Context, s *Schedule) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}
	return st.db.WithContext(ctx).Create(&row).Error
}

func (st *Store) Update(ctx context.Context, s *Schedule) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}
	// Select("*") writes zero values too (e.g. enabled=false, next_run_ts=NULL).
	return st.db.WithContext(ctx).Model(&scheduleRow{}).Where("id = ?", s.ID).Select("*").Omit("created_at").Updates(&row).Error
}

func (st *Store) Remove(ctx context.Context, id string) error {
	return st.db.WithContext(ctx).Where("id = ?", id).Delete(&scheduleRow{}).Error
}

func (st *Store) Get(ctx context.Context, id string) (*Schedule, bool, error) {
	var row scheduleRow
	err := st.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return fromRow(row), true, nil
}

func (st *Store) List(ctx context.Context) ([]*Schedule, error) {
	var rows []scheduleRow
	if err := st.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Schedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}
