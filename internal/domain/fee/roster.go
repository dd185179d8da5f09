package fee

import (
	"context"
	"errors"
	"time"
)

// Roster lookup errors. Every RosterLookup call returns either a value,
// ErrRosterNotFound, or an error wrapping ErrRosterUnavailable, so call
// sites can choose between degrading and aborting.
var (
	ErrRosterNotFound    = errors.New("roster: record not found")
	ErrRosterUnavailable = errors.New("roster: service unavailable")
)

// StudentYearLevel is a student's enrolment in a year-level for a school year
type StudentYearLevel struct {
	ID            int64  `json:"id"`
	StudentID     *int64 `json:"student_id"`
	StudentName   string `json:"student_name"`
	StudentEmail  string `json:"student_email"`
	ScholarNumber string `json:"scholar_number"`
	LevelName     string `json:"level_name"`
	YearName      string `json:"year_name"`
}

// YearLevel is a grade/class level
type YearLevel struct {
	ID         int64  `json:"id"`
	LevelName  string `json:"level_name"`
	LevelOrder int    `json:"level_order"`
}

// SchoolYear is an academic year
type SchoolYear struct {
	ID       int64  `json:"id"`
	YearName string `json:"year_name"`
}

// RosterLookup is the read-only client of the external system of record
type RosterLookup interface {
	GetStudentYearLevel(ctx context.Context, id int64) (*StudentYearLevel, error)
	GetYearLevelByID(ctx context.Context, id int64) (*YearLevel, error)
	ListYearLevels(ctx context.Context) ([]YearLevel, error)
	GetSchoolYear(ctx context.Context, id int64) (*SchoolYear, error)
}

// YearLevelNameCache caches year-level id -> name resolutions
type YearLevelNameCache interface {
	Get(ctx context.Context, id int64) (string, bool)
	Set(ctx context.Context, id int64, name string, ttl time.Duration)
	Invalidate(ctx context.Context) error
}

// IsRosterNotFound reports whether err is a roster not-found result
func IsRosterNotFound(err error) bool {
	return errors.Is(err, ErrRosterNotFound)
}
