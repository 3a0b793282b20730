package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/lms"
)

type lmsRepository struct {
	db *sqlx.DB
}

var _ lms.Repository = (*lmsRepository)(nil) // interface compliance check

func NewLMSRepository(db *sqlx.DB) lms.Repository {
	return &lmsRepository{db: db}
}

const (
	teacherProfileColumns = "id, user_id, bio, expertise, qualification, experience, created_at, updated_at"
	studentProfileColumns = "id, user_id, bio, grade_level, interests, created_at, updated_at"
)

type teacherProfileRow struct {
	ID            int       `db:"id"`
	UserID        int       `db:"user_id"`
	Bio           string    `db:"bio"`
	Expertise     string    `db:"expertise"`
	Qualification string    `db:"qualification"`
	Experience    int       `db:"experience"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r teacherProfileRow) toProfile() lms.TeacherProfile {
	return lms.TeacherProfile{
		ID:            r.ID,
		UserID:        r.UserID,
		Bio:           r.Bio,
		Expertise:     r.Expertise,
		Qualification: r.Qualification,
		Experience:    r.Experience,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type studentProfileRow struct {
	ID         int            `db:"id"`
	UserID     int            `db:"user_id"`
	Bio        string         `db:"bio"`
	GradeLevel string         `db:"grade_level"`
	Interests  pq.StringArray `db:"interests"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r studentProfileRow) toProfile() lms.StudentProfile {
	return lms.StudentProfile{
		ID:         r.ID,
		UserID:     r.UserID,
		Bio:        r.Bio,
		GradeLevel: r.GradeLevel,
		Interests:  r.Interests,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

// GetOrCreateTeacherProfile relies on the unique user_id: concurrent first calls insert a single row.
func (repo *lmsRepository) GetOrCreateTeacherProfile(ctx context.Context, userID int) (lms.TeacherProfile, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO teacher_profiles (user_id, bio, experience) VALUES ($1, '', 0)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return lms.TeacherProfile{}, errors.Wrap(err, "inserting teacher profile")
	}

	var row teacherProfileRow
	err = repo.db.GetContext(ctx, &row, "SELECT "+teacherProfileColumns+" FROM teacher_profiles WHERE user_id = $1", userID)
	if err != nil {
		return lms.TeacherProfile{}, trapNoRowsErr(err, lms.ErrNotFound, "getting teacher profile")
	}
	return row.toProfile(), nil
}

func (repo *lmsRepository) GetTeacherProfile(ctx context.Context, id int) (lms.TeacherProfile, error) {
	var row teacherProfileRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+teacherProfileColumns+" FROM teacher_profiles WHERE id = $1", id)
	if err != nil {
		return lms.TeacherProfile{}, trapNoRowsErr(err, lms.ErrNotFound, "getting teacher profile")
	}
	return row.toProfile(), nil
}

func (repo *lmsRepository) UpdateTeacherProfile(ctx context.Context, prof lms.TeacherProfile) (lms.TeacherProfile, error) {
	var row teacherProfileRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE teacher_profiles
		SET bio = $2, expertise = $3, qualification = $4, experience = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+teacherProfileColumns,
		prof.ID, prof.Bio, prof.Expertise, prof.Qualification, prof.Experience, prof.UpdatedAt,
	)
	if err != nil {
		return lms.TeacherProfile{}, trapNoRowsErr(err, lms.ErrNotFound, "updating teacher profile")
	}
	return row.toProfile(), nil
}

func (repo *lmsRepository) GetOrCreateStudentProfile(ctx context.Context, userID int) (lms.StudentProfile, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO student_profiles (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return lms.StudentProfile{}, errors.Wrap(err, "inserting student profile")
	}

	var row studentProfileRow
	err = repo.db.GetContext(ctx, &row, "SELECT "+studentProfileColumns+" FROM student_profiles WHERE user_id = $1", userID)
	if err != nil {
		return lms.StudentProfile{}, trapNoRowsErr(err, lms.ErrNotFound, "getting student profile")
	}
	return row.toProfile(), nil
}

func (repo *lmsRepository) UpdateStudentProfile(ctx context.Context, prof lms.StudentProfile) (lms.StudentProfile, error) {
	var row studentProfileRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE student_profiles
		SET bio = $2, grade_level = $3, interests = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+studentProfileColumns,
		prof.ID, prof.Bio, prof.GradeLevel, stringArray(prof.Interests), prof.UpdatedAt,
	)
	if err != nil {
		return lms.StudentProfile{}, trapNoRowsErr(err, lms.ErrNotFound, "updating student profile")
	}
	return row.toProfile(), nil
}
