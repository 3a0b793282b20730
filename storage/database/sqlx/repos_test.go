package sqlxrepos_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
	"github.com/trezcool/masomo-lms/storage/database"
	sqlxrepos "github.com/trezcool/masomo-lms/storage/database/sqlx"
)

// prepareDB migrates a clean schema into the database at TEST_DATABASE_URL.
func prepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.OpenURL(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db.DB, "reset"))
	require.NoError(t, database.Migrate(ctx, db.DB, "up"))
	return db
}

func createUser(t *testing.T, repo user.Repository, name, email string, role user.Role) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{Name: name, Email: email, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, usr.SetPassword("Qz7#vK!w2Tr"))
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func TestUserRepository_UniqueEmail(t *testing.T) {
	db := prepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)

	createUser(t, repo, "Alice", "alice@test.cd", user.RoleStudent)

	now := time.Now().UTC()
	_, err := repo.CreateUser(context.Background(), user.User{Name: "Other", Email: "alice@test.cd", Role: user.RoleStudent, CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

	usr, err := repo.GetUserByEmail(context.Background(), "alice@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "Alice", usr.Name)
	assert.NotEmpty(t, usr.PasswordHash)
}

func TestLMSRepository_ProfileProvisionedOnce(t *testing.T) {
	db := prepareDB(t)
	usr := createUser(t, sqlxrepos.NewUserRepository(db), "Teacher", "teacher@test.cd", user.RoleTeacher)
	repo := sqlxrepos.NewLMSRepository(db)

	var wg sync.WaitGroup
	ids := make([]int, 10)
	errs := make([]error, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prof, err := repo.GetOrCreateTeacherProfile(context.Background(), usr.ID)
			ids[i], errs[i] = prof.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM teacher_profiles WHERE user_id = $1", usr.ID))
	assert.Equal(t, 1, n)
}

func TestLMSRepository_CourseOwnership(t *testing.T) {
	db := prepareDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewLMSRepository(db)

	profA, err := repo.GetOrCreateTeacherProfile(ctx, createUser(t, usrRepo, "A", "a@test.cd", user.RoleTeacher).ID)
	require.NoError(t, err)
	profB, err := repo.GetOrCreateTeacherProfile(ctx, createUser(t, usrRepo, "B", "b@test.cd", user.RoleTeacher).ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	c, err := repo.CreateCourse(ctx, lms.Course{
		TeacherID:   profA.ID,
		Title:       "Physics",
		Description: "Mechanics",
		Category:    "Science",
		Level:       lms.LevelBeginner,
		Language:    "English",
		Tags:        []string{"newton"},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)

	_, err = repo.GetCourse(ctx, c.ID, profB.ID)
	assert.Equal(t, lms.ErrNotFound, errors.Cause(err))

	stolen := c
	stolen.TeacherID = profB.ID
	stolen.Title = "Stolen"
	_, err = repo.UpdateCourse(ctx, stolen)
	assert.Equal(t, lms.ErrNotFound, errors.Cause(err))

	assert.Equal(t, lms.ErrNotFound, errors.Cause(repo.DeleteCourse(ctx, c.ID, profB.ID)))

	got, err := repo.GetCourse(ctx, c.ID, profA.ID)
	require.NoError(t, err)
	assert.Equal(t, "Physics", got.Title)
	assert.Equal(t, []string{"newton"}, got.Tags)

	courses, err := repo.FilterCourses(ctx, lms.CourseFilter{TeacherID: profB.ID}, nil)
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)

	// lessons keep the course counters in sync
	l, err := repo.CreateLesson(ctx, lms.Lesson{CourseID: c.ID, Title: "Intro", Duration: 30, CreatedAt: now, UpdatedAt: now}, profA.ID)
	require.NoError(t, err)
	_, err = repo.CreateLesson(ctx, lms.Lesson{CourseID: c.ID, Title: "Stolen", Duration: 30, CreatedAt: now, UpdatedAt: now}, profB.ID)
	assert.Equal(t, lms.ErrNotFound, errors.Cause(err))

	got, err = repo.GetCourse(ctx, c.ID, profA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalLessons)
	assert.Equal(t, 30, got.TotalDuration)

	require.NoError(t, repo.DeleteLesson(ctx, l.ID, profA.ID))
	got, err = repo.GetCourse(ctx, c.ID, profA.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalLessons)
	assert.Equal(t, 0, got.TotalDuration)
}

func TestLMSRepository_Submissions(t *testing.T) {
	db := prepareDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewLMSRepository(db)

	teacher, err := repo.GetOrCreateTeacherProfile(ctx, createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher).ID)
	require.NoError(t, err)
	other, err := repo.GetOrCreateTeacherProfile(ctx, createUser(t, usrRepo, "Other", "other@test.cd", user.RoleTeacher).ID)
	require.NoError(t, err)
	student, err := repo.GetOrCreateStudentProfile(ctx, createUser(t, usrRepo, "Student", "student@test.cd", user.RoleStudent).ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	c, err := repo.CreateCourse(ctx, lms.Course{
		TeacherID: teacher.ID, Title: "Physics", Description: "Mechanics", Category: "Science",
		Level: lms.LevelBeginner, Language: "English", IsPublished: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	a, err := repo.CreateAssignment(ctx, lms.Assignment{
		CourseID: c.ID, TeacherID: teacher.ID, Title: "Essay", Description: "Newton",
		DueDate: now.Add(time.Hour), MaxPoints: 100, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	sub, err := repo.UpsertSubmission(ctx, lms.Submission{AssignmentID: a.ID, StudentID: student.ID, Content: "v1", Status: lms.SubmissionSubmitted, SubmittedAt: now})
	require.NoError(t, err)
	resub, err := repo.UpsertSubmission(ctx, lms.Submission{AssignmentID: a.ID, StudentID: student.ID, Content: "v2", Status: lms.SubmissionSubmitted, SubmittedAt: now})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, resub.ID)
	assert.Equal(t, "v2", resub.Content)

	_, err = repo.GradeSubmission(ctx, sub.ID, other.ID, 50, "", now)
	assert.Equal(t, lms.ErrNotFound, errors.Cause(err))

	graded, err := repo.GradeSubmission(ctx, sub.ID, teacher.ID, 85, "Good", now)
	require.NoError(t, err)
	assert.Equal(t, lms.SubmissionGraded, graded.Status)
	assert.Equal(t, 85.0, graded.Grade.Float64)
	assert.True(t, graded.GradedAt.Valid)

	graded, err = repo.GradeSubmission(ctx, sub.ID, teacher.ID, 90, "Very good", now)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, graded.ID)
	assert.Equal(t, 90.0, graded.Grade.Float64)

	_, err = repo.UpsertSubmission(ctx, lms.Submission{AssignmentID: a.ID, StudentID: student.ID, Content: "v3", Status: lms.SubmissionSubmitted, SubmittedAt: now})
	assert.Equal(t, lms.ErrAlreadyGraded, errors.Cause(err))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM submissions WHERE assignment_id = $1", a.ID))
	assert.Equal(t, 1, n)
}
