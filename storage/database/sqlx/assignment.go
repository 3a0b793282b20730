package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core/lms"
)

const (
	assignmentColumns = `a.id, a.course_id, a.teacher_id, a.title, a.description, a.instructions, a.due_date,
	a.max_points, a.attachments, a.allow_late_submission, a.created_at, a.updated_at`

	submissionColumns = `s.id, s.assignment_id, s.student_id, s.content, s.attachments, s.status, s.grade,
	s.feedback, s.submitted_at, s.graded_at`

	submissionDetailQuery = `SELECT ` + submissionColumns + `,
		a.title AS assignment_title, a.max_points, a.course_id, a.teacher_id,
		u.id AS student_user_id, u.name AS student_name, u.email AS student_email
	FROM submissions s
	JOIN assignments a ON a.id = s.assignment_id
	JOIN student_profiles sp ON sp.id = s.student_id
	JOIN users u ON u.id = sp.user_id`
)

type assignmentRow struct {
	ID                  int            `db:"id"`
	CourseID            int            `db:"course_id"`
	TeacherID           int            `db:"teacher_id"`
	Title               string         `db:"title"`
	Description         string         `db:"description"`
	Instructions        string         `db:"instructions"`
	DueDate             time.Time      `db:"due_date"`
	MaxPoints           int            `db:"max_points"`
	Attachments         pq.StringArray `db:"attachments"`
	AllowLateSubmission bool           `db:"allow_late_submission"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r assignmentRow) toAssignment() lms.Assignment {
	return lms.Assignment{
		ID:                  r.ID,
		CourseID:            r.CourseID,
		TeacherID:           r.TeacherID,
		Title:               r.Title,
		Description:         r.Description,
		Instructions:        r.Instructions,
		DueDate:             r.DueDate.UTC(),
		MaxPoints:           r.MaxPoints,
		Attachments:         r.Attachments,
		AllowLateSubmission: r.AllowLateSubmission,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID           int            `db:"id"`
	AssignmentID int            `db:"assignment_id"`
	StudentID    int            `db:"student_id"`
	Content      string         `db:"content"`
	Attachments  pq.StringArray `db:"attachments"`
	Status       string         `db:"status"`
	Grade        null.Float64   `db:"grade"`
	Feedback     string         `db:"feedback"`
	SubmittedAt  time.Time      `db:"submitted_at"`
	GradedAt     null.Time      `db:"graded_at"`
}

func (r submissionRow) toSubmission() lms.Submission {
	s := lms.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Content:      r.Content,
		Attachments:  r.Attachments,
		Status:       lms.SubmissionStatus(r.Status),
		Grade:        r.Grade,
		Feedback:     r.Feedback,
		SubmittedAt:  r.SubmittedAt.UTC(),
		GradedAt:     r.GradedAt,
	}
	if s.GradedAt.Valid {
		s.GradedAt.Time = s.GradedAt.Time.UTC()
	}
	return s
}

type submissionDetailRow struct {
	submissionRow
	AssignmentTitle string `db:"assignment_title"`
	MaxPoints       int    `db:"max_points"`
	CourseID        int    `db:"course_id"`
	TeacherID       int    `db:"teacher_id"`
	StudentUserID   int    `db:"student_user_id"`
	StudentName     string `db:"student_name"`
	StudentEmail    string `db:"student_email"`
}

func (r submissionDetailRow) toDetail() lms.SubmissionDetail {
	return lms.SubmissionDetail{
		Submission:      r.toSubmission(),
		AssignmentTitle: r.AssignmentTitle,
		MaxPoints:       r.MaxPoints,
		CourseID:        r.CourseID,
		TeacherID:       r.TeacherID,
		StudentUserID:   r.StudentUserID,
		StudentName:     r.StudentName,
		StudentEmail:    r.StudentEmail,
	}
}

func (repo *lmsRepository) CreateAssignment(ctx context.Context, a lms.Assignment) (lms.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO assignments AS a (course_id, teacher_id, title, description, instructions, due_date, max_points,
			attachments, allow_late_submission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+assignmentColumns,
		a.CourseID, a.TeacherID, a.Title, a.Description, a.Instructions, a.DueDate, a.MaxPoints,
		stringArray(a.Attachments), a.AllowLateSubmission, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return lms.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *lmsRepository) getAssignment(ctx context.Context, where string, args ...interface{}) (lms.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+assignmentColumns+" FROM assignments a WHERE "+where, args...)
	if err != nil {
		return lms.Assignment{}, trapNoRowsErr(err, lms.ErrNotFound, "getting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *lmsRepository) GetAssignment(ctx context.Context, id, teacherID int) (lms.Assignment, error) {
	return repo.getAssignment(ctx, "a.id = $1 AND a.teacher_id = $2", id, teacherID)
}

func (repo *lmsRepository) GetAssignmentByID(ctx context.Context, id int) (lms.Assignment, error) {
	return repo.getAssignment(ctx, "a.id = $1", id)
}

func (repo *lmsRepository) UpdateAssignment(ctx context.Context, a lms.Assignment) (lms.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE assignments AS a
		SET title = $3, description = $4, instructions = $5, due_date = $6, max_points = $7, attachments = $8,
			allow_late_submission = $9, updated_at = $10
		WHERE a.id = $1 AND a.teacher_id = $2
		RETURNING `+assignmentColumns,
		a.ID, a.TeacherID, a.Title, a.Description, a.Instructions, a.DueDate, a.MaxPoints,
		stringArray(a.Attachments), a.AllowLateSubmission, a.UpdatedAt,
	)
	if err != nil {
		return lms.Assignment{}, trapNoRowsErr(err, lms.ErrNotFound, "updating assignment")
	}
	return row.toAssignment(), nil
}

func (repo *lmsRepository) DeleteAssignment(ctx context.Context, id, teacherID int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = $1 AND teacher_id = $2", id, teacherID)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return checkAffected(res, lms.ErrNotFound)
}

func (repo *lmsRepository) FilterAssignments(ctx context.Context, filter lms.AssignmentFilter) ([]lms.Assignment, error) {
	var where whereClause
	if filter.TeacherID != 0 {
		where.add("a.teacher_id = ?", filter.TeacherID)
	}
	if filter.CourseID != 0 {
		where.add("a.course_id = ?", filter.CourseID)
	}
	if filter.StudentID != 0 {
		where.add("a.course_id IN (SELECT course_id FROM enrollments WHERE student_id = ?)", filter.StudentID)
	}

	q := "SELECT " + assignmentColumns + " FROM assignments a" + where.String() + " ORDER BY a.due_date, a.id"
	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "filtering assignments")
	}
	assignments := make([]lms.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.toAssignment())
	}
	return assignments, nil
}

// UpsertSubmission never overwrites a graded submission: lms.ErrAlreadyGraded is returned instead.
func (repo *lmsRepository) UpsertSubmission(ctx context.Context, sub lms.Submission) (lms.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO submissions AS s (assignment_id, student_id, content, attachments, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignment_id, student_id) DO UPDATE
		SET content = EXCLUDED.content, attachments = EXCLUDED.attachments, status = EXCLUDED.status,
			submitted_at = EXCLUDED.submitted_at
		WHERE s.status <> 'GRADED'
		RETURNING `+submissionColumns,
		sub.AssignmentID, sub.StudentID, sub.Content, stringArray(sub.Attachments), sub.Status, sub.SubmittedAt,
	)
	if err != nil {
		return lms.Submission{}, trapNoRowsErr(err, lms.ErrAlreadyGraded, "upserting submission")
	}
	return row.toSubmission(), nil
}

func (repo *lmsRepository) GetSubmission(ctx context.Context, id, teacherID int) (lms.SubmissionDetail, error) {
	var row submissionDetailRow
	err := repo.db.GetContext(ctx, &row, submissionDetailQuery+" WHERE s.id = $1 AND a.teacher_id = $2", id, teacherID)
	if err != nil {
		return lms.SubmissionDetail{}, trapNoRowsErr(err, lms.ErrNotFound, "getting submission")
	}
	return row.toDetail(), nil
}

func (repo *lmsRepository) GetStudentSubmission(ctx context.Context, assignmentID, studentID int) (lms.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+submissionColumns+" FROM submissions s WHERE s.assignment_id = $1 AND s.student_id = $2",
		assignmentID, studentID,
	)
	if err != nil {
		return lms.Submission{}, trapNoRowsErr(err, lms.ErrNotFound, "getting student submission")
	}
	return row.toSubmission(), nil
}

func (repo *lmsRepository) GradeSubmission(ctx context.Context, id, teacherID int, grade float64, feedback string, gradedAt time.Time) (lms.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE submissions AS s
		SET grade = $3, feedback = $4, status = 'GRADED', graded_at = $5
		FROM assignments a
		WHERE a.id = s.assignment_id AND s.id = $1 AND a.teacher_id = $2
		RETURNING `+submissionColumns,
		id, teacherID, grade, feedback, gradedAt,
	)
	if err != nil {
		return lms.Submission{}, trapNoRowsErr(err, lms.ErrNotFound, "grading submission")
	}
	return row.toSubmission(), nil
}

func (repo *lmsRepository) FilterSubmissions(ctx context.Context, filter lms.SubmissionFilter) ([]lms.SubmissionDetail, error) {
	var where whereClause
	if filter.TeacherID != 0 {
		where.add("a.teacher_id = ?", filter.TeacherID)
	}
	if filter.AssignmentID != 0 {
		where.add("s.assignment_id = ?", filter.AssignmentID)
	}
	if filter.StudentID != 0 {
		where.add("s.student_id = ?", filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		where.add("s.status = ANY(?)", pq.Array(statuses))
	}

	q := submissionDetailQuery + where.String() + " ORDER BY s.submitted_at DESC, s.id DESC"
	var rows []submissionDetailRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "filtering submissions")
	}
	subs := make([]lms.SubmissionDetail, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toDetail())
	}
	return subs, nil
}

func (repo *lmsRepository) CountPendingSubmissions(ctx context.Context) ([]lms.PendingCount, error) {
	var rows []struct {
		TeacherUserID int `db:"teacher_user_id"`
		Count         int `db:"count"`
	}
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT tp.user_id AS teacher_user_id, COUNT(*) AS count
		FROM submissions s
		JOIN assignments a ON a.id = s.assignment_id
		JOIN teacher_profiles tp ON tp.id = a.teacher_id
		WHERE s.status IN ('SUBMITTED', 'LATE')
		GROUP BY tp.user_id
		ORDER BY tp.user_id`)
	if err != nil {
		return nil, errors.Wrap(err, "counting pending submissions")
	}
	counts := make([]lms.PendingCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, lms.PendingCount{TeacherUserID: r.TeacherUserID, Count: r.Count})
	}
	return counts, nil
}
