package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core/lms"
)

const (
	enrollmentColumns = "e.id, e.student_id, e.course_id, e.status, e.progress, e.enrolled_at, e.completed_at"
	reviewColumns     = "r.id, r.course_id, r.student_id, r.rating, r.comment, r.created_at, r.updated_at"
	paymentColumns    = "p.id, p.student_id, p.course_id, p.amount, p.currency, p.status, p.reference, p.created_at"
)

type enrollmentRow struct {
	ID          int       `db:"id"`
	StudentID   int       `db:"student_id"`
	CourseID    int       `db:"course_id"`
	Status      string    `db:"status"`
	Progress    float64   `db:"progress"`
	EnrolledAt  time.Time `db:"enrolled_at"`
	CompletedAt null.Time `db:"completed_at"`
}

func (r enrollmentRow) toEnrollment() lms.Enrollment {
	e := lms.Enrollment{
		ID:          r.ID,
		StudentID:   r.StudentID,
		CourseID:    r.CourseID,
		Status:      lms.EnrollmentStatus(r.Status),
		Progress:    r.Progress,
		EnrolledAt:  r.EnrolledAt.UTC(),
		CompletedAt: r.CompletedAt,
	}
	if e.CompletedAt.Valid {
		e.CompletedAt.Time = e.CompletedAt.Time.UTC()
	}
	return e
}

type enrollmentDetailRow struct {
	enrollmentRow
	StudentUserID int    `db:"student_user_id"`
	StudentName   string `db:"student_name"`
	StudentEmail  string `db:"student_email"`
	CourseTitle   string `db:"course_title"`
	TeacherID     int    `db:"teacher_id"`
}

type reviewRow struct {
	ID        int       `db:"id"`
	CourseID  int       `db:"course_id"`
	StudentID int       `db:"student_id"`
	Rating    int       `db:"rating"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r reviewRow) toReview() lms.Review {
	return lms.Review{
		ID:        r.ID,
		CourseID:  r.CourseID,
		StudentID: r.StudentID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type paymentDetailRow struct {
	ID          int       `db:"id"`
	StudentID   int       `db:"student_id"`
	CourseID    int       `db:"course_id"`
	Amount      float64   `db:"amount"`
	Currency    string    `db:"currency"`
	Status      string    `db:"status"`
	Reference   string    `db:"reference"`
	CreatedAt   time.Time `db:"created_at"`
	StudentName string    `db:"student_name"`
	CourseTitle string    `db:"course_title"`
	TeacherID   int       `db:"teacher_id"`
}

func (repo *lmsRepository) CreateEnrollment(ctx context.Context, e lms.Enrollment, payment *lms.Payment) (lms.Enrollment, error) {
	var row enrollmentRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `
			INSERT INTO enrollments AS e (student_id, course_id, status, progress, enrolled_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+enrollmentColumns,
			e.StudentID, e.CourseID, e.Status, e.Progress, e.EnrolledAt, e.CompletedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return lms.ErrExists
			}
			return errors.Wrap(err, "inserting enrollment")
		}
		if payment == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payments (student_id, course_id, amount, currency, status, reference, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			payment.StudentID, payment.CourseID, payment.Amount, payment.Currency, payment.Status,
			payment.Reference, payment.CreatedAt,
		)
		return errors.Wrap(err, "inserting payment")
	})
	if err != nil {
		return lms.Enrollment{}, err
	}
	return row.toEnrollment(), nil
}

func (repo *lmsRepository) getEnrollment(ctx context.Context, where string, args ...interface{}) (lms.Enrollment, error) {
	var row enrollmentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+enrollmentColumns+" FROM enrollments e WHERE "+where, args...); err != nil {
		return lms.Enrollment{}, trapNoRowsErr(err, lms.ErrNotFound, "getting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *lmsRepository) GetEnrollment(ctx context.Context, id, studentID int) (lms.Enrollment, error) {
	return repo.getEnrollment(ctx, "e.id = $1 AND e.student_id = $2", id, studentID)
}

func (repo *lmsRepository) GetStudentEnrollment(ctx context.Context, courseID, studentID int) (lms.Enrollment, error) {
	return repo.getEnrollment(ctx, "e.course_id = $1 AND e.student_id = $2", courseID, studentID)
}

func (repo *lmsRepository) UpdateEnrollment(ctx context.Context, e lms.Enrollment) (lms.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE enrollments AS e
		SET status = $3, progress = $4, completed_at = $5
		WHERE e.id = $1 AND e.student_id = $2
		RETURNING `+enrollmentColumns,
		e.ID, e.StudentID, e.Status, e.Progress, e.CompletedAt,
	)
	if err != nil {
		return lms.Enrollment{}, trapNoRowsErr(err, lms.ErrNotFound, "updating enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *lmsRepository) FilterEnrollments(ctx context.Context, filter lms.EnrollmentFilter) ([]lms.EnrollmentDetail, error) {
	var where whereClause
	if filter.TeacherID != 0 {
		where.add("c.teacher_id = ?", filter.TeacherID)
	}
	if filter.CourseID != 0 {
		where.add("e.course_id = ?", filter.CourseID)
	}
	if filter.StudentID != 0 {
		where.add("e.student_id = ?", filter.StudentID)
	}

	q := `SELECT ` + enrollmentColumns + `,
		u.id AS student_user_id, u.name AS student_name, u.email AS student_email,
		c.title AS course_title, c.teacher_id
	FROM enrollments e
	JOIN courses c ON c.id = e.course_id
	JOIN student_profiles sp ON sp.id = e.student_id
	JOIN users u ON u.id = sp.user_id` + where.String() + `
	ORDER BY e.enrolled_at DESC, e.id DESC`

	var rows []enrollmentDetailRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "filtering enrollments")
	}
	enrollments := make([]lms.EnrollmentDetail, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, lms.EnrollmentDetail{
			Enrollment:    r.toEnrollment(),
			StudentUserID: r.StudentUserID,
			StudentName:   r.StudentName,
			StudentEmail:  r.StudentEmail,
			CourseTitle:   r.CourseTitle,
			TeacherID:     r.TeacherID,
		})
	}
	return enrollments, nil
}

func (repo *lmsRepository) UpsertReview(ctx context.Context, rev lms.Review) (lms.Review, error) {
	var row reviewRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO reviews AS r (course_id, student_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (course_id, student_id) DO UPDATE
		SET rating = excluded.rating, comment = excluded.comment, updated_at = excluded.updated_at
		RETURNING `+reviewColumns,
		rev.CourseID, rev.StudentID, rev.Rating, rev.Comment, rev.CreatedAt, rev.UpdatedAt,
	)
	if err != nil {
		return lms.Review{}, errors.Wrap(err, "upserting review")
	}
	return row.toReview(), nil
}

func (repo *lmsRepository) QueryReviews(ctx context.Context, courseID int) ([]lms.Review, error) {
	var rows []reviewRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+reviewColumns+" FROM reviews r WHERE r.course_id = $1 ORDER BY r.created_at DESC, r.id DESC",
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	reviews := make([]lms.Review, 0, len(rows))
	for _, r := range rows {
		reviews = append(reviews, r.toReview())
	}
	return reviews, nil
}

func (repo *lmsRepository) FilterPayments(ctx context.Context, filter lms.PaymentFilter) ([]lms.PaymentDetail, error) {
	var where whereClause
	if filter.TeacherID != 0 {
		where.add("c.teacher_id = ?", filter.TeacherID)
	}
	if filter.CourseID != 0 {
		where.add("p.course_id = ?", filter.CourseID)
	}
	if filter.StudentID != 0 {
		where.add("p.student_id = ?", filter.StudentID)
	}

	q := `SELECT ` + paymentColumns + `,
		u.name AS student_name, c.title AS course_title, c.teacher_id
	FROM payments p
	JOIN courses c ON c.id = p.course_id
	JOIN student_profiles sp ON sp.id = p.student_id
	JOIN users u ON u.id = sp.user_id` + where.String() + `
	ORDER BY p.created_at DESC, p.id DESC`

	var rows []paymentDetailRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "filtering payments")
	}
	payments := make([]lms.PaymentDetail, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, lms.PaymentDetail{
			Payment: lms.Payment{
				ID:        r.ID,
				StudentID: r.StudentID,
				CourseID:  r.CourseID,
				Amount:    r.Amount,
				Currency:  r.Currency,
				Status:    lms.PaymentStatus(r.Status),
				Reference: r.Reference,
				CreatedAt: r.CreatedAt.UTC(),
			},
			StudentName: r.StudentName,
			CourseTitle: r.CourseTitle,
			TeacherID:   r.TeacherID,
		})
	}
	return payments, nil
}
