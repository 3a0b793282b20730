package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/lms"
)

const lessonColumns = `l.id, l.course_id, l.title, l.description, l.content, l.video_url, l.duration, l.order_index,
	l.resources, l.is_published, l.created_at, l.updated_at`

type lessonRow struct {
	ID          int            `db:"id"`
	CourseID    int            `db:"course_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Content     string         `db:"content"`
	VideoURL    string         `db:"video_url"`
	Duration    int            `db:"duration"`
	OrderIndex  int            `db:"order_index"`
	Resources   pq.StringArray `db:"resources"`
	IsPublished bool           `db:"is_published"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r lessonRow) toLesson() lms.Lesson {
	return lms.Lesson{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		Content:     r.Content,
		VideoURL:    r.VideoURL,
		Duration:    r.Duration,
		OrderIndex:  r.OrderIndex,
		Resources:   r.Resources,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// bumpCourseCounters adds lessons and minutes to the teacher's course.
func bumpCourseCounters(ctx context.Context, tx *sqlx.Tx, courseID, teacherID, lessons, minutes int, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE courses
		SET total_lessons = GREATEST(total_lessons + $3, 0), total_duration = GREATEST(total_duration + $4, 0), updated_at = $5
		WHERE id = $1 AND teacher_id = $2`,
		courseID, teacherID, lessons, minutes, now,
	)
	if err != nil {
		return errors.Wrap(err, "updating course counters")
	}
	return checkAffected(res, lms.ErrNotFound)
}

func (repo *lmsRepository) CreateLesson(ctx context.Context, l lms.Lesson, teacherID int) (lms.Lesson, error) {
	var row lessonRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := bumpCourseCounters(ctx, tx, l.CourseID, teacherID, 1, l.Duration, l.CreatedAt); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &row, `
			INSERT INTO lessons AS l (course_id, title, description, content, video_url, duration, order_index,
				resources, is_published, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+lessonColumns,
			l.CourseID, l.Title, l.Description, l.Content, l.VideoURL, l.Duration, l.OrderIndex,
			stringArray(l.Resources), l.IsPublished, l.CreatedAt, l.UpdatedAt,
		)
		return errors.Wrap(err, "inserting lesson")
	})
	if err != nil {
		return lms.Lesson{}, err
	}
	return row.toLesson(), nil
}

func (repo *lmsRepository) GetLesson(ctx context.Context, id, teacherID int) (lms.Lesson, error) {
	var row lessonRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT `+lessonColumns+`
		FROM lessons l JOIN courses c ON c.id = l.course_id
		WHERE l.id = $1 AND c.teacher_id = $2`,
		id, teacherID,
	)
	if err != nil {
		return lms.Lesson{}, trapNoRowsErr(err, lms.ErrNotFound, "getting lesson")
	}
	return row.toLesson(), nil
}

// lockLesson locks the teacher's lesson row and returns its course and duration.
func lockLesson(ctx context.Context, tx *sqlx.Tx, id, teacherID int) (courseID, duration int, err error) {
	var cur struct {
		CourseID int `db:"course_id"`
		Duration int `db:"duration"`
	}
	err = tx.GetContext(ctx, &cur, `
		SELECT l.course_id, l.duration
		FROM lessons l JOIN courses c ON c.id = l.course_id
		WHERE l.id = $1 AND c.teacher_id = $2
		FOR UPDATE OF l`,
		id, teacherID,
	)
	if err != nil {
		return 0, 0, trapNoRowsErr(err, lms.ErrNotFound, "locking lesson")
	}
	return cur.CourseID, cur.Duration, nil
}

func (repo *lmsRepository) UpdateLesson(ctx context.Context, l lms.Lesson, teacherID int) (lms.Lesson, error) {
	var row lessonRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		courseID, oldDuration, err := lockLesson(ctx, tx, l.ID, teacherID)
		if err != nil {
			return err
		}
		err = tx.GetContext(ctx, &row, `
			UPDATE lessons AS l
			SET title = $2, description = $3, content = $4, video_url = $5, duration = $6, order_index = $7,
				resources = $8, is_published = $9, updated_at = $10
			WHERE l.id = $1
			RETURNING `+lessonColumns,
			l.ID, l.Title, l.Description, l.Content, l.VideoURL, l.Duration, l.OrderIndex,
			stringArray(l.Resources), l.IsPublished, l.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "updating lesson")
		}
		if delta := l.Duration - oldDuration; delta != 0 {
			return bumpCourseCounters(ctx, tx, courseID, teacherID, 0, delta, l.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return lms.Lesson{}, err
	}
	return row.toLesson(), nil
}

func (repo *lmsRepository) DeleteLesson(ctx context.Context, id, teacherID int) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		courseID, duration, err := lockLesson(ctx, tx, id, teacherID)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM lessons WHERE id = $1", id); err != nil {
			return errors.Wrap(err, "deleting lesson")
		}
		return bumpCourseCounters(ctx, tx, courseID, teacherID, -1, -duration, time.Now().UTC())
	})
}

func (repo *lmsRepository) QueryLessons(ctx context.Context, courseID int, publishedOnly bool) ([]lms.Lesson, error) {
	q := "SELECT " + lessonColumns + " FROM lessons l WHERE l.course_id = $1"
	if publishedOnly {
		q += " AND l.is_published"
	}
	q += " ORDER BY l.order_index, l.id"

	var rows []lessonRow
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]lms.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.toLesson())
	}
	return lessons, nil
}
