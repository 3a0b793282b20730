package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/lms"
)

const courseColumns = `c.id, c.teacher_id, c.title, c.description, c.price, c.category, c.level, c.duration,
	c.thumbnail, c.video_url, c.language, c.tags, c.requirements, c.objectives, c.is_published,
	c.total_lessons, c.total_duration, c.created_at, c.updated_at`

var courseOrderings = map[string]string{
	"id":               "c.id",
	"title":            "c.title",
	"price":            "c.price",
	"created_at":       "c.created_at",
	"enrollment_count": "enrollment_count",
	"average_rating":   "average_rating",
}

type courseRow struct {
	ID            int            `db:"id"`
	TeacherID     int            `db:"teacher_id"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	Price         float64        `db:"price"`
	Category      string         `db:"category"`
	Level         string         `db:"level"`
	Duration      string         `db:"duration"`
	Thumbnail     string         `db:"thumbnail"`
	VideoURL      string         `db:"video_url"`
	Language      string         `db:"language"`
	Tags          pq.StringArray `db:"tags"`
	Requirements  pq.StringArray `db:"requirements"`
	Objectives    pq.StringArray `db:"objectives"`
	IsPublished   bool           `db:"is_published"`
	TotalLessons  int            `db:"total_lessons"`
	TotalDuration int            `db:"total_duration"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r courseRow) toCourse() lms.Course {
	return lms.Course{
		ID:            r.ID,
		TeacherID:     r.TeacherID,
		Title:         r.Title,
		Description:   r.Description,
		Price:         r.Price,
		Category:      r.Category,
		Level:         r.Level,
		Duration:      r.Duration,
		Thumbnail:     r.Thumbnail,
		VideoURL:      r.VideoURL,
		Language:      r.Language,
		Tags:          r.Tags,
		Requirements:  r.Requirements,
		Objectives:    r.Objectives,
		IsPublished:   r.IsPublished,
		TotalLessons:  r.TotalLessons,
		TotalDuration: r.TotalDuration,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type courseSummaryRow struct {
	courseRow
	EnrollmentCount int     `db:"enrollment_count"`
	AverageRating   float64 `db:"average_rating"`
}

func (repo *lmsRepository) getCourse(ctx context.Context, where string, args ...interface{}) (lms.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+courseColumns+" FROM courses c WHERE "+where, args...)
	if err != nil {
		return lms.Course{}, trapNoRowsErr(err, lms.ErrNotFound, "getting course")
	}
	return row.toCourse(), nil
}

func (repo *lmsRepository) CreateCourse(ctx context.Context, c lms.Course) (lms.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO courses AS c (teacher_id, title, description, price, category, level, duration, thumbnail,
			video_url, language, tags, requirements, objectives, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+courseColumns,
		c.TeacherID, c.Title, c.Description, c.Price, c.Category, c.Level, c.Duration, c.Thumbnail,
		c.VideoURL, c.Language, stringArray(c.Tags), stringArray(c.Requirements), stringArray(c.Objectives),
		c.IsPublished, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return lms.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.toCourse(), nil
}

func (repo *lmsRepository) GetCourse(ctx context.Context, id, teacherID int) (lms.Course, error) {
	return repo.getCourse(ctx, "c.id = $1 AND c.teacher_id = $2", id, teacherID)
}

func (repo *lmsRepository) GetPublishedCourse(ctx context.Context, id int) (lms.Course, error) {
	return repo.getCourse(ctx, "c.id = $1 AND c.is_published", id)
}

func (repo *lmsRepository) UpdateCourse(ctx context.Context, c lms.Course) (lms.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE courses AS c
		SET title = $3, description = $4, price = $5, category = $6, level = $7, duration = $8, thumbnail = $9,
			video_url = $10, language = $11, tags = $12, requirements = $13, objectives = $14, is_published = $15,
			updated_at = $16
		WHERE c.id = $1 AND c.teacher_id = $2
		RETURNING `+courseColumns,
		c.ID, c.TeacherID, c.Title, c.Description, c.Price, c.Category, c.Level, c.Duration, c.Thumbnail,
		c.VideoURL, c.Language, stringArray(c.Tags), stringArray(c.Requirements), stringArray(c.Objectives),
		c.IsPublished, c.UpdatedAt,
	)
	if err != nil {
		return lms.Course{}, trapNoRowsErr(err, lms.ErrNotFound, "updating course")
	}
	return row.toCourse(), nil
}

func (repo *lmsRepository) DeleteCourse(ctx context.Context, id, teacherID int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1 AND teacher_id = $2", id, teacherID)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return checkAffected(res, lms.ErrNotFound)
}

func (repo *lmsRepository) FilterCourses(ctx context.Context, filter lms.CourseFilter, ordering []core.DBOrdering) ([]lms.CourseSummary, error) {
	var where whereClause
	if filter.TeacherID != 0 {
		where.add("c.teacher_id = ?", filter.TeacherID)
	}
	if len(filter.IDs) > 0 {
		where.add("c.id = ANY(?)", intArray(filter.IDs))
	}
	if filter.PublishedOnly {
		where.add("c.is_published")
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where.add("(c.title ILIKE ? OR c.description ILIKE ?)", val, val)
	}
	if len(filter.Categories) > 0 {
		where.add("c.category = ANY(?)", pq.Array(filter.Categories))
	}
	if len(filter.Levels) > 0 {
		where.add("c.level = ANY(?)", pq.Array(filter.Levels))
	}

	q := `SELECT ` + courseColumns + `,
			COALESCE(e.n, 0) AS enrollment_count,
			COALESCE(r.rating, 0) AS average_rating
		FROM courses c
		LEFT JOIN (SELECT course_id, COUNT(*) AS n FROM enrollments GROUP BY course_id) e ON e.course_id = c.id
		LEFT JOIN (SELECT course_id, ROUND(AVG(rating), 1) AS rating FROM reviews GROUP BY course_id) r ON r.course_id = c.id` +
		where.String() + orderBy(ordering, courseOrderings, "c.created_at DESC")

	var rows []courseSummaryRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}

	courses := make([]lms.CourseSummary, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, lms.CourseSummary{
			Course:          r.toCourse(),
			EnrollmentCount: r.EnrollmentCount,
			AverageRating:   r.AverageRating,
		})
	}
	return courses, nil
}
