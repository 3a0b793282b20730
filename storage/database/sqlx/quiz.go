package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core/lms"
)

const (
	quizColumns = `q.id, q.course_id, q.teacher_id, q.title, q.description, q.time_limit, q.passing_score,
	q.max_attempts, q.created_at, q.updated_at`

	questionColumns = "id, quiz_id, question, type, options, correct_answer, points, explanation, order_index"

	attemptColumns = `id, quiz_id, student_id, answers, score, max_score, percentage, passed, needs_review,
	submitted_at`
)

type quizRow struct {
	ID           int       `db:"id"`
	CourseID     int       `db:"course_id"`
	TeacherID    int       `db:"teacher_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	TimeLimit    null.Int  `db:"time_limit"`
	PassingScore int       `db:"passing_score"`
	MaxAttempts  int       `db:"max_attempts"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r quizRow) toQuiz() lms.Quiz {
	return lms.Quiz{
		ID:           r.ID,
		CourseID:     r.CourseID,
		TeacherID:    r.TeacherID,
		Title:        r.Title,
		Description:  r.Description,
		TimeLimit:    r.TimeLimit,
		PassingScore: r.PassingScore,
		MaxAttempts:  r.MaxAttempts,
		Questions:    []lms.Question{},
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type questionRow struct {
	ID            int            `db:"id"`
	QuizID        int            `db:"quiz_id"`
	Question      string         `db:"question"`
	Type          string         `db:"type"`
	Options       pq.StringArray `db:"options"`
	CorrectAnswer string         `db:"correct_answer"`
	Points        int            `db:"points"`
	Explanation   string         `db:"explanation"`
	OrderIndex    int            `db:"order_index"`
}

func (r questionRow) toQuestion() lms.Question {
	return lms.Question{
		ID:            r.ID,
		QuizID:        r.QuizID,
		Question:      r.Question,
		Type:          lms.QuestionType(r.Type),
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		Points:        r.Points,
		Explanation:   r.Explanation,
		OrderIndex:    r.OrderIndex,
	}
}

type attemptRow struct {
	ID          int            `db:"id"`
	QuizID      int            `db:"quiz_id"`
	StudentID   int            `db:"student_id"`
	Answers     types.JSONText `db:"answers"`
	Score       int            `db:"score"`
	MaxScore    int            `db:"max_score"`
	Percentage  float64        `db:"percentage"`
	Passed      bool           `db:"passed"`
	NeedsReview bool           `db:"needs_review"`
	SubmittedAt time.Time      `db:"submitted_at"`
}

func (r attemptRow) toAttempt() (lms.QuizAttempt, error) {
	a := lms.QuizAttempt{
		ID:          r.ID,
		QuizID:      r.QuizID,
		StudentID:   r.StudentID,
		Score:       r.Score,
		MaxScore:    r.MaxScore,
		Percentage:  r.Percentage,
		Passed:      r.Passed,
		NeedsReview: r.NeedsReview,
		SubmittedAt: r.SubmittedAt.UTC(),
	}
	if err := r.Answers.Unmarshal(&a.Answers); err != nil {
		return lms.QuizAttempt{}, errors.Wrap(err, "decoding answers")
	}
	return a, nil
}

// loadQuestions attaches their questions to the quizzes.
func loadQuestions(ctx context.Context, db sqlx.QueryerContext, quizzes []lms.Quiz) error {
	if len(quizzes) == 0 {
		return nil
	}
	ids := make([]int, 0, len(quizzes))
	byID := make(map[int]*lms.Quiz, len(quizzes))
	for i := range quizzes {
		ids = append(ids, quizzes[i].ID)
		byID[quizzes[i].ID] = &quizzes[i]
	}

	var rows []questionRow
	err := sqlx.SelectContext(ctx, db, &rows,
		"SELECT "+questionColumns+" FROM questions WHERE quiz_id = ANY($1) ORDER BY quiz_id, order_index, id",
		intArray(ids),
	)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	for _, r := range rows {
		if q, ok := byID[r.QuizID]; ok {
			q.Questions = append(q.Questions, r.toQuestion())
		}
	}
	return nil
}

func insertQuestions(ctx context.Context, tx *sqlx.Tx, quizID int, questions []lms.Question) error {
	for _, q := range questions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO questions (quiz_id, question, type, options, correct_answer, points, explanation, order_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			quizID, q.Question, q.Type, stringArray(q.Options), q.CorrectAnswer, q.Points, q.Explanation, q.OrderIndex,
		)
		if err != nil {
			return errors.Wrap(err, "inserting question")
		}
	}
	return nil
}

func (repo *lmsRepository) CreateQuiz(ctx context.Context, q lms.Quiz) (lms.Quiz, error) {
	var quiz lms.Quiz
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var row quizRow
		err := tx.GetContext(ctx, &row, `
			INSERT INTO quizzes AS q (course_id, teacher_id, title, description, time_limit, passing_score, max_attempts,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+quizColumns,
			q.CourseID, q.TeacherID, q.Title, q.Description, q.TimeLimit, q.PassingScore, q.MaxAttempts,
			q.CreatedAt, q.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "inserting quiz")
		}
		if err = insertQuestions(ctx, tx, row.ID, q.Questions); err != nil {
			return err
		}
		quizzes := []lms.Quiz{row.toQuiz()}
		if err = loadQuestions(ctx, tx, quizzes); err != nil {
			return err
		}
		quiz = quizzes[0]
		return nil
	})
	return quiz, err
}

func (repo *lmsRepository) getQuiz(ctx context.Context, where string, args ...interface{}) (lms.Quiz, error) {
	var row quizRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+quizColumns+" FROM quizzes q WHERE "+where, args...)
	if err != nil {
		return lms.Quiz{}, trapNoRowsErr(err, lms.ErrNotFound, "getting quiz")
	}
	quizzes := []lms.Quiz{row.toQuiz()}
	if err = loadQuestions(ctx, repo.db, quizzes); err != nil {
		return lms.Quiz{}, err
	}
	return quizzes[0], nil
}

func (repo *lmsRepository) GetQuiz(ctx context.Context, id, teacherID int) (lms.Quiz, error) {
	return repo.getQuiz(ctx, "q.id = $1 AND q.teacher_id = $2", id, teacherID)
}

func (repo *lmsRepository) GetQuizByID(ctx context.Context, id int) (lms.Quiz, error) {
	return repo.getQuiz(ctx, "q.id = $1", id)
}

func (repo *lmsRepository) UpdateQuiz(ctx context.Context, q lms.Quiz) (lms.Quiz, error) {
	var quiz lms.Quiz
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var row quizRow
		err := tx.GetContext(ctx, &row, `
			UPDATE quizzes AS q
			SET title = $3, description = $4, time_limit = $5, passing_score = $6, max_attempts = $7, updated_at = $8
			WHERE q.id = $1 AND q.teacher_id = $2
			RETURNING `+quizColumns,
			q.ID, q.TeacherID, q.Title, q.Description, q.TimeLimit, q.PassingScore, q.MaxAttempts, q.UpdatedAt,
		)
		if err != nil {
			return trapNoRowsErr(err, lms.ErrNotFound, "updating quiz")
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM questions WHERE quiz_id = $1", q.ID); err != nil {
			return errors.Wrap(err, "deleting questions")
		}
		if err = insertQuestions(ctx, tx, q.ID, q.Questions); err != nil {
			return err
		}
		quizzes := []lms.Quiz{row.toQuiz()}
		if err = loadQuestions(ctx, tx, quizzes); err != nil {
			return err
		}
		quiz = quizzes[0]
		return nil
	})
	return quiz, err
}

func (repo *lmsRepository) DeleteQuiz(ctx context.Context, id, teacherID int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM quizzes WHERE id = $1 AND teacher_id = $2", id, teacherID)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return checkAffected(res, lms.ErrNotFound)
}

func (repo *lmsRepository) FilterQuizzes(ctx context.Context, filter lms.QuizFilter) ([]lms.Quiz, error) {
	var where whereClause
	if filter.TeacherID != 0 {
		where.add("q.teacher_id = ?", filter.TeacherID)
	}
	if filter.CourseID != 0 {
		where.add("q.course_id = ?", filter.CourseID)
	}
	if filter.StudentID != 0 {
		where.add("q.course_id IN (SELECT course_id FROM enrollments WHERE student_id = ?)", filter.StudentID)
	}

	q := "SELECT " + quizColumns + " FROM quizzes q" + where.String() + " ORDER BY q.created_at DESC, q.id DESC"
	var rows []quizRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "filtering quizzes")
	}
	quizzes := make([]lms.Quiz, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, r.toQuiz())
	}
	if err := loadQuestions(ctx, repo.db, quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

// CreateQuizAttempt locks the quiz row so concurrent attempts of a student are counted one after the other.
func (repo *lmsRepository) CreateQuizAttempt(ctx context.Context, a lms.QuizAttempt, maxAttempts int) (lms.QuizAttempt, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return lms.QuizAttempt{}, errors.Wrap(err, "encoding answers")
	}

	var row attemptRow
	err = withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var quizID int
		if err := tx.GetContext(ctx, &quizID, "SELECT id FROM quizzes WHERE id = $1 FOR UPDATE", a.QuizID); err != nil {
			return trapNoRowsErr(err, lms.ErrNotFound, "locking quiz")
		}
		var n int
		err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2", a.QuizID, a.StudentID)
		if err != nil {
			return errors.Wrap(err, "counting attempts")
		}
		if n >= maxAttempts {
			return lms.ErrMaxAttempts
		}
		err = tx.GetContext(ctx, &row, `
			INSERT INTO quiz_attempts (quiz_id, student_id, answers, score, max_score, percentage, passed, needs_review,
				submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+attemptColumns,
			a.QuizID, a.StudentID, types.JSONText(answers), a.Score, a.MaxScore, a.Percentage, a.Passed, a.NeedsReview,
			a.SubmittedAt,
		)
		return errors.Wrap(err, "inserting attempt")
	})
	if err != nil {
		return lms.QuizAttempt{}, err
	}
	return row.toAttempt()
}

func (repo *lmsRepository) FilterQuizAttempts(ctx context.Context, quizID, studentID int) ([]lms.QuizAttempt, error) {
	var rows []attemptRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+attemptColumns+" FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2 ORDER BY submitted_at, id",
		quizID, studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	attempts := make([]lms.QuizAttempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAttempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
