package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-lms/core/lms"
)

// copyQuiz keeps callers from mutating the stored questions.
func copyQuiz(q lms.Quiz) lms.Quiz {
	questions := make([]lms.Question, len(q.Questions))
	for i, qn := range q.Questions {
		qn.Options = copyStrings(qn.Options)
		questions[i] = qn
	}
	q.Questions = questions
	return q
}

// setQuestions must be called with the write lock held.
func (db *DB) setQuestions(q *lms.Quiz, questions []lms.Question) {
	q.Questions = make([]lms.Question, 0, len(questions))
	for _, qn := range questions {
		qn.ID = db.nextID("questions")
		qn.QuizID = q.ID
		qn.Options = copyStrings(qn.Options)
		q.Questions = append(q.Questions, qn)
	}
	sort.SliceStable(q.Questions, func(i, j int) bool { return q.Questions[i].OrderIndex < q.Questions[j].OrderIndex })
}

func (repo *lmsRepository) CreateQuiz(_ context.Context, q lms.Quiz) (lms.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	q.ID = repo.db.nextID("quizzes")
	repo.db.setQuestions(&q, q.Questions)
	repo.db.quizzes[q.ID] = q
	return copyQuiz(q), nil
}

func (repo *lmsRepository) GetQuiz(_ context.Context, id, teacherID int) (lms.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.quizzes[id]; ok && q.TeacherID == teacherID {
		return copyQuiz(q), nil
	}
	return lms.Quiz{}, lms.ErrNotFound
}

func (repo *lmsRepository) GetQuizByID(_ context.Context, id int) (lms.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.quizzes[id]; ok {
		return copyQuiz(q), nil
	}
	return lms.Quiz{}, lms.ErrNotFound
}

func (repo *lmsRepository) UpdateQuiz(_ context.Context, q lms.Quiz) (lms.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.quizzes[q.ID]
	if !ok || orig.TeacherID != q.TeacherID {
		return lms.Quiz{}, lms.ErrNotFound
	}
	q.CourseID = orig.CourseID
	q.CreatedAt = orig.CreatedAt
	repo.db.setQuestions(&q, q.Questions)
	repo.db.quizzes[q.ID] = q
	return copyQuiz(q), nil
}

func (repo *lmsRepository) DeleteQuiz(_ context.Context, id, teacherID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if q, ok := repo.db.quizzes[id]; !ok || q.TeacherID != teacherID {
		return lms.ErrNotFound
	}
	delete(repo.db.quizzes, id)
	repo.db.cascadeQuiz(id)
	return nil
}

func (db *DB) cascadeQuiz(quizID int) {
	for id, a := range db.attempts {
		if a.QuizID == quizID {
			delete(db.attempts, id)
		}
	}
}

func (repo *lmsRepository) FilterQuizzes(_ context.Context, filter lms.QuizFilter) ([]lms.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]lms.Quiz, 0)
	for _, q := range repo.db.quizzes {
		if filter.TeacherID != 0 && q.TeacherID != filter.TeacherID {
			continue
		}
		if filter.CourseID != 0 && q.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != 0 && !repo.db.enrolled(q.CourseID, filter.StudentID) {
			continue
		}
		quizzes = append(quizzes, copyQuiz(q))
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if !quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt)
		}
		return quizzes[i].ID > quizzes[j].ID
	})
	return quizzes, nil
}

func (repo *lmsRepository) CreateQuizAttempt(_ context.Context, a lms.QuizAttempt, maxAttempts int) (lms.QuizAttempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.quizzes[a.QuizID]; !ok {
		return lms.QuizAttempt{}, lms.ErrNotFound
	}
	var n int
	for _, att := range repo.db.attempts {
		if att.QuizID == a.QuizID && att.StudentID == a.StudentID {
			n++
		}
	}
	if n >= maxAttempts {
		return lms.QuizAttempt{}, lms.ErrMaxAttempts
	}

	answers := make(map[int]string, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	a.ID = repo.db.nextID("quiz_attempts")
	repo.db.attempts[a.ID] = a
	return a, nil
}

func (repo *lmsRepository) FilterQuizAttempts(_ context.Context, quizID, studentID int) ([]lms.QuizAttempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]lms.QuizAttempt, 0)
	for _, a := range repo.db.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			attempts = append(attempts, a)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].ID < attempts[j].ID })
	return attempts, nil
}
