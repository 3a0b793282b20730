package lms

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
)

const (
	defaultPassingScore = 70
	defaultMaxAttempts  = 1
)

type QuestionData struct {
	Question      string       `json:"question" validate:"notblank"`
	Type          QuestionType `json:"type" validate:"oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER ESSAY"`
	Options       []string     `json:"options" validate:"max=10,dive,max=500"`
	CorrectAnswer string       `json:"correct_answer" validate:"max=500"`
	Points        int          `json:"points" validate:"min=1,max=100"`
	Explanation   string       `json:"explanation"`
}

// QuizData contains the information a teacher provides to create or replace a Quiz.
// CourseID is ignored on update.
type QuizData struct {
	CourseID     int            `json:"course_id"`
	Title        string         `json:"title" validate:"notblank,max=255"`
	Description  string         `json:"description"`
	TimeLimit    *int           `json:"time_limit" validate:"omitempty,min=1"`
	PassingScore int            `json:"passing_score" validate:"min=1,max=100"`
	MaxAttempts  int            `json:"max_attempts" validate:"min=1,max=100"`
	Questions    []QuestionData `json:"questions" validate:"required,min=1,max=200,dive"`
}

func (qd *QuizData) Validate(validate *validator.Validate) error {
	qd.Title = core.CleanString(qd.Title)
	qd.Description = core.CleanString(qd.Description)
	if qd.PassingScore == 0 {
		qd.PassingScore = defaultPassingScore
	}
	if qd.MaxAttempts == 0 {
		qd.MaxAttempts = defaultMaxAttempts
	}
	for i := range qd.Questions {
		q := &qd.Questions[i]
		q.Question = core.CleanString(q.Question)
		q.Options = core.CleanStrings(q.Options)
		q.CorrectAnswer = core.CleanString(q.CorrectAnswer)
		q.Explanation = core.CleanString(q.Explanation)
		if q.Points == 0 {
			q.Points = 1
		}
		if q.Type == QuestionTrueFalse {
			q.CorrectAnswer = strings.ToLower(q.CorrectAnswer)
			q.Options = []string{"true", "false"}
		}
	}

	if err := validate.Struct(qd); err != nil {
		return err
	}

	var fields []core.FieldError
	for i, q := range qd.Questions {
		if msg := checkQuestion(q); msg != "" {
			fields = append(fields, core.FieldError{Field: fmt.Sprintf("questions[%d]", i), Error: msg})
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(errors.New("invalid questions"), fields...)
	}
	return nil
}

func checkQuestion(q QuestionData) string {
	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return "a multiple choice question needs at least 2 options"
		}
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				return ""
			}
		}
		return "the correct answer must be one of the options"
	case QuestionTrueFalse:
		if q.CorrectAnswer != "true" && q.CorrectAnswer != "false" {
			return "the correct answer must be true or false"
		}
	case QuestionShortAnswer:
		if q.CorrectAnswer == "" {
			return "a short answer question needs a correct answer"
		}
	}
	return ""
}

func (qd QuizData) apply(q *Quiz) {
	q.Title = qd.Title
	q.Description = qd.Description
	q.TimeLimit = null.IntFromPtr(qd.TimeLimit)
	q.PassingScore = qd.PassingScore
	q.MaxAttempts = qd.MaxAttempts
	q.Questions = make([]Question, len(qd.Questions))
	for i, data := range qd.Questions {
		q.Questions[i] = Question{
			QuizID:        q.ID,
			Question:      data.Question,
			Type:          data.Type,
			Options:       data.Options,
			CorrectAnswer: data.CorrectAnswer,
			Points:        data.Points,
			Explanation:   data.Explanation,
			OrderIndex:    i,
		}
	}
}

func (svc *Service) CreateQuiz(ctx context.Context, ident auth.Identity, data QuizData) (Quiz, error) {
	c, err := svc.OwnedCourse(ctx, ident, data.CourseID)
	if err != nil {
		return Quiz{}, err
	}
	now := svc.nowFunc()
	q := Quiz{CourseID: c.ID, TeacherID: c.TeacherID, CreatedAt: now, UpdatedAt: now}
	data.apply(&q)
	return svc.repo.CreateQuiz(ctx, q)
}

// UpdateQuiz replaces a quiz previously obtained through OwnedQuiz along with all of its questions.
func (svc *Service) UpdateQuiz(ctx context.Context, q Quiz, data QuizData) (Quiz, error) {
	data.apply(&q)
	q.UpdatedAt = svc.nowFunc()
	updated, err := svc.repo.UpdateQuiz(ctx, q)
	if err != nil {
		return Quiz{}, notFound(err, KindQuiz, q.ID)
	}
	return updated, nil
}

func (svc *Service) DeleteQuiz(ctx context.Context, q Quiz) error {
	if err := svc.repo.DeleteQuiz(ctx, q.ID, q.TeacherID); err != nil {
		return notFound(err, KindQuiz, q.ID)
	}
	return nil
}

func (svc *Service) TeacherQuizzes(ctx context.Context, ident auth.Identity, courseID int) ([]Quiz, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterQuizzes(ctx, QuizFilter{TeacherID: prof.ID, CourseID: courseID})
}

// StudentQuizzes lists the quizzes of the courses the student is enrolled in, without their answers.
func (svc *Service) StudentQuizzes(ctx context.Context, ident auth.Identity) ([]Quiz, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	quizzes, err := svc.repo.FilterQuizzes(ctx, QuizFilter{StudentID: prof.ID})
	if err != nil {
		return nil, err
	}
	for i := range quizzes {
		quizzes[i].hideAnswers()
	}
	return quizzes, nil
}

func (q *Quiz) hideAnswers() {
	for i := range q.Questions {
		q.Questions[i].CorrectAnswer = ""
		q.Questions[i].Explanation = ""
	}
}

type AttemptData struct {
	Answers map[int]string `json:"answers" validate:"required"` // {questionID: answer}
}

func (ad *AttemptData) Validate(validate *validator.Validate) error {
	for id, ans := range ad.Answers {
		ad.Answers[id] = core.CleanString(ans)
	}
	return validate.Struct(ad)
}

// AttemptQuiz scores the student's answers to a quiz of one of their courses and records the attempt.
func (svc *Service) AttemptQuiz(ctx context.Context, ident auth.Identity, quizID int, data AttemptData) (QuizAttempt, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return QuizAttempt{}, err
	}
	q, err := svc.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return QuizAttempt{}, notFound(err, KindQuiz, quizID)
	}
	if _, err = svc.repo.GetStudentEnrollment(ctx, q.CourseID, prof.ID); err != nil {
		return QuizAttempt{}, notFound(err, KindQuiz, quizID)
	}

	attempt := ScoreAttempt(q, data.Answers)
	attempt.StudentID = prof.ID
	attempt.SubmittedAt = svc.nowFunc()

	attempt, err = svc.repo.CreateQuizAttempt(ctx, attempt, q.MaxAttempts)
	if errors.Cause(err) == ErrMaxAttempts {
		return QuizAttempt{}, core.NewValidationError(ErrMaxAttempts)
	}
	return attempt, err
}

func (svc *Service) QuizAttempts(ctx context.Context, ident auth.Identity, quizID int) ([]QuizAttempt, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterQuizAttempts(ctx, quizID, prof.ID)
}

// ScoreAttempt grades the answers to the quiz questions. Answers to unknown questions are dropped.
// Essay questions count towards the maximum score but need a manual review.
func ScoreAttempt(q Quiz, answers map[int]string) QuizAttempt {
	attempt := QuizAttempt{QuizID: q.ID, Answers: make(map[int]string, len(q.Questions))}
	for _, question := range q.Questions {
		attempt.MaxScore += question.Points
		ans, ok := answers[question.ID]
		if !ok {
			continue
		}
		attempt.Answers[question.ID] = ans

		switch question.Type {
		case QuestionEssay:
			attempt.NeedsReview = true
		case QuestionMultipleChoice:
			if ans == question.CorrectAnswer {
				attempt.Score += question.Points
			}
		default:
			if strings.EqualFold(strings.TrimSpace(ans), question.CorrectAnswer) {
				attempt.Score += question.Points
			}
		}
	}
	if attempt.MaxScore > 0 {
		attempt.Percentage = math.Round(float64(attempt.Score)/float64(attempt.MaxScore)*1000) / 10
	}
	attempt.Passed = attempt.Percentage >= float64(q.PassingScore)
	return attempt
}
