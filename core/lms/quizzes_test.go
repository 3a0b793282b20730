package lms_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
)

func TestScoreAttempt(t *testing.T) {
	quiz := lms.Quiz{
		ID:           1,
		PassingScore: 70,
		Questions: []lms.Question{
			{ID: 1, Type: lms.QuestionMultipleChoice, Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris", Points: 2},
			{ID: 2, Type: lms.QuestionTrueFalse, CorrectAnswer: "true", Points: 1},
			{ID: 3, Type: lms.QuestionShortAnswer, CorrectAnswer: "newton", Points: 1},
			{ID: 4, Type: lms.QuestionEssay, Points: 6},
		},
	}

	tests := []struct {
		name        string
		answers     map[int]string
		wantScore   int
		wantPct     float64
		wantPassed  bool
		wantReview  bool
		wantAnswers int
	}{
		{
			name:        "no answers",
			answers:     map[int]string{},
			wantScore:   0,
			wantPct:     0,
			wantAnswers: 0,
		},
		{
			name:        "all auto-graded answers right",
			answers:     map[int]string{1: "Paris", 2: "TRUE", 3: " Newton "},
			wantScore:   4,
			wantPct:     40,
			wantAnswers: 3,
		},
		{
			name:        "multiple choice is case sensitive",
			answers:     map[int]string{1: "paris", 2: "false"},
			wantScore:   0,
			wantPct:     0,
			wantAnswers: 2,
		},
		{
			name:        "essays need a review",
			answers:     map[int]string{1: "Paris", 4: "Long text", 99: "unknown question"},
			wantScore:   2,
			wantPct:     20,
			wantReview:  true,
			wantAnswers: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lms.ScoreAttempt(quiz, tt.answers)
			assert.Equal(t, quiz.ID, got.QuizID)
			assert.Equal(t, 10, got.MaxScore)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantPct, got.Percentage)
			assert.Equal(t, tt.wantPassed, got.Passed)
			assert.Equal(t, tt.wantReview, got.NeedsReview)
			assert.Len(t, got.Answers, tt.wantAnswers)
		})
	}

	passing := lms.Quiz{PassingScore: 50, Questions: []lms.Question{
		{ID: 1, Type: lms.QuestionTrueFalse, CorrectAnswer: "false", Points: 1},
		{ID: 2, Type: lms.QuestionTrueFalse, CorrectAnswer: "true", Points: 2},
	}}
	got := lms.ScoreAttempt(passing, map[int]string{2: "true"})
	assert.Equal(t, 66.7, got.Percentage)
	assert.True(t, got.Passed)
}

func TestQuizData_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	data := lms.QuizData{
		Title: " Mechanics ",
		Questions: []lms.QuestionData{
			{Question: "Is g about 9.8?", Type: lms.QuestionTrueFalse, CorrectAnswer: "True"},
			{Question: "Pick one", Type: lms.QuestionMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: "c"},
		},
	}
	err := data.Validate(validate)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "questions[1]", verr.Fields[0].Field)

	assert.Equal(t, "Mechanics", data.Title)
	assert.Equal(t, 70, data.PassingScore)
	assert.Equal(t, 1, data.MaxAttempts)
	assert.Equal(t, "true", data.Questions[0].CorrectAnswer)
	assert.Equal(t, []string{"true", "false"}, data.Questions[0].Options)
	assert.Equal(t, 1, data.Questions[0].Points)

	data.Questions[1].CorrectAnswer = "b"
	assert.NoError(t, data.Validate(validate))
}

func TestService_AttemptQuiz(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	outsider := f.createUser(t, "Outsider", "outsider@test.cd", user.RoleStudent)
	c := f.createCourse(t, teacher, "Physics", 0, true)
	f.enroll(t, student, c.ID)

	quiz, err := f.svc.CreateQuiz(ctx, teacher, lms.QuizData{
		CourseID:     c.ID,
		Title:        "Mechanics",
		PassingScore: 50,
		MaxAttempts:  2,
		Questions: []lms.QuestionData{
			{Question: "Is g about 9.8?", Type: lms.QuestionTrueFalse, CorrectAnswer: "true", Options: []string{"true", "false"}, Points: 1},
			{Question: "Unit of force?", Type: lms.QuestionShortAnswer, CorrectAnswer: "newton", Points: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	q1, q2 := quiz.Questions[0].ID, quiz.Questions[1].ID

	quizzes, err := f.svc.StudentQuizzes(ctx, student)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	for _, q := range quizzes[0].Questions {
		assert.Empty(t, q.CorrectAnswer, "answers are hidden from students")
	}

	_, err = f.svc.AttemptQuiz(ctx, outsider, quiz.ID, lms.AttemptData{Answers: map[int]string{q1: "true"}})
	assert.True(t, core.IsNotFoundError(err))

	attempt, err := f.svc.AttemptQuiz(ctx, student, quiz.ID, lms.AttemptData{Answers: map[int]string{q1: "true", q2: "joule"}})
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.Score)
	assert.Equal(t, 50.0, attempt.Percentage)
	assert.True(t, attempt.Passed)

	_, err = f.svc.AttemptQuiz(ctx, student, quiz.ID, lms.AttemptData{Answers: map[int]string{q1: "true", q2: "Newton"}})
	require.NoError(t, err)

	_, err = f.svc.AttemptQuiz(ctx, student, quiz.ID, lms.AttemptData{Answers: map[int]string{q1: "true"}})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, lms.ErrMaxAttempts, verr.Err)

	attempts, err := f.svc.QuizAttempts(ctx, student, quiz.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 100.0, attempts[1].Percentage)
}
