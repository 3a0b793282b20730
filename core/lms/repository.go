package lms

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
)

var (
	// errors
	ErrNotFound    = errors.New("record not found")
	ErrExists      = errors.New("record already exists")
	ErrMaxAttempts = errors.New("maximum number of attempts reached")
)

type (
	CourseFilter struct {
		TeacherID     int      `query:"-"`
		IDs           []int    `query:"-"`
		PublishedOnly bool     `query:"-"`
		Search        string   `query:"search"`
		Categories    []string `query:"category"`
		Levels        []string `query:"level"`
	}

	AssignmentFilter struct {
		TeacherID int
		CourseID  int
		StudentID int // assignments of the courses the student is enrolled in
	}

	SubmissionFilter struct {
		TeacherID    int
		AssignmentID int
		StudentID    int
		Statuses     []SubmissionStatus
	}

	QuizFilter struct {
		TeacherID int
		CourseID  int
		StudentID int // quizzes of the courses the student is enrolled in
	}

	EnrollmentFilter struct {
		TeacherID int
		CourseID  int
		StudentID int
	}

	PaymentFilter struct {
		TeacherID int
		CourseID  int
		StudentID int
	}
)

func (cf *CourseFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
	cf.Categories = core.CleanStrings(cf.Categories)
	cf.Levels = core.CleanStrings(cf.Levels)
}

type (
	// ProfileRepository auto-provisions profiles: GetOrCreate* inserts the profile when missing,
	// at most once per user even under concurrent calls.
	ProfileRepository interface {
		GetOrCreateTeacherProfile(ctx context.Context, userID int) (TeacherProfile, error)
		GetTeacherProfile(ctx context.Context, id int) (TeacherProfile, error)
		UpdateTeacherProfile(ctx context.Context, prof TeacherProfile) (TeacherProfile, error)
		GetOrCreateStudentProfile(ctx context.Context, userID int) (StudentProfile, error)
		UpdateStudentProfile(ctx context.Context, prof StudentProfile) (StudentProfile, error)
	}

	// The teacherID argument of CourseRepository, LessonRepository, AssignmentRepository, SubmissionRepository
	// and QuizRepository methods restricts the statement to the rows owned by that teacher:
	// a row owned by someone else is reported as ErrNotFound.

	CourseRepository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id, teacherID int) (Course, error)
		GetPublishedCourse(ctx context.Context, id int) (Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id, teacherID int) error
		FilterCourses(ctx context.Context, filter CourseFilter, ordering []core.DBOrdering) ([]CourseSummary, error)
	}

	LessonRepository interface {
		// CreateLesson inserts the lesson and updates its course's lesson count and duration atomically.
		CreateLesson(ctx context.Context, l Lesson, teacherID int) (Lesson, error)
		GetLesson(ctx context.Context, id, teacherID int) (Lesson, error)
		// UpdateLesson saves the lesson and adjusts its course's duration atomically.
		UpdateLesson(ctx context.Context, l Lesson, teacherID int) (Lesson, error)
		// DeleteLesson deletes the lesson and updates its course's lesson count and duration atomically.
		DeleteLesson(ctx context.Context, id, teacherID int) error
		QueryLessons(ctx context.Context, courseID int, publishedOnly bool) ([]Lesson, error)
	}

	AssignmentRepository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id, teacherID int) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id int) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id, teacherID int) error
		FilterAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	}

	SubmissionRepository interface {
		// UpsertSubmission creates the student's submission to an assignment or replaces its content.
		// A graded submission is never replaced: ErrAlreadyGraded is returned instead.
		UpsertSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, id, teacherID int) (SubmissionDetail, error)
		GetStudentSubmission(ctx context.Context, assignmentID, studentID int) (Submission, error)
		// GradeSubmission records the grade on the existing submission row.
		GradeSubmission(ctx context.Context, id, teacherID int, grade float64, feedback string, gradedAt time.Time) (Submission, error)
		FilterSubmissions(ctx context.Context, filter SubmissionFilter) ([]SubmissionDetail, error)
		CountPendingSubmissions(ctx context.Context) ([]PendingCount, error)
	}

	QuizRepository interface {
		// CreateQuiz inserts the quiz with its questions atomically.
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		GetQuiz(ctx context.Context, id, teacherID int) (Quiz, error)
		GetQuizByID(ctx context.Context, id int) (Quiz, error)
		// UpdateQuiz saves the quiz and replaces its questions atomically.
		UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id, teacherID int) error
		FilterQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error)
		// CreateQuizAttempt records the attempt unless the student already made maxAttempts attempts,
		// in which case ErrMaxAttempts is returned.
		CreateQuizAttempt(ctx context.Context, a QuizAttempt, maxAttempts int) (QuizAttempt, error)
		FilterQuizAttempts(ctx context.Context, quizID, studentID int) ([]QuizAttempt, error)
	}

	EnrollmentRepository interface {
		// CreateEnrollment inserts the enrollment, and the payment when not nil, atomically.
		// ErrExists is returned when the student is already enrolled in the course.
		CreateEnrollment(ctx context.Context, e Enrollment, payment *Payment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id, studentID int) (Enrollment, error)
		GetStudentEnrollment(ctx context.Context, courseID, studentID int) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		FilterEnrollments(ctx context.Context, filter EnrollmentFilter) ([]EnrollmentDetail, error)
		// UpsertReview creates the student's review of a course or replaces its rating and comment.
		UpsertReview(ctx context.Context, r Review) (Review, error)
		QueryReviews(ctx context.Context, courseID int) ([]Review, error)
		FilterPayments(ctx context.Context, filter PaymentFilter) ([]PaymentDetail, error)
	}

	NotificationRepository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotification(ctx context.Context, id, userID int) (Notification, error)
		MarkNotificationRead(ctx context.Context, id, userID int) (Notification, error)
		QueryNotifications(ctx context.Context, userID int, unreadOnly bool) ([]Notification, error)
	}

	Repository interface {
		ProfileRepository
		CourseRepository
		LessonRepository
		AssignmentRepository
		SubmissionRepository
		QuizRepository
		EnrollmentRepository
		NotificationRepository
	}
)
