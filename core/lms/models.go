package lms

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type (
	EnrollmentStatus string
	SubmissionStatus string
	PaymentStatus    string
	QuestionType     string
	NotificationType string
)

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentDropped   EnrollmentStatus = "DROPPED"

	SubmissionPending   SubmissionStatus = "PENDING"
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
	SubmissionLate      SubmissionStatus = "LATE"

	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"

	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionEssay          QuestionType = "ESSAY"

	NotificationGrade      NotificationType = "GRADE"
	NotificationEnrollment NotificationType = "ENROLLMENT"
	NotificationReminder   NotificationType = "REMINDER"
	NotificationSystem     NotificationType = "SYSTEM"
)

// IsPending reports whether a submission still waits for a grade.
func (s SubmissionStatus) IsPending() bool {
	return s == SubmissionSubmitted || s == SubmissionLate
}

type TeacherProfile struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	Bio           string    `json:"bio"`
	Expertise     string    `json:"expertise"`
	Qualification string    `json:"qualification"`
	Experience    int       `json:"experience"` // years
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type StudentProfile struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	Bio        string    `json:"bio"`
	GradeLevel string    `json:"grade_level"`
	Interests  []string  `json:"interests"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Course struct {
	ID            int       `json:"id"`
	TeacherID     int       `json:"teacher_id"` // TeacherProfile.ID
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	Category      string    `json:"category"`
	Level         string    `json:"level"`
	Duration      string    `json:"duration"`
	Thumbnail     string    `json:"thumbnail"`
	VideoURL      string    `json:"video_url"`
	Language      string    `json:"language"`
	Tags          []string  `json:"tags"`
	Requirements  []string  `json:"requirements"`
	Objectives    []string  `json:"objectives"`
	IsPublished   bool      `json:"is_published"`
	TotalLessons  int       `json:"total_lessons"`
	TotalDuration int       `json:"total_duration"` // minutes
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CourseSummary is a Course with its enrollment and review aggregates.
type CourseSummary struct {
	Course
	EnrollmentCount int     `json:"enrollment_count"`
	AverageRating   float64 `json:"average_rating"`
}

type CourseDetail struct {
	CourseSummary
	Lessons []Lesson `json:"lessons"`
}

type Lesson struct {
	ID          int       `json:"id"`
	CourseID    int       `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	VideoURL    string    `json:"video_url"`
	Duration    int       `json:"duration"` // minutes
	OrderIndex  int       `json:"order_index"`
	Resources   []string  `json:"resources"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Enrollment struct {
	ID          int              `json:"id"`
	StudentID   int              `json:"student_id"` // StudentProfile.ID
	CourseID    int              `json:"course_id"`
	Status      EnrollmentStatus `json:"status"`
	Progress    float64          `json:"progress"` // 0 - 100
	EnrolledAt  time.Time        `json:"enrolled_at"`
	CompletedAt null.Time        `json:"completed_at"`
}

// EnrollmentDetail is an Enrollment with the names teachers and students need to display it.
type EnrollmentDetail struct {
	Enrollment
	StudentUserID int    `json:"student_user_id"`
	StudentName   string `json:"student_name"`
	StudentEmail  string `json:"student_email"`
	CourseTitle   string `json:"course_title"`
	TeacherID     int    `json:"teacher_id"`
}

type Review struct {
	ID        int       `json:"id"`
	CourseID  int       `json:"course_id"`
	StudentID int       `json:"student_id"`
	Rating    int       `json:"rating"` // 1 - 5
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Assignment struct {
	ID                  int       `json:"id"`
	CourseID            int       `json:"course_id"`
	TeacherID           int       `json:"teacher_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Instructions        string    `json:"instructions"`
	DueDate             time.Time `json:"due_date"`
	MaxPoints           int       `json:"max_points"`
	Attachments         []string  `json:"attachments"`
	AllowLateSubmission bool      `json:"allow_late_submission"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Submission struct {
	ID           int              `json:"id"`
	AssignmentID int              `json:"assignment_id"`
	StudentID    int              `json:"student_id"`
	Content      string           `json:"content"`
	Attachments  []string         `json:"attachments"`
	Status       SubmissionStatus `json:"status"`
	Grade        null.Float64     `json:"grade"`
	Feedback     string           `json:"feedback"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	GradedAt     null.Time        `json:"graded_at"`
}

// SubmissionDetail is a Submission with its assignment and student.
type SubmissionDetail struct {
	Submission
	AssignmentTitle string `json:"assignment_title"`
	MaxPoints       int    `json:"max_points"`
	CourseID        int    `json:"course_id"`
	TeacherID       int    `json:"teacher_id"`
	StudentUserID   int    `json:"student_user_id"`
	StudentName     string `json:"student_name"`
	StudentEmail    string `json:"student_email"`
}

type Quiz struct {
	ID           int        `json:"id"`
	CourseID     int        `json:"course_id"`
	TeacherID    int        `json:"teacher_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	TimeLimit    null.Int   `json:"time_limit"` // minutes
	PassingScore int        `json:"passing_score"`
	MaxAttempts  int        `json:"max_attempts"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Question struct {
	ID            int          `json:"id"`
	QuizID        int          `json:"quiz_id"`
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Points        int          `json:"points"`
	Explanation   string       `json:"explanation,omitempty"`
	OrderIndex    int          `json:"order_index"`
}

type QuizAttempt struct {
	ID          int            `json:"id"`
	QuizID      int            `json:"quiz_id"`
	StudentID   int            `json:"student_id"`
	Answers     map[int]string `json:"answers"` // {questionID: answer}
	Score       int            `json:"score"`
	MaxScore    int            `json:"max_score"`
	Percentage  float64        `json:"percentage"`
	Passed      bool           `json:"passed"`
	NeedsReview bool           `json:"needs_review"` // essays are not auto-graded
	SubmittedAt time.Time      `json:"submitted_at"`
}

type Payment struct {
	ID        int           `json:"id"`
	StudentID int           `json:"student_id"`
	CourseID  int           `json:"course_id"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Status    PaymentStatus `json:"status"`
	Reference string        `json:"reference"`
	CreatedAt time.Time     `json:"created_at"`
}

type PaymentDetail struct {
	Payment
	StudentName string `json:"student_name"`
	CourseTitle string `json:"course_title"`
	TeacherID   int    `json:"teacher_id"`
}

type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// PendingCount is the number of submissions waiting for a grade from a teacher.
type PendingCount struct {
	TeacherUserID int
	Count         int
}
