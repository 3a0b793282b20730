package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
)

// DB keeps every table behind a single lock so multi-table writes stay atomic.
type DB struct {
	mu  sync.RWMutex
	seq map[string]int

	users           map[int]user.User
	teacherProfiles map[int]lms.TeacherProfile
	studentProfiles map[int]lms.StudentProfile
	courses         map[int]lms.Course
	lessons         map[int]lms.Lesson
	enrollments     map[int]lms.Enrollment
	reviews         map[int]lms.Review
	payments        map[int]lms.Payment
	assignments     map[int]lms.Assignment
	submissions     map[int]lms.Submission
	quizzes         map[int]lms.Quiz
	attempts        map[int]lms.QuizAttempt
	notifications   map[int]lms.Notification
}

func Open() *DB {
	return &DB{
		seq:             make(map[string]int),
		users:           make(map[int]user.User),
		teacherProfiles: make(map[int]lms.TeacherProfile),
		studentProfiles: make(map[int]lms.StudentProfile),
		courses:         make(map[int]lms.Course),
		lessons:         make(map[int]lms.Lesson),
		enrollments:     make(map[int]lms.Enrollment),
		reviews:         make(map[int]lms.Review),
		payments:        make(map[int]lms.Payment),
		assignments:     make(map[int]lms.Assignment),
		submissions:     make(map[int]lms.Submission),
		quizzes:         make(map[int]lms.Quiz),
		attempts:        make(map[int]lms.QuizAttempt),
		notifications:   make(map[int]lms.Notification),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}

// TeacherProfileCount returns the number of teacher profiles of a user.
func (db *DB) TeacherProfileCount(userID int) int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int
	for _, p := range db.teacherProfiles {
		if p.UserID == userID {
			n++
		}
	}
	return n
}

// CourseCount returns the number of courses, published or not.
func (db *DB) CourseCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.courses)
}

// SubmissionCount returns the number of submissions of a student to an assignment.
func (db *DB) SubmissionCount(assignmentID, studentID int) int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int
	for _, s := range db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			n++
		}
	}
	return n
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return append([]string{}, ss...)
}

// comparator returns a negative number when a sorts before b, a positive one when after.
type comparator[T any] func(a, b T) int

// sortByOrdering sorts items by the allowed orderings, falling back to `fallback`.
func sortByOrdering[T any](items []T, ordering []core.DBOrdering, fields map[string]comparator[T], fallback comparator[T]) {
	allowed := make(map[string]string, len(fields))
	for f := range fields {
		allowed[f] = f
	}
	ords := core.FilterOrderings(ordering, allowed)

	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ords {
			c := fields[ord.Field](items[i], items[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return fallback(items[i], items[j]) < 0
	})
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
