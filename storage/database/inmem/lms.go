package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/lms"
)

var courseOrderings = map[string]comparator[lms.CourseSummary]{
	"id":               func(a, b lms.CourseSummary) int { return cmpInt(a.ID, b.ID) },
	"title":            func(a, b lms.CourseSummary) int { return strings.Compare(a.Title, b.Title) },
	"price":            func(a, b lms.CourseSummary) int { return cmpFloat(a.Price, b.Price) },
	"created_at":       func(a, b lms.CourseSummary) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"enrollment_count": func(a, b lms.CourseSummary) int { return cmpInt(a.EnrollmentCount, b.EnrollmentCount) },
	"average_rating":   func(a, b lms.CourseSummary) int { return cmpFloat(a.AverageRating, b.AverageRating) },
}

// newest first
func courseFallback(a, b lms.CourseSummary) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmpInt(b.ID, a.ID)
}

type lmsRepository struct {
	db *DB
}

var _ lms.Repository = (*lmsRepository)(nil)

func NewLMSRepository(db *DB) lms.Repository {
	return &lmsRepository{db: db}
}

func (repo *lmsRepository) GetOrCreateTeacherProfile(_ context.Context, userID int) (lms.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, p := range repo.db.teacherProfiles {
		if p.UserID == userID {
			return p, nil
		}
	}
	now := time.Now().UTC()
	p := lms.TeacherProfile{ID: repo.db.nextID("teacher_profiles"), UserID: userID, CreatedAt: now, UpdatedAt: now}
	repo.db.teacherProfiles[p.ID] = p
	return p, nil
}

func (repo *lmsRepository) GetTeacherProfile(_ context.Context, id int) (lms.TeacherProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.teacherProfiles[id]; ok {
		return p, nil
	}
	return lms.TeacherProfile{}, lms.ErrNotFound
}

func (repo *lmsRepository) UpdateTeacherProfile(_ context.Context, prof lms.TeacherProfile) (lms.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.teacherProfiles[prof.ID]
	if !ok {
		return lms.TeacherProfile{}, lms.ErrNotFound
	}
	orig.Bio = prof.Bio
	orig.Expertise = prof.Expertise
	orig.Qualification = prof.Qualification
	orig.Experience = prof.Experience
	orig.UpdatedAt = prof.UpdatedAt
	repo.db.teacherProfiles[orig.ID] = orig
	return orig, nil
}

func (repo *lmsRepository) GetOrCreateStudentProfile(_ context.Context, userID int) (lms.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, p := range repo.db.studentProfiles {
		if p.UserID == userID {
			return p, nil
		}
	}
	now := time.Now().UTC()
	p := lms.StudentProfile{
		ID:        repo.db.nextID("student_profiles"),
		UserID:    userID,
		Interests: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	repo.db.studentProfiles[p.ID] = p
	return p, nil
}

func (repo *lmsRepository) UpdateStudentProfile(_ context.Context, prof lms.StudentProfile) (lms.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.studentProfiles[prof.ID]
	if !ok {
		return lms.StudentProfile{}, lms.ErrNotFound
	}
	orig.Bio = prof.Bio
	orig.GradeLevel = prof.GradeLevel
	orig.Interests = copyStrings(prof.Interests)
	orig.UpdatedAt = prof.UpdatedAt
	repo.db.studentProfiles[orig.ID] = orig
	return orig, nil
}

func (repo *lmsRepository) CreateCourse(_ context.Context, c lms.Course) (lms.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = repo.db.nextID("courses")
	c.Tags = copyStrings(c.Tags)
	c.Requirements = copyStrings(c.Requirements)
	c.Objectives = copyStrings(c.Objectives)
	c.TotalLessons, c.TotalDuration = 0, 0
	repo.db.courses[c.ID] = c
	return c, nil
}

func (repo *lmsRepository) GetCourse(_ context.Context, id, teacherID int) (lms.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok && c.TeacherID == teacherID {
		return c, nil
	}
	return lms.Course{}, lms.ErrNotFound
}

func (repo *lmsRepository) GetPublishedCourse(_ context.Context, id int) (lms.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok && c.IsPublished {
		return c, nil
	}
	return lms.Course{}, lms.ErrNotFound
}

func (repo *lmsRepository) UpdateCourse(_ context.Context, c lms.Course) (lms.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok || orig.TeacherID != c.TeacherID {
		return lms.Course{}, lms.ErrNotFound
	}
	// counters are maintained by lesson writes only
	c.TotalLessons, c.TotalDuration = orig.TotalLessons, orig.TotalDuration
	c.CreatedAt = orig.CreatedAt
	c.Tags = copyStrings(c.Tags)
	c.Requirements = copyStrings(c.Requirements)
	c.Objectives = copyStrings(c.Objectives)
	repo.db.courses[c.ID] = c
	return c, nil
}

func (repo *lmsRepository) DeleteCourse(_ context.Context, id, teacherID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if c, ok := repo.db.courses[id]; !ok || c.TeacherID != teacherID {
		return lms.ErrNotFound
	}
	delete(repo.db.courses, id)
	repo.db.cascadeCourse(id)
	return nil
}

// cascadeCourse deletes the rows referencing a deleted course, like the ON DELETE CASCADE foreign keys do.
func (db *DB) cascadeCourse(courseID int) {
	for id, l := range db.lessons {
		if l.CourseID == courseID {
			delete(db.lessons, id)
		}
	}
	for id, e := range db.enrollments {
		if e.CourseID == courseID {
			delete(db.enrollments, id)
		}
	}
	for id, r := range db.reviews {
		if r.CourseID == courseID {
			delete(db.reviews, id)
		}
	}
	for id, p := range db.payments {
		if p.CourseID == courseID {
			delete(db.payments, id)
		}
	}
	for id, a := range db.assignments {
		if a.CourseID == courseID {
			delete(db.assignments, id)
			db.cascadeAssignment(id)
		}
	}
	for id, q := range db.quizzes {
		if q.CourseID == courseID {
			delete(db.quizzes, id)
			db.cascadeQuiz(id)
		}
	}
}

func (repo *lmsRepository) FilterCourses(_ context.Context, filter lms.CourseFilter, ordering []core.DBOrdering) ([]lms.CourseSummary, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]lms.CourseSummary, 0)
	for _, c := range repo.db.courses {
		if filter.TeacherID != 0 && c.TeacherID != filter.TeacherID {
			continue
		}
		if len(filter.IDs) > 0 && !containsInt(filter.IDs, c.ID) {
			continue
		}
		if filter.PublishedOnly && !c.IsPublished {
			continue
		}
		if filter.Search != "" && !containsFold(c.Title, filter.Search) && !containsFold(c.Description, filter.Search) {
			continue
		}
		if len(filter.Categories) > 0 && !containsString(filter.Categories, c.Category) {
			continue
		}
		if len(filter.Levels) > 0 && !containsString(filter.Levels, c.Level) {
			continue
		}
		courses = append(courses, repo.db.summarize(c))
	}
	sortByOrdering(courses, ordering, courseOrderings, courseFallback)
	return courses, nil
}

func (db *DB) summarize(c lms.Course) lms.CourseSummary {
	sum := lms.CourseSummary{Course: c}
	for _, e := range db.enrollments {
		if e.CourseID == c.ID {
			sum.EnrollmentCount++
		}
	}
	var ratings []int
	for _, r := range db.reviews {
		if r.CourseID == c.ID {
			ratings = append(ratings, r.Rating)
		}
	}
	sum.AverageRating = lms.AverageRating(ratings)
	return sum
}

// bumpCourseCounters must be called with the write lock held.
func (db *DB) bumpCourseCounters(courseID, teacherID, lessons, minutes int, now time.Time) error {
	c, ok := db.courses[courseID]
	if !ok || c.TeacherID != teacherID {
		return lms.ErrNotFound
	}
	c.TotalLessons = max(c.TotalLessons+lessons, 0)
	c.TotalDuration = max(c.TotalDuration+minutes, 0)
	c.UpdatedAt = now
	db.courses[courseID] = c
	return nil
}

func (repo *lmsRepository) CreateLesson(_ context.Context, l lms.Lesson, teacherID int) (lms.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.bumpCourseCounters(l.CourseID, teacherID, 1, l.Duration, l.CreatedAt); err != nil {
		return lms.Lesson{}, err
	}
	l.ID = repo.db.nextID("lessons")
	l.Resources = copyStrings(l.Resources)
	repo.db.lessons[l.ID] = l
	return l, nil
}

// ownedLesson must be called with the lock held.
func (db *DB) ownedLesson(id, teacherID int) (lms.Lesson, bool) {
	l, ok := db.lessons[id]
	if !ok {
		return lms.Lesson{}, false
	}
	c, ok := db.courses[l.CourseID]
	return l, ok && c.TeacherID == teacherID
}

func (repo *lmsRepository) GetLesson(_ context.Context, id, teacherID int) (lms.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if l, ok := repo.db.ownedLesson(id, teacherID); ok {
		return l, nil
	}
	return lms.Lesson{}, lms.ErrNotFound
}

func (repo *lmsRepository) UpdateLesson(_ context.Context, l lms.Lesson, teacherID int) (lms.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.ownedLesson(l.ID, teacherID)
	if !ok {
		return lms.Lesson{}, lms.ErrNotFound
	}
	if delta := l.Duration - orig.Duration; delta != 0 {
		if err := repo.db.bumpCourseCounters(orig.CourseID, teacherID, 0, delta, l.UpdatedAt); err != nil {
			return lms.Lesson{}, err
		}
	}
	l.CourseID = orig.CourseID
	l.CreatedAt = orig.CreatedAt
	l.Resources = copyStrings(l.Resources)
	repo.db.lessons[l.ID] = l
	return l, nil
}

func (repo *lmsRepository) DeleteLesson(_ context.Context, id, teacherID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l, ok := repo.db.ownedLesson(id, teacherID)
	if !ok {
		return lms.ErrNotFound
	}
	delete(repo.db.lessons, id)
	return repo.db.bumpCourseCounters(l.CourseID, teacherID, -1, -l.Duration, time.Now().UTC())
}

func (repo *lmsRepository) QueryLessons(_ context.Context, courseID int, publishedOnly bool) ([]lms.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lessons := make([]lms.Lesson, 0)
	for _, l := range repo.db.lessons {
		if l.CourseID == courseID && (!publishedOnly || l.IsPublished) {
			lessons = append(lessons, l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].OrderIndex != lessons[j].OrderIndex {
			return lessons[i].OrderIndex < lessons[j].OrderIndex
		}
		return lessons[i].ID < lessons[j].ID
	})
	return lessons, nil
}
