package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/masomo-lms/core/lms"
)

func (repo *lmsRepository) CreateAssignment(_ context.Context, a lms.Assignment) (lms.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.nextID("assignments")
	a.Attachments = copyStrings(a.Attachments)
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *lmsRepository) GetAssignment(_ context.Context, id, teacherID int) (lms.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok && a.TeacherID == teacherID {
		return a, nil
	}
	return lms.Assignment{}, lms.ErrNotFound
}

func (repo *lmsRepository) GetAssignmentByID(_ context.Context, id int) (lms.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return lms.Assignment{}, lms.ErrNotFound
}

func (repo *lmsRepository) UpdateAssignment(_ context.Context, a lms.Assignment) (lms.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok || orig.TeacherID != a.TeacherID {
		return lms.Assignment{}, lms.ErrNotFound
	}
	a.CourseID = orig.CourseID
	a.CreatedAt = orig.CreatedAt
	a.Attachments = copyStrings(a.Attachments)
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *lmsRepository) DeleteAssignment(_ context.Context, id, teacherID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if a, ok := repo.db.assignments[id]; !ok || a.TeacherID != teacherID {
		return lms.ErrNotFound
	}
	delete(repo.db.assignments, id)
	repo.db.cascadeAssignment(id)
	return nil
}

func (db *DB) cascadeAssignment(assignmentID int) {
	for id, s := range db.submissions {
		if s.AssignmentID == assignmentID {
			delete(db.submissions, id)
		}
	}
}

// enrolled must be called with the lock held.
func (db *DB) enrolled(courseID, studentID int) bool {
	for _, e := range db.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID {
			return true
		}
	}
	return false
}

func (repo *lmsRepository) FilterAssignments(_ context.Context, filter lms.AssignmentFilter) ([]lms.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assignments := make([]lms.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter.TeacherID != 0 && a.TeacherID != filter.TeacherID {
			continue
		}
		if filter.CourseID != 0 && a.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != 0 && !repo.db.enrolled(a.CourseID, filter.StudentID) {
			continue
		}
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].DueDate.Equal(assignments[j].DueDate) {
			return assignments[i].DueDate.Before(assignments[j].DueDate)
		}
		return assignments[i].ID < assignments[j].ID
	})
	return assignments, nil
}

func (repo *lmsRepository) UpsertSubmission(_ context.Context, sub lms.Submission) (lms.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, s := range repo.db.submissions {
		if s.AssignmentID != sub.AssignmentID || s.StudentID != sub.StudentID {
			continue
		}
		if s.Status == lms.SubmissionGraded {
			return lms.Submission{}, lms.ErrAlreadyGraded
		}
		s.Content = sub.Content
		s.Attachments = copyStrings(sub.Attachments)
		s.Status = sub.Status
		s.SubmittedAt = sub.SubmittedAt
		repo.db.submissions[id] = s
		return s, nil
	}

	sub.ID = repo.db.nextID("submissions")
	sub.Attachments = copyStrings(sub.Attachments)
	repo.db.submissions[sub.ID] = sub
	return sub, nil
}

// submissionDetail must be called with the lock held.
func (db *DB) submissionDetail(s lms.Submission) lms.SubmissionDetail {
	det := lms.SubmissionDetail{Submission: s}
	if a, ok := db.assignments[s.AssignmentID]; ok {
		det.AssignmentTitle = a.Title
		det.MaxPoints = a.MaxPoints
		det.CourseID = a.CourseID
		det.TeacherID = a.TeacherID
	}
	if sp, ok := db.studentProfiles[s.StudentID]; ok {
		det.StudentUserID = sp.UserID
		if u, ok := db.users[sp.UserID]; ok {
			det.StudentName = u.Name
			det.StudentEmail = u.Email
		}
	}
	return det
}

func (repo *lmsRepository) GetSubmission(_ context.Context, id, teacherID int) (lms.SubmissionDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return lms.SubmissionDetail{}, lms.ErrNotFound
	}
	det := repo.db.submissionDetail(s)
	if det.TeacherID != teacherID {
		return lms.SubmissionDetail{}, lms.ErrNotFound
	}
	return det, nil
}

func (repo *lmsRepository) GetStudentSubmission(_ context.Context, assignmentID, studentID int) (lms.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return s, nil
		}
	}
	return lms.Submission{}, lms.ErrNotFound
}

func (repo *lmsRepository) GradeSubmission(_ context.Context, id, teacherID int, grade float64, feedback string, gradedAt time.Time) (lms.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return lms.Submission{}, lms.ErrNotFound
	}
	if a, ok := repo.db.assignments[s.AssignmentID]; !ok || a.TeacherID != teacherID {
		return lms.Submission{}, lms.ErrNotFound
	}
	s.Grade.SetValid(grade)
	s.Feedback = feedback
	s.Status = lms.SubmissionGraded
	s.GradedAt.SetValid(gradedAt)
	repo.db.submissions[id] = s
	return s, nil
}

func (repo *lmsRepository) FilterSubmissions(_ context.Context, filter lms.SubmissionFilter) ([]lms.SubmissionDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]lms.SubmissionDetail, 0)
	for _, s := range repo.db.submissions {
		det := repo.db.submissionDetail(s)
		if filter.TeacherID != 0 && det.TeacherID != filter.TeacherID {
			continue
		}
		if filter.AssignmentID != 0 && s.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != 0 && s.StudentID != filter.StudentID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, s.Status) {
			continue
		}
		subs = append(subs, det)
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		}
		return subs[i].ID > subs[j].ID
	})
	return subs, nil
}

func containsStatus(statuses []lms.SubmissionStatus, s lms.SubmissionStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (repo *lmsRepository) CountPendingSubmissions(_ context.Context) ([]lms.PendingCount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byTeacher := make(map[int]int)
	for _, s := range repo.db.submissions {
		if !s.Status.IsPending() {
			continue
		}
		a, ok := repo.db.assignments[s.AssignmentID]
		if !ok {
			continue
		}
		if tp, ok := repo.db.teacherProfiles[a.TeacherID]; ok {
			byTeacher[tp.UserID]++
		}
	}

	counts := make([]lms.PendingCount, 0, len(byTeacher))
	for userID, n := range byTeacher {
		counts = append(counts, lms.PendingCount{TeacherUserID: userID, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].TeacherUserID < counts[j].TeacherUserID })
	return counts, nil
}
