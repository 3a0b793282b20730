package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-lms/core/lms"
)

func (repo *lmsRepository) CreateEnrollment(_ context.Context, e lms.Enrollment, payment *lms.Payment) (lms.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.db.enrolled(e.CourseID, e.StudentID) {
		return lms.Enrollment{}, lms.ErrExists
	}
	if payment != nil {
		for _, p := range repo.db.payments {
			if p.Reference == payment.Reference {
				return lms.Enrollment{}, lms.ErrExists
			}
		}
		p := *payment
		p.ID = repo.db.nextID("payments")
		repo.db.payments[p.ID] = p
	}
	e.ID = repo.db.nextID("enrollments")
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *lmsRepository) GetEnrollment(_ context.Context, id, studentID int) (lms.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok && e.StudentID == studentID {
		return e, nil
	}
	return lms.Enrollment{}, lms.ErrNotFound
}

func (repo *lmsRepository) GetStudentEnrollment(_ context.Context, courseID, studentID int) (lms.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID {
			return e, nil
		}
	}
	return lms.Enrollment{}, lms.ErrNotFound
}

func (repo *lmsRepository) UpdateEnrollment(_ context.Context, e lms.Enrollment) (lms.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.enrollments[e.ID]
	if !ok || orig.StudentID != e.StudentID {
		return lms.Enrollment{}, lms.ErrNotFound
	}
	orig.Status = e.Status
	orig.Progress = e.Progress
	orig.CompletedAt = e.CompletedAt
	repo.db.enrollments[e.ID] = orig
	return orig, nil
}

func (repo *lmsRepository) FilterEnrollments(_ context.Context, filter lms.EnrollmentFilter) ([]lms.EnrollmentDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]lms.EnrollmentDetail, 0)
	for _, e := range repo.db.enrollments {
		c := repo.db.courses[e.CourseID]
		if filter.TeacherID != 0 && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.CourseID != 0 && e.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != 0 && e.StudentID != filter.StudentID {
			continue
		}
		det := lms.EnrollmentDetail{Enrollment: e, CourseTitle: c.Title, TeacherID: c.TeacherID}
		if sp, ok := repo.db.studentProfiles[e.StudentID]; ok {
			det.StudentUserID = sp.UserID
			u := repo.db.users[sp.UserID]
			det.StudentName, det.StudentEmail = u.Name, u.Email
		}
		enrollments = append(enrollments, det)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		if !enrollments[i].EnrolledAt.Equal(enrollments[j].EnrolledAt) {
			return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt)
		}
		return enrollments[i].ID > enrollments[j].ID
	})
	return enrollments, nil
}

func (repo *lmsRepository) UpsertReview(_ context.Context, rev lms.Review) (lms.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, r := range repo.db.reviews {
		if r.CourseID == rev.CourseID && r.StudentID == rev.StudentID {
			r.Rating = rev.Rating
			r.Comment = rev.Comment
			r.UpdatedAt = rev.UpdatedAt
			repo.db.reviews[id] = r
			return r, nil
		}
	}
	rev.ID = repo.db.nextID("reviews")
	repo.db.reviews[rev.ID] = rev
	return rev, nil
}

func (repo *lmsRepository) QueryReviews(_ context.Context, courseID int) ([]lms.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reviews := make([]lms.Review, 0)
	for _, r := range repo.db.reviews {
		if r.CourseID == courseID {
			reviews = append(reviews, r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].ID > reviews[j].ID })
	return reviews, nil
}

func (repo *lmsRepository) FilterPayments(_ context.Context, filter lms.PaymentFilter) ([]lms.PaymentDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	payments := make([]lms.PaymentDetail, 0)
	for _, p := range repo.db.payments {
		c := repo.db.courses[p.CourseID]
		if filter.TeacherID != 0 && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.CourseID != 0 && p.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != 0 && p.StudentID != filter.StudentID {
			continue
		}
		det := lms.PaymentDetail{Payment: p, CourseTitle: c.Title, TeacherID: c.TeacherID}
		if sp, ok := repo.db.studentProfiles[p.StudentID]; ok {
			det.StudentName = repo.db.users[sp.UserID].Name
		}
		payments = append(payments, det)
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID > payments[j].ID })
	return payments, nil
}
