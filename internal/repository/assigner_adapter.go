package repository

import (
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

// 以下方法让 Repository 满足 assigner 的 Source / SwapStore 接口，
// 仅做命名上的转接

func (r *Repository) SessionMetadata(sessionID int64) (*domain.ExamSession, error) {
	return r.GetExamSessionByID(sessionID)
}

func (r *Repository) Teachers() ([]*domain.Teacher, error) {
	return r.GetAllTeachers()
}

func (r *Repository) SessionTeachers(sessionID int64) ([]*domain.SessionTeacher, error) {
	return r.GetSessionTeachers(sessionID)
}

func (r *Repository) GradePriorities() (map[string]int32, error) {
	return r.GetGradePriorities()
}

func (r *Repository) Unavailabilities(sessionID int64) ([]*domain.Unavailability, error) {
	return r.GetUnavailabilities(sessionID)
}

func (r *Repository) ExamsForAssignment(sessionID int64) ([]*domain.Exam, error) {
	return r.GetExamsForAssignment(sessionID)
}

func (r *Repository) ExamOwnerIDs(sessionID int64, day, slot int32, room string) ([]int64, error) {
	return r.GetExamOwnerIDs(sessionID, day, slot, room)
}
