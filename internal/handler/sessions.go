package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/utils"
)

func (h *Handler) CreateExamSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label                string     `json:"label" validate:"required"`
		Description          string     `json:"description"`
		NumDays              int32      `json:"numDays" validate:"required,min=1"`
		SlotsPerDay          int32      `json:"slotsPerDay" validate:"required,min=1"`
		RegistrationDeadline *time.Time `json:"registrationDeadline"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	session := &domain.ExamSession{
		Label:                req.Label,
		Description:          req.Description,
		NumDays:              req.NumDays,
		SlotsPerDay:          req.SlotsPerDay,
		RegistrationDeadline: req.RegistrationDeadline,
	}

	if err := h.repository.CreateExamSession(session); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "exam_sessions_label_key":
			h.badRequest(w, r, errors.New("周期名称已存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "考试周期创建成功", session)
}

func (h *Handler) GetAllExamSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repository.GetAllExamSessions()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取考试周期列表成功", sessions)
}

func (h *Handler) GetExamSession(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)
	h.successResponse(w, r, "获取考试周期成功", session)
}

func (h *Handler) UpdateExamSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label                *string    `json:"label"`
		Description          *string    `json:"description"`
		NumDays              *int32     `json:"numDays" validate:"omitempty,min=1"`
		SlotsPerDay          *int32     `json:"slotsPerDay" validate:"omitempty,min=1"`
		RegistrationDeadline *time.Time `json:"registrationDeadline"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	if req.Label != nil {
		session.Label = *req.Label
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.NumDays != nil {
		session.NumDays = *req.NumDays
	}
	if req.SlotsPerDay != nil {
		session.SlotsPerDay = *req.SlotsPerDay
	}
	if req.RegistrationDeadline != nil {
		session.RegistrationDeadline = req.RegistrationDeadline
	}

	if err := h.repository.UpdateExamSession(session); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新考试周期失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新考试周期成功", session)
}

func (h *Handler) DeleteExamSession(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	if err := h.repository.DeleteExamSession(session.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除考试周期成功", nil)
}

// UploadExams 批量导入考试安排，同一逻辑考场按科目拆开的多行也原样入库，
// 求解时再由 assigner 去重
func (h *Handler) UploadExams(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	var req struct {
		Exams []struct {
			Day                 int32  `json:"day" validate:"required,min=1"`
			Slot                int32  `json:"slot" validate:"required,min=1"`
			Room                string `json:"room" validate:"required"`
			Subject             string `json:"subject" validate:"required"`
			OwnerID             *int64 `json:"ownerID"`
			RequiredSupervisors int32  `json:"requiredSupervisors" validate:"required,min=1"`
			ExamDate            string `json:"examDate" validate:"required"`
			StartTime           string `json:"startTime" validate:"required"`
			EndTime             string `json:"endTime" validate:"required"`
		} `json:"exams" validate:"required,min=1,dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	exams := make([]*domain.Exam, 0, len(req.Exams))
	for i, row := range req.Exams {
		if err := utils.ValidateSlotWithinSession(session, row.Day, row.Slot); err != nil {
			h.badRequest(w, r, fmt.Errorf("第 %d 行: %w", i+1, err))
			return
		}
		if err := utils.ValidateExamTimes(row.StartTime, row.EndTime); err != nil {
			h.badRequest(w, r, fmt.Errorf("第 %d 行: %w", i+1, err))
			return
		}

		examDate, err := time.Parse("2006-01-02", row.ExamDate)
		if err != nil {
			h.badRequest(w, r, fmt.Errorf("第 %d 行的考试日期格式错误", i+1))
			return
		}

		exams = append(exams, &domain.Exam{
			SessionID:           session.ID,
			Day:                 row.Day,
			Slot:                row.Slot,
			Room:                row.Room,
			Subject:             row.Subject,
			OwnerID:             row.OwnerID,
			RequiredSupervisors: row.RequiredSupervisors,
			ExamDate:            examDate,
			StartTime:           row.StartTime,
			EndTime:             row.EndTime,
		})
	}

	if err := h.repository.InsertExams(exams); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "exams_owner_id_fkey":
			h.badRequest(w, r, errors.New("存在出题教师不在名册中的考试行"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, fmt.Sprintf("成功导入 %d 行考试安排", len(exams)), nil)
}

func (h *Handler) DeleteExams(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	if err := h.repository.DeleteExamsBySessionID(session.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "清空考试安排成功", nil)
}

func (h *Handler) GetSessionEnrollments(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	enrollments, err := h.repository.GetSessionTeachers(session.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取报名列表成功", enrollments)
}

func (h *Handler) EnrollTeacher(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	var req struct {
		TeacherID    int64 `json:"teacherID" validate:"required"`
		Participates bool  `json:"participates"`
		Quota        int32 `json:"quota" validate:"min=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	enrollment := &domain.SessionTeacher{
		SessionID:    session.ID,
		TeacherID:    req.TeacherID,
		Participates: req.Participates,
		Quota:        req.Quota,
	}

	if err := h.repository.EnrollTeacher(enrollment); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "session_teachers_teacher_id_fkey":
			h.badRequest(w, r, errors.New("教师不在名册中"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "报名信息已保存", enrollment)
}

func (h *Handler) GetUnavailabilities(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	unavailabilities, err := h.repository.GetUnavailabilities(session.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取不可用时段成功", unavailabilities)
}

func (h *Handler) SubmitUnavailability(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	var req struct {
		TeacherID int64 `json:"teacherID" validate:"required"`
		Day       int32 `json:"day" validate:"required,min=1"`
		Slot      int32 `json:"slot" validate:"required,min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if !session.RegistrationOpen(time.Now()) {
		h.errorResponse(w, r, "不可用时段登记已截止")
		return
	}

	if err := utils.ValidateSlotWithinSession(session, req.Day, req.Slot); err != nil {
		h.badRequest(w, r, err)
		return
	}

	u := &domain.Unavailability{
		SessionID: session.ID,
		TeacherID: req.TeacherID,
		Day:       req.Day,
		Slot:      req.Slot,
	}

	if err := h.repository.InsertUnavailability(u); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "unavailabilities_teacher_id_fkey":
			h.badRequest(w, r, errors.New("教师不在名册中"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "不可用时段已登记", u)
}

func (h *Handler) DeleteUnavailability(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	var req struct {
		TeacherID int64 `json:"teacherID" validate:"required"`
		Day       int32 `json:"day" validate:"required,min=1"`
		Slot      int32 `json:"slot" validate:"required,min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if !session.RegistrationOpen(time.Now()) {
		h.errorResponse(w, r, "不可用时段登记已截止")
		return
	}

	if err := h.repository.DeleteUnavailability(session.ID, req.TeacherID, req.Day, req.Slot); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "不可用时段已删除", nil)
}
