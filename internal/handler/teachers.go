package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

func (h *Handler) GetAllTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.repository.GetAllTeachers()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取教师名册成功", teachers)
}

func (h *Handler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName  string `json:"fullName" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		GradeCode string `json:"gradeCode" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	teacher := &domain.Teacher{
		FullName:  req.FullName,
		Email:     req.Email,
		GradeCode: req.GradeCode,
		IsActive:  true,
	}

	if err := h.repository.CreateTeacher(teacher); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "teachers_email_key":
			h.badRequest(w, r, errors.New("邮箱已存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "教师创建成功", teacher)
}

func (h *Handler) GetTeacher(w http.ResponseWriter, r *http.Request) {
	teacher := r.Context().Value(TeacherCtx).(*domain.Teacher)
	h.successResponse(w, r, "获取教师信息成功", teacher)
}

func (h *Handler) UpdateTeacher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName  *string `json:"fullName"`
		Email     *string `json:"email" validate:"omitempty,email"`
		GradeCode *string `json:"gradeCode"`
		IsActive  *bool   `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	teacher := r.Context().Value(TeacherCtx).(*domain.Teacher)

	if req.FullName != nil {
		teacher.FullName = *req.FullName
	}
	if req.Email != nil {
		teacher.Email = *req.Email
	}
	if req.GradeCode != nil {
		teacher.GradeCode = *req.GradeCode
	}
	if req.IsActive != nil {
		teacher.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateTeacher(teacher); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "teachers_email_key":
			h.badRequest(w, r, errors.New("邮箱已存在"))
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新教师信息失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新教师信息成功", teacher)
}

func (h *Handler) GetGradePriorities(w http.ResponseWriter, r *http.Request) {
	priorities, err := h.repository.GetGradePriorities()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取职称优先级成功", priorities)
}

func (h *Handler) UpsertGradePriority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GradeCode string `json:"gradeCode" validate:"required"`
		Priority  int32  `json:"priority" validate:"min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	gp := &domain.GradePriority{
		GradeCode: req.GradeCode,
		Priority:  req.Priority,
	}

	if err := h.repository.UpsertGradePriority(gp); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "设置职称优先级成功", gp)
}
