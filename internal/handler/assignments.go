package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/assigner"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

// RunAssignment 启动一次异步的监考分配
// 同一周期同一时刻只允许一次分配在跑，互斥由 redis 的 SetNX 锁保证，
// 求解结束后结果写入 redis，由 GetAssignmentResult 查询
func (h *Handler) RunAssignment(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	var req struct {
		Preset    string `json:"preset"`
		Overrides struct {
			OwnerPresence             *string `json:"ownerPresence" validate:"omitempty,oneof=disabled soft hard"`
			NoGaps                    *string `json:"noGaps" validate:"omitempty,oneof=disabled soft hard"`
			EqualByGrade              *string `json:"equalByGrade" validate:"omitempty,oneof=disabled hard"`
			ExemptUnavailableFromGaps *bool   `json:"exemptUnavailableFromGaps"`
			UnavailabilityPenalty     *int    `json:"unavailabilityPenalty" validate:"omitempty,min=1"`
			OwnerPresenceBonus        *int    `json:"ownerPresenceBonus" validate:"omitempty,min=0"`
			GapPenalty                *int    `json:"gapPenalty" validate:"omitempty,min=0"`
		} `json:"overrides"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	cfg, err := assigner.PresetConfig(req.Preset)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Overrides.OwnerPresence != nil {
		cfg.OwnerPresence = assigner.Mode(*req.Overrides.OwnerPresence)
	}
	if req.Overrides.NoGaps != nil {
		cfg.NoGaps = assigner.Mode(*req.Overrides.NoGaps)
	}
	if req.Overrides.EqualByGrade != nil {
		cfg.EqualByGrade = assigner.Mode(*req.Overrides.EqualByGrade)
	}
	if req.Overrides.ExemptUnavailableFromGaps != nil {
		cfg.ExemptUnavailableFromGaps = *req.Overrides.ExemptUnavailableFromGaps
	}
	if req.Overrides.UnavailabilityPenalty != nil {
		cfg.UnavailabilityPenalty = *req.Overrides.UnavailabilityPenalty
	}
	if req.Overrides.OwnerPresenceBonus != nil {
		cfg.OwnerPresenceBonus = *req.Overrides.OwnerPresenceBonus
	}
	if req.Overrides.GapPenalty != nil {
		cfg.GapPenalty = *req.Overrides.GapPenalty
	}

	// 抢占本周期的分配锁，锁的有效期取最坏情况下的总求解时长
	lockKey := fmt.Sprintf("assignment_%d_lock", session.ID)
	lockTTL := time.Duration((h.config.Solver.TimeBudget+h.config.Solver.ExtendedTimeBudget)*(h.config.Solver.MaxRelaxationRounds+1)) * time.Second

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Minute)
	defer cancel()

	acquired, err := h.redisClient.SetNX(ctx, lockKey, time.Now().Format(time.RFC3339), lockTTL).Result()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !acquired {
		h.errorResponse(w, r, "该周期的分配正在进行中，请稍后再试")
		return
	}

	resultCh := h.runner.ExecuteAssignment(session.ID, cfg)

	go func() {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Minute)
			defer cancel()
			if err := h.redisClient.Del(ctx, lockKey).Err(); err != nil {
				slog.Error("无法释放分配锁", "sessionID", session.ID, "error", err)
			}
		}()

		result := <-resultCh
		h.storeAssignmentResult(session.ID, result)

		if result.Status == assigner.StatusSuccess {
			h.notifyAssignedTeachers(session, result)
		}
	}()

	h.successResponse(w, r, "分配已开始，请稍后查询结果", nil)
}

func (h *Handler) storeAssignmentResult(sessionID int64, result *assigner.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("无法序列化分配结果", "sessionID", sessionID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Minute)
	defer cancel()

	resultKey := fmt.Sprintf("assignment_%d_result", sessionID)
	expiration := time.Duration(h.config.Solver.ResultExpiration) * time.Second
	if err := h.redisClient.Set(ctx, resultKey, data, expiration).Err(); err != nil {
		slog.Error("无法缓存分配结果", "sessionID", sessionID, "error", err)
	}
}

// notifyAssignedTeachers 向每一位拿到监考任务的教师发送通知邮件
func (h *Handler) notifyAssignedTeachers(session *domain.ExamSession, result *assigner.Result) {
	teachers, err := h.repository.GetAllTeachers()
	if err != nil {
		slog.Error("无法获取教师名册，跳过分配结果通知", "sessionID", session.ID, "error", err)
		return
	}

	emails := make(map[int64]string, len(teachers))
	for _, t := range teachers {
		emails[t.ID] = t.Email
	}

	for _, workload := range result.Workloads {
		if workload.Assigned == 0 {
			continue
		}

		email, ok := emails[workload.TeacherID]
		if !ok {
			continue
		}

		err := h.publishMailMessage(domain.MailMessage{
			Type: "assignment_published",
			To:   email,
			Data: domain.AssignmentMailData{
				FullName:     workload.FullName,
				SessionLabel: session.Label,
				Count:        int(workload.Assigned),
			},
		})
		if err != nil {
			slog.Error("无法发送通知邮件到消息队列", "teacherID", workload.TeacherID, "error", err)
		}
	}
}

func (h *Handler) GetAssignmentResult(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Minute)
	defer cancel()

	data, err := h.redisClient.Get(ctx, fmt.Sprintf("assignment_%d_result", session.ID)).Bytes()
	if err != nil {
		h.errorResponse(w, r, "暂无分配结果，可能尚未执行分配或结果已过期")
		return
	}

	var result assigner.Result
	if err := json.Unmarshal(data, &result); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取分配结果成功", result)
}

func (h *Handler) GetActiveAssignments(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value(ExamSessionCtx).(*domain.ExamSession)

	assignments, err := h.repository.GetActiveAssignments(session.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取监考任务成功", assignments)
}

// SwapAssignments 交换两个已落库监考任务的教师，交换前校验硬约束
func (h *Handler) SwapAssignments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssignmentID1 int64 `json:"assignmentID1" validate:"required"`
		AssignmentID2 int64 `json:"assignmentID2" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := assigner.Swap(h.repository, req.AssignmentID1, req.AssignmentID2)
	if err != nil {
		switch {
		case errors.Is(err, assigner.ErrAssignmentNotFound),
			errors.Is(err, assigner.ErrSwapDifferentSessions),
			errors.Is(err, assigner.ErrSwapSameTeacher):
			h.errorResponse(w, r, err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if !result.Swapped {
		h.writeJSON(w, r, http.StatusOK, Response{
			Success: false,
			Message: "换班不满足硬约束，已拒绝",
			Data:    result,
		})
		return
	}

	h.successResponse(w, r, "换班成功", result)
}
