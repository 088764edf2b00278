package assigner

import (
	"time"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

type Status string

const (
	StatusSuccess    Status = "SUCCESS"
	StatusInfeasible Status = "INFEASIBLE"
	StatusTimeout    Status = "TIMEOUT"
	StatusError      Status = "ERROR"
)

type AssignedTeacher struct {
	TeacherID int64  `json:"teacherID"`
	FullName  string `json:"fullName"`
	GradeCode string `json:"gradeCode"`
}

type ExamResult struct {
	Day                 int32             `json:"day"`
	Slot                int32             `json:"slot"`
	Room                string            `json:"room"`
	ExamDate            time.Time         `json:"examDate"`
	StartTime           string            `json:"startTime"`
	EndTime             string            `json:"endTime"`
	RequiredSupervisors int32             `json:"requiredSupervisors"`
	Teachers            []AssignedTeacher `json:"teachers"`
}

type TeacherWorkload struct {
	TeacherID int64  `json:"teacherID"`
	FullName  string `json:"fullName"`
	GradeCode string `json:"gradeCode"`
	Assigned  int32  `json:"assigned"`
	Quota     int32  `json:"quota"`
	// 配额为 0 时利用率为 0
	Utilization float64 `json:"utilization"`
	// 教师声明的不可用时段中最终被尊重（未被安排监考）的数量，
	// 作为下个周期的顺延配额依据
	HonoredUnavailabilities int32 `json:"honoredUnavailabilities"`
}

type RunMeta struct {
	SolveTimeMs      int64 `json:"solveTimeMs"`
	Optimal          bool  `json:"optimal"`
	TotalAssignments int32 `json:"totalAssignments"`
	RelaxedTeachers  int32 `json:"relaxedTeachers"`
	RelaxationRounds int32 `json:"relaxationRounds"`
	HardConstraints  int32 `json:"hardConstraints"`
	SolveAttempts    int32 `json:"solveAttempts"`
}

type Result struct {
	Status          Status            `json:"status"`
	Message         string            `json:"message"`
	CapacityDeficit int32             `json:"capacityDeficit,omitempty"`
	Exams           []ExamResult      `json:"exams,omitempty"`
	Workloads       []TeacherWorkload `json:"workloads,omitempty"`
	Meta            RunMeta           `json:"meta"`
}

// buildResult 把求解出的决策矩阵整理成结果包：
// 每个考场的监考名单、每位教师的负担和被尊重的不可用时段数
func buildResult(m *model, values []bool, meta RunMeta) *Result {
	p := m.problem

	result := &Result{
		Status:    StatusSuccess,
		Message:   "监考分配成功",
		Exams:     make([]ExamResult, 0, len(p.Exams)),
		Workloads: make([]TeacherWorkload, 0, len(p.Teachers)),
		Meta:      meta,
	}

	assignedCount := make([]int32, len(p.Teachers))

	for e, exam := range p.Exams {
		er := ExamResult{
			Day:                 exam.Day,
			Slot:                exam.Slot,
			Room:                exam.Room,
			ExamDate:            exam.ExamDate,
			StartTime:           exam.StartTime,
			EndTime:             exam.EndTime,
			RequiredSupervisors: exam.RequiredSupervisors,
			Teachers:            make([]AssignedTeacher, 0, exam.RequiredSupervisors),
		}

		for t, teacher := range p.Teachers {
			if !m.assigned(values, t, e) {
				continue
			}
			er.Teachers = append(er.Teachers, AssignedTeacher{
				TeacherID: teacher.ID,
				FullName:  teacher.FullName,
				GradeCode: teacher.GradeCode,
			})
			assignedCount[t]++
			result.Meta.TotalAssignments++
		}

		result.Exams = append(result.Exams, er)
	}

	for t, teacher := range p.Teachers {
		utilization := 0.0
		if teacher.Quota > 0 {
			utilization = float64(assignedCount[t]) / float64(teacher.Quota) * 100
		}

		result.Workloads = append(result.Workloads, TeacherWorkload{
			TeacherID:               teacher.ID,
			FullName:                teacher.FullName,
			GradeCode:               teacher.GradeCode,
			Assigned:                assignedCount[t],
			Quota:                   teacher.Quota,
			Utilization:             utilization,
			HonoredUnavailabilities: honoredUnavailabilities(m, values, t),
		})
	}

	return result
}

// honoredUnavailabilities 统计教师声明的不可用时段中真正空出来的数量
// 按 (day, slot) 计数，而不是按考场计数
func honoredUnavailabilities(m *model, values []bool, t int) int32 {
	p := m.problem

	violated := make(map[examKey]bool)
	for e, exam := range p.Exams {
		if p.IsUnavailable(t, e) && m.assigned(values, t, e) {
			violated[examKey{day: exam.Day, slot: exam.Slot}] = true
		}
	}

	var declared, broken int32
	for day := int32(1); day <= p.Session.NumDays; day++ {
		for slot := int32(1); slot <= p.Session.SlotsPerDay; slot++ {
			if !p.Unavailable[t][day-1][slot-1] {
				continue
			}
			declared++
			if violated[examKey{day: day, slot: slot}] {
				broken++
			}
		}
	}

	return declared - broken
}

// assignmentsFromModel 把决策矩阵展开成待持久化的监考任务行
func assignmentsFromModel(m *model, values []bool, sessionID int64) []*domain.Assignment {
	p := m.problem

	rows := make([]*domain.Assignment, 0)
	for e, exam := range p.Exams {
		for t, teacher := range p.Teachers {
			if !m.assigned(values, t, e) {
				continue
			}
			rows = append(rows, &domain.Assignment{
				SessionID: sessionID,
				TeacherID: teacher.ID,
				Day:       exam.Day,
				Slot:      exam.Slot,
				Room:      exam.Room,
				ExamDate:  exam.ExamDate,
				StartTime: exam.StartTime,
				EndTime:   exam.EndTime,
				IsActive:  true,
			})
		}
	}

	return rows
}

// WorkloadByTeacherID 便于调用方把负担信息回写到名册
func (r *Result) WorkloadByTeacherID() map[int64]TeacherWorkload {
	return lo.KeyBy(r.Workloads, func(w TeacherWorkload) int64 {
		return w.TeacherID
	})
}
