package assigner

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

var (
	// ErrAssignmentNotFound: 指定的监考任务不存在或已被作废
	ErrAssignmentNotFound = errors.New("监考任务不存在")
	// ErrSwapDifferentSessions: 只能交换同一考试周期内的任务
	ErrSwapDifferentSessions = errors.New("两个监考任务不属于同一考试周期")
	// ErrSwapSameTeacher: 同一位教师的两个任务交换没有意义
	ErrSwapSameTeacher = errors.New("两个监考任务属于同一位教师")
)

// SwapStore: 换班校验所需的持久化事实，由 repository 实现
// 校验直接基于库中的归属/不可用/冲突记录，不重新调用优化模型
type SwapStore interface {
	GetAssignmentByID(id int64) (*domain.Assignment, error)
	ExamOwnerIDs(sessionID int64, day, slot int32, room string) ([]int64, error)
	IsTeacherUnavailable(sessionID, teacherID int64, day, slot int32) (bool, error)
	HasOtherActiveAssignment(sessionID, teacherID int64, day, slot int32, excludeAssignmentID int64) (bool, error)
	// ExchangeAssignmentTeachers 在一个事务内交换两行的教师，要么都成功要么都不动
	ExchangeAssignmentTeachers(a, b *domain.Assignment) error
}

const (
	SwapRuleOwnership      = "ownership"
	SwapRuleUnavailability = "unavailability"
	SwapRuleConflict       = "conflict"
)

type SwapViolation struct {
	Rule      string `json:"rule"`
	TeacherID int64  `json:"teacherID"`
	Day       int32  `json:"day"`
	Slot      int32  `json:"slot"`
	Room      string `json:"room"`
	Message   string `json:"message"`
}

type SwapResult struct {
	Swapped    bool            `json:"swapped"`
	Violations []SwapViolation `json:"violations,omitempty"`
}

// Swap 校验并执行两个监考任务的教师交换
// 两个交换方向各自独立检查：归属 -> 不可用 -> 冲突，单方向内发现
// 违规即短路；只要任一方向违规就不做任何修改，返回完整的违规列表
func Swap(store SwapStore, id1, id2 int64) (*SwapResult, error) {
	a, err := loadActiveAssignment(store, id1)
	if err != nil {
		return nil, err
	}
	b, err := loadActiveAssignment(store, id2)
	if err != nil {
		return nil, err
	}

	if a.SessionID != b.SessionID {
		return nil, ErrSwapDifferentSessions
	}
	if a.TeacherID == b.TeacherID {
		return nil, ErrSwapSameTeacher
	}

	violations := make([]SwapViolation, 0)

	// a 的教师接手 b 的考场，b 的教师接手 a 的考场
	vs, err := checkIncoming(store, a.TeacherID, a.ID, b)
	if err != nil {
		return nil, err
	}
	violations = append(violations, vs...)

	vs, err = checkIncoming(store, b.TeacherID, b.ID, a)
	if err != nil {
		return nil, err
	}
	violations = append(violations, vs...)

	if len(violations) > 0 {
		return &SwapResult{Swapped: false, Violations: violations}, nil
	}

	if err := store.ExchangeAssignmentTeachers(a, b); err != nil {
		return nil, err
	}

	return &SwapResult{Swapped: true}, nil
}

func loadActiveAssignment(store SwapStore, id int64) (*domain.Assignment, error) {
	assignment, err := store.GetAssignmentByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%d", ErrAssignmentNotFound, id)
		}
		return nil, err
	}
	if !assignment.IsActive {
		return nil, fmt.Errorf("%w: id=%d", ErrAssignmentNotFound, id)
	}
	return assignment, nil
}

// checkIncoming 检查一位教师接手目标考场是否破坏硬性不变量
// leavingID 是该教师换出去的那一行，冲突检查时要把它排除掉
func checkIncoming(store SwapStore, teacherID, leavingID int64, target *domain.Assignment) ([]SwapViolation, error) {
	owners, err := store.ExamOwnerIDs(target.SessionID, target.Day, target.Slot, target.Room)
	if err != nil {
		return nil, err
	}
	for _, ownerID := range owners {
		if ownerID == teacherID {
			return []SwapViolation{{
				Rule:      SwapRuleOwnership,
				TeacherID: teacherID,
				Day:       target.Day,
				Slot:      target.Slot,
				Room:      target.Room,
				Message:   "教师是该考场的出题教师，不能监考自己的考场",
			}}, nil
		}
	}

	unavailable, err := store.IsTeacherUnavailable(target.SessionID, teacherID, target.Day, target.Slot)
	if err != nil {
		return nil, err
	}
	if unavailable {
		return []SwapViolation{{
			Rule:      SwapRuleUnavailability,
			TeacherID: teacherID,
			Day:       target.Day,
			Slot:      target.Slot,
			Room:      target.Room,
			Message:   "教师已声明该时段不可监考",
		}}, nil
	}

	conflict, err := store.HasOtherActiveAssignment(target.SessionID, teacherID, target.Day, target.Slot, leavingID)
	if err != nil {
		return nil, err
	}
	if conflict {
		return []SwapViolation{{
			Rule:      SwapRuleConflict,
			TeacherID: teacherID,
			Day:       target.Day,
			Slot:      target.Slot,
			Room:      target.Room,
			Message:   "教师在该时段已有其他监考任务",
		}}, nil
	}

	return nil, nil
}
