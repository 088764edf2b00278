package domain

import "time"

// Exam: 考试安排的原始行
// 同一个 (day, slot, room) 的逻辑考场可能按科目或出题教师重复出现多行，
// 求解前由 assigner 去重
type Exam struct {
	ID                  int64     `json:"id"`
	SessionID           int64     `json:"sessionID"`
	Day                 int32     `json:"day"`  // 第几个考试日，从 1 开始
	Slot                int32     `json:"slot"` // 当天第几场，从 1 开始
	Room                string    `json:"room"`
	Subject             string    `json:"subject"`
	OwnerID             *int64    `json:"ownerID"` // 出题教师，可能为空
	RequiredSupervisors int32     `json:"requiredSupervisors"`
	ExamDate            time.Time `json:"examDate"`
	StartTime           string    `json:"startTime"` // HH:MM:SS
	EndTime             string    `json:"endTime"`
	CreatedAt           time.Time `json:"createdAt"`
	Version             int32     `json:"-"`
}

// Unavailability: 教师在某个考试周期中拒绝监考的 (day, slot)
type Unavailability struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"sessionID"`
	TeacherID int64     `json:"teacherID"`
	Day       int32     `json:"day"`
	Slot      int32     `json:"slot"`
	CreatedAt time.Time `json:"createdAt"`
}
