package domain

import "time"

// Assignment: 持久化的监考任务，每行对应 (周期, 逻辑考场, 教师)
// 重新执行分配时旧行只会被置为非激活，不会原地更新
type Assignment struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"sessionID"`
	TeacherID int64     `json:"teacherID"`
	Day       int32     `json:"day"`
	Slot      int32     `json:"slot"`
	Room      string    `json:"room"`
	ExamDate  time.Time `json:"examDate"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}
