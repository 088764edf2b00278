package domain

import "time"

// Teacher: 监考教师名册中的一条记录
// 名册独立于登录账户，通常由教务从 Excel 导入
type Teacher struct {
	ID             int64     `json:"id"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email"`
	GradeCode      string    `json:"gradeCode"` // 职称代码，如 教授 / 副教授 / 讲师 / 助教
	RolloverCredit int32     `json:"rolloverCredit"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	Version        int32     `json:"-"`
}

// SessionTeacher: 教师在某个考试周期中的报名情况
type SessionTeacher struct {
	SessionID    int64 `json:"sessionID"`
	TeacherID    int64 `json:"teacherID"`
	Participates bool  `json:"participates"`
	Quota        int32 `json:"quota"` // 本周期最多可承担的监考场数
}

// GradePriority: 职称对应的保护优先级，数值越小越优先保护
type GradePriority struct {
	GradeCode string `json:"gradeCode"`
	Priority  int32  `json:"priority"`
}
