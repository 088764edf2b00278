package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

// DeactivateAssignments 将某周期的全部分配结果置为非激活
// 分配结果从不原地更新，重新分配只会作废旧行再插入新行
func (r *Repository) DeactivateAssignments(sessionID int64) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		UPDATE assignments SET is_active = FALSE, version = version + 1
		WHERE session_id = $1 AND is_active = TRUE
	`

	if _, err := r.dbpool.ExecContext(ctx, query, sessionID); err != nil {
		return err
	}

	return nil
}

// SaveAssignments 在一个事务内写入一次分配的全部结果行
func (r *Repository) SaveAssignments(assignments []*domain.Assignment) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO assignments (session_id, teacher_id, day, slot, room, exam_date, start_time, end_time, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, version
	`

	for _, a := range assignments {
		args := []any{a.SessionID, a.TeacherID, a.Day, a.Slot, a.Room, a.ExamDate, a.StartTime, a.EndTime, a.IsActive}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.CreatedAt, &a.Version); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAssignmentByID(id int64) (*domain.Assignment, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT session_id, teacher_id, day, slot, room, exam_date, start_time, end_time, is_active, created_at, version
		FROM assignments WHERE id = $1
	`

	a := &domain.Assignment{
		ID: id,
	}

	dst := []any{&a.SessionID, &a.TeacherID, &a.Day, &a.Slot, &a.Room, &a.ExamDate, &a.StartTime, &a.EndTime, &a.IsActive, &a.CreatedAt, &a.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return a, nil
}

func (r *Repository) GetActiveAssignments(sessionID int64) ([]*domain.Assignment, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT id, session_id, teacher_id, day, slot, room, exam_date, start_time, end_time, is_active, created_at, version
		FROM assignments WHERE session_id = $1 AND is_active = TRUE
		ORDER BY day, slot, room, teacher_id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*domain.Assignment, 0)
	for rows.Next() {
		a := &domain.Assignment{}
		dst := []any{&a.ID, &a.SessionID, &a.TeacherID, &a.Day, &a.Slot, &a.Room, &a.ExamDate, &a.StartTime, &a.EndTime, &a.IsActive, &a.CreatedAt, &a.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// HasOtherActiveAssignment 判断教师在某时段是否还有其他激活的监考任务
// excludeAssignmentID 用于排除换班时即将转让出去的那一行
func (r *Repository) HasOtherActiveAssignment(sessionID, teacherID int64, day, slot int32, excludeAssignmentID int64) (bool, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM assignments
			WHERE session_id = $1 AND teacher_id = $2 AND day = $3 AND slot = $4
				AND is_active = TRUE AND id <> $5
		)
	`

	exists := false
	if err := r.dbpool.QueryRowContext(ctx, query, sessionID, teacherID, day, slot, excludeAssignmentID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// ExchangeAssignmentTeachers 在一个事务内交换两行监考任务的教师
// 任何一行更新失败（包括版本冲突）都会让两行一起回滚
func (r *Repository) ExchangeAssignmentTeachers(a, b *domain.Assignment) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE assignments SET teacher_id = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	if err := tx.QueryRowContext(ctx, query, b.TeacherID, a.ID, a.Version).Scan(&a.Version); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, query, a.TeacherID, b.ID, b.Version).Scan(&b.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// 两行都已提交，内存中的教师引用同步对调
	a.TeacherID, b.TeacherID = b.TeacherID, a.TeacherID

	return nil
}
