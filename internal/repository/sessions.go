package repository

import (
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

func (r *Repository) CreateExamSession(session *domain.ExamSession) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		INSERT INTO exam_sessions (label, description, num_days, slots_per_day, registration_deadline)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`

	args := []any{session.Label, session.Description, session.NumDays, session.SlotsPerDay, session.RegistrationDeadline}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&session.ID, &session.CreatedAt, &session.Version)
}

func (r *Repository) GetExamSessionByID(id int64) (*domain.ExamSession, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT label, description, num_days, slots_per_day, registration_deadline, created_at, version
		FROM exam_sessions WHERE id = $1
	`

	session := &domain.ExamSession{
		ID: id,
	}

	dst := []any{&session.Label, &session.Description, &session.NumDays, &session.SlotsPerDay, &session.RegistrationDeadline, &session.CreatedAt, &session.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return session, nil
}

func (r *Repository) GetAllExamSessions() ([]*domain.ExamSession, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT id, label, description, num_days, slots_per_day, registration_deadline, created_at, version
		FROM exam_sessions ORDER BY id
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*domain.ExamSession, 0)
	for rows.Next() {
		session := &domain.ExamSession{}
		dst := []any{&session.ID, &session.Label, &session.Description, &session.NumDays, &session.SlotsPerDay, &session.RegistrationDeadline, &session.CreatedAt, &session.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (r *Repository) UpdateExamSession(session *domain.ExamSession) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		UPDATE exam_sessions
		SET
			label = $1,
			description = $2,
			num_days = $3,
			slots_per_day = $4,
			registration_deadline = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING created_at, version
	`

	args := []any{session.Label, session.Description, session.NumDays, session.SlotsPerDay, session.RegistrationDeadline, session.ID, session.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&session.CreatedAt, &session.Version)
}

func (r *Repository) DeleteExamSession(id int64) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM exam_sessions WHERE id = $1`, id)
	return err
}
