package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichannel/channeling/internal/domain/session"
	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
)

// Constraint names from migrations/001_core.sql.
const (
	numberConstraint = "appointment_appointment_number_key"
	queueConstraint  = "appointment_session_queue_active_idx"
)

const appointmentColumns = `a.id, a.appointment_number, a.session_id, a.booked_by_id,
	a.patient_name, a.patient_email, a.patient_phone, a.patient_nic, a.patient_dob, a.patient_gender,
	a.emergency_contact_name, a.emergency_contact_phone,
	a.medical_history, a.current_medications, a.allergies, a.notes,
	a.is_new_patient, a.queue_position, a.estimated_wait_time, a.status, a.payment_status,
	a.consultation_fee, a.total_amount, a.cancellation_reason, a.reminder_sent_at,
	a.created_at, a.updated_at`

const viewColumns = appointmentColumns + `,
	d.id, d.name, h.id, h.name, s.start_time, s.end_time`

const viewFrom = ` FROM appointment a
	JOIN channeling_session s ON s.id = a.session_id
	JOIN doctor d ON d.id = s.doctor_id
	JOIN hospital h ON h.id = s.hospital_id`

const activeClause = `a.status IN ('CONFIRMED', 'RESCHEDULED')`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (
			id, appointment_number, session_id, booked_by_id,
			patient_name, patient_email, patient_phone, patient_nic, patient_dob, patient_gender,
			emergency_contact_name, emergency_contact_phone,
			medical_history, current_medications, allergies, notes,
			is_new_patient, queue_position, estimated_wait_time, status, payment_status,
			consultation_fee, total_amount
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23
		)
		RETURNING created_at, updated_at`,
		a.ID, a.AppointmentNumber, a.SessionID, a.BookedByID,
		a.PatientName, a.PatientEmail, a.PatientPhone, a.PatientNIC, a.PatientDOB, a.PatientGender,
		a.EmergencyContactName, a.EmergencyContactPhone,
		a.MedicalHistory, a.CurrentMedications, a.Allergies, a.Notes,
		a.IsNewPatient, a.QueuePosition, a.EstimatedWaitTime, a.Status, a.PaymentStatus,
		a.ConsultationFee, a.TotalAmount,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, numberConstraint):
		return apperr.Duplicate("appointment", "appointment_number", err)
	case db.IsUniqueViolation(err, queueConstraint):
		return apperr.Duplicate("appointment", "queue_position", err)
	default:
		return err
	}
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointment a WHERE a.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, apperr.Persistence("get appointment", err)
	}
	return a, nil
}

func (r *repoPG) GetView(ctx context.Context, id uuid.UUID) (*View, error) {
	v, err := scanView(r.conn(ctx).QueryRow(ctx, `SELECT `+viewColumns+viewFrom+` WHERE a.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, apperr.Persistence("get appointment", err)
	}
	return v, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*View, int, error) {
	query := `SELECT ` + viewColumns + viewFrom + ` WHERE 1=1`
	countQuery := `SELECT COUNT(*)` + viewFrom + ` WHERE 1=1`
	var args []any
	idx := 1

	add := func(format string, v any) {
		clause := fmt.Sprintf(format, idx)
		query += clause
		countQuery += clause
		args = append(args, v)
		idx++
	}
	if f.SessionID != nil {
		add(` AND a.session_id = $%d`, *f.SessionID)
	}
	if f.PatientEmail != "" {
		add(` AND lower(a.patient_email) = lower($%d)`, f.PatientEmail)
	}
	if f.Status != "" {
		add(` AND a.status = $%d`, f.Status)
	}
	if f.BookedByID != nil {
		add(` AND a.booked_by_id = $%d`, *f.BookedByID)
	}
	if f.HospitalID != nil {
		add(` AND s.hospital_id = $%d`, *f.HospitalID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count appointments", err)
	}

	query += fmt.Sprintf(` ORDER BY s.start_time DESC, a.queue_position LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	views, err := r.queryViews(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Persistence("list appointments", err)
	}
	return views, total, nil
}

func (r *repoPG) QueueStats(ctx context.Context, sessionID uuid.UUID) (int, int, error) {
	var active, highest int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(MAX(a.queue_position), 0)
		FROM appointment a
		WHERE a.session_id = $1 AND `+activeClause, sessionID).Scan(&active, &highest)
	if err != nil {
		return 0, 0, err
	}
	return active, highest, nil
}

func (r *repoPG) CountActive(ctx context.Context, sessionID uuid.UUID) (int, error) {
	active, _, err := r.QueueStats(ctx, sessionID)
	if err != nil {
		return 0, apperr.Persistence("count active appointments", err)
	}
	return active, nil
}

func (r *repoPG) ListQueue(ctx context.Context, sessionID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+appointmentColumns+` FROM appointment a
		WHERE a.session_id = $1 AND `+activeClause+`
		ORDER BY a.queue_position`, sessionID)
	if err != nil {
		return nil, apperr.Persistence("list queue", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, apperr.Persistence("scan appointment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list queue", err)
	}
	return out, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reason *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET status = $2, cancellation_reason = COALESCE($3, cancellation_reason), updated_at = NOW()
		WHERE id = $1`, id, status, reason)
	if err != nil {
		return apperr.Persistence("update appointment status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment", id.String())
	}
	return nil
}

func (r *repoPG) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return apperr.Persistence("update payment status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment", id.String())
	}
	return nil
}

func (r *repoPG) ClaimReminders(ctx context.Context, c ReminderClaim) ([]*View, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		WITH due AS (
			SELECT a.id FROM appointment a
			JOIN channeling_session s ON s.id = a.session_id
			WHERE `+activeClause+` AND a.reminder_sent_at IS NULL
			  AND a.reminder_attempts < $5
			  AND (a.reminder_claimed_at IS NULL OR a.reminder_claimed_at < $4)
			  AND s.status = 'SCHEDULED' AND s.start_time >= $1 AND s.start_time < $2
			ORDER BY a.reminder_attempts, s.start_time, a.queue_position
			LIMIT $6
			FOR UPDATE OF a SKIP LOCKED
		)
		UPDATE appointment SET reminder_claimed_at = $3, reminder_attempts = appointment.reminder_attempts + 1
		FROM due WHERE appointment.id = due.id
		RETURNING appointment.id`,
		c.From, c.To, c.Now, c.StaleBefore, c.MaxAttempts, c.Limit)
	if err != nil {
		return nil, apperr.Persistence("claim reminders", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, apperr.Persistence("claim reminders", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	views, err := r.queryViews(ctx, `SELECT `+viewColumns+viewFrom+`
		WHERE a.id = ANY($1)
		ORDER BY s.start_time, a.queue_position`, ids)
	if err != nil {
		return nil, apperr.Persistence("load claimed reminders", err)
	}
	return views, nil
}

func (r *repoPG) ReleaseReminder(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET reminder_claimed_at = NULL WHERE id = $1 AND reminder_sent_at IS NULL`, id)
	if err != nil {
		return apperr.Persistence("release reminder", err)
	}
	return nil
}

func (r *repoPG) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET reminder_sent_at = $2 WHERE id = $1 AND reminder_sent_at IS NULL`, id, at)
	if err != nil {
		return apperr.Persistence("mark reminder sent", err)
	}
	return nil
}

func (r *repoPG) queryViews(ctx context.Context, query string, args ...any) ([]*View, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (a *Appointment) scanTargets() []any {
	return []any{
		&a.ID, &a.AppointmentNumber, &a.SessionID, &a.BookedByID,
		&a.PatientName, &a.PatientEmail, &a.PatientPhone, &a.PatientNIC, &a.PatientDOB, &a.PatientGender,
		&a.EmergencyContactName, &a.EmergencyContactPhone,
		&a.MedicalHistory, &a.CurrentMedications, &a.Allergies, &a.Notes,
		&a.IsNewPatient, &a.QueuePosition, &a.EstimatedWaitTime, &a.Status, &a.PaymentStatus,
		&a.ConsultationFee, &a.TotalAmount, &a.CancellationReason, &a.ReminderSentAt,
		&a.CreatedAt, &a.UpdatedAt,
	}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(a.scanTargets()...); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanView(row pgx.Row) (*View, error) {
	var v View
	targets := append(v.Appointment.scanTargets(),
		&v.DoctorID, &v.DoctorName, &v.HospitalID, &v.HospitalName, &v.SessionStart, &v.SessionEnd)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	v.decorate()
	return &v, nil
}

func (v *View) decorate() {
	v.SessionTime = session.FormatTime(v.SessionStart, v.SessionEnd)
	v.Type = v.BookingType()
}
