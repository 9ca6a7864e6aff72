package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotengine/internal/models"
)

const bookingColumns = `id, owner_id, owner_email, owner_name, date, start_time,
                 service_id, status, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (db *DB) scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	var dateStr, startStr string
	err := row.Scan(
		&b.ID, &b.OwnerID, &b.OwnerEmail, &b.OwnerName, &dateStr, &startStr,
		&b.ServiceID, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return b, err
	}

	b.Date, err = time.ParseInLocation(models.DateFormat, dateStr, db.loc)
	if err != nil {
		return b, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	b.StartTime, err = models.ParseClockTime(startStr)
	if err != nil {
		return b, fmt.Errorf("failed to parse booking start %s: %w", startStr, err)
	}
	return b, nil
}

func (db *DB) queryBookings(ctx context.Context, q queryer, query string, args ...any) ([]models.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListBookings returns every booking ordered by date and start time.
func (db *DB) ListBookings(ctx context.Context) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY date, start_time, id`
	bookings, err := db.queryBookings(ctx, db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := db.scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) insertBooking(ctx context.Context, ex execer, booking *models.Booking) error {
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}
	query := `INSERT INTO bookings (
				owner_id, owner_email, owner_name, date, start_time,
				service_id, status, notes, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := ex.ExecContext(ctx, query,
		booking.OwnerID,
		booking.OwnerEmail,
		booking.OwnerName,
		models.DateKey(booking.Date),
		booking.StartTime.String(),
		booking.ServiceID,
		booking.Status,
		booking.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// CreateBookingChecked inserts booking inside a write transaction after check
// accepts the current booking snapshot. The check's error is returned as is.
// A nil check accepts every snapshot.
func (db *DB) CreateBookingChecked(ctx context.Context, booking *models.Booking, check func(existing []models.Booking) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY date, start_time, id`
	existing, err := db.queryBookings(ctx, tx, query)
	if err != nil {
		return fmt.Errorf("failed to load bookings in tx: %w", err)
	}

	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}

	if err := db.insertBooking(ctx, tx, booking); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return nil
}
