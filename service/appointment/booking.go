package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// BookingRequest is a client's claim on one slot. The start time must align
// with a slot boundary; the end is derived from the counselor's slot duration
// at booking time and frozen thereafter.
type BookingRequest struct {
	ClientID    uint
	CounselorID uint
	StartTime   time.Time
	Notes       string
}

// bookingLock adds the row lock under which Book reads the counselor.
// Concurrent bookings for one counselor queue on this lock, so by the time a
// transaction reaches the overlap check any earlier insert is committed and
// visible. Read-committed isolation alone is not enough: without the lock two
// transactions can both count zero conflicts and both commit.
func bookingLock(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Book creates the appointment atomically. Slot listings are advisory and may
// be stale by the time a client confirms, so correctness comes from re-running
// the overlap check against live data inside the same transaction as the
// insert, serialized per counselor on the counselor's row lock: only one of
// two concurrent requests for the same slot observes "no conflict".
func Book(db *gorm.DB, req BookingRequest) (*models.Appointment, error) {
	var appt models.Appointment

	err := db.Transaction(func(tx *gorm.DB) error {
		var counselor models.Counselor
		if err := bookingLock(tx).First(&counselor, req.CounselorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: counselor %d", utils.ErrNotFound, req.CounselorID)
			}
			return err
		}
		if !counselor.IsActive {
			return fmt.Errorf("%w: counselor %d is not accepting bookings", utils.ErrNotFound, req.CounselorID)
		}

		start := req.StartTime.UTC()
		end := start.Add(time.Duration(counselor.SlotDuration) * time.Minute)

		// Half-open interval overlap against every live appointment for this
		// counselor. This read and the insert below share one transaction;
		// that is the concurrency-critical region.
		var conflicts int64
		if err := tx.Model(&models.Appointment{}).
			Where("counselor_id = ? AND status NOT IN ? AND start_time < ? AND end_time > ?",
				counselor.ID, models.CancelledStatuses, end, start).
			Count(&conflicts).Error; err != nil {
			return err
		}
		if conflicts > 0 {
			return utils.ErrConflict
		}

		appt = models.Appointment{
			Reference:   uuid.NewString(),
			ClientID:    req.ClientID,
			CounselorID: counselor.ID,
			StartTime:   start,
			EndTime:     end,
			Status:      models.StatusBooked,
			Notes:       req.Notes,
		}
		return tx.Create(&appt).Error
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// Cancel moves an appointment into the terminal state matching the requester.
func Cancel(db *gorm.DB, appointmentID, requesterID uint) (*models.Appointment, error) {
	var appt models.Appointment

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, appointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: appointment %d", utils.ErrNotFound, appointmentID)
			}
			return err
		}

		var counselor models.Counselor
		if err := tx.First(&counselor, appt.CounselorID).Error; err != nil {
			return err
		}

		newStatus, err := cancellationStatus(&appt, requesterID, counselor.UserID)
		if err != nil {
			return err
		}

		appt.Status = newStatus
		return tx.Save(&appt).Error
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// UpdateStatus is the admin escape hatch for support operations: any enum
// member may be set directly, values outside the enum are rejected.
func UpdateStatus(db *gorm.DB, appointmentID uint, newStatus string) (*models.Appointment, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", utils.ErrValidation, newStatus)
	}

	var appt models.Appointment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, appointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: appointment %d", utils.ErrNotFound, appointmentID)
			}
			return err
		}
		appt.Status = newStatus
		return tx.Save(&appt).Error
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}
