package appointment

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.Exec("PRAGMA busy_timeout = 5000")
	if err := db.AutoMigrate(&models.User{}, &models.Counselor{}, &models.Appointment{}); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func seedCounselor(t *testing.T, db *gorm.DB, slotDuration int) (client models.User, counselor models.Counselor) {
	t.Helper()
	client = models.User{FullName: "Test Client", Email: "client@example.com", PasswordHash: "x"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("creating client: %v", err)
	}
	owner := models.User{FullName: "Test Counselor", Email: "counselor@example.com", PasswordHash: "x"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("creating counselor user: %v", err)
	}
	counselor = models.Counselor{UserID: owner.ID, Specialty: "anxiety", SlotDuration: slotDuration, IsActive: true}
	if err := db.Create(&counselor).Error; err != nil {
		t.Fatalf("creating counselor: %v", err)
	}
	return client, counselor
}

func TestBook(t *testing.T) {
	slot := time.Date(2027, 1, 4, 9, 0, 0, 0, time.UTC)

	t.Run("creates a booked appointment with derived end time", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)

		appt, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if appt.Status != models.StatusBooked {
			t.Errorf("expected status %q, got %q", models.StatusBooked, appt.Status)
		}
		if appt.Reference == "" {
			t.Error("expected a booking reference")
		}
		if want := slot.Add(time.Hour); !appt.EndTime.Equal(want) {
			t.Errorf("expected end time %v, got %v", want, appt.EndTime)
		}
	})

	t.Run("rejects an overlapping booking", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)

		if _, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot}); err != nil {
			t.Fatalf("first booking failed: %v", err)
		}
		// Half-open overlap: a start inside the existing window conflicts.
		_, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot.Add(30 * time.Minute)})
		if !errors.Is(err, utils.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("back-to-back slots do not conflict", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)

		if _, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot}); err != nil {
			t.Fatalf("first booking failed: %v", err)
		}
		if _, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot.Add(time.Hour)}); err != nil {
			t.Fatalf("adjacent booking failed: %v", err)
		}
	})

	t.Run("cancelled appointments free the slot", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)

		appt, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		if _, err := Cancel(db, appt.ID, client.ID); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if _, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot}); err != nil {
			t.Fatalf("rebooking a freed slot failed: %v", err)
		}
	})

	t.Run("unknown counselor is not found", func(t *testing.T) {
		db := newTestDB(t)
		client, _ := seedCounselor(t, db, 60)
		_, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: 999, StartTime: slot})
		if !errors.Is(err, utils.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("inactive counselor is not found", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)
		if err := db.Model(&counselor).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivating counselor: %v", err)
		}
		_, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
		if !errors.Is(err, utils.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookConcurrent(t *testing.T) {
	db := newTestDB(t)
	client, counselor := seedCounselor(t, db, 60)
	slot := time.Date(2027, 1, 4, 9, 0, 0, 0, time.UTC)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, utils.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful booking, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}

	var count int64
	if err := db.Model(&models.Appointment{}).Where("counselor_id = ?", counselor.ID).Count(&count).Error; err != nil {
		t.Fatalf("counting appointments: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored appointment, got %d", count)
	}
}

// The sqlite driver used above drops locking clauses, so the concurrency test
// alone cannot prove the counselor read is serialized on the production
// dialect. Render the locked query against postgres and check the clause.
func TestBookingLockEmitsRowLock(t *testing.T) {
	pg, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening dry-run session: %v", err)
	}

	var counselor models.Counselor
	stmt := bookingLock(pg).Find(&counselor, 1).Statement
	if sql := stmt.SQL.String(); !strings.Contains(sql, "FOR UPDATE") {
		t.Fatalf("expected a FOR UPDATE clause, got %q", sql)
	}
}

func TestCancel(t *testing.T) {
	slot := time.Date(2027, 1, 4, 9, 0, 0, 0, time.UTC)

	t.Run("second cancellation is rejected", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)

		appt, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		cancelled, err := Cancel(db, appt.ID, client.ID)
		if err != nil {
			t.Fatalf("first cancel failed: %v", err)
		}
		if cancelled.Status != models.StatusCancelledByUser {
			t.Errorf("expected %q, got %q", models.StatusCancelledByUser, cancelled.Status)
		}
		if _, err := Cancel(db, appt.ID, client.ID); !errors.Is(err, utils.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("counselor cancellation uses its own terminal state", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)

		appt, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		cancelled, err := Cancel(db, appt.ID, counselor.UserID)
		if err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if cancelled.Status != models.StatusCancelledByCounselor {
			t.Errorf("expected %q, got %q", models.StatusCancelledByCounselor, cancelled.Status)
		}
	})

	t.Run("stranger may not cancel", func(t *testing.T) {
		db := newTestDB(t)
		client, counselor := seedCounselor(t, db, 60)

		appt, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		if _, err := Cancel(db, appt.ID, 9999); !errors.Is(err, utils.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		var stored models.Appointment
		if err := db.First(&stored, appt.ID).Error; err != nil {
			t.Fatalf("reloading appointment: %v", err)
		}
		if stored.Status != models.StatusBooked {
			t.Errorf("status changed to %q after rejected cancel", stored.Status)
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	slot := time.Date(2027, 1, 4, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	client, counselor := seedCounselor(t, db, 60)

	appt, err := Book(db, BookingRequest{ClientID: client.ID, CounselorID: counselor.ID, StartTime: slot})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	t.Run("rejects values outside the enum", func(t *testing.T) {
		if _, err := UpdateStatus(db, appt.ID, "rescheduled"); !errors.Is(err, utils.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("confirms a booked appointment", func(t *testing.T) {
		updated, err := UpdateStatus(db, appt.ID, models.StatusConfirmed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != models.StatusConfirmed {
			t.Errorf("expected %q, got %q", models.StatusConfirmed, updated.Status)
		}
	})

	t.Run("unknown appointment is not found", func(t *testing.T) {
		if _, err := UpdateStatus(db, 424242, models.StatusConfirmed); !errors.Is(err, utils.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
