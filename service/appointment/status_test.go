package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

func TestValidStatus(t *testing.T) {
	for _, s := range []string{
		models.StatusBooked,
		models.StatusConfirmed,
		models.StatusCompleted,
		models.StatusCancelledByUser,
		models.StatusCancelledByCounselor,
	} {
		if !ValidStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "pending", "CANCELLED", "cancelled"} {
		if ValidStatus(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-2 * time.Hour)

	cases := []struct {
		name   string
		status string
		end    time.Time
		want   string
	}{
		{"booked past end reads completed", models.StatusBooked, earlier, models.StatusCompleted},
		{"confirmed past end reads completed", models.StatusConfirmed, earlier, models.StatusCompleted},
		{"booked before end stays booked", models.StatusBooked, now.Add(time.Hour), models.StatusBooked},
		{"cancelled never becomes completed", models.StatusCancelledByUser, earlier, models.StatusCancelledByUser},
		{"end exactly now is not yet completed", models.StatusConfirmed, now, models.StatusConfirmed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appt := &models.Appointment{Status: tc.status, EndTime: tc.end}
			if got := EffectiveStatus(appt, now); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
			if appt.Status != tc.status {
				t.Errorf("stored status mutated to %q", appt.Status)
			}
		})
	}
}

func TestCancellationStatus(t *testing.T) {
	const (
		clientID        = uint(10)
		counselorUserID = uint(20)
		strangerID      = uint(30)
	)
	base := models.Appointment{ClientID: clientID, Status: models.StatusBooked}

	t.Run("client cancellation", func(t *testing.T) {
		appt := base
		got, err := cancellationStatus(&appt, clientID, counselorUserID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != models.StatusCancelledByUser {
			t.Errorf("expected %q, got %q", models.StatusCancelledByUser, got)
		}
	})

	t.Run("counselor cancellation", func(t *testing.T) {
		appt := base
		appt.Status = models.StatusConfirmed
		got, err := cancellationStatus(&appt, counselorUserID, counselorUserID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != models.StatusCancelledByCounselor {
			t.Errorf("expected %q, got %q", models.StatusCancelledByCounselor, got)
		}
	})

	t.Run("third party is forbidden", func(t *testing.T) {
		appt := base
		if _, err := cancellationStatus(&appt, strangerID, counselorUserID); !errors.Is(err, utils.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("cancelled states are terminal", func(t *testing.T) {
		for _, s := range models.CancelledStatuses {
			appt := base
			appt.Status = s
			if _, err := cancellationStatus(&appt, clientID, counselorUserID); !errors.Is(err, utils.ErrInvalidState) {
				t.Errorf("status %q: expected ErrInvalidState, got %v", s, err)
			}
		}
	})

	t.Run("completed cannot be cancelled", func(t *testing.T) {
		appt := base
		appt.Status = models.StatusCompleted
		if _, err := cancellationStatus(&appt, clientID, counselorUserID); !errors.Is(err, utils.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestCanJoinSession(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	confirmed := &models.Appointment{Status: models.StatusConfirmed, StartTime: start, EndTime: end}

	cases := []struct {
		name string
		appt *models.Appointment
		now  time.Time
		want bool
	}{
		{"inside window", confirmed, start.Add(30 * time.Minute), true},
		{"at exact start", confirmed, start, true},
		{"at exact end", confirmed, end, true},
		{"before window", confirmed, start.Add(-time.Minute), false},
		{"after window", confirmed, end.Add(time.Minute), false},
		{"booked not joinable", &models.Appointment{Status: models.StatusBooked, StartTime: start, EndTime: end}, start.Add(time.Minute), false},
		{"cancelled not joinable", &models.Appointment{Status: models.StatusCancelledByCounselor, StartTime: start, EndTime: end}, start.Add(time.Minute), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanJoinSession(tc.appt, tc.now); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
