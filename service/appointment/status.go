package appointment

import (
	"fmt"
	"time"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// ValidStatus reports whether s is a member of the appointment status enum.
func ValidStatus(s string) bool {
	switch s {
	case models.StatusBooked, models.StatusConfirmed, models.StatusCompleted,
		models.StatusCancelledByUser, models.StatusCancelledByCounselor:
		return true
	}
	return false
}

// IsTerminal reports whether a stored status admits no further transitions.
func IsTerminal(s string) bool {
	return s == models.StatusCancelledByUser || s == models.StatusCancelledByCounselor
}

// EffectiveStatus projects the implicit completed state at read time. It is
// never written back, which keeps expired appointments out of any background
// sweep.
func EffectiveStatus(appt *models.Appointment, now time.Time) string {
	if (appt.Status == models.StatusBooked || appt.Status == models.StatusConfirmed) && now.After(appt.EndTime) {
		return models.StatusCompleted
	}
	return appt.Status
}

// cancellationStatus decides which terminal state a cancellation request
// produces, or rejects the request. counselorUserID is the id of the user
// owning the appointment's counselor profile.
func cancellationStatus(appt *models.Appointment, requesterID, counselorUserID uint) (string, error) {
	if IsTerminal(appt.Status) {
		return "", fmt.Errorf("%w: appointment already cancelled", utils.ErrInvalidState)
	}
	if appt.Status != models.StatusBooked && appt.Status != models.StatusConfirmed {
		return "", fmt.Errorf("%w: appointment cannot be cancelled from status %q", utils.ErrInvalidState, appt.Status)
	}

	switch requesterID {
	case appt.ClientID:
		return models.StatusCancelledByUser, nil
	case counselorUserID:
		return models.StatusCancelledByCounselor, nil
	}
	return "", fmt.Errorf("%w: only the client or the counselor may cancel", utils.ErrForbidden)
}

// CanJoinSession reports live-session eligibility: confirmed and inside the
// appointment window. Evaluated at query time, never cached.
func CanJoinSession(appt *models.Appointment, now time.Time) bool {
	if appt.Status != models.StatusConfirmed {
		return false
	}
	return !now.Before(appt.StartTime) && !now.After(appt.EndTime)
}
