package notification

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
)

// Service is the post-commit notification side channel: mail plus push for
// both parties of a booking or cancellation. Every failure is logged and
// swallowed; the committed appointment is the system of record.
type Service struct {
	db     *gorm.DB
	mailer *Mailer
	push   *PushSender
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:     db,
		mailer: NewMailerFromEnv(),
		push:   NewPushSender(db),
	}
}

// parties loads the client and the counselor's owning user for an appointment.
func (s *Service) parties(appt *models.Appointment) (*models.User, *models.User, error) {
	var client models.User
	if err := s.db.First(&client, appt.ClientID).Error; err != nil {
		return nil, nil, err
	}

	var counselor models.Counselor
	if err := s.db.First(&counselor, appt.CounselorID).Error; err != nil {
		return nil, nil, err
	}

	var counselorUser models.User
	if err := s.db.First(&counselorUser, counselor.UserID).Error; err != nil {
		return nil, nil, err
	}

	return &client, &counselorUser, nil
}

func (s *Service) BookingConfirmed(appt *models.Appointment) {
	client, counselorUser, err := s.parties(appt)
	if err != nil {
		log.Printf("Booking notification skipped for appointment %d: %v", appt.ID, err)
		return
	}

	invite := BuildInvite(appt.Reference, "Counseling session", appt.StartTime, appt.EndTime)
	when := appt.StartTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST")

	body := fmt.Sprintf("<p>Your session is booked for <b>%s</b>.</p><p>Reference: %s</p>", when, appt.Reference)
	if err := s.mailer.Send(client.Email, "Session booked", body, invite); err != nil {
		log.Printf("Error mailing client %d: %v", client.ID, err)
	}

	body = fmt.Sprintf("<p>%s booked a session with you for <b>%s</b>.</p><p>Reference: %s</p>", client.FullName, when, appt.Reference)
	if err := s.mailer.Send(counselorUser.Email, "New session booked", body, invite); err != nil {
		log.Printf("Error mailing counselor user %d: %v", counselorUser.ID, err)
	}

	data := map[string]string{"appointment_id": fmt.Sprint(appt.ID)}
	if err := s.push.PushToUser(client.ID, "Session booked", "Your session is confirmed for "+when, data); err != nil {
		log.Printf("Error pushing to client %d: %v", client.ID, err)
	}
	if err := s.push.PushToUser(counselorUser.ID, "New booking", client.FullName+" booked a session for "+when, data); err != nil {
		log.Printf("Error pushing to counselor user %d: %v", counselorUser.ID, err)
	}
}

func (s *Service) BookingCancelled(appt *models.Appointment) {
	client, counselorUser, err := s.parties(appt)
	if err != nil {
		log.Printf("Cancellation notification skipped for appointment %d: %v", appt.ID, err)
		return
	}

	when := appt.StartTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	body := fmt.Sprintf("<p>The session scheduled for <b>%s</b> has been cancelled.</p><p>Reference: %s</p>", when, appt.Reference)

	if err := s.mailer.Send(client.Email, "Session cancelled", body, nil); err != nil {
		log.Printf("Error mailing client %d: %v", client.ID, err)
	}
	if err := s.mailer.Send(counselorUser.Email, "Session cancelled", body, nil); err != nil {
		log.Printf("Error mailing counselor user %d: %v", counselorUser.ID, err)
	}

	data := map[string]string{"appointment_id": fmt.Sprint(appt.ID)}
	if err := s.push.PushToUser(client.ID, "Session cancelled", "Your session on "+when+" was cancelled", data); err != nil {
		log.Printf("Error pushing to client %d: %v", client.ID, err)
	}
	if err := s.push.PushToUser(counselorUser.ID, "Session cancelled", "The session on "+when+" was cancelled", data); err != nil {
		log.Printf("Error pushing to counselor user %d: %v", counselorUser.ID, err)
	}
}
