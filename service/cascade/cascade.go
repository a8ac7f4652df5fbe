// Package cascade maintains referential integrity across independently
// stored collections. The storage layer enforces no foreign keys between
// these tables, so removing a root entity together with its dependency
// closure is an application invariant: every delete below runs inside one
// transaction, in leaf-to-root order, and any failure aborts the whole
// operation.
package cascade

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// closure is the transitive set of record ids that exist only because the
// root entity exists. It is resolved in full before anything is mutated.
type closure struct {
	userID         uint
	counselorIDs   []uint
	postIDs        []uint
	appointmentIDs []uint
}

// step deletes one dependent collection's slice of the closure. Steps are a
// data table rather than per-entity code: adding a new dependent type means
// adding a row, not a branch.
type step struct {
	name  string
	model interface{}
	where func(c *closure) (query string, args []interface{}, skip bool)
}

func byIDs(column string, ids func(c *closure) []uint) func(c *closure) (string, []interface{}, bool) {
	return func(c *closure) (string, []interface{}, bool) {
		v := ids(c)
		if len(v) == 0 {
			return "", nil, true
		}
		return column + " IN ?", []interface{}{v}, false
	}
}

func byUser(column string) func(c *closure) (string, []interface{}, bool) {
	return func(c *closure) (string, []interface{}, bool) {
		return column + " = ?", []interface{}{c.userID}, false
	}
}

// userDeletionSteps lists the user root's dependents leaf-first: records
// hanging off appointments and posts go before the appointments and posts
// themselves, which go before the counselor profile, which goes before the
// user record.
var userDeletionSteps = []step{
	{"live chat messages", &models.LiveChatMessage{}, byIDs("appointment_id", func(c *closure) []uint { return c.appointmentIDs })},
	{"forum comments on own posts", &models.ForumComment{}, byIDs("post_id", func(c *closure) []uint { return c.postIDs })},
	{"own forum comments", &models.ForumComment{}, byUser("user_id")},
	{"appointments", &models.Appointment{}, byIDs("id", func(c *closure) []uint { return c.appointmentIDs })},
	{"forum posts", &models.ForumPost{}, byIDs("id", func(c *closure) []uint { return c.postIDs })},
	{"journal entries", &models.JournalEntry{}, byUser("user_id")},
	{"ai chats", &models.Chat{}, byUser("user_id")},
	{"devices", &models.Device{}, byUser("user_id")},
	{"password reset tokens", &models.PasswordResetToken{}, byUser("user_id")},
	{"availability rules", &models.AvailabilityRule{}, byIDs("counselor_id", func(c *closure) []uint { return c.counselorIDs })},
	{"counselor profile", &models.Counselor{}, byIDs("id", func(c *closure) []uint { return c.counselorIDs })},
}

var counselorDeletionSteps = []step{
	{"live chat messages", &models.LiveChatMessage{}, byIDs("appointment_id", func(c *closure) []uint { return c.appointmentIDs })},
	{"appointments", &models.Appointment{}, byIDs("id", func(c *closure) []uint { return c.appointmentIDs })},
	{"availability rules", &models.AvailabilityRule{}, byIDs("counselor_id", func(c *closure) []uint { return c.counselorIDs })},
	{"counselor profile", &models.Counselor{}, byIDs("id", func(c *closure) []uint { return c.counselorIDs })},
}

func runSteps(tx *gorm.DB, steps []step, c *closure) error {
	for _, s := range steps {
		query, args, skip := s.where(c)
		if skip {
			continue
		}
		if err := tx.Unscoped().Where(query, args...).Delete(s.model).Error; err != nil {
			return fmt.Errorf("deleting %s: %w", s.name, err)
		}
	}
	return nil
}

// DeleteUser removes a user and every record that exists only by reference
// to them: counselor profile, appointments on either side, live chat
// transcripts, forum posts with their comments, journal entries, AI chats.
// All-or-nothing; a missing root aborts with NotFound.
func DeleteUser(db *gorm.DB, userID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return deleteUserTx(tx, userID)
	})
}

func deleteUserTx(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", utils.ErrNotFound, userID)
		}
		return err
	}

	c := closure{userID: userID}

	// Intermediate parents first: the counselor profile owned by this user
	// and the posts they authored are themselves parents of further
	// dependents.
	if err := tx.Model(&models.Counselor{}).Where("user_id = ?", userID).
		Pluck("id", &c.counselorIDs).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.ForumPost{}).Where("user_id = ?", userID).
		Pluck("id", &c.postIDs).Error; err != nil {
		return err
	}

	apptQuery := tx.Model(&models.Appointment{}).Where("client_id = ?", userID)
	if len(c.counselorIDs) > 0 {
		apptQuery = tx.Model(&models.Appointment{}).
			Where("client_id = ? OR counselor_id IN ?", userID, c.counselorIDs)
	}
	if err := apptQuery.Pluck("id", &c.appointmentIDs).Error; err != nil {
		return err
	}

	if err := runSteps(tx, userDeletionSteps, &c); err != nil {
		return err
	}

	// Root record last.
	return tx.Unscoped().Delete(&models.User{}, userID).Error
}

// DeleteCounselor removes a counselor profile, its availability, its
// appointments, and their transcripts. The owning user survives.
func DeleteCounselor(db *gorm.DB, counselorID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return deleteCounselorTx(tx, counselorID)
	})
}

func deleteCounselorTx(tx *gorm.DB, counselorID uint) error {
	var counselor models.Counselor
	if err := tx.First(&counselor, counselorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: counselor %d", utils.ErrNotFound, counselorID)
		}
		return err
	}

	c := closure{counselorIDs: []uint{counselorID}}

	if err := tx.Model(&models.Appointment{}).Where("counselor_id = ?", counselorID).
		Pluck("id", &c.appointmentIDs).Error; err != nil {
		return err
	}

	return runSteps(tx, counselorDeletionSteps, &c)
}
