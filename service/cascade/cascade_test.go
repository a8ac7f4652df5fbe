package cascade

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
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
	if err := db.AutoMigrate(
		&models.User{}, &models.Counselor{}, &models.AvailabilityRule{},
		&models.Appointment{}, &models.ForumPost{}, &models.ForumComment{},
		&models.JournalEntry{}, &models.Chat{}, &models.LiveChatMessage{},
		&models.Device{}, &models.PasswordResetToken{},
	); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// fixture builds a counselor-owning user with dependents in every collection:
// a profile with availability, appointments on both sides with live chat
// transcripts, forum posts with comments from another user, plus journal
// entries, AI chats, devices and a reset token.
type fixture struct {
	user      models.User
	other     models.User
	counselor models.Counselor
	appts     []models.Appointment
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	var f fixture

	f.user = models.User{FullName: "Root User", Email: "root@example.com", PasswordHash: "x"}
	f.other = models.User{FullName: "Other User", Email: "other@example.com", PasswordHash: "x"}
	for _, u := range []*models.User{&f.user, &f.other} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("creating user: %v", err)
		}
	}

	f.counselor = models.Counselor{UserID: f.user.ID, Specialty: "grief", SlotDuration: 60, IsActive: true}
	if err := db.Create(&f.counselor).Error; err != nil {
		t.Fatalf("creating counselor: %v", err)
	}
	rule := models.AvailabilityRule{CounselorID: f.counselor.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"}
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("creating availability rule: %v", err)
	}

	start := time.Date(2027, 1, 4, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		appt := models.Appointment{
			Reference:   fmt.Sprintf("ref-%d", i),
			ClientID:    f.other.ID,
			CounselorID: f.counselor.ID,
			StartTime:   start.Add(time.Duration(i) * time.Hour),
			EndTime:     start.Add(time.Duration(i+1) * time.Hour),
			Status:      models.StatusConfirmed,
		}
		if err := db.Create(&appt).Error; err != nil {
			t.Fatalf("creating appointment: %v", err)
		}
		f.appts = append(f.appts, appt)

		for j := 0; j < 2; j++ {
			msg := models.LiveChatMessage{AppointmentID: appt.ID, SenderID: f.other.ID, Content: "hello"}
			if err := db.Create(&msg).Error; err != nil {
				t.Fatalf("creating live chat message: %v", err)
			}
		}
	}

	post := models.ForumPost{UserID: f.user.ID, Title: "Coping strategies", Content: "..."}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("creating forum post: %v", err)
	}
	otherPost := models.ForumPost{UserID: f.other.ID, Title: "Check-in thread", Content: "..."}
	if err := db.Create(&otherPost).Error; err != nil {
		t.Fatalf("creating forum post: %v", err)
	}
	comments := []models.ForumComment{
		{UserID: f.other.ID, PostID: post.ID, Content: "comment on root's post"},
		{UserID: f.user.ID, PostID: otherPost.ID, Content: "root's comment elsewhere"},
	}
	for i := range comments {
		if err := db.Create(&comments[i]).Error; err != nil {
			t.Fatalf("creating forum comment: %v", err)
		}
	}

	extras := []interface{}{
		&models.JournalEntry{UserID: f.user.ID, Title: "Day one", Content: "...", Mood: "calm"},
		&models.Chat{UserID: f.user.ID, Message: "hi", Response: "hello"},
		&models.Device{Token: "ExponentPushToken[abc]", UserID: f.user.ID, DeviceType: "ios"},
		&models.PasswordResetToken{UserID: f.user.ID, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
	}
	for _, rec := range extras {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("creating dependent record: %v", err)
		}
	}
	return f
}

func countWhere(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Unscoped().Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("counting %T: %v", model, err)
	}
	return n
}

func TestDeleteUser(t *testing.T) {
	t.Run("removes the full dependency closure", func(t *testing.T) {
		db := newTestDB(t)
		f := seedFixture(t, db)

		if err := DeleteUser(db, f.user.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		apptIDs := make([]uint, 0, len(f.appts))
		for _, a := range f.appts {
			apptIDs = append(apptIDs, a.ID)
		}

		checks := []struct {
			name  string
			model interface{}
			query string
			args  []interface{}
		}{
			{"user record", &models.User{}, "id = ?", []interface{}{f.user.ID}},
			{"counselor profile", &models.Counselor{}, "user_id = ?", []interface{}{f.user.ID}},
			{"availability rules", &models.AvailabilityRule{}, "counselor_id = ?", []interface{}{f.counselor.ID}},
			{"appointments", &models.Appointment{}, "counselor_id = ?", []interface{}{f.counselor.ID}},
			{"live chat messages", &models.LiveChatMessage{}, "appointment_id IN ?", []interface{}{apptIDs}},
			{"own forum posts", &models.ForumPost{}, "user_id = ?", []interface{}{f.user.ID}},
			{"own comments elsewhere", &models.ForumComment{}, "user_id = ?", []interface{}{f.user.ID}},
			{"journal entries", &models.JournalEntry{}, "user_id = ?", []interface{}{f.user.ID}},
			{"ai chats", &models.Chat{}, "user_id = ?", []interface{}{f.user.ID}},
			{"devices", &models.Device{}, "user_id = ?", []interface{}{f.user.ID}},
			{"reset tokens", &models.PasswordResetToken{}, "user_id = ?", []interface{}{f.user.ID}},
		}
		for _, c := range checks {
			if n := countWhere(t, db, c.model, c.query, c.args...); n != 0 {
				t.Errorf("%s: %d records survived the cascade", c.name, n)
			}
		}

		// The other user and their own post are untouched.
		if n := countWhere(t, db, &models.User{}, "id = ?", f.other.ID); n != 1 {
			t.Errorf("unrelated user was deleted")
		}
		if n := countWhere(t, db, &models.ForumPost{}, "user_id = ?", f.other.ID); n != 1 {
			t.Errorf("unrelated forum post was deleted")
		}
	})

	t.Run("deleting the client side removes shared appointments", func(t *testing.T) {
		db := newTestDB(t)
		f := seedFixture(t, db)

		// f.other is the client on every appointment but owns no counselor
		// profile.
		if err := DeleteUser(db, f.other.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if n := countWhere(t, db, &models.Appointment{}, "client_id = ?", f.other.ID); n != 0 {
			t.Errorf("%d client appointments survived", n)
		}
		// The counselor's profile belongs to the surviving user.
		if n := countWhere(t, db, &models.Counselor{}, "id = ?", f.counselor.ID); n != 1 {
			t.Errorf("counselor profile of surviving user was deleted")
		}
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		db := newTestDB(t)
		if err := DeleteUser(db, 424242); !errors.Is(err, utils.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("a failing step rolls back everything", func(t *testing.T) {
		db := newTestDB(t)
		f := seedFixture(t, db)

		before := countWhere(t, db, &models.LiveChatMessage{}, "1 = 1")

		forced := errors.New("forced failure")
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := deleteUserTx(tx, f.user.ID); err != nil {
				return err
			}
			return forced
		})
		if !errors.Is(err, forced) {
			t.Fatalf("expected forced error, got %v", err)
		}

		if n := countWhere(t, db, &models.User{}, "id = ?", f.user.ID); n != 1 {
			t.Errorf("user record missing after rollback")
		}
		if n := countWhere(t, db, &models.Counselor{}, "id = ?", f.counselor.ID); n != 1 {
			t.Errorf("counselor profile missing after rollback")
		}
		if n := countWhere(t, db, &models.LiveChatMessage{}, "1 = 1"); n != before {
			t.Errorf("live chat messages changed across rollback: %d != %d", n, before)
		}
	})
}

func TestDeleteCounselor(t *testing.T) {
	t.Run("removes the profile subtree but not the user", func(t *testing.T) {
		db := newTestDB(t)
		f := seedFixture(t, db)

		if err := DeleteCounselor(db, f.counselor.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		if n := countWhere(t, db, &models.Counselor{}, "id = ?", f.counselor.ID); n != 0 {
			t.Errorf("counselor profile survived")
		}
		if n := countWhere(t, db, &models.AvailabilityRule{}, "counselor_id = ?", f.counselor.ID); n != 0 {
			t.Errorf("availability rules survived")
		}
		if n := countWhere(t, db, &models.Appointment{}, "counselor_id = ?", f.counselor.ID); n != 0 {
			t.Errorf("appointments survived")
		}
		if n := countWhere(t, db, &models.LiveChatMessage{}, "1 = 1"); n != 0 {
			t.Errorf("%d live chat messages survived", n)
		}

		// The owning user keeps their account and unrelated records.
		if n := countWhere(t, db, &models.User{}, "id = ?", f.user.ID); n != 1 {
			t.Errorf("owning user was deleted")
		}
		if n := countWhere(t, db, &models.ForumPost{}, "user_id = ?", f.user.ID); n != 1 {
			t.Errorf("owning user's forum post was deleted")
		}
		if n := countWhere(t, db, &models.JournalEntry{}, "user_id = ?", f.user.ID); n != 1 {
			t.Errorf("owning user's journal entry was deleted")
		}
	})

	t.Run("unknown counselor is not found", func(t *testing.T) {
		db := newTestDB(t)
		if err := DeleteCounselor(db, 424242); !errors.Is(err, utils.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
