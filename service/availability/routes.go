package availability

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

type AvailabilityHandler struct {
	db *gorm.DB
}

func NewAvailabilityHandler(db *gorm.DB) *AvailabilityHandler {
	return &AvailabilityHandler{db: db}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/counselors/{counselorId}/availability", h.GetAvailability).Methods("GET")
	router.HandleFunc("/counselors/{counselorId}/availability", utils.AuthMiddleware(h.ReplaceAvailability)).Methods("PUT")
	router.HandleFunc("/counselors/{counselorId}/slots", h.GetAvailableSlots).Methods("GET")
}

func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	counselorID, err := strconv.ParseUint(vars["counselorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid counselor ID", http.StatusBadRequest)
		return
	}

	var rules []models.AvailabilityRule
	if err := h.db.Where("counselor_id = ?", counselorID).
		Order("day_of_week, start_time").Find(&rules).Error; err != nil {
		http.Error(w, "Error retrieving availability", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, rules)
}

// ReplaceAvailability swaps the counselor's full rule set. Bookings in flight
// need no coordination with this update: the booking coordinator never trusts
// stale availability, only the live overlap check.
func (h *AvailabilityHandler) ReplaceAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	counselorID, err := strconv.ParseUint(vars["counselorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid counselor ID", http.StatusBadRequest)
		return
	}

	requesterID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var counselor models.Counselor
	if err := h.db.First(&counselor, counselorID).Error; err != nil {
		http.Error(w, "Counselor not found", http.StatusNotFound)
		return
	}

	if counselor.UserID != requesterID && !utils.IsAdminFromContext(r.Context()) {
		http.Error(w, "Not your profile", http.StatusForbidden)
		return
	}

	var rules []models.AvailabilityRule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := ValidateRules(rules); err != nil {
		utils.WriteError(w, err)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("counselor_id = ?", counselor.ID).
			Unscoped().Delete(&models.AvailabilityRule{}).Error; err != nil {
			return err
		}
		for i := range rules {
			rules[i].ID = 0
			rules[i].CounselorID = counselor.ID
			if err := tx.Create(&rules[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, rules)
}

// GetAvailableSlots lists the free start times for one date. An empty list is
// not an error; it simply means the counselor is closed or fully booked.
func (h *AvailabilityHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	counselorID, err := strconv.ParseUint(vars["counselorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid counselor ID", http.StatusBadRequest)
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var counselor models.Counselor
	if err := h.db.First(&counselor, counselorID).Error; err != nil {
		http.Error(w, "Counselor not found", http.StatusNotFound)
		return
	}
	if !counselor.IsActive {
		http.Error(w, "Counselor not accepting bookings", http.StatusNotFound)
		return
	}

	var rules []models.AvailabilityRule
	if err := h.db.Where("counselor_id = ?", counselor.ID).Find(&rules).Error; err != nil {
		http.Error(w, "Error retrieving availability", http.StatusInternalServerError)
		return
	}

	// Midnight-crossing rules can spill into the next day, so fetch two days
	// of live bookings starting at the requested date.
	var appointments []models.Appointment
	if err := h.db.Where("counselor_id = ? AND status NOT IN ? AND start_time >= ? AND start_time < ?",
		counselor.ID, models.CancelledStatuses, date, date.Add(48*time.Hour)).
		Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	booked := make([]time.Time, 0, len(appointments))
	for _, appt := range appointments {
		booked = append(booked, appt.StartTime)
	}

	slots := GenerateSlots(rules, counselor.SlotDuration, date, booked, time.Now().UTC())

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"counselor_id": counselor.ID,
		"date":         dateStr,
		"slots":        slots,
	})
}
