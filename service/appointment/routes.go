package appointment

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// Notifier is the post-commit side channel. Calls happen outside the booking
// transaction and their failure never reverses a committed appointment.
type Notifier interface {
	BookingConfirmed(appt *models.Appointment)
	BookingCancelled(appt *models.Appointment)
}

type AppointmentHandler struct {
	db       *gorm.DB
	notifier Notifier
}

func NewAppointmentHandler(db *gorm.DB, notifier Notifier) *AppointmentHandler {
	return &AppointmentHandler{db: db, notifier: notifier}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/book", utils.AuthMiddleware(h.BookAppointment)).Methods("POST")
	router.HandleFunc("/appointments/mine", utils.AuthMiddleware(h.GetMyAppointments)).Methods("GET")
	router.HandleFunc("/appointments/counselor/{counselorId}", utils.AuthMiddleware(h.GetCounselorAppointments)).Methods("GET")
	router.HandleFunc("/appointments/{id}", utils.AuthMiddleware(h.GetAppointment)).Methods("GET")
	router.HandleFunc("/appointments/{id}/cancel", utils.AuthMiddleware(h.CancelAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/status", utils.AdminMiddleware(h.UpdateAppointmentStatus)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/join", utils.AuthMiddleware(h.JoinEligibility)).Methods("GET")
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	clientID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var bookingRequest struct {
		CounselorID uint      `json:"counselor_id"`
		StartTime   time.Time `json:"start_time"`
		Notes       string    `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if bookingRequest.StartTime.IsZero() {
		http.Error(w, "start_time is required", http.StatusBadRequest)
		return
	}

	appt, err := Book(h.db, BookingRequest{
		ClientID:    clientID,
		CounselorID: bookingRequest.CounselorID,
		StartTime:   bookingRequest.StartTime,
		Notes:       bookingRequest.Notes,
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	// Attach both parties before handing the struct to the notifier
	// goroutine; nothing may write to it after that point.
	if err := h.db.Preload("Client").Preload("Counselor").First(appt, appt.ID).Error; err != nil {
		log.Printf("Error reloading appointment %d: %v", appt.ID, err)
	}

	// Fire-and-forget relative to the response; the appointment is the
	// system of record, a missed email is degraded but acceptable.
	go h.notifier.BookingConfirmed(appt)

	utils.WriteJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	requesterID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var appt models.Appointment
	if err := h.db.Preload("Client").Preload("Counselor").First(&appt, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	var counselorUserID uint
	if appt.Counselor != nil {
		counselorUserID = appt.Counselor.UserID
	}
	if requesterID != appt.ClientID && requesterID != counselorUserID && !utils.IsAdminFromContext(r.Context()) {
		http.Error(w, "Not your appointment", http.StatusForbidden)
		return
	}

	appt.Status = EffectiveStatus(&appt, time.Now().UTC())

	utils.WriteJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) GetMyAppointments(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Where("client_id = ?", userID).Preload("Counselor")

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("start_time DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	for i := range appointments {
		appointments[i].Status = EffectiveStatus(&appointments[i], now)
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *AppointmentHandler) GetCounselorAppointments(w http.ResponseWriter, r *http.Request) {
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
		http.Error(w, "Not your schedule", http.StatusForbidden)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Where("counselor_id = ?", counselorID).Preload("Client")

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("start_time DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	for i := range appointments {
		appointments[i].Status = EffectiveStatus(&appointments[i], now)
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	requesterID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	appt, err := Cancel(h.db, uint(appointmentID), requesterID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	go h.notifier.BookingCancelled(appt)

	utils.WriteJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var statusUpdate struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusUpdate); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := UpdateStatus(h.db, uint(appointmentID), statusUpdate.Status)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	log.Printf("Admin set appointment %d status to %s", appt.ID, appt.Status)

	utils.WriteJSON(w, http.StatusOK, appt)
}

// JoinEligibility answers whether the live session can be entered right now.
func (h *AppointmentHandler) JoinEligibility(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	requesterID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var appt models.Appointment
	if err := h.db.First(&appt, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	var counselor models.Counselor
	if err := h.db.First(&counselor, appt.CounselorID).Error; err != nil {
		http.Error(w, "Counselor not found", http.StatusNotFound)
		return
	}
	if requesterID != appt.ClientID && requesterID != counselor.UserID && !utils.IsAdminFromContext(r.Context()) {
		http.Error(w, "Not a participant of this appointment", http.StatusForbidden)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointment_id": appt.ID,
		"can_join":       CanJoinSession(&appt, time.Now().UTC()),
	})
}
