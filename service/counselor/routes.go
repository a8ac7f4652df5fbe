package counselor

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
	"github.com/mindwell-app/mindwell-server/service/cascade"
)

type CounselorHandler struct {
	db *gorm.DB
}

func NewCounselorHandler(db *gorm.DB) *CounselorHandler {
	return &CounselorHandler{db: db}
}

func (h *CounselorHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/counselors", utils.AdminMiddleware(h.CreateCounselor)).Methods("POST")
	router.HandleFunc("/counselors", h.GetCounselors).Methods("GET")
	router.HandleFunc("/counselors/{id}", h.GetCounselor).Methods("GET")
	router.HandleFunc("/counselors/{id}", utils.AuthMiddleware(h.UpdateCounselor)).Methods("PUT")
	router.HandleFunc("/counselors/{id}", utils.AdminMiddleware(h.DeleteCounselor)).Methods("DELETE")
}

// CreateCounselor binds a professional profile to an existing user. The 1:1
// ownership is enforced here, not by the storage layer.
func (h *CounselorHandler) CreateCounselor(w http.ResponseWriter, r *http.Request) {
	var createRequest struct {
		UserID       uint   `json:"user_id"`
		Specialty    string `json:"specialty"`
		Bio          string `json:"bio"`
		SlotDuration int    `json:"slot_duration"`
	}

	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if createRequest.SlotDuration <= 0 {
		http.Error(w, "slot_duration must be a positive number of minutes", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.First(&user, createRequest.UserID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	var existing models.Counselor
	if err := h.db.Where("user_id = ?", createRequest.UserID).First(&existing).Error; err == nil {
		http.Error(w, "User already has a counselor profile", http.StatusConflict)
		return
	}

	counselor := models.Counselor{
		UserID:       createRequest.UserID,
		Specialty:    createRequest.Specialty,
		Bio:          createRequest.Bio,
		SlotDuration: createRequest.SlotDuration,
		IsActive:     true,
	}

	if err := h.db.Create(&counselor).Error; err != nil {
		http.Error(w, "Error creating counselor", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, counselor)
}

// GetCounselors lists active counselors for public browsing.
func (h *CounselorHandler) GetCounselors(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	query := h.db.Model(&models.Counselor{}).Where("is_active = ?", true).
		Preload("User").Preload("Availability")

	if specialty := r.URL.Query().Get("specialty"); specialty != "" {
		query = query.Where("specialty = ?", specialty)
	}

	var total int64
	query.Count(&total)

	var counselors []models.Counselor
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&counselors).Error; err != nil {
		http.Error(w, "Error retrieving counselors", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"counselors":  counselors,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *CounselorHandler) GetCounselor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	counselorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid counselor ID", http.StatusBadRequest)
		return
	}

	var counselor models.Counselor
	if err := h.db.Preload("User").Preload("Availability").First(&counselor, counselorID).Error; err != nil {
		http.Error(w, "Counselor not found", http.StatusNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, counselor)
}

func (h *CounselorHandler) UpdateCounselor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	counselorID, err := strconv.ParseUint(vars["id"], 10, 64)
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

	isAdmin := utils.IsAdminFromContext(r.Context())
	if counselor.UserID != requesterID && !isAdmin {
		http.Error(w, "Not your profile", http.StatusForbidden)
		return
	}

	var updateRequest struct {
		Specialty    *string `json:"specialty"`
		Bio          *string `json:"bio"`
		SlotDuration *int    `json:"slot_duration"`
		IsActive     *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{}
	if updateRequest.Specialty != nil {
		updates["specialty"] = *updateRequest.Specialty
	}
	if updateRequest.Bio != nil {
		updates["bio"] = *updateRequest.Bio
	}
	if updateRequest.SlotDuration != nil {
		if *updateRequest.SlotDuration <= 0 {
			http.Error(w, "slot_duration must be a positive number of minutes", http.StatusBadRequest)
			return
		}
		// Existing appointments keep their frozen end times.
		updates["slot_duration"] = *updateRequest.SlotDuration
	}
	if updateRequest.IsActive != nil {
		if !isAdmin {
			http.Error(w, "Only admins may change active status", http.StatusForbidden)
			return
		}
		updates["is_active"] = *updateRequest.IsActive
	}

	if len(updates) > 0 {
		if err := h.db.Model(&counselor).Updates(updates).Error; err != nil {
			http.Error(w, "Error updating counselor", http.StatusInternalServerError)
			return
		}
	}

	h.db.First(&counselor, counselorID)
	utils.WriteJSON(w, http.StatusOK, counselor)
}

// DeleteCounselor removes the profile with its full dependency closure; the
// owning user account survives.
func (h *CounselorHandler) DeleteCounselor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	counselorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid counselor ID", http.StatusBadRequest)
		return
	}

	if err := cascade.DeleteCounselor(h.db, uint(counselorID)); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Counselor and all dependent records deleted",
	})
}
