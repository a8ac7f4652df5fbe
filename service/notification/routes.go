package notification

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// NotificationHandler manages the Expo device registry.
type NotificationHandler struct {
	db *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", utils.AuthMiddleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices", utils.AuthMiddleware(h.GetMyDevices)).Methods("GET")
	router.HandleFunc("/devices/{id}", utils.AuthMiddleware(h.DeleteDevice)).Methods("DELETE")
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	device.UserID = userID

	if device.Token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	if _, err := expo.NewExponentPushToken(device.Token); err != nil {
		http.Error(w, "Invalid Expo push token format", http.StatusBadRequest)
		return
	}

	var existingDevice models.Device
	result := h.db.Where("token = ? AND user_id = ?", device.Token, userID).First(&existingDevice)
	if result.Error == nil {
		existingDevice.UpdatedAt = time.Now()
		existingDevice.DeviceType = device.DeviceType
		existingDevice.DeviceName = device.DeviceName
		if err := h.db.Save(&existingDevice).Error; err != nil {
			http.Error(w, "Error updating device", http.StatusInternalServerError)
			return
		}
		device = existingDevice
	} else {
		if err := h.db.Create(&device).Error; err != nil {
			http.Error(w, "Error creating device", http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

func (h *NotificationHandler) GetMyDevices(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var devices []models.Device
	if err := h.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, devices)
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid device ID", http.StatusBadRequest)
		return
	}

	result := h.db.Where("id = ? AND user_id = ?", deviceID, userID).Delete(&models.Device{})
	if result.Error != nil {
		http.Error(w, "Error deleting device", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device deleted successfully",
	})
}
