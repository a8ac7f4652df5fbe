package livechat

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
	"github.com/mindwell-app/mindwell-server/service/appointment"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type LiveChatHandler struct {
	db  *gorm.DB
	hub *Hub
}

func NewLiveChatHandler(db *gorm.DB) *LiveChatHandler {
	return &LiveChatHandler{
		db:  db,
		hub: NewHub(db),
	}
}

func (h *LiveChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/{id}/session", utils.AuthMiddleware(h.HandleSession))
	router.HandleFunc("/appointments/{id}/messages", utils.AuthMiddleware(h.GetTranscript)).Methods("GET")
}

// sessionParticipant loads the appointment and verifies the requester is one
// of its two parties.
func (h *LiveChatHandler) sessionParticipant(w http.ResponseWriter, r *http.Request) (*models.Appointment, uint, bool) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return nil, 0, false
	}

	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, 0, false
	}

	var appt models.Appointment
	if err := h.db.First(&appt, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return nil, 0, false
	}

	var counselor models.Counselor
	if err := h.db.First(&counselor, appt.CounselorID).Error; err != nil {
		http.Error(w, "Counselor not found", http.StatusNotFound)
		return nil, 0, false
	}

	if userID != appt.ClientID && userID != counselor.UserID {
		http.Error(w, "Not a participant of this session", http.StatusForbidden)
		return nil, 0, false
	}
	return &appt, userID, true
}

// HandleSession upgrades a participant into the live session room, gated on
// the same eligibility rule the read API reports.
func (h *LiveChatHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	appt, userID, ok := h.sessionParticipant(w, r)
	if !ok {
		return
	}

	if !appointment.CanJoinSession(appt, time.Now().UTC()) {
		http.Error(w, "Session is not joinable now", http.StatusUnprocessableEntity)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:           h.hub,
		conn:          conn,
		send:          make(chan []byte, 16),
		userID:        userID,
		appointmentID: appt.ID,
	}
	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *LiveChatHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	appt, _, ok := h.sessionParticipant(w, r)
	if !ok {
		return
	}

	var messages []models.LiveChatMessage
	if err := h.db.Where("appointment_id = ?", appt.ID).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving messages", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, messages)
}
