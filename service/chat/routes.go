package chat

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// ChatHandler records AI companion exchanges. Response generation and
// sentiment classification live in an external service; this handler only
// relays the message and stores what comes back.
type ChatHandler struct {
	db     *gorm.DB
	client *http.Client
}

func NewChatHandler(db *gorm.DB) *ChatHandler {
	return &ChatHandler{
		db:     db,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/chat", utils.AuthMiddleware(h.SendMessage)).Methods("POST")
	router.HandleFunc("/chat/history", utils.AuthMiddleware(h.GetHistory)).Methods("GET")
}

type analysisResult struct {
	Emotion            string  `json:"emotion"`
	Confidence         float64 `json:"confidence"`
	NeedsImmediateHelp bool    `json:"needs_immediate_help"`
}

func (h *ChatHandler) analyze(message string) (*analysisResult, error) {
	payload, _ := json.Marshal(map[string]string{"text": message})

	req, err := http.NewRequest("POST", os.Getenv("AI_SERVICE_URL")+"/analyze", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result analysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var messageRequest struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&messageRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if messageRequest.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	chat := models.Chat{
		UserID:  userID,
		Message: messageRequest.Message,
	}

	// Degrade gracefully when the analysis service is down: the exchange is
	// still recorded, just unclassified.
	if analysis, err := h.analyze(messageRequest.Message); err != nil {
		log.Printf("Sentiment analysis unavailable: %v", err)
	} else {
		chat.Emotion = analysis.Emotion
		chat.Confidence = analysis.Confidence
		chat.Flagged = analysis.NeedsImmediateHelp
	}

	if chat.Flagged {
		chat.Response = "It sounds like you are going through something very difficult. " +
			"Please consider reaching out to a crisis line or booking a session with a counselor right away."
	} else {
		chat.Response = "Thank you for sharing. Would you like to tell me more about how you are feeling?"
	}

	if err := h.db.Create(&chat).Error; err != nil {
		http.Error(w, "Error saving chat", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	query := h.db.Model(&models.Chat{}).Where("user_id = ?", userID)

	var total int64
	query.Count(&total)

	var chats []models.Chat
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&chats).Error; err != nil {
		http.Error(w, "Error retrieving chats", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"chats":       chats,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
