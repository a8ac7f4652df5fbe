package journal

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// JournalHandler manages private journal entries. Entries are owner-only;
// not even admins read them through this surface.
type JournalHandler struct {
	db *gorm.DB
}

func NewJournalHandler(db *gorm.DB) *JournalHandler {
	return &JournalHandler{db: db}
}

func (h *JournalHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/journal", utils.AuthMiddleware(h.CreateEntry)).Methods("POST")
	router.HandleFunc("/journal", utils.AuthMiddleware(h.GetEntries)).Methods("GET")
	router.HandleFunc("/journal/{id}", utils.AuthMiddleware(h.GetEntry)).Methods("GET")
	router.HandleFunc("/journal/{id}", utils.AuthMiddleware(h.UpdateEntry)).Methods("PUT")
	router.HandleFunc("/journal/{id}", utils.AuthMiddleware(h.DeleteEntry)).Methods("DELETE")
}

func (h *JournalHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var entry models.JournalEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if entry.Content == "" {
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}

	entry.ID = 0
	entry.UserID = userID

	if err := h.db.Create(&entry).Error; err != nil {
		http.Error(w, "Error creating entry", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, entry)
}

func (h *JournalHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.JournalEntry{}).Where("user_id = ?", userID)

	var total int64
	query.Count(&total)

	var entries []models.JournalEntry
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&entries).Error; err != nil {
		http.Error(w, "Error retrieving entries", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries":     entries,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *JournalHandler) getOwnedEntry(w http.ResponseWriter, r *http.Request) (*models.JournalEntry, bool) {
	vars := mux.Vars(r)
	entryID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid entry ID", http.StatusBadRequest)
		return nil, false
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())

	var entry models.JournalEntry
	if err := h.db.First(&entry, entryID).Error; err != nil {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return nil, false
	}
	if entry.UserID != userID {
		http.Error(w, "Not your entry", http.StatusForbidden)
		return nil, false
	}
	return &entry, true
}

func (h *JournalHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getOwnedEntry(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, entry)
}

func (h *JournalHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getOwnedEntry(w, r)
	if !ok {
		return
	}

	var updateRequest struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
		Mood    *string `json:"mood"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if updateRequest.Title != nil {
		entry.Title = *updateRequest.Title
	}
	if updateRequest.Content != nil {
		entry.Content = *updateRequest.Content
	}
	if updateRequest.Mood != nil {
		entry.Mood = *updateRequest.Mood
	}

	if err := h.db.Save(entry).Error; err != nil {
		http.Error(w, "Error updating entry", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, entry)
}

func (h *JournalHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getOwnedEntry(w, r)
	if !ok {
		return
	}

	if err := h.db.Unscoped().Delete(entry).Error; err != nil {
		http.Error(w, "Error deleting entry", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Entry deleted successfully",
	})
}
