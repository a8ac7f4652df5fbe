package forum

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

type PostHandler struct {
	db *gorm.DB
}

func NewPostHandler(db *gorm.DB) *PostHandler {
	return &PostHandler{db: db}
}

func (h *PostHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/posts", utils.AuthMiddleware(h.CreatePost)).Methods("POST")
	router.HandleFunc("/posts", h.GetPosts).Methods("GET")
	router.HandleFunc("/posts/{id}", h.GetPost).Methods("GET")
	router.HandleFunc("/posts/{id}", utils.AuthMiddleware(h.DeletePost)).Methods("DELETE")

	router.HandleFunc("/posts/{id}/comments", utils.AuthMiddleware(h.AddComment)).Methods("POST")
	router.HandleFunc("/posts/{id}/comments", h.GetComments).Methods("GET")
	router.HandleFunc("/posts/{id}/comments/{commentId}", utils.AuthMiddleware(h.DeleteComment)).Methods("DELETE")
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var createRequest struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if createRequest.Title == "" || createRequest.Content == "" {
		http.Error(w, "Title and content are required", http.StatusBadRequest)
		return
	}

	post := models.ForumPost{
		UserID:  userID,
		Title:   createRequest.Title,
		Content: createRequest.Content,
	}

	if err := h.db.Create(&post).Error; err != nil {
		http.Error(w, "Error creating post", http.StatusInternalServerError)
		return
	}

	h.db.Preload("User").First(&post, post.ID)
	utils.WriteJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.ForumPost{}).Preload("User")

	var total int64
	query.Count(&total)

	var posts []models.ForumPost
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&posts).Error; err != nil {
		http.Error(w, "Error retrieving posts", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"posts":       posts,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var post models.ForumPost
	if err := h.db.Preload("User").Preload("Comments").Preload("Comments.User").
		First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, post)
}

// DeletePost removes a post and its comments together; a post without its
// thread is as orphaned as a comment without its post.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())

	var post models.ForumPost
	if err := h.db.First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if post.UserID != userID && !utils.IsAdminFromContext(r.Context()) {
		http.Error(w, "Not your post", http.StatusForbidden)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("post_id = ?", post.ID).Delete(&models.ForumComment{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&post).Error
	})
	if err != nil {
		http.Error(w, "Error deleting post", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Post deleted successfully",
	})
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var post models.ForumPost
	if err := h.db.First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	var commentRequest struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&commentRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if commentRequest.Content == "" {
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}

	comment := models.ForumComment{
		UserID:  userID,
		PostID:  post.ID,
		Content: commentRequest.Content,
	}

	if err := h.db.Create(&comment).Error; err != nil {
		http.Error(w, "Error creating comment", http.StatusInternalServerError)
		return
	}

	h.db.Preload("User").First(&comment, comment.ID)
	utils.WriteJSON(w, http.StatusCreated, comment)
}

func (h *PostHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var comments []models.ForumComment
	if err := h.db.Where("post_id = ?", postID).Preload("User").
		Order("created_at ASC").Find(&comments).Error; err != nil {
		http.Error(w, "Error retrieving comments", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, comments)
}

func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	commentID, err := strconv.ParseUint(vars["commentId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())

	var comment models.ForumComment
	if err := h.db.First(&comment, commentID).Error; err != nil {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}
	if comment.UserID != userID && !utils.IsAdminFromContext(r.Context()) {
		http.Error(w, "Not your comment", http.StatusForbidden)
		return
	}

	if err := h.db.Unscoped().Delete(&comment).Error; err != nil {
		http.Error(w, "Error deleting comment", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Comment deleted successfully",
	})
}
