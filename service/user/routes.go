package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
	"github.com/mindwell-app/mindwell-server/service/cascade"
	"github.com/mindwell-app/mindwell-server/service/notification"
)

type Handler struct {
	db     *gorm.DB
	mailer *notification.Mailer
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, mailer: notification.NewMailerFromEnv()}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/user/verify", h.verifyUser).Methods("POST")
	router.HandleFunc("/refresh", h.handleRefreshToken).Methods("POST")
	router.HandleFunc("/reset-password", h.handlePasswordResetRequest).Methods("POST")
	router.HandleFunc("/reset-password/{userId}/confirm", h.handlePasswordReset).Methods("POST")

	router.HandleFunc("/users", utils.AdminMiddleware(h.GetUsers)).Methods("GET")
	router.HandleFunc("/users/{id}", utils.AuthMiddleware(h.GetUser)).Methods("GET")
	router.HandleFunc("/users/{id}", utils.AuthMiddleware(h.UpdateUser)).Methods("PUT")
	router.HandleFunc("/users/{id}", utils.AdminMiddleware(h.DeleteUser)).Methods("DELETE")
}

func sixDigitCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var registerRequest struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if registerRequest.Email == "" || registerRequest.Password == "" || registerRequest.FullName == "" {
		http.Error(w, "Full name, email and password are required", http.StatusBadRequest)
		return
	}

	var existing models.User
	if err := h.db.Where("email = ?", registerRequest.Email).First(&existing).Error; err == nil {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error processing password", http.StatusInternalServerError)
		return
	}

	verificationCode := sixDigitCode()

	user := models.User{
		FullName:              registerRequest.FullName,
		Email:                 registerRequest.Email,
		PasswordHash:          string(hashed),
		EmailVerificationCode: verificationCode,
		VerificationExpiry:    time.Now().Add(15 * time.Minute),
	}

	if err := h.db.Create(&user).Error; err != nil {
		http.Error(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	if err := h.mailer.SendCode(user.Email, "Email Verification Code", verificationCode); err != nil {
		log.Printf("Error sending verification email to %s: %v", user.Email, err)
	}

	utils.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) verifyUser(w http.ResponseWriter, r *http.Request) {
	var verifyRequest struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&verifyRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", verifyRequest.Email).First(&user).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if user.EmailVerificationCode != verifyRequest.Code || time.Now().After(user.VerificationExpiry) {
		http.Error(w, "Invalid or expired verification code", http.StatusBadRequest)
		return
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"email_verified":          true,
		"email_verification_code": "",
	}).Error; err != nil {
		http.Error(w, "Error verifying user", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", loginRequest.Email).First(&user).Error; err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, err := generateJWT(&user)
	if err != nil {
		http.Error(w, "Error generating access token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
		return
	}

	if err := saveRefreshToken(h.db, user.ID, refreshToken); err != nil {
		http.Error(w, "Error saving refresh token", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()

	var user models.User
	if err := tx.Where("refresh_token = ?", refreshRequest.RefreshToken).First(&user).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	if user.RefreshTokenExpiredAt.Before(time.Now()) {
		tx.Rollback()
		http.Error(w, "Refresh token expired", http.StatusUnauthorized)
		return
	}

	newAccessToken, err := generateJWT(&user)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error generating new token", http.StatusInternalServerError)
		return
	}

	newRefreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
		return
	}

	// Rotation: the presented token is spent either way.
	if err := tx.Model(&user).Updates(map[string]interface{}{
		"refresh_token":            newRefreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating refresh token", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"access_token":  newAccessToken,
		"refresh_token": newRefreshToken,
	})
}

func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var resetRequest struct {
		Email string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if resetRequest.Email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}

	// Response stays vague whether or not the account exists.
	vague := map[string]string{
		"message": "If an account exists, a reset code will be sent to your email",
	}

	var user models.User
	if err := h.db.Where("email = ?", resetRequest.Email).First(&user).Error; err != nil {
		utils.WriteJSON(w, http.StatusOK, vague)
		return
	}

	resetToken := sixDigitCode()

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    user.ID,
			Token:     resetToken,
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}).Error
	})
	if err != nil {
		http.Error(w, "Error processing reset request", http.StatusInternalServerError)
		return
	}

	if err := h.mailer.SendCode(user.Email, "Password Reset Code", resetToken); err != nil {
		http.Error(w, "Error sending email", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, vague)
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var resetRequest struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var resetToken models.PasswordResetToken
	if err := h.db.Where("user_id = ? AND token = ?", userID, resetRequest.Token).First(&resetToken).Error; err != nil {
		http.Error(w, "Invalid reset token", http.StatusBadRequest)
		return
	}
	if time.Now().After(resetToken.ExpiresAt) {
		http.Error(w, "Reset token expired", http.StatusBadRequest)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(resetRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error processing password", http.StatusInternalServerError)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("password_hash", string(hashed)).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.PasswordResetToken{}).Error
	})
	if err != nil {
		http.Error(w, "Error resetting password", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}

func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.User{}).Preload("Counselor")

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		http.Error(w, "Error retrieving users", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users":       users,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	requesterID, _ := utils.GetUserIDFromContext(r.Context())
	if uint(userID) != requesterID && !utils.IsAdminFromContext(r.Context()) {
		http.Error(w, "Not your account", http.StatusForbidden)
		return
	}

	var user models.User
	if err := h.db.Preload("Counselor").First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, user)
}

// UpdateUser edits profile fields. An admin demoting their own account is
// silently coerced back to admin: the immediate-lockout guard.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	requesterID, _ := utils.GetUserIDFromContext(r.Context())
	isAdmin := utils.IsAdminFromContext(r.Context())
	if uint(userID) != requesterID && !isAdmin {
		http.Error(w, "Not your account", http.StatusForbidden)
		return
	}

	var updateRequest struct {
		FullName *string `json:"full_name"`
		IsAdmin  *bool   `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	updates := map[string]interface{}{}
	if updateRequest.FullName != nil {
		updates["full_name"] = *updateRequest.FullName
	}
	if updateRequest.IsAdmin != nil && isAdmin {
		adminFlag := *updateRequest.IsAdmin
		if uint(userID) == requesterID && !adminFlag {
			adminFlag = true
		}
		updates["is_admin"] = adminFlag
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			http.Error(w, "Error updating user", http.StatusInternalServerError)
			return
		}
	}

	h.db.First(&user, userID)
	utils.WriteJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user and their full dependency closure. An admin may
// not delete their own account through this path.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	requesterID, _ := utils.GetUserIDFromContext(r.Context())
	if uint(userID) == requesterID {
		utils.WriteError(w, fmt.Errorf("%w: admins cannot delete their own account", utils.ErrForbidden))
		return
	}

	if err := cascade.DeleteUser(h.db, uint(userID)); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User and all dependent records deleted",
	})
}

func generateJWT(user *models.User) (string, error) {
	claims := &utils.Claims{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// Read at call time; the key may come from a .env file loaded after
	// package init.
	return token.SignedString([]byte(os.Getenv("SECRET_KEY")))
}

func generateRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
	mac.Write([]byte(fmt.Sprintf("%d", userID)))
	mac.Write(b)

	signature := mac.Sum(nil)
	return fmt.Sprintf("%d_%x_%x", userID, b, signature), nil
}

func saveRefreshToken(db *gorm.DB, userID uint, refreshToken string) error {
	return db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"refresh_token":            refreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	}).Error
}
