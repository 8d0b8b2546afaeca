package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/mw"
)

type registerRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required,min=8"`
	CardID        string `json:"cardId" binding:"required"`
	VehicleNumber string `json:"vehicleNumber" binding:"required"`
	Role          string `json:"role" binding:"required,oneof=Admin User"`
}

// Register handles POST /users/sign-up.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	db := h.store.DB()
	var existing model.User
	err := db.Where("email = ? OR username = ?", req.Email, req.Username).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to hash password"})
		return
	}

	user := model.User{
		Email:         req.Email,
		Username:      req.Username,
		Password:      string(hash),
		CardID:        req.CardID,
		VehicleNumber: req.VehicleNumber,
		Role:          req.Role,
		IsActive:      true,
		LastLogin:     time.Now().UTC(),
	}
	if err := db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User was registered"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /users/login and issues a JWT.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	db := h.store.DB()
	var user model.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid password"})
		return
	}

	if h.cfg.Auth.JWTSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing secret key"})
		return
	}

	now := time.Now().UTC()
	claims := mw.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.Auth.TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.Auth.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
		return
	}

	db.Model(&user).Update("last_login", now)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"payload": gin.H{
			"user": gin.H{
				"id":       user.ID,
				"username": user.Username,
				"role":     user.Role,
			},
		},
	})
}
