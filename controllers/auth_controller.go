package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	config "github.com/phillip/shelter-donations-go/config"
	models "github.com/phillip/shelter-donations-go/models"
	repository "github.com/phillip/shelter-donations-go/repository"
	services "github.com/phillip/shelter-donations-go/services"
	utils "github.com/phillip/shelter-donations-go/utils"
)

func issueToken(c *gin.Context, cfg *config.Config, user *models.User, status int) {
	token, err := utils.GenerateToken(cfg.JWTSecret, user.ID.Hex(), user.Role, cfg.JWTTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(status, gin.H{
		"token":     token,
		"expiresIn": int64(cfg.JWTTTL.Seconds()),
		"user":      user,
	})
}

// ---------------- REGISTER ----------------
func Register(users *repository.UserRepository, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name     string `json:"name" binding:"required"`
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required,min=8"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not hash password"})
			return
		}

		now := time.Now()
		user := &models.User{
			ID:           primitive.NewObjectID(),
			Name:         strings.TrimSpace(input.Name),
			Email:        input.Email,
			PasswordHash: string(hash),
			Role:         models.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, services.ErrConflict) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user", "details": err.Error()})
			return
		}

		issueToken(c, cfg, user, http.StatusCreated)
	}
}

// ---------------- LOGIN ----------------
func Login(users *repository.UserRepository, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := users.FindByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not look up user", "details": err.Error()})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}

		issueToken(c, cfg, user, http.StatusOK)
	}
}
