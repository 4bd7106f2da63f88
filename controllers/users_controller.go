package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	middleware "github.com/phillip/shelter-donations-go/middleware"
	services "github.com/phillip/shelter-donations-go/services"
)

// GetMe returns the caller's profile including donation stats.
func GetMe(users services.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := middleware.IdentityFrom(c)
		if caller == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		respondUser(c, users, caller.UserID)
	}
}

func GetUser(users services.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "user")
		if !ok {
			return
		}
		if !middleware.IdentityFrom(c).CanAccessUser(oid) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		respondUser(c, users, oid)
	}
}

func respondUser(c *gin.Context, users services.UserRepository, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := users.FindByID(ctx, id)
	if err != nil {
		respondServiceError(c, err, "could not fetch user")
		return
	}
	if notModified(c, user.ID, user.UpdatedAt) {
		return
	}
	c.JSON(http.StatusOK, user)
}
