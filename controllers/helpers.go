package controllers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/shelter-donations-go/models"
	services "github.com/phillip/shelter-donations-go/services"
	utils "github.com/phillip/shelter-donations-go/utils"
)

// respondServiceError maps service errors onto HTTP statuses.
func respondServiceError(c *gin.Context, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
	}
}

func paramObjectID(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + label + " id"})
		return primitive.NilObjectID, false
	}
	return oid, true
}

// pageQuery reads ?page= and ?limit=; bad values fall back to defaults.
func pageQuery(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(models.DefaultPage)))
	if err != nil {
		page = models.DefaultPage
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultLimit)))
	if err != nil {
		limit = models.DefaultLimit
	}
	return models.NormalizePage(page, limit)
}

// notModified sets the ETag header and reports whether the client copy is current.
func notModified(c *gin.Context, id primitive.ObjectID, updatedAt time.Time) bool {
	etag := utils.GenerateETag(id, updatedAt)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	return false
}

func requesterCanManage(c *gin.Context, owner primitive.ObjectID) bool {
	role := c.GetString("role")
	return role == models.RoleAdmin || owner.Hex() == c.GetString("user_id")
}

// nameSearch matches q literally, case-insensitive, anywhere in a name.
func nameSearch(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}
