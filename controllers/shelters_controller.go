package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	config "github.com/phillip/shelter-donations-go/config"
	models "github.com/phillip/shelter-donations-go/models"
	repository "github.com/phillip/shelter-donations-go/repository"
	utils "github.com/phillip/shelter-donations-go/utils"
)

// ---------------- CREATE ----------------
func CreateShelter(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := primitive.ObjectIDFromHex(c.GetString("user_id"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		var input struct {
			Name         string  `form:"name" binding:"required"`
			Description  string  `form:"description"`
			Lat          float64 `form:"lat"`
			Lng          float64 `form:"lng"`
			Location     string  `form:"location"`
			Phone        string  `form:"phone"`
			Email        string  `form:"email" binding:"omitempty,email"`
			DonationGoal float64 `form:"donation_goal" binding:"gte=0"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}
		imageURLs := []string{}
		if form != nil {
			urls, err := utils.UploadFormImages(form.File["images"], utils.FolderShelters)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "image upload failed", "details": err.Error()})
				return
			}
			imageURLs = urls
		}

		now := time.Now()
		shelter := models.Shelter{
			ID:          primitive.NewObjectID(),
			OwnerID:     userID,
			Name:        input.Name,
			Description: input.Description,
			Coordinates: models.Coordinates{
				Lat: input.Lat,
				Lng: input.Lng,
			},
			Location:     input.Location,
			Phone:        input.Phone,
			Email:        input.Email,
			Images:       imageURLs,
			DonationGoal: input.DonationGoal,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		col := cfg.DB().Collection(repository.SheltersCollection)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := col.InsertOne(ctx, shelter); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create shelter"})
			return
		}

		c.JSON(http.StatusCreated, shelter)
	}
}

// ---------------- LIST ----------------
func ListShelters(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.DB().Collection(repository.SheltersCollection)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		filter := bson.M{}
		if q := c.Query("q"); q != "" {
			filter["name"] = nameSearch(q)
		}
		if owner := c.Query("owner"); owner != "" {
			if oid, err := primitive.ObjectIDFromHex(owner); err == nil {
				filter["owner_id"] = oid
			}
		}

		page, limit := pageQuery(c)
		total, err := col.CountDocuments(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count shelters"})
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip(models.Skip(page, limit)).
			SetLimit(int64(limit))
		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch shelters"})
			return
		}

		shelters := []models.Shelter{}
		if err := cursor.All(ctx, &shelters); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decode shelters"})
			return
		}

		if len(shelters) > 0 {
			latest := shelters[0]
			for _, sh := range shelters {
				if sh.UpdatedAt.After(latest.UpdatedAt) {
					latest = sh
				}
			}
			if notModified(c, latest.ID, latest.UpdatedAt) {
				return
			}
			c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))
		}

		c.JSON(http.StatusOK, gin.H{
			"shelters":   shelters,
			"pagination": models.NewPagination(page, limit, total),
		})
	}
}

// ---------------- GET ----------------
func GetShelter(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "shelter")
		if !ok {
			return
		}

		var shelter models.Shelter
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := cfg.DB().
			Collection(repository.SheltersCollection).
			FindOne(ctx, bson.M{"_id": oid}).
			Decode(&shelter)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "shelter not found"})
			return
		}

		if notModified(c, shelter.ID, shelter.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, shelter)
	}
}

// ---------------- UPDATE ----------------
func UpdateShelter(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "shelter")
		if !ok {
			return
		}

		col := cfg.DB().Collection(repository.SheltersCollection)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var existing models.Shelter
		if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "shelter not found"})
			return
		}
		if !requesterCanManage(c, existing.OwnerID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		var input struct {
			Name         string   `form:"name"`
			Description  string   `form:"description"`
			Lat          *float64 `form:"lat"`
			Lng          *float64 `form:"lng"`
			Location     string   `form:"location"`
			Phone        string   `form:"phone"`
			Email        string   `form:"email" binding:"omitempty,email"`
			DonationGoal *float64 `form:"donation_goal" binding:"omitempty,gte=0"`
			Images       []string `form:"images"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		if input.Name != "" {
			update["name"] = input.Name
		}
		if input.Description != "" {
			update["description"] = input.Description
		}
		if input.Location != "" {
			update["location"] = input.Location
		}
		if input.Phone != "" {
			update["phone"] = input.Phone
		}
		if input.Email != "" {
			update["email"] = input.Email
		}
		if input.DonationGoal != nil {
			update["donation_goal"] = *input.DonationGoal
		}
		if input.Lat != nil {
			update["coordinates.lat"] = *input.Lat
		}
		if input.Lng != nil {
			update["coordinates.lng"] = *input.Lng
		}

		var newImageURLs []string
		if form, _ := c.MultipartForm(); form != nil {
			urls, err := utils.UploadFormImages(form.File["new_images"], utils.FolderShelters)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "image upload failed", "details": err.Error()})
				return
			}
			newImageURLs = urls
		}
		if input.Images != nil || len(newImageURLs) > 0 {
			update["images"] = append(input.Images, newImageURLs...)
		}

		if len(update) == 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		var updated models.Shelter
		err := col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update shelter", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "shelter updated successfully",
			"shelter": updated,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteShelter(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "shelter")
		if !ok {
			return
		}

		col := cfg.DB().Collection(repository.SheltersCollection)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Shelter
		if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "shelter not found"})
			return
		}
		if !requesterCanManage(c, existing.OwnerID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		res, err := col.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete shelter"})
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "shelter not found"})
			return
		}

		for _, img := range existing.Images {
			if err := utils.DeleteFromCloudinary(img); err != nil {
				cfg.Logger.Sugar().Warnw("Failed to delete shelter image", "shelter_id", oid.Hex(), "image", img, "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "shelter deleted successfully",
			"id":      oid.Hex(),
		})
	}
}
