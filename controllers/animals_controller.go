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

func validAnimalStatus(s string) bool {
	switch s {
	case models.AnimalAvailable, models.AnimalReserved, models.AnimalAdopted:
		return true
	}
	return false
}

// ---------------- CREATE ----------------
func CreateAnimal(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			ShelterID    string  `form:"shelter_id" binding:"required"`
			Name         string  `form:"name" binding:"required"`
			Species      string  `form:"species" binding:"required"`
			Breed        string  `form:"breed"`
			AgeMonths    int     `form:"age_months" binding:"gte=0"`
			Description  string  `form:"description"`
			Status       string  `form:"status"`
			DonationGoal float64 `form:"donation_goal" binding:"gte=0"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		shelterID, err := primitive.ObjectIDFromHex(input.ShelterID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shelter id"})
			return
		}
		if input.Status == "" {
			input.Status = models.AnimalAvailable
		}
		if !validAnimalStatus(input.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be available, reserved or adopted"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// only the shelter's owner (or an admin) may list animals under it
		var shelter models.Shelter
		err = cfg.DB().Collection(repository.SheltersCollection).
			FindOne(ctx, bson.M{"_id": shelterID}).
			Decode(&shelter)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shelter not found"})
			return
		}
		if !requesterCanManage(c, shelter.OwnerID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}
		imageURLs := []string{}
		if form != nil {
			urls, err := utils.UploadFormImages(form.File["images"], utils.FolderAnimals)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "image upload failed", "details": err.Error()})
				return
			}
			imageURLs = urls
		}

		now := time.Now()
		animal := models.Animal{
			ID:           primitive.NewObjectID(),
			ShelterID:    shelterID,
			Name:         input.Name,
			Species:      input.Species,
			Breed:        input.Breed,
			AgeMonths:    input.AgeMonths,
			Description:  input.Description,
			Status:       input.Status,
			Images:       imageURLs,
			DonationGoal: input.DonationGoal,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if _, err := cfg.DB().Collection(repository.AnimalsCollection).InsertOne(ctx, animal); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create animal"})
			return
		}

		c.JSON(http.StatusCreated, animal)
	}
}

// ---------------- LIST ----------------
func ListAnimals(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.DB().Collection(repository.AnimalsCollection)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		filter := bson.M{}
		if shelter := c.Query("shelter"); shelter != "" {
			oid, err := primitive.ObjectIDFromHex(shelter)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shelter id"})
				return
			}
			filter["shelter_id"] = oid
		}
		if species := c.Query("species"); species != "" {
			filter["species"] = species
		}
		if status := c.Query("status"); status != "" {
			filter["status"] = status
		}
		if q := c.Query("q"); q != "" {
			filter["name"] = nameSearch(q)
		}

		page, limit := pageQuery(c)
		total, err := col.CountDocuments(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count animals"})
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip(models.Skip(page, limit)).
			SetLimit(int64(limit))
		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch animals"})
			return
		}

		animals := []models.Animal{}
		if err := cursor.All(ctx, &animals); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decode animals"})
			return
		}

		if len(animals) > 0 {
			latest := animals[0]
			for _, an := range animals {
				if an.UpdatedAt.After(latest.UpdatedAt) {
					latest = an
				}
			}
			if notModified(c, latest.ID, latest.UpdatedAt) {
				return
			}
			c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))
		}

		c.JSON(http.StatusOK, gin.H{
			"animals":    animals,
			"pagination": models.NewPagination(page, limit, total),
		})
	}
}

// ---------------- GET ----------------
func GetAnimal(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "animal")
		if !ok {
			return
		}

		var animal models.Animal
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := cfg.DB().
			Collection(repository.AnimalsCollection).
			FindOne(ctx, bson.M{"_id": oid}).
			Decode(&animal)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "animal not found"})
			return
		}

		if notModified(c, animal.ID, animal.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, animal)
	}
}

// ownerOfAnimal loads the animal and its shelter's owner.
func ownerOfAnimal(ctx context.Context, cfg *config.Config, id primitive.ObjectID) (*models.Animal, primitive.ObjectID, error) {
	var animal models.Animal
	if err := cfg.DB().Collection(repository.AnimalsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&animal); err != nil {
		return nil, primitive.NilObjectID, err
	}
	var shelter models.Shelter
	err := cfg.DB().Collection(repository.SheltersCollection).
		FindOne(ctx, bson.M{"_id": animal.ShelterID}, options.FindOne().SetProjection(bson.M{"owner_id": 1})).
		Decode(&shelter)
	if err != nil {
		// orphaned animals are admin-only
		return &animal, primitive.NilObjectID, nil
	}
	return &animal, shelter.OwnerID, nil
}

// ---------------- UPDATE ----------------
func UpdateAnimal(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "animal")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, owner, err := ownerOfAnimal(ctx, cfg, oid)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "animal not found"})
			return
		}
		if !requesterCanManage(c, owner) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		var input struct {
			Name         string   `form:"name"`
			Species      string   `form:"species"`
			Breed        string   `form:"breed"`
			AgeMonths    *int     `form:"age_months" binding:"omitempty,gte=0"`
			Description  string   `form:"description"`
			Status       string   `form:"status"`
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
		if input.Species != "" {
			update["species"] = input.Species
		}
		if input.Breed != "" {
			update["breed"] = input.Breed
		}
		if input.AgeMonths != nil {
			update["age_months"] = *input.AgeMonths
		}
		if input.Description != "" {
			update["description"] = input.Description
		}
		if input.Status != "" {
			if !validAnimalStatus(input.Status) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "status must be available, reserved or adopted"})
				return
			}
			update["status"] = input.Status
		}
		if input.DonationGoal != nil {
			update["donation_goal"] = *input.DonationGoal
		}

		var newImageURLs []string
		if form, _ := c.MultipartForm(); form != nil {
			urls, err := utils.UploadFormImages(form.File["new_images"], utils.FolderAnimals)
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

		var updated models.Animal
		err = cfg.DB().Collection(repository.AnimalsCollection).FindOneAndUpdate(ctx,
			bson.M{"_id": oid}, bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update animal", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "animal updated successfully",
			"animal":  updated,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteAnimal(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "animal")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		existing, owner, err := ownerOfAnimal(ctx, cfg, oid)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "animal not found"})
			return
		}
		if !requesterCanManage(c, owner) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		res, err := cfg.DB().Collection(repository.AnimalsCollection).DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete animal"})
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "animal not found"})
			return
		}

		for _, img := range existing.Images {
			if err := utils.DeleteFromCloudinary(img); err != nil {
				cfg.Logger.Sugar().Warnw("Failed to delete animal image", "animal_id", oid.Hex(), "image", img, "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "animal deleted successfully",
			"id":      oid.Hex(),
		})
	}
}
