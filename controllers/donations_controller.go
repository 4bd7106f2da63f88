package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	middleware "github.com/phillip/shelter-donations-go/middleware"
	models "github.com/phillip/shelter-donations-go/models"
	services "github.com/phillip/shelter-donations-go/services"
	utils "github.com/phillip/shelter-donations-go/utils"
)

type createDonationRequest struct {
	Amount        float64 `json:"amount"`
	DonorName     string  `json:"donorName"`
	DonorEmail    string  `json:"donorEmail" binding:"omitempty,email"`
	Message       string  `json:"message"`
	User          string  `json:"user"`
	Target        string  `json:"target"`
	TargetID      string  `json:"targetId"`
	TargetModel   string  `json:"targetModel"`
	PaymentMethod string  `json:"paymentMethod"`
}

// demoStats is served while the ledger is empty and demo mode is on.
var demoStats = models.DonationStats{
	TotalAmount:          48250,
	CountDonations:       312,
	UniqueDonorsCount:    147,
	SheltersDonatedCount: 9,
	AnimalsDonatedCount:  58,
}

// ---------------- CREATE ----------------
func CreateDonation(svc *services.DonationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input createDonationRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		donation, err := svc.Create(ctx, middleware.IdentityFrom(c), services.CreateDonationInput{
			Amount:        input.Amount,
			DonorName:     input.DonorName,
			DonorEmail:    input.DonorEmail,
			Message:       input.Message,
			User:          input.User,
			Target:        input.Target,
			TargetID:      input.TargetID,
			TargetModel:   input.TargetModel,
			PaymentMethod: input.PaymentMethod,
		})
		if err != nil {
			respondServiceError(c, err, "could not create donation")
			return
		}

		c.JSON(http.StatusCreated, donation)
	}
}

// ---------------- STATS ----------------

// GetDonationStats serves the public aggregate. With demo set, an empty
// ledger is answered with placeholder figures.
func GetDonationStats(reporting *services.ReportingService, demo bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		stats, err := reporting.Stats(ctx)
		if err != nil {
			respondServiceError(c, err, "could not compute donation stats")
			return
		}
		if demo && stats.TotalAmount == 0 {
			placeholder := demoStats
			c.Header("X-Demo-Data", "true")
			c.JSON(http.StatusOK, placeholder)
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// ---------------- GET ----------------
func GetDonation(svc *services.DonationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "donation")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		detail, err := svc.Get(ctx, oid)
		if err != nil {
			respondServiceError(c, err, "could not fetch donation")
			return
		}

		if notModified(c, detail.ID, detail.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// ---------------- UPDATE STATUS ----------------
func UpdateDonationStatus(svc *services.DonationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramObjectID(c, "id", "donation")
		if !ok {
			return
		}

		var input struct {
			Status        string `json:"status" binding:"required"`
			TransactionID string `json:"transactionId"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		donation, err := svc.UpdateStatus(ctx, oid, input.Status, input.TransactionID)
		if err != nil {
			respondServiceError(c, err, "could not update donation status")
			return
		}

		c.JSON(http.StatusOK, donation)
	}
}

// ---------------- LIST (admin) ----------------
func ListDonations(svc *services.DonationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.DonationFilter{
			Status: c.Query("status"),
			Target: c.Query("target"),
		}
		for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
			raw := c.Query(key)
			if raw == "" {
				continue
			}
			t, err := utils.ParseDate(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + " date", "details": err.Error()})
				return
			}
			*dst = &t
		}

		page, limit := pageQuery(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		donations, pagination, err := svc.List(ctx, filter, page, limit)
		if err != nil {
			respondServiceError(c, err, "could not fetch donations")
			return
		}

		c.JSON(http.StatusOK, gin.H{"donations": donations, "pagination": pagination})
	}
}

// ---------------- LIST BY USER ----------------
func ListUserDonations(svc *services.DonationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := paramObjectID(c, "userId", "user")
		if !ok {
			return
		}

		page, limit := pageQuery(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		donations, pagination, err := svc.UserDonations(ctx, middleware.IdentityFrom(c), userID, page, limit)
		if err != nil {
			respondServiceError(c, err, "could not fetch user donations")
			return
		}

		c.JSON(http.StatusOK, gin.H{"donations": donations, "pagination": pagination})
	}
}

// ---------------- PAYMENT CALLBACK ----------------

// LiqPayCallback applies a signed gateway notification to the donation named
// by its order_id.
func LiqPayCallback(svc *services.DonationService, privateKey string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if privateKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment gateway not configured"})
			return
		}

		data := c.PostForm("data")
		signature := c.PostForm("signature")
		if data == "" || signature == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data and signature are required"})
			return
		}
		if !utils.VerifyLiqPaySignature(data, signature, privateKey) {
			logger.Warn("Rejected payment callback", zap.String("reason", "bad signature"))
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}

		payload, err := utils.DecodeLiqPayData(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid callback payload", "details": err.Error()})
			return
		}
		oid, err := primitive.ObjectIDFromHex(payload.OrderID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		status, ok := utils.MapLiqPayStatus(payload.Status)
		if !ok {
			logger.Info("Ignoring payment callback status",
				zap.String("donation_id", oid.Hex()), zap.String("status", payload.Status))
			c.JSON(http.StatusOK, gin.H{"message": "status ignored"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		donation, err := svc.UpdateStatus(ctx, oid, status, payload.TransactionRef())
		if err != nil {
			respondServiceError(c, err, "could not apply payment callback")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "donation updated", "id": donation.ID.Hex(), "status": donation.Status})
	}
}
