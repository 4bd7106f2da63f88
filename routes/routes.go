package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	config "github.com/phillip/shelter-donations-go/config"
	controllers "github.com/phillip/shelter-donations-go/controllers"
	middleware "github.com/phillip/shelter-donations-go/middleware"
	models "github.com/phillip/shelter-donations-go/models"
	repository "github.com/phillip/shelter-donations-go/repository"
	services "github.com/phillip/shelter-donations-go/services"
)

// Deps are the services the handlers run against.
type Deps struct {
	Users     *repository.UserRepository
	Donations *services.DonationService
	Reporting *services.ReportingService
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, deps Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	auth := middleware.AuthMiddleware(cfg)
	optionalAuth := middleware.OptionalAuth(cfg)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	// public
	api.POST("/auth/register", controllers.Register(deps.Users, cfg))
	api.POST("/auth/login", controllers.Login(deps.Users, cfg))

	users := api.Group("/users")
	users.Use(auth)
	{
		users.GET("/me", controllers.GetMe(deps.Users))
		users.GET("/:id", controllers.GetUser(deps.Users))
	}

	// Donations
	donations := api.Group("/donations")
	{
		donations.POST("", optionalAuth, controllers.CreateDonation(deps.Donations))
		donations.GET("/stats", controllers.GetDonationStats(deps.Reporting, cfg.DemoStats && cfg.Sandbox))
		donations.POST("/callback", controllers.LiqPayCallback(deps.Donations, cfg.LiqPayPrivateKey, cfg.Logger))
		donations.GET("", auth, adminOnly, controllers.ListDonations(deps.Donations))
		donations.GET("/user/:userId", auth, controllers.ListUserDonations(deps.Donations))
		donations.GET("/:id", controllers.GetDonation(deps.Donations))
		donations.PUT("/:id/status", auth, adminOnly, controllers.UpdateDonationStatus(deps.Donations))
	}

	// Shelters
	shelters := api.Group("/shelters")
	{
		shelters.GET("", controllers.ListShelters(cfg))
		shelters.GET("/:id", controllers.GetShelter(cfg))
		shelters.POST("", auth, controllers.CreateShelter(cfg))
		shelters.PATCH("/:id", auth, controllers.UpdateShelter(cfg))
		shelters.DELETE("/:id", auth, controllers.DeleteShelter(cfg))
	}

	// Animals
	animals := api.Group("/animals")
	{
		animals.GET("", controllers.ListAnimals(cfg))
		animals.GET("/:id", controllers.GetAnimal(cfg))
		animals.POST("", auth, controllers.CreateAnimal(cfg))
		animals.PATCH("/:id", auth, controllers.UpdateAnimal(cfg))
		animals.DELETE("/:id", auth, controllers.DeleteAnimal(cfg))
	}
}
