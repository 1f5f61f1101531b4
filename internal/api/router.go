package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/api/handlers"
	"github.com/abhiram-s2002/racer-sub005/internal/api/middleware"
	"github.com/abhiram-s2002/racer-sub005/internal/captcha"
	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
	"github.com/abhiram-s2002/racer-sub005/internal/storage"
	"github.com/abhiram-s2002/racer-sub005/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient, configSvc services.IConfigService) *gin.Engine {
	// Initialize services needed by API handlers
	userService := services.NewUserService(db, cfg)
	listingService := services.NewListingService(db, cfg)
	pingService := services.NewPingService(db, cfg)
	chatService := services.NewChatService(db)
	messageService := services.NewMessageService(db, chatService)
	ratingService := services.NewRatingService(db)
	subscriptionService := services.NewSubscriptionService(db, cfg)
	locationService := services.NewLocationService(db)
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	pingResponder := services.NewPingResponder(cfg, pingService, chatService, messageService)
	pingResponder.SetStatusListener(acceptanceNotifier(cfg, taskClient, userService, listingService))

	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Global middleware, order matters
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	jsonApiHandler := handlers.NewJsonApiHandler(
		cfg, db, rdb, taskClient,
		userService, listingService, s3StorageService,
		pingService, pingResponder, chatService, messageService,
		ratingService, subscriptionService)
	restConfigHandler := handlers.NewRestConfigHandler(configSvc)
	restLocationHandler := handlers.NewRestLocationHandler(locationService)
	restListingHandler := handlers.NewRestListingHandler(listingService)
	restUserHandler := handlers.NewRestUserHandler(userService, ratingService)
	restPingHandler := handlers.NewRestPingHandler(pingService, pingResponder)
	restChatHandler := handlers.NewRestChatHandler(chatService, messageService)
	restSubscriptionHandler := handlers.NewRestSubscriptionHandler(subscriptionService)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.POST("/api", jsonApiHandler.HandleRequest)
		v1.GET("/config", restConfigHandler.GetPublicConfig)

		v1.GET("/location/search", restLocationHandler.SearchLocations)
		v1.GET("/location/:country_code/search", restLocationHandler.SearchLocations)

		v1.GET("/listing/search", restListingHandler.SearchListings)
		v1.GET("/listing/search/:country_code", restListingHandler.SearchListings)
		v1.GET("/listing/:id", restListingHandler.GetListingByID)

		v1.GET("/user/:username", restUserHandler.GetUserByUsername)
		v1.GET("/user/:username/listing", restListingHandler.GetUserListings)
		v1.GET("/user/:username/rating", restUserHandler.GetUserRatings)

		v1.GET("/health", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/ping", restPingHandler.ListPings)
			authRequired.GET("/ping/:id/chat", restPingHandler.GetPingChat)
			authRequired.GET("/chat", restChatHandler.ListChats)
			authRequired.GET("/chat/:id/message", restChatHandler.ListMessages)
			authRequired.GET("/subscription", restSubscriptionHandler.GetSubscription)
		}
	}

	return r
}

// acceptanceNotifier builds the post-commit hook enqueuing the decision
// notification email to the ping's sender.
func acceptanceNotifier(cfg *config.Config, taskClient handlers.IAsynqClient, userService services.IUserService, listingService services.IListingService) services.StatusListener {
	return func(ping *models.Ping) {
		if ping.Status != models.PingStatusAccepted {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sender, err := userService.FindByUsername(ctx, ping.SenderUsername)
		if err != nil || !sender.EmailPrefs().PingAccepted {
			return
		}

		listingTitle := ""
		if listing, err := listingService.FindListingByID(ctx, ping.ListingID); err == nil {
			listingTitle = listing.Title
		}

		task := tasks.NewEmailTask(sender.Email, "ping_accepted", map[string]interface{}{
			"receiver":      ping.ReceiverUsername,
			"listing_title": listingTitle,
		})
		if _, err := taskClient.EnqueueContext(ctx, task); err != nil {
			log.Printf("ERROR enqueuing ping_accepted email for %s: %v", ping.SenderUsername, err)
		}
	}
}

// SetupServiceRouter configures and returns the service Gin engine.
// Requires the Redis client for the getTestEmail endpoint.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["email_kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [emailKind, email]"})
				return
			}
			emailKind := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, emailKind)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
