package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/adapters/signal"
	"github.com/avele/studyroom/internal/app"
	"github.com/avele/studyroom/internal/config"
	"github.com/avele/studyroom/internal/domain"
)

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("StudyRoomSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		rooms, err := orch.Rooms.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	})

	api.POST("/rooms", func(c *gin.Context) {
		var req struct {
			Name      string `json:"name" binding:"required"`
			Topic     string `json:"topic"`
			Technique string `json:"technique"`
			MaxUsers  int    `json:"max_users"`
			Identity  string `json:"identity" binding:"required"`
			Display   string `json:"display_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
			return
		}
		creator := domain.Participant{Identity: domain.Identity(req.Identity), Name: req.Display}
		room, err := orch.Rooms.Create(c.Request.Context(), domain.RoomName(req.Name), req.Topic, req.Technique, req.MaxUsers, creator)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCapacity) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must be at least 2"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
			return
		}
		c.JSON(http.StatusCreated, room)
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		room, err := orch.Rooms.Snapshot(c.Request.Context(), domain.RoomID(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, room)
	})

	// administrative deletion, the only way a room goes away
	api.DELETE("/rooms/:id", func(c *gin.Context) {
		if err := orch.Rooms.Delete(c.Request.Context(), domain.RoomID(c.Param("id"))); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	ctl := signal.NewController(orch, cfg.ReadLimit, cfg.PingPeriod)
	api.GET("/ws/room", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	return r
}
