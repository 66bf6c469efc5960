package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/serialmux/internal/auth"
	"github.com/danmuck/serialmux/internal/bridge"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Status) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		snap := s.ctl.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.Appeared).String(),
			"service":   s.ID,
			"connected": snap.Connected,
			"session":   snap.SessionID,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/channels", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.ctl.Snapshot())
	})

	commands := s.router.Group("/channels", s.requireToken())
	commands.POST("/:ch/open", s.setChannel(true))
	commands.POST("/:ch/close", s.setChannel(false))
}

func (s *Status) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Next()
			return
		}
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err == nil {
			err = s.auth.Validate(token)
		}
		if err != nil {
			log.Warn().Str("service", s.ID).Str("path", c.Request.URL.Path).Err(err).Msg("channel command rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func (s *Status) setChannel(open bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, err := strconv.Atoi(c.Param("ch"))
		if err == nil {
			err = s.ctl.SetChannelOpen(ch, open)
		}
		if err != nil {
			status := http.StatusInternalServerError
			var numErr *strconv.NumError
			if errors.Is(err, bridge.ErrInvalidChannel) || errors.As(err, &numErr) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		log.Info().Str("service", s.ID).Int("channel", ch).Bool("open", open).Msg("channel state changed")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "channel": ch, "open": open})
	}
}
