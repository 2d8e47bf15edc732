package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"AppStatus/internal/agent/domain"
	"AppStatus/pkg/validator"
)

type settingsResponse struct {
	UpdateInterval   string `json:"update_interval"`
	TimezoneInterval string `json:"timezone_interval"`
	TimeSyncServer   string `json:"time_sync_server"`
	IncludeIP        bool   `json:"include_ip"`
}

// UpdateSettingsRequest carries only the fields to change. Values are
// validated before any is applied; a field the manager refuses does not roll
// back the others.
type UpdateSettingsRequest struct {
	UpdateInterval   *string `json:"update_interval"`
	TimezoneInterval *string `json:"timezone_interval"`
	TimeSyncServer   *string `json:"time_sync_server"`
	IncludeIP        *bool   `json:"include_ip"`
}

func (s *Server) currentSettings() settingsResponse {
	return settingsResponse{
		UpdateInterval:   s.service.StatusInterval().String(),
		TimezoneInterval: s.service.TimezoneInterval().String(),
		TimeSyncServer:   s.service.TimeSyncServer(),
		IncludeIP:        s.service.IncludeIP(),
	}
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse("Status retrieved", gin.H{
		"running":  s.service.Running(),
		"state":    s.service.Snapshot(),
		"settings": s.currentSettings(),
	}))
}

func (s *Server) getRecords(c *gin.Context) {
	records := map[string]domain.Record{}
	if s.records != nil {
		records = s.records.All()
	}

	if topic := c.Query("topic"); topic != "" {
		record, ok := records[topic]
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse("not_found", "No record for topic "+topic))
			return
		}
		c.JSON(http.StatusOK, SuccessResponse("Record retrieved", record))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("Records retrieved", records))
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse("Settings retrieved", s.currentSettings()))
}

func (s *Server) updateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", err.Error()))
		return
	}

	// Сначала проверяем все поля, потом применяем
	var updateInterval, timezoneInterval *time.Duration
	if req.UpdateInterval != nil {
		d, err := time.ParseDuration(*req.UpdateInterval)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse("invalid_interval", "update_interval must be a positive duration"))
			return
		}
		updateInterval = &d
	}
	if req.TimezoneInterval != nil {
		d, err := time.ParseDuration(*req.TimezoneInterval)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse("invalid_interval", "timezone_interval must be a duration"))
			return
		}
		timezoneInterval = &d
	}
	if req.TimeSyncServer != nil && !validator.ValidateServerAddress(*req.TimeSyncServer) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_server", "time_sync_server must be host or host:port"))
		return
	}

	// Поля применяются независимо: при ошибке одного остальные уже применены,
	// поэтому в ответе есть ошибки по полям и текущие настройки
	fieldErrors := map[string]string{}
	if updateInterval != nil {
		if err := s.service.SetStatusInterval(*updateInterval); err != nil {
			fieldErrors["update_interval"] = err.Error()
		}
	}
	if timezoneInterval != nil {
		if err := s.service.SetTimezoneInterval(*timezoneInterval); err != nil {
			fieldErrors["timezone_interval"] = err.Error()
		}
	}
	if req.TimeSyncServer != nil {
		s.service.SetTimeSyncServer(strings.TrimSpace(*req.TimeSyncServer))
	}
	if req.IncludeIP != nil {
		s.service.SetIncludeIP(*req.IncludeIP)
	}

	if len(fieldErrors) > 0 {
		response := ErrorResponse("partial_update", "Some settings were not applied")
		response["errors"] = fieldErrors
		response["data"] = s.currentSettings()
		c.JSON(http.StatusConflict, response)
		return
	}

	s.logger.Info("Settings updated", "settings", s.currentSettings())
	c.JSON(http.StatusOK, SuccessResponse("Settings updated", s.currentSettings()))
}

// postEvent принимает событие указанного типа
func (s *Server) postEvent(eventType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg domain.EventMessage
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", err.Error()))
			return
		}
		msg.Type = eventType

		event, err := msg.ToEvent()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse("invalid_event", err.Error()))
			return
		}

		s.service.Handle(event)
		c.JSON(http.StatusAccepted, SuccessResponse("Event accepted", nil))
	}
}
