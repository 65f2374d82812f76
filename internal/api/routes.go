package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/repositories"
	"github.com/satriahrh/acrbridge/internal/auth"
	"github.com/satriahrh/acrbridge/internal/websocket"
	"github.com/satriahrh/acrbridge/usecase"
)

const (
	serviceName = "acrbridge"
	deviceIDKey = "device_id"
)

// Dependencies are the services the routes are served from
type Dependencies struct {
	Hub     *websocket.Hub
	Devices repositories.DeviceRepository
	Tokens  *auth.TokenManager
	// History is nil when recognition history is disabled
	History *usecase.HistoryService
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:   "ok",
			Service:  serviceName,
			Sessions: deps.Hub.ClientCount(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, deps, logger)
	})

	v1.GET("/recognitions", func(c echo.Context) error {
		return listRecognitions(c, deps, logger)
	}, requireDevice(deps.Tokens, logger))

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		deviceID, _ := c.Get(deviceIDKey).(string)
		logger.Info("WebSocket connection authenticated", zap.String("device_id", deviceID))
		return websocket.HandleWebSocketWithAuth(deps.Hub, c, deviceID, logger)
	}, requireDevice(deps.Tokens, logger))
}

func deviceAuth(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	var req DeviceAuthRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := deps.Devices.ValidateDevice(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, expiresAt, err := deps.Tokens.GenerateDeviceToken(device.ID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  device.ID,
	})
}

func listRecognitions(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	if deps.History == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "history_disabled",
			Message: "Recognition history is disabled",
		})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a non-negative integer",
			})
		}
		limit = n
	}

	deviceID, _ := c.Get(deviceIDKey).(string)
	recognitions, err := deps.History.List(c.Request().Context(), deviceID, limit)
	if err != nil {
		logger.Error("Failed to list recognitions",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list recognitions",
		})
	}

	return c.JSON(http.StatusOK, RecognitionsResponse{
		DeviceID:     deviceID,
		Recognitions: recognitions,
	})
}

// requireDevice authenticates the bearer token of a device and stores its ID
// in the echo context.
func requireDevice(tokens *auth.TokenManager, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			authHeader := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimSpace(authHeader[len("Bearer "):])
			}

			if token == "" {
				logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			if claims.Role != auth.RoleDevice {
				logger.Warn("Request rejected: invalid role", zap.String("role", claims.Role))
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_role",
					Message: "Only device tokens are allowed",
				})
			}

			if claims.DeviceID == "" {
				logger.Error("Request rejected: missing device ID in token")
				return c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "invalid_token_claims",
					Message: "Device ID not found in token",
				})
			}

			c.Set(deviceIDKey, claims.DeviceID)
			return next(c)
		}
	}
}
