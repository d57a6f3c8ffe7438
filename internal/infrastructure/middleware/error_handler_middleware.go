package middleware

import (
	"context"
	"errors"
	"net/http"

	"locallive/internal/core/domain"
	"locallive/internal/core/services"
	apperrors "locallive/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error attached with c.Error.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr := AppErrorFor(err)
		if appErr != nil {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Errorw("application error",
					"code", appErr.Code,
					"message", appErr.Message,
					"status", appErr.HTTPStatus,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"error", err,
				)
			} else {
				logger.Debugw("request rejected",
					"code", appErr.Code,
					"message", appErr.Message,
					"path", c.Request.URL.Path,
				)
			}

			c.JSON(appErr.HTTPStatus, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
				"details": appErr.Context,
			})
			return
		}

		logger.Errorw("unhandled error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(apperrors.ErrCodeInternal),
			"message": "Internal server error",
		})
	}
}

// AppErrorFor maps domain and auth errors to their HTTP representation.
// It returns nil for errors it does not recognise.
func AppErrorFor(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	var (
		code   apperrors.ErrorCode
		status int
	)
	switch {
	case errors.Is(err, domain.ErrStreamNotFound),
		errors.Is(err, domain.ErrFoodItemNotFound),
		errors.Is(err, domain.ErrSellerNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrAuctionNotFound),
		errors.Is(err, domain.ErrPeerNotFound):
		code, status = apperrors.ErrCodeNotFound, http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrExpiredToken),
		errors.Is(err, services.ErrUnauthorized):
		code, status = apperrors.ErrCodeUnauthorized, http.StatusUnauthorized
	case errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrSessionBusy),
		errors.Is(err, domain.ErrNotJoined),
		errors.Is(err, domain.ErrAlreadyLive),
		errors.Is(err, domain.ErrNotLive),
		errors.Is(err, domain.ErrChannelNotLive),
		errors.Is(err, domain.ErrAuctionClosed),
		errors.Is(err, domain.ErrBidTooLow):
		code, status = apperrors.ErrCodeConflict, http.StatusConflict
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrInvalidEventKind),
		errors.Is(err, domain.ErrInvalidGift),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrInvalidRadius),
		errors.Is(err, domain.ErrUnknownPage):
		code, status = apperrors.ErrCodeInvalidInput, http.StatusBadRequest
	case errors.Is(err, domain.ErrLocationUnavailable):
		code, status = apperrors.ErrCodeServiceUnavailable, http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code, status = apperrors.ErrCodeTimeout, http.StatusGatewayTimeout
	default:
		return nil
	}
	return apperrors.WrapError(err, code, err.Error(), status)
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
