package serializer

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/quota"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger sets the logger used to record server-side failures.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// Response
type Response struct {
	Code  int         `json:"code"`
	Data  interface{} `json:"data,omitempty"`
	Msg   string      `json:"msg"`
	Error string      `json:"error,omitempty"`
}

// QuotaData is attached to 429 responses.
type QuotaData struct {
	UnlockAt  *time.Time `json:"unlock_at,omitempty"`
	Permanent bool       `json:"permanent"`
}

// CheckLogin
func CheckLogin() Response {
	return Response{
		Code: http.StatusUnauthorized,
		Msg:  "please login first",
	}
}

// Err
func Err(errCode int, msg string, err error) Response {
	res := Response{
		Code: errCode,
		Msg:  msg,
	}
	// development mode, show error detail
	if err != nil && gin.Mode() != gin.ReleaseMode {
		res.Error = fmt.Sprintf("%+v", err)
	}
	return res
}

// DBErr
func DBErr(msg string, err error) Response {
	if msg == "" {
		msg = "database error"
	}
	return Err(http.StatusInternalServerError, msg, err)
}

// ParamErr
func ParamErr(msg string, err error) Response {
	if msg == "" {
		msg = "parameter error"
	}
	return Err(http.StatusBadRequest, msg, err)
}

// AuthErr
func AuthErr(msg string) Response {
	if msg == "" {
		msg = "authentication error"
	}
	return Err(http.StatusUnauthorized, msg, nil)
}

// GenerationErr hides storage and upstream details from the caller.
func GenerationErr(err error) Response {
	return Err(http.StatusInternalServerError, "generation failed", err)
}

// FromError maps a service error onto a status code and envelope.
// Quota and validation messages are meant for end users and are passed through verbatim.
func FromError(err error) (int, Response) {
	var exceeded *quota.ExceededError
	switch {
	case errors.As(err, &exceeded):
		res := Err(http.StatusTooManyRequests, exceeded.Error(), nil)
		res.Data = QuotaData{UnlockAt: exceeded.Decision.UnlockAt, Permanent: exceeded.Decision.Permanent}
		return http.StatusTooManyRequests, res
	case errors.Is(err, quota.ErrEditLockActive):
		return http.StatusConflict, Err(http.StatusConflict, quota.ErrEditLockActive.Error(), nil)
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, ParamErr(err.Error(), nil)
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, Err(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, Err(http.StatusNotFound, "not found", err)
	}

	logger.Sugar().Errorw("request failed", "err", err)
	return http.StatusInternalServerError, GenerationErr(err)
}
