package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/transport-booking/internal/model"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// ActorFrom returns the authenticated caller stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	if !ok || id == 0 {
		return model.Actor{}, false
	}
	role, _ := c.Get(CtxRole).(string)
	return model.Actor{UserID: id, Role: role}, true
}

// subject names the caller in rate-limit keys; "anon" before JWTAuth ran.
func subject(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return strconv.FormatUint(a.UserID, 10)
	}
	return "anon"
}
