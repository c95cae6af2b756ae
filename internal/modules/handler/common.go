package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/middleware"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	"github.com/qrdesk/qrstudio/internal/pkg/quota"
)

// owner returns the authenticated owner id; false means the response has been written.
func owner(c *gin.Context) (string, bool) {
	id := c.GetString(middleware.CtxOwnerID)
	if id == "" {
		c.JSON(http.StatusUnauthorized, serializer.CheckLogin())
		return "", false
	}
	return id, true
}

func plan(c *gin.Context) quota.Plan {
	p, _ := c.Get(middleware.CtxPlan)
	v, _ := p.(quota.Plan)
	return v
}

func projectID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid project id", err))
		return uuid.Nil, false
	}
	return id, true
}

func writeErr(c *gin.Context, err error) {
	status, res := serializer.FromError(err)
	c.JSON(status, res)
}
