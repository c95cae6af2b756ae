package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	"github.com/qrdesk/qrstudio/internal/modules/service"
	"github.com/qrdesk/qrstudio/internal/pkg/qr"
)

type RenderHandler struct {
	svc service.RenderService
}

func NewRenderHandler(s service.RenderService) *RenderHandler {
	return &RenderHandler{svc: s}
}

type RenderQRReq struct {
	Format   string `form:"format,default=png" json:"format" example:"png"`
	Size     int    `form:"size" json:"size" example:"1024"`
	Download bool   `form:"download,default=false" json:"download" example:"false"`
}

// RenderQR godoc
//
//	@Summary		Render QR code
//	@Description	Render the project's QR code with its template applied
//	@Tags			render
//	@Produce		image/png
//	@Produce		image/svg+xml
//	@Param			project_id	path	string	true	"Project ID"	Format(uuid)
//	@Param			format		query	string	false	"png or svg (default png)"
//	@Param			size		query	integer	false	"Width in pixels, 64 to 8192 (default 1024)"
//	@Param			download	query	boolean	false	"Serve as an attachment"
//	@Security		BearerAuth
//	@Success		200	{file}		binary
//	@Failure		429	{object}	serializer.Response
//	@Router			/projects/{project_id}/qr [get]
func (h *RenderHandler) RenderQR(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	req := RenderQRReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	format, err := qr.ParseFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), nil))
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	out, err := h.svc.Render(c.Request.Context(), service.RenderInput{
		OwnerID:   ownerID,
		ProjectID: id,
		Format:    format,
		WidthPx:   req.Size,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	disposition := "inline"
	if req.Download {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, out.Filename))
	c.Header("Cache-Control", "private, max-age=60")
	if out.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, out.ContentType, out.Data)
}
