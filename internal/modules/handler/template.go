package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	"github.com/qrdesk/qrstudio/internal/pkg/template"
)

type TemplateHandler struct{}

func NewTemplateHandler() *TemplateHandler {
	return &TemplateHandler{}
}

type TemplateView struct {
	template.Definition
	Variant string `json:"variant"`
}

// ListTemplates godoc
//
//	@Summary		List templates
//	@Description	The locked template catalog
//	@Tags			template
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]handler.TemplateView}
//	@Router			/templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	defs := template.List()
	out := make([]TemplateView, 0, len(defs))
	for _, d := range defs {
		out = append(out, TemplateView{Definition: d, Variant: d.Variant.String()})
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}
