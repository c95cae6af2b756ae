package handler

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	"github.com/qrdesk/qrstudio/internal/modules/service"
	"github.com/qrdesk/qrstudio/internal/pkg/printpack"
)

var hashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

type PrintPackHandler struct {
	svc service.PrintPackService
}

func NewPrintPackHandler(s service.PrintPackService) *PrintPackHandler {
	return &PrintPackHandler{svc: s}
}

// EnsurePrintPack godoc
//
//	@Summary		Generate print pack
//	@Description	Render print-ready PDFs for the project. Identical requests return the stored pack without re-rendering.
//	@Tags			print-pack
//	@Accept			json
//	@Produce		json
//	@Param			project_id	path	string				true	"Project ID"	Format(uuid)
//	@Param			payload		body	printpack.RawSpec	true	"Print spec"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.EnsureResult}	"already generated"
//	@Success		201	{object}	serializer.Response{data=service.EnsureResult}	"generated"
//	@Router			/projects/{project_id}/print-pack [post]
func (h *PrintPackHandler) EnsurePrintPack(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	req := printpack.RawSpec{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	res, err := h.svc.EnsureGenerated(c.Request.Context(), service.EnsureInput{OwnerID: ownerID, ProjectID: id, Spec: req})
	if err != nil {
		writeErr(c, err)
		return
	}

	status := http.StatusCreated
	if res.Cached {
		status = http.StatusOK
	}
	c.JSON(status, serializer.Response{Data: res})
}

// ListPrintPacks godoc
//
//	@Summary		List print packs
//	@Tags			print-pack
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	Format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.GenerationManifest}
//	@Router			/projects/{project_id}/print-packs [get]
func (h *PrintPackHandler) ListPrintPacks(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	items, err := h.svc.ListManifests(c.Request.Context(), ownerID, id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

// GetPrintPack godoc
//
//	@Summary		Get print pack
//	@Description	Manifest with presigned download URLs
//	@Tags			print-pack
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	Format(uuid)
//	@Param			hash		path	string	true	"Generation hash"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ManifestView}
//	@Router			/projects/{project_id}/print-packs/{hash} [get]
func (h *PrintPackHandler) GetPrintPack(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	hash := c.Param("hash")
	if !hashRe.MatchString(hash) {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid hash", nil))
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	view, err := h.svc.GetManifest(c.Request.Context(), ownerID, id, hash)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: view})
}
