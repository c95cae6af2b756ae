package handler

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	"github.com/qrdesk/qrstudio/internal/modules/service"
)

// LogoUploader issues direct-to-storage upload URLs.
type LogoUploader interface {
	PresignPut(ctx context.Context, key, contentType string, expire time.Duration) (string, error)
}

var logoExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

type ProjectHandler struct {
	svc       service.ProjectService
	uploader  LogoUploader
	uploadTTL time.Duration
}

func NewProjectHandler(s service.ProjectService, uploader LogoUploader, uploadTTL time.Duration) *ProjectHandler {
	return &ProjectHandler{svc: s, uploader: uploader, uploadTTL: uploadTTL}
}

type CreateProjectReq struct {
	BusinessName    string `json:"business_name" binding:"required" example:"Acme Bakery"`
	Tagline         string `json:"tagline" example:"Fresh every morning"`
	TargetURL       string `json:"target_url" binding:"required" example:"acme.example/menu"`
	TemplateID      string `json:"template_id" binding:"required" example:"qr_logo_label"`
	TemplateVersion int    `json:"template_version" example:"1"`
	LogoPath        string `json:"logo_path" example:"logos/uid-123/6b1f1c9e.png"`
}

// CreateProject godoc
//
//	@Summary		Create project
//	@Description	Create a QR project. Counts against the caller's plan quota.
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.CreateProjectReq	true	"CreateProject payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.Project}
//	@Failure		429	{object}	serializer.Response{data=serializer.QuotaData}
//	@Router			/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	req := CreateProjectReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	p, err := h.svc.Create(c.Request.Context(), service.CreateProjectInput{
		OwnerID:         ownerID,
		Plan:            plan(c),
		BusinessName:    req.BusinessName,
		Tagline:         req.Tagline,
		TargetURL:       req.TargetURL,
		TemplateID:      req.TemplateID,
		TemplateVersion: req.TemplateVersion,
		LogoPath:        req.LogoPath,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: p})
}

type ListProjectsReq struct {
	Limit    int    `form:"limit,default=20" json:"limit" binding:"required,min=1,max=200" example:"20"`
	Cursor   string `form:"cursor" json:"cursor" example:"MjAyNi0wMy0xMFQxMjowMDowMFp8NmIxZjFjOWU"`
	TimeDesc bool   `form:"time_desc,default=true" json:"time_desc" example:"true"`
}

// ListProjects godoc
//
//	@Summary		List projects
//	@Description	List the caller's projects
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			limit		query	integer	false	"Limit of projects to return, default 20. Max 200."
//	@Param			cursor		query	string	false	"Cursor for pagination. Use the cursor from the previous response to get the next page."
//	@Param			time_desc	query	boolean	false	"Order by created_at descending if true (default true)"	example(true)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListProjectsOutput}
//	@Router			/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	req := ListProjectsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	out, err := h.svc.List(c.Request.Context(), service.ListProjectsInput{
		OwnerID:  ownerID,
		Limit:    req.Limit,
		Cursor:   req.Cursor,
		TimeDesc: req.TimeDesc,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// GetProject godoc
//
//	@Summary		Get project
//	@Tags			project
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	Format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Router			/projects/{project_id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: p})
}

// EditProjectReq leaves omitted fields unchanged. An empty tagline or logo_path clears it.
type EditProjectReq struct {
	BusinessName    *string `json:"business_name" example:"Acme Patisserie"`
	Tagline         *string `json:"tagline"`
	TargetURL       *string `json:"target_url"`
	TemplateID      *string `json:"template_id"`
	TemplateVersion *int    `json:"template_version"`
	LogoPath        *string `json:"logo_path"`
}

// EditProject godoc
//
//	@Summary		Edit project
//	@Description	Apply the project's single permitted edit. Later edits are rejected with 409.
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			project_id	path	string					true	"Project ID"	Format(uuid)
//	@Param			payload		body	handler.EditProjectReq	true	"EditProject payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Failure		409	{object}	serializer.Response
//	@Router			/projects/{project_id} [patch]
func (h *ProjectHandler) EditProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	req := EditProjectReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	p, err := h.svc.Edit(c.Request.Context(), service.EditProjectInput{
		OwnerID:         ownerID,
		ProjectID:       id,
		BusinessName:    req.BusinessName,
		Tagline:         req.Tagline,
		TargetURL:       req.TargetURL,
		TemplateID:      req.TemplateID,
		TemplateVersion: req.TemplateVersion,
		LogoPath:        req.LogoPath,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: p})
}

type LogoUploadReq struct {
	ContentType string `json:"content_type" binding:"required" example:"image/png"`
}

type LogoUploadResp struct {
	UploadURL string    `json:"upload_url"`
	LogoPath  string    `json:"logo_path"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateLogoUpload godoc
//
//	@Summary		Create logo upload URL
//	@Description	Presign a PUT URL for a logo. Pass the returned logo_path when creating or editing a project.
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.LogoUploadReq	true	"LogoUpload payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=handler.LogoUploadResp}
//	@Router			/logos [post]
func (h *ProjectHandler) CreateLogoUpload(c *gin.Context) {
	req := LogoUploadReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	ext, known := logoExt[strings.ToLower(strings.TrimSpace(req.ContentType))]
	if !known {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("logo must be png, jpeg or webp", nil))
		return
	}
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	key := path.Join(service.LogoKeyPrefix(ownerID), uuid.NewString()+ext)
	url, err := h.uploader.PresignPut(c.Request.Context(), key, req.ContentType, h.uploadTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, "failed to create upload url", err))
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: LogoUploadResp{
		UploadURL: url,
		LogoPath:  key,
		ExpiresAt: time.Now().Add(h.uploadTTL).UTC(),
	}})
}

// GetQuota godoc
//
//	@Summary		Get quota status
//	@Description	Project creation allowance for the caller's plan
//	@Tags			project
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.QuotaStatus}
//	@Router			/quota [get]
func (h *ProjectHandler) GetQuota(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	st, err := h.svc.QuotaStatus(c.Request.Context(), ownerID, plan(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: st})
}
