package addon

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/layover/internal/domain"
	"github.com/simp-lee/layover/internal/pkg"
	"github.com/simp-lee/layover/internal/route"
)

// AddonHandler handles REST API requests for the addon registry.
type AddonHandler struct {
	svc domain.AddonService
}

// NewAddonHandler creates a new AddonHandler with the given service.
func NewAddonHandler(svc domain.AddonService) *AddonHandler {
	return &AddonHandler{svc: svc}
}

// Create handles POST /api/v1/addons.
func (h *AddonHandler) Create(c *gin.Context) {
	var req CreateAddonRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	addon, err := h.svc.CreateAddon(c.Request.Context(), req.Name, toSections(req.Sections))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Created(c, addon)
}

// Get handles GET /api/v1/addons/:id.
func (h *AddonHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	addon, err := h.svc.GetAddon(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, addon)
}

// List handles GET /api/v1/addons.
func (h *AddonHandler) List(c *gin.Context) {
	req := pkg.ParsePageRequest(c, "position:asc")

	result, err := h.svc.ListAddons(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, result)
}

// Update handles PUT /api/v1/addons/:id.
func (h *AddonHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req UpdateAddonRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	addon, err := h.svc.UpdateAddon(c.Request.Context(), id, req.Name, toSections(req.Sections))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, addon)
}

// Delete handles DELETE /api/v1/addons/:id.
func (h *AddonHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteAddon(c.Request.Context(), id); err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, nil)
}

// Move handles PUT /api/v1/addons/:id/position and responds with the
// registry in its new order.
func (h *AddonHandler) Move(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req PositionRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	addons, err := h.svc.MoveAddon(c.Request.Context(), id, *req.Position)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, addons)
}

// Manifest handles GET /api/v1/addons/manifest. The body is the bare
// {"items":[...]} document, not the response envelope.
func (h *AddonHandler) Manifest(c *gin.Context) {
	manifest, err := h.svc.Manifest(c.Request.Context())
	if err != nil {
		pkg.Error(c, err)
		return
	}
	if manifest == nil {
		manifest = &route.Addons{Items: []route.Descriptor{}}
	}

	c.JSON(http.StatusOK, manifest)
}

// idParam parses the :id path parameter, writing a 400 response on failure.
func idParam(c *gin.Context) (uint, bool) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return 0, false
	}
	return id, true
}

func parseID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 || id > uint64(^uint(0)) {
		return 0, fmt.Errorf("invalid id: %s", idStr)
	}
	return uint(id), nil
}
