package store

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/layover/internal/domain"
	"github.com/simp-lee/layover/internal/middleware"
	"github.com/simp-lee/layover/internal/pkg"
)

// StoreHandler handles the store admin API under /admin/:type.
type StoreHandler struct {
	svc domain.StoreService
}

// NewStoreHandler creates a new StoreHandler with the given service.
func NewStoreHandler(svc domain.StoreService) *StoreHandler {
	return &StoreHandler{svc: svc}
}

// List handles GET /api/v1/admin/:type.
func (h *StoreHandler) List(c *gin.Context) {
	typ, ok := typeParam(c)
	if !ok {
		return
	}

	result, err := h.svc.ListStores(c.Request.Context(), typ, pkg.ParsePageRequest(c, "name:asc"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, result)
}

// Create handles POST /api/v1/admin/:type.
func (h *StoreHandler) Create(c *gin.Context) {
	typ, ok := typeParam(c)
	if !ok {
		return
	}

	req, ok := bindStore(c, typ)
	if !ok {
		return
	}

	store, err := h.svc.CreateStore(c.Request.Context(), req.toStore(typ), middleware.Principal(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Created(c, store)
}

// Exists handles HEAD /api/v1/admin/:type/:name with an empty 200 or 404.
func (h *StoreHandler) Exists(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}

	found, err := h.svc.StoreExists(c.Request.Context(), key)
	if err != nil {
		c.Status(domain.HTTPStatusCode(err))
		return
	}
	if !found {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

// Get handles GET /api/v1/admin/:type/:name.
func (h *StoreHandler) Get(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}

	store, err := h.svc.GetStore(c.Request.Context(), key)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, store)
}

// Store handles PUT /api/v1/admin/:type/:name, replacing the definition.
func (h *StoreHandler) Store(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}

	req, ok := bindStore(c, key.Type)
	if !ok {
		return
	}

	store, err := h.svc.UpdateStore(c.Request.Context(), key, req.toStore(key.Type), middleware.Principal(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, store)
}

// Delete handles DELETE /api/v1/admin/:type/:name.
func (h *StoreHandler) Delete(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteStore(c.Request.Context(), key); err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, nil)
}

func bindStore(c *gin.Context, typ domain.StoreType) (*StoreRequest, bool) {
	var req StoreRequest
	if !pkg.BindAndValidate(c, &req) {
		return nil, false
	}
	if req.Type != "" && req.Type != string(typ) {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation,
			fmt.Sprintf("body type %q does not match path type %q", req.Type, typ), nil))
		return nil, false
	}
	return &req, true
}

// typeParam parses the :type path parameter, writing a 404 response for
// unknown families.
func typeParam(c *gin.Context) (domain.StoreType, bool) {
	typ, ok := domain.ParseStoreType(c.Param("type"))
	if !ok {
		if c.Request.Method == http.MethodHead {
			c.Status(http.StatusNotFound)
		} else {
			pkg.Error(c, domain.NewAppError(domain.CodeNotFound,
				fmt.Sprintf("unknown store type %q", c.Param("type")), nil))
		}
		return "", false
	}
	return typ, true
}

func keyParam(c *gin.Context) (domain.StoreKey, bool) {
	typ, ok := typeParam(c)
	if !ok {
		return domain.StoreKey{}, false
	}
	return domain.StoreKey{Type: typ, Name: c.Param("name")}, true
}
