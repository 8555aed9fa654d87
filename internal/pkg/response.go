package pkg

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/simp-lee/pagination"

	"github.com/simp-lee/layover/internal/domain"
)

// Response is the JSON envelope every API handler answers with.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ValidationErrorResponse carries per-field binding failures keyed by JSON
// path, e.g. "sections[1].route".
type ValidationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

// Success answers 200 with data.
func Success(c *gin.Context, data any) {
	respond(c, http.StatusOK, "success", data)
}

// Created answers 201 with the new resource.
func Created(c *gin.Context, data any) {
	respond(c, http.StatusCreated, "created", data)
}

// List answers 200 with one page of results.
func List[T any](c *gin.Context, page *pagination.Pagination[T]) {
	respond(c, http.StatusOK, "success", page)
}

// Error answers with the status mapped from err's domain code. Messages of
// errors outside the domain scheme are not exposed.
func Error(c *gin.Context, err error) {
	msg := "internal error"
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	respond(c, domain.HTTPStatusCode(err), msg, nil)
}

// ValidationError answers 400. Validator failures are listed per field;
// anything else (a malformed body) is reported as the message.
func ValidationError(c *gin.Context, err error) {
	validationError(c, err, nil)
}

// BindAndValidate binds the request into obj. On failure it has already
// answered 400 and returns false.
//
//	if !pkg.BindAndValidate(c, &req) { return }
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		validationError(c, err, obj)
		return false
	}
	return true
}

func validationError(c *gin.Context, err error, obj any) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[jsonPath(fe.StructNamespace(), structOf(reflect.TypeOf(obj)))] = rule
	}

	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Code:    http.StatusBadRequest,
		Message: "validation error",
		Errors:  fields,
	})
}

// jsonPath rewrites a validator namespace such as
// "addonInput.Sections[1].TemplateHref" using the JSON names found by
// walking t. Fields with no JSON name, or an unknown t, are lowercased.
func jsonPath(namespace string, t reflect.Type) string {
	segs := strings.Split(namespace, ".")
	if len(segs) > 1 {
		segs = segs[1:]
	}
	for i, seg := range segs {
		field, index, hasIndex := strings.Cut(seg, "[")
		name := strings.ToLower(field)
		if t != nil {
			if f, ok := t.FieldByName(field); ok {
				if tag := jsonName(f.Tag.Get("json")); tag != "" {
					name = tag
				}
				t = structOf(f.Type)
			} else {
				t = nil
			}
		}
		if hasIndex {
			name += "[" + index
		}
		segs[i] = name
	}
	return strings.Join(segs, ".")
}

// structOf dereferences pointers, slices and maps down to a struct type,
// or returns nil.
func structOf(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
			t = t.Elem()
		case reflect.Struct:
			return t
		default:
			return nil
		}
	}
	return nil
}

func jsonName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
