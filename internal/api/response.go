package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/chat"
	"github.com/ammar1510/alumni-chat/internal/logger"
)

var log = logger.New("api")

// Pagination is the paging block of list responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func paginationOf[T any](p *chat.Page[T]) Pagination {
	return Pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.TotalPages()}
}

// errorBody renders err as {"error": true, "code", "message", ...details}.
func errorBody(appErr *apperrors.AppError) gin.H {
	body := gin.H{}
	for k, v := range appErr.Details {
		body[k] = v
	}
	body["error"] = true
	body["code"] = appErr.Code
	body["message"] = appErr.Message
	return body
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Code == apperrors.CodeInternal {
		log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(appErr.HTTPStatus(), errorBody(appErr))
}

func abortWithError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errorBody(appErr))
}

// bindJSON decodes the body into req and reports binding failures as
// INVALID_ARGUMENT. It returns false after writing the response.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, bindingError(err))
		return false
	}
	return true
}

var registerOnce sync.Once

// useJSONFieldNames makes validation errors name fields the way clients
// send them.
func useJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func bindingError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fieldMessage(fe))
		}
		return apperrors.InvalidArgument(strings.Join(fields, "; ")).With("field", lowerFirst(verrs[0].Field()))
	}
	return apperrors.InvalidArgument("invalid request body")
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// uuidParam parses a path parameter, writing a 400 when malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperrors.InvalidArgument(fmt.Sprintf("invalid %s", name)))
		return uuid.Nil, false
	}
	return id, true
}

// pageQuery reads ?page and ?limit. Missing or malformed values fall
// back to the service defaults.
func pageQuery(c *gin.Context) chat.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return chat.PageRequest{Page: page, Limit: limit}
}

func respondOK(c *gin.Context, body gin.H) {
	body["success"] = true
	c.JSON(http.StatusOK, body)
}
