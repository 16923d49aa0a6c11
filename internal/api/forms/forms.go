// Package forms binds request bodies and renders service errors for handlers.
package forms

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
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/service"
)

const MsgCorrectErrors = "Please correct the highlighted errors."

var registerOnce sync.Once

// useJSONNames makes validator report fields by their json tag.
func useJSONNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}

// Bind decodes JSON or form bodies into req. On failure it writes a 400 and
// returns false.
func Bind(c *gin.Context, req any) bool {
	useJSONNames()
	if err := c.ShouldBind(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := map[string]string{}
			for _, fe := range ve {
				if _, ok := fields[fe.Field()]; !ok {
					fields[fe.Field()] = message(fe)
				}
			}
			Invalid(c, &service.ValidationError{Fields: fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return service.MsgRequired
	case "email":
		return service.MsgInvalidEmail
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "url":
		return "Enter a valid URL."
	default:
		return "Enter a valid value."
	}
}

func Invalid(c *gin.Context, verr *service.ValidationError) {
	c.JSON(http.StatusBadRequest, gin.H{"message": MsgCorrectErrors, "errors": verr.Fields})
}

// Fail maps service errors to responses. Anything unexpected is logged and
// reported as a 500.
func Fail(c *gin.Context, log *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		Invalid(c, verr)
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		log.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// ParamID reads a positive integer path parameter, answering 404 otherwise.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return 0, false
	}
	return id, true
}

func QueryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// QueryBool parses values like "true", "1", "false"; anything else is nil.
func QueryBool(c *gin.Context, key string) *bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return nil
	}
	return &v
}
