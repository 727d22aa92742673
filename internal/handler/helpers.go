package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/apierror"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_json", "Request body is not valid JSON"))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_input", "Invalid request"))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError maps a service failure onto an HTTP status. Only DomainError
// messages reach the client; anything else is logged by ErrorHandler and
// answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var de *service.DomainError
	if !errors.As(err, &de) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Internal server error"))
		return
	}

	status := http.StatusInternalServerError
	switch de.Kind {
	case service.KindValidation:
		status = http.StatusUnprocessableEntity
		if errors.Is(de, service.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
		}
	case service.KindState:
		status = http.StatusConflict
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindCollaborator:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError || de.Err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, apierror.WithCode(de.Code, de.Message))
}

// uuidParam parses a path parameter, answering 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_id", name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDQuery parses an optional query parameter.
func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_id", name+" must be a UUID"))
		return nil, false
	}
	return &id, true
}

// dateQuery parses a YYYY-MM-DD query parameter as midnight in loc.
func dateQuery(c *gin.Context, name string, loc *time.Location) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_date", name+" must be YYYY-MM-DD"))
		return nil, false
	}
	return &d, true
}

// dateRange reads from/to as calendar days; to is inclusive for callers and
// becomes the exclusive bound of the following midnight.
func dateRange(c *gin.Context, loc *time.Location) (from, to *time.Time, ok bool) {
	if from, ok = dateQuery(c, "from", loc); !ok {
		return nil, nil, false
	}
	if to, ok = dateQuery(c, "to", loc); !ok {
		return nil, nil, false
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		to = &next
	}
	if from != nil && to != nil && !from.Before(*to) {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_date", "from must not be after to"))
		return nil, nil, false
	}
	return from, to, true
}

func intQuery(c *gin.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
