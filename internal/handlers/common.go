package handlers

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"fiduciaire/internal/middleware"
	"fiduciaire/internal/models"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// dateLayouts accepted for date fields, most precise first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var registerOnce sync.Once

// RegisterValidator makes binding errors report JSON field names.
func RegisterValidator() {
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

// currentUser the authenticated user; answers 401 when missing.
func currentUser(c *gin.Context) (*models.User, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Unauthorized(c, "veuillez vous connecter")
		return nil, false
	}
	return user, true
}

// parseID reads a positive uint path parameter; answers 400 otherwise.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "identifiant invalide : "+name)
		return 0, false
	}
	return uint(id), true
}

// queryUint optional uint query parameter, 0 when absent or malformed.
func queryUint(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

// bindJSON binds the body and answers 400 with a field message on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, bindError(err))
		return false
	}
	return true
}

// bindError turns the first validator error into a readable message.
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return "requête invalide : corps JSON mal formé"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("le champ %s est obligatoire", field)
	case "email":
		return fmt.Sprintf("le champ %s doit être une adresse e-mail valide", field)
	case "min":
		return fmt.Sprintf("le champ %s doit valoir au moins %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("le champ %s ne doit pas dépasser %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("le champ %s doit comporter %s caractères", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("le champ %s doit valoir l'une des valeurs : %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("le champ %s doit être une date au format %s", field, fe.Param())
	case "gte", "gt":
		return fmt.Sprintf("le champ %s doit être supérieur ou égal à %s", field, fe.Param())
	default:
		return fmt.Sprintf("le champ %s est invalide", field)
	}
}

// parseDate reads an optional date; empty input gives nil.
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("date invalide : %s", value)
}
