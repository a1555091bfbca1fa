package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/vinodismyname/shopperinsights/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// DatasetExtensions are the file suffixes accepted by the dataset_ext tag.
var DatasetExtensions = []string{".csv", ".xlsx", ".xlsm"}

// Validator returns the shared validator with custom tags registered:
//   - dataset_ext: path ends in a clickstream file extension
//   - export_ext: path ends in .xlsx
//   - cursor: token decodes via pagination.DecodeCursor (pair with omitempty)
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		_ = v.RegisterValidation("dataset_ext", func(fl validator.FieldLevel) bool {
			return hasExt(fl.Field().String(), DatasetExtensions...)
		})
		_ = v.RegisterValidation("export_ext", func(fl validator.FieldLevel) bool {
			return hasExt(fl.Field().String(), ".xlsx")
		})
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

func hasExt(p string, exts ...string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return false
	}
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ValidateStruct validates s and renders the first failure as a
// "CODE: message" string. It returns "" when s is valid.
func ValidateStruct(s any) string {
	err := Validator().Struct(s)
	if err == nil {
		return ""
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "VALIDATION: invalid inputs"
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("VALIDATION: %s is required", field)
	case "required_without":
		return fmt.Sprintf("VALIDATION: %s is required (or supply %s)", field, strings.ToLower(fe.Param()))
	case "required_without_all":
		alts := strings.Fields(strings.ToLower(fe.Param()))
		return fmt.Sprintf("VALIDATION: %s is required (or supply %s)", field, strings.Join(alts, " or "))
	case "dataset_ext":
		return "VALIDATION: path must be a clickstream file (.csv, .xlsx, .xlsm)"
	case "export_ext":
		return "VALIDATION: output path must end in .xlsx"
	case "cursor":
		return "CURSOR_INVALID: failed to decode cursor; restart pagination"
	case "min", "max", "gte", "lte", "gt", "lt":
		return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("VALIDATION: %s must be one of [%s]", field, fe.Param())
	}
	return fmt.Sprintf("VALIDATION: invalid %s", field)
}
