package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidation registers custom validators on gin's binding engine and
// makes validator errors report JSON field names instead of Go field names.
func SetupValidation(customValidators map[string]validator.Func) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	for tag, fn := range customValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}
