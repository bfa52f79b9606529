package models

import (
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/e-kose/FT-PINPON-sub002/internal/validation"
)

func TestUsernameColumnsHoldAdmittedNames(t *testing.T) {
	want := "type:varchar(" + strconv.Itoa(validation.MaxDisplayNameLength) + ")"
	for _, m := range All() {
		typ := reflect.TypeOf(m).Elem()
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if !strings.HasSuffix(f.Name, "Username") {
				continue
			}
			assert.Contains(t, f.Tag.Get("gorm"), want, "%s.%s", typ.Name(), f.Name)
		}
	}
}

