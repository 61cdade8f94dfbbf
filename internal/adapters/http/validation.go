package http

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct validates v and flattens field errors into one message.
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "longitude":
		return fmt.Sprintf("%s must be a longitude in [-180, 180], got %v", field, fe.Value())
	case "latitude":
		return fmt.Sprintf("%s must be a latitude in [-90, 90], got %v", field, fe.Value())
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// parseLonLat parses a "lon,lat" query value into a validated coordinate.
func parseLonLat(name, s string) (geospatial.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geospatial.Coordinate{}, fmt.Errorf("%s must be lon,lat", name)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geospatial.Coordinate{}, fmt.Errorf("%s: invalid longitude %q", name, parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geospatial.Coordinate{}, fmt.Errorf("%s: invalid latitude %q", name, parts[1])
	}
	c := geospatial.Coordinate{Lon: lon, Lat: lat}
	if err := validateStruct(c); err != nil {
		return geospatial.Coordinate{}, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}
