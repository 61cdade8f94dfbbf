package mapbox

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/odysseyatlas/atlas/internal/pkg/config"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

// pathOverlay draws the route 5px wide in red at half opacity.
const pathOverlay = "path-5+f44-0.5"

// StaticMap implements ports.StaticMapBuilder for the Mapbox Static Images API.
type StaticMap struct {
	baseURL string
	style   string
	token   string
	zoom    float64
	pitch   float64
	width   int
	height  int
}

func NewStaticMap(cfg config.MapboxConfig) *StaticMap {
	return &StaticMap{
		baseURL: cfg.BaseURL,
		style:   cfg.Style,
		token:   cfg.AccessToken,
		zoom:    cfg.Zoom,
		pitch:   cfg.Pitch,
		width:   cfg.Width,
		height:  cfg.Height,
	}
}

// StepImageURL returns the image URL of one tour step: the route overlay,
// centered on the step and looking along its bearing.
func (s *StaticMap) StepImageURL(center geospatial.Coordinate, bearing float64, polyline string) string {
	overlay := ""
	if polyline != "" {
		overlay = pathOverlay + "(" + url.QueryEscape(polyline) + ")/"
	}
	return fmt.Sprintf("%s/styles/v1/%s/static/%s%s,%s,%s,%s,%s/%dx%d?access_token=%s",
		s.baseURL, s.style, overlay,
		num(center.Lon), num(center.Lat), num(s.zoom), strconv.FormatFloat(geospatial.RoundBearing(bearing, 2), 'f', 2, 64), num(s.pitch),
		s.width, s.height, url.QueryEscape(s.token))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
