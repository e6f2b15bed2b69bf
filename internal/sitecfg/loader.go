// Package sitecfg loads and validates the static zone/line layout for a site.
// Invalid layout is rejected here, before anything reaches the analytics core.
package sitecfg

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/utils"
)

// Layout is the validated zone/line configuration for one site.
type Layout struct {
	TenantID uuid.UUID
	SiteID   uuid.UUID
	Cameras  []Camera
}

// Camera groups the zones and lines drawn on a single camera view.
type Camera struct {
	CameraID uuid.UUID
	Name     string
	Zones    []models.Zone
	Lines    []models.Line
}

type layoutFile struct {
	TenantID string       `yaml:"tenant_id"`
	SiteID   string       `yaml:"site_id"`
	Cameras  []cameraFile `yaml:"cameras"`
}

type cameraFile struct {
	CameraID string     `yaml:"camera_id"`
	Name     string     `yaml:"name"`
	Zones    []zoneFile `yaml:"zones"`
	Lines    []lineFile `yaml:"lines"`
}

type zoneFile struct {
	ZoneID                string      `yaml:"zone_id"`
	Name                  string      `yaml:"name"`
	Type                  string      `yaml:"type"`
	Points                [][]float64 `yaml:"points"`
	DwellThresholdSeconds float64     `yaml:"dwell_threshold_seconds"`
}

type lineFile struct {
	LineID    string      `yaml:"line_id"`
	Name      string      `yaml:"name"`
	Type      string      `yaml:"type"`
	Points    [][]float64 `yaml:"points"`
	Direction string      `yaml:"direction"`
}

// Load reads and validates a site layout from a YAML file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewAppError("sitecfg.Load", "read layout file", err)
	}

	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, utils.NewAppError("sitecfg.Load", "parse layout file", err)
	}

	layout, err := file.validate()
	if err != nil {
		return nil, utils.NewAppError("sitecfg.Load", "invalid layout", err)
	}
	return layout, nil
}

func (f layoutFile) validate() (*Layout, error) {
	tenantID, err := uuid.Parse(f.TenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant_id: %w", err)
	}
	siteID, err := uuid.Parse(f.SiteID)
	if err != nil {
		return nil, fmt.Errorf("site_id: %w", err)
	}
	if len(f.Cameras) == 0 {
		return nil, fmt.Errorf("layout has no cameras")
	}

	layout := &Layout{TenantID: tenantID, SiteID: siteID}
	for i, cam := range f.Cameras {
		cameraID, err := uuid.Parse(cam.CameraID)
		if err != nil {
			return nil, fmt.Errorf("cameras[%d].camera_id: %w", i, err)
		}
		camera := Camera{CameraID: cameraID, Name: cam.Name}

		for j, z := range cam.Zones {
			zone, err := z.validate(cameraID)
			if err != nil {
				return nil, fmt.Errorf("cameras[%d].zones[%d]: %w", i, j, err)
			}
			camera.Zones = append(camera.Zones, zone)
		}
		for j, l := range cam.Lines {
			line, err := l.validate(cameraID)
			if err != nil {
				return nil, fmt.Errorf("cameras[%d].lines[%d]: %w", i, j, err)
			}
			camera.Lines = append(camera.Lines, line)
		}
		layout.Cameras = append(layout.Cameras, camera)
	}
	return layout, nil
}

func (z zoneFile) validate(cameraID uuid.UUID) (models.Zone, error) {
	zoneID, err := uuid.Parse(z.ZoneID)
	if err != nil {
		return models.Zone{}, fmt.Errorf("zone_id: %w", err)
	}
	zoneType, err := models.ParseZoneType(z.Type)
	if err != nil {
		return models.Zone{}, err
	}
	points, err := parsePoints(z.Points)
	if err != nil {
		return models.Zone{}, err
	}
	if len(points) < 3 {
		return models.Zone{}, fmt.Errorf("polygon needs at least 3 points, got %d", len(points))
	}
	if z.DwellThresholdSeconds < 0 {
		return models.Zone{}, fmt.Errorf("dwell_threshold_seconds must be >= 0")
	}
	return models.Zone{
		ZoneID:                zoneID,
		CameraID:              cameraID,
		Name:                  z.Name,
		Type:                  zoneType,
		Points:                points,
		DwellThresholdSeconds: z.DwellThresholdSeconds,
	}, nil
}

func (l lineFile) validate(cameraID uuid.UUID) (models.Line, error) {
	lineID, err := uuid.Parse(l.LineID)
	if err != nil {
		return models.Line{}, fmt.Errorf("line_id: %w", err)
	}
	lineType, err := models.ParseLineType(l.Type)
	if err != nil {
		return models.Line{}, err
	}
	points, err := parsePoints(l.Points)
	if err != nil {
		return models.Line{}, err
	}
	if len(points) != 2 {
		return models.Line{}, fmt.Errorf("line needs exactly 2 points, got %d", len(points))
	}
	return models.Line{
		LineID:    lineID,
		CameraID:  cameraID,
		Name:      l.Name,
		Type:      lineType,
		Points:    points,
		Direction: l.Direction,
	}, nil
}

func parsePoints(raw [][]float64) ([]models.Point, error) {
	points := make([]models.Point, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("points[%d]: expected [x, y], got %d values", i, len(pair))
		}
		points = append(points, models.Point{X: pair[0], Y: pair[1]})
	}
	return points, nil
}
