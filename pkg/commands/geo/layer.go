// Package geo provides reference geoprocessing commands over layers held in
// a processor's resource registry. A layer is a GeoJSON feature collection
// kept as opaque feature objects; no geometry operations are performed.
package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/resource"
)

// Kind is the resource kind of geo layers.
const Kind = "GeoLayer"

// Layer property names set by the commands.
const (
	PropFeatureCount = "feature_count"
	PropGeometryType = "geometry_type"
)

// GeometryTypes lists the accepted GeometryType values.
var GeometryTypes = []string{"Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon", "Unknown"}

// Layer is the data of a GeoLayer resource.
type Layer struct {
	GeometryType string
	Features     []map[string]any
}

type featureCollection struct {
	Type     string           `json:"type"`
	Features []map[string]any `json:"features"`
}

// DecodeGeoJSON reads a GeoJSON FeatureCollection. The geometry type is taken
// from the first feature that has one.
func DecodeGeoJSON(r io.Reader) (*Layer, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("GeoJSON type is %q, want FeatureCollection", fc.Type)
	}
	l := &Layer{GeometryType: "Unknown", Features: fc.Features}
	if l.Features == nil {
		l.Features = []map[string]any{}
	}
	for _, f := range l.Features {
		if g, ok := f["geometry"].(map[string]any); ok {
			if t, ok := g["type"].(string); ok && t != "" {
				l.GeometryType = t
				break
			}
		}
	}
	return l, nil
}

// EncodeGeoJSON writes l as an indented GeoJSON FeatureCollection.
func (l *Layer) EncodeGeoJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(featureCollection{Type: "FeatureCollection", Features: l.Features})
}

// Clone returns a deep copy of l.
func (l *Layer) Clone() (*Layer, error) {
	data, err := json.Marshal(l.Features)
	if err != nil {
		return nil, fmt.Errorf("copy features: %w", err)
	}
	c := &Layer{GeometryType: l.GeometryType}
	if err := json.Unmarshal(data, &c.Features); err != nil {
		return nil, fmt.Errorf("copy features: %w", err)
	}
	return c, nil
}

// newResource wraps l in a resource and records its summary properties.
func newResource(id, source string, l *Layer) *resource.Resource {
	r := resource.New(id, Kind, source, l)
	r.Properties[PropFeatureCount] = len(l.Features)
	r.Properties[PropGeometryType] = l.GeometryType
	return r
}

// lookup returns the layer registered under id.
func lookup(env command.Env, cmd, id string) (*resource.Resource, *Layer, error) {
	r, ok := env.Resources().Get(id)
	if !ok {
		return nil, nil, command.Errorf("Check the GeoLayerID; it must be created or read before use.",
			"%s: no GeoLayer with id %q", cmd, id)
	}
	l, ok := r.Data.(*Layer)
	if !ok {
		return nil, nil, command.Errorf("Use the id of a GeoLayer.",
			"%s: resource %q is a %s, not a GeoLayer", cmd, id, r.Kind)
	}
	return r, l, nil
}

func readFile(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeGeoJSON(f)
}

func writeFile(path string, l *Layer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l.EncodeGeoJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
