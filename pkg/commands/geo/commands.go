package geo

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/parse"
	"github.com/ormasoftchile/geoproc/pkg/kernel/resource"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Register adds the GeoLayer commands to reg.
func Register(reg *command.Registry) {
	reg.Register(readDoc, func() command.Command { return &ReadGeoLayerFromGeoJSON{} })
	reg.Register(createDoc, func() command.Command { return &CreateGeoLayer{} })
	reg.Register(copyDoc, func() command.Command { return &CopyGeoLayer{} })
	reg.Register(setLayerPropDoc, func() command.Command { return &SetGeoLayerProperty{} })
	reg.Register(propFromLayerDoc, func() command.Command { return &SetPropertyFromGeoLayer{} })
	reg.Register(writeDoc, func() command.Command { return &WriteGeoLayerToGeoJSON{} })
	reg.Register(freeDoc, func() command.Command { return &FreeGeoLayers{} })
}

// add registers r and returns a Warning when it replaced a layer.
func add(env command.Env, cmd string, r *resource.Resource) []status.Entry {
	if env.Resources().Add(r) {
		return []status.Entry{status.Warningf(status.PhaseRun,
			"Use a different GeoLayerID or free the old layer first.",
			"%s: GeoLayer %q replaced an existing resource", cmd, r.ID)}
	}
	return nil
}

var readDoc = command.Doc{
	Name:    "ReadGeoLayerFromGeoJSON",
	Summary: "Read a GeoJSON FeatureCollection file into a GeoLayer.",
	Params: []command.ParamDoc{
		{Name: "InputFile", Required: true, Description: "GeoJSON file; relative paths use the WorkingDir property."},
		{Name: "GeoLayerID", Description: "Identifier of the new layer. Defaults to the file name without extension."},
	},
}

// ReadGeoLayerFromGeoJSON reads a layer from a GeoJSON file.
type ReadGeoLayerFromGeoJSON struct{ command.Base }

func (c *ReadGeoLayerFromGeoJSON) ParameterNames() []string { return readDoc.ParamNames() }

func (c *ReadGeoLayerFromGeoJSON) Validate(params *parse.Params) []status.Entry {
	return readDoc.Check(params)
}

func (c *ReadGeoLayerFromGeoJSON) Execute(_ context.Context, env command.Env, params *parse.Params) ([]status.Entry, error) {
	path := command.ResolvePath(env, params.Value("InputFile"))
	id := params.Value("GeoLayerID")
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	l, err := readFile(path)
	if err != nil {
		return nil, command.Errorf("Check that the file exists and holds a GeoJSON FeatureCollection.",
			"ReadGeoLayerFromGeoJSON: %v", err)
	}
	return add(env, readDoc.Name, newResource(id, path, l)), nil
}

var createDoc = command.Doc{
	Name:    "CreateGeoLayer",
	Summary: "Create an empty in-memory GeoLayer.",
	Params: []command.ParamDoc{
		{Name: "GeoLayerID", Required: true, Description: "Identifier of the new layer."},
		{Name: "GeometryType", Required: true, Description: "Geometry type of the layer.", Choices: GeometryTypes},
	},
}

// CreateGeoLayer creates an empty layer.
type CreateGeoLayer struct{ command.Base }

func (c *CreateGeoLayer) ParameterNames() []string { return createDoc.ParamNames() }

func (c *CreateGeoLayer) Validate(params *parse.Params) []status.Entry {
	return createDoc.Check(params)
}

func (c *CreateGeoLayer) Execute(_ context.Context, env command.Env, params *parse.Params) ([]status.Entry, error) {
	l := &Layer{GeometryType: params.Value("GeometryType"), Features: []map[string]any{}}
	return add(env, createDoc.Name, newResource(params.Value("GeoLayerID"), resource.SourceMemory, l)), nil
}

var copyDoc = command.Doc{
	Name:    "CopyGeoLayer",
	Summary: "Copy a GeoLayer, its features and its properties, under a new identifier.",
	Params: []command.ParamDoc{
		{Name: "GeoLayerID", Required: true, Description: "Layer to copy."},
		{Name: "CopiedGeoLayerID", Description: "Identifier of the copy. Defaults to GeoLayerID with a _copy suffix."},
	},
}

// CopyGeoLayer deep-copies a layer.
type CopyGeoLayer struct{ command.Base }

func (c *CopyGeoLayer) ParameterNames() []string { return copyDoc.ParamNames() }

func (c *CopyGeoLayer) Validate(params *parse.Params) []status.Entry {
	return copyDoc.Check(params)
}

func (c *CopyGeoLayer) Execute(_ context.Context, env command.Env, params *parse.Params) ([]status.Entry, error) {
	id := params.Value("GeoLayerID")
	src, l, err := lookup(env, copyDoc.Name, id)
	if err != nil {
		return nil, err
	}
	copyID := params.Value("CopiedGeoLayerID")
	if copyID == "" {
		copyID = id + "_copy"
	}
	if copyID == id {
		return nil, command.Errorf("Use a different CopiedGeoLayerID.",
			"CopyGeoLayer: copy id %q is the same as the source", copyID)
	}
	cl, err := l.Clone()
	if err != nil {
		return nil, err
	}
	r := resource.New(copyID, Kind, resource.SourceMemory, cl)
	for k, v := range src.Properties {
		r.Properties[k] = v
	}
	return add(env, copyDoc.Name, r), nil
}

var setLayerPropDoc = command.Doc{
	Name:    "SetGeoLayerProperty",
	Summary: "Set a property on a GeoLayer.",
	Params: []command.ParamDoc{
		{Name: "GeoLayerID", Required: true, Description: "Layer to modify."},
		{Name: "PropertyName", Required: true, Description: "Layer property to set."},
		{Name: "PropertyValue", Description: "Value as text; may be empty."},
	},
}

// SetGeoLayerProperty sets a layer-local property.
type SetGeoLayerProperty struct{ command.Base }

func (c *SetGeoLayerProperty) ParameterNames() []string { return setLayerPropDoc.ParamNames() }

func (c *SetGeoLayerProperty) Validate(params *parse.Params) []status.Entry {
	return setLayerPropDoc.Check(params)
}

func (c *SetGeoLayerProperty) Execute(_ context.Context, env command.Env, params *parse.Params) ([]status.Entry, error) {
	r, _, err := lookup(env, setLayerPropDoc.Name, params.Value("GeoLayerID"))
	if err != nil {
		return nil, err
	}
	r.Properties[params.Value("PropertyName")] = params.Value("PropertyValue")
	return nil, nil
}

var propFromLayerDoc = command.Doc{
	Name:    "SetPropertyFromGeoLayer",
	Summary: "Copy a GeoLayer property into a processor property.",
	Params: []command.ParamDoc{
		{Name: "GeoLayerID", Required: true, Description: "Layer to read."},
		{Name: "GeoLayerPropertyName", Required: true, Description: "Layer property, e.g. " + PropFeatureCount + "."},
		{Name: "PropertyName", Description: "Processor property to set. Defaults to GeoLayerPropertyName."},
	},
}

// SetPropertyFromGeoLayer exposes layer properties to ${Property} expansion.
type SetPropertyFromGeoLayer struct{ command.Base }

func (c *SetPropertyFromGeoLayer) ParameterNames() []string { return propFromLayerDoc.ParamNames() }

func (c *SetPropertyFromGeoLayer) Validate(params *parse.Params) []status.Entry {
	return propFromLayerDoc.Check(params)
}

func (c *SetPropertyFromGeoLayer) Execute(_ context.Context, env command.Env, params *parse.Params) ([]status.Entry, error) {
	id := params.Value("GeoLayerID")
	r, _, err := lookup(env, propFromLayerDoc.Name, id)
	if err != nil {
		return nil, err
	}
	name := params.Value("GeoLayerPropertyName")
	v, ok := r.Properties[name]
	if !ok {
		return nil, command.Errorf("Check the GeoLayerPropertyName.",
			"SetPropertyFromGeoLayer: GeoLayer %q has no property %q", id, name)
	}
	target := params.Value("PropertyName")
	if target == "" {
		target = name
	}
	env.Properties().Set(target, v)
	return nil, nil
}

var writeDoc = command.Doc{
	Name:    "WriteGeoLayerToGeoJSON",
	Summary: "Write a GeoLayer to a GeoJSON file.",
	Params: []command.ParamDoc{
		{Name: "GeoLayerID", Required: true, Description: "Layer to write."},
		{Name: "OutputFile", Required: true, Description: "File to write; relative paths use the WorkingDir property."},
	},
}

// WriteGeoLayerToGeoJSON writes a layer as a FeatureCollection.
type WriteGeoLayerToGeoJSON struct{ command.Base }

func (c *WriteGeoLayerToGeoJSON) ParameterNames() []string { return writeDoc.ParamNames() }

func (c *WriteGeoLayerToGeoJSON) Validate(params *parse.Params) []status.Entry {
	return writeDoc.Check(params)
}

func (c *WriteGeoLayerToGeoJSON) Execute(_ context.Context, env command.Env, params *parse.Params) ([]status.Entry, error) {
	_, l, err := lookup(env, writeDoc.Name, params.Value("GeoLayerID"))
	if err != nil {
		return nil, err
	}
	path := command.ResolvePath(env, params.Value("OutputFile"))
	if err := writeFile(path, l); err != nil {
		return nil, command.Errorf("Check that the output folder exists and is writable.",
			"WriteGeoLayerToGeoJSON: %v", err)
	}
	return nil, nil
}

var freeDoc = command.Doc{
	Name:    "FreeGeoLayers",
	Summary: "Remove GeoLayers from the resource registry.",
	Params: []command.ParamDoc{
		{Name: "GeoLayerIDs", Required: true, Description: "Comma-separated layer ids, or * for every GeoLayer."},
	},
}

// FreeGeoLayers unregisters layers.
type FreeGeoLayers struct{ command.Base }

func (c *FreeGeoLayers) ParameterNames() []string { return freeDoc.ParamNames() }

func (c *FreeGeoLayers) Validate(params *parse.Params) []status.Entry {
	return freeDoc.Check(params)
}

func (c *FreeGeoLayers) Execute(_ context.Context, env command.Env, params *parse.Params) ([]status.Entry, error) {
	reg := env.Resources()
	ids := command.SplitList(params.Value("GeoLayerIDs"))
	if len(ids) == 1 && ids[0] == "*" {
		ids = nil
		for _, id := range reg.IDs() {
			if r, _ := reg.Get(id); r.Kind == Kind {
				ids = append(ids, id)
			}
		}
		for _, id := range ids {
			reg.Remove(id)
		}
		return nil, nil
	}
	var entries []status.Entry
	for _, id := range ids {
		if !reg.Remove(id) {
			entries = append(entries, status.Warningf(status.PhaseRun,
				"Check the GeoLayerIDs list.", "FreeGeoLayers: no GeoLayer with id %q", id))
		}
	}
	return entries, nil
}
