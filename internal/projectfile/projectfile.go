// Package projectfile loads a reference, human-editable TOML project
// description into the resolvedproject.Project input model the graph
// resolver consumes (spec.md §2 "resolved project" data flow step 1).
//
// This is explicitly a reference loader, not the only way to produce a
// resolvedproject.Project: any other resolver (a language-specific build
// file evaluator) can construct the same struct tree directly. The TOML
// format here cannot express a Rule's CommandBuilder function, since
// command construction is inherently behavior rather than data (spec.md
// §3's Rule doc: "supplied by the rule author ... out of scope for this
// core"); instead each rule in the file names an ID that the caller
// resolves against a Registry of CommandBuilders compiled into the
// front-end binary.
package projectfile

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/gobuild/core/internal/resolvedproject"
)

// Registry maps a rule ID (as named in the TOML file) to the
// CommandBuilder a particular front-end compiles in for it.
type Registry map[string]resolvedproject.CommandBuilder

// fileFormat mirrors the on-disk TOML shape.
type fileFormat struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Products []productSpec `toml:"products"`
}

type productSpec struct {
	Name           string                 `toml:"name"`
	TargetFileTags []string               `toml:"target_file_tags"`
	DependsOn      []string               `toml:"depends_on"`
	Properties     map[string]interface{} `toml:"properties"`
	SourceGroups   []sourceGroupSpec      `toml:"source_groups"`
	Rules          []ruleSpec             `toml:"rules"`
}

type sourceGroupSpec struct {
	FileTags []string               `toml:"file_tags"`
	Files    []string               `toml:"files"`
	Overlay  map[string]interface{} `toml:"overlay"`
}

type ruleSpec struct {
	ID                    string         `toml:"id"`
	InputTags             []string       `toml:"input_tags"`
	AuxiliaryInputTags    []string       `toml:"auxiliary_input_tags"`
	ExtraDependencyTags   []string       `toml:"extra_dependency_tags"`
	OutputTags            []string       `toml:"output_tags"`
	Multiplex             bool           `toml:"multiplex"`
	Outputs               []outputSpec   `toml:"outputs"`
	InfluentialProperties []string       `toml:"influential_properties"`
	Pools                 []string       `toml:"pools"`
	Weight                int            `toml:"weight"`
}

type outputSpec struct {
	FileTags     []string `toml:"file_tags"`
	PathTemplate string   `toml:"path_template"`
}

// Load parses the project description at path and resolves every rule
// reference against registry.
func Load(path string, registry Registry) (*resolvedproject.Project, error) {
	var ff fileFormat
	if _, err := toml.DecodeFile(path, &ff); err != nil {
		return nil, fmt.Errorf("projectfile: reading %s: %w", path, err)
	}
	return build(&ff, registry)
}

// LoadBytes is Load for an already-read TOML document, used by tests and
// by front-ends that obtain the file content from somewhere other than
// the local filesystem.
func LoadBytes(data []byte, registry Registry) (*resolvedproject.Project, error) {
	var ff fileFormat
	if _, err := toml.Decode(string(data), &ff); err != nil {
		return nil, fmt.Errorf("projectfile: decoding project description: %w", err)
	}
	return build(&ff, registry)
}

func build(ff *fileFormat, registry Registry) (*resolvedproject.Project, error) {
	rp := &resolvedproject.Project{Name: ff.Project.Name}

	for _, ps := range ff.Products {
		props, err := convertProperties(ps.Properties)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", ps.Name, err)
		}

		product := &resolvedproject.Product{
			Name:           ps.Name,
			TargetFileTags: ps.TargetFileTags,
			DependsOn:      ps.DependsOn,
			Properties:     props,
		}

		for _, sg := range ps.SourceGroups {
			overlay, err := convertProperties(sg.Overlay)
			if err != nil {
				return nil, fmt.Errorf("product %q: source group: %w", ps.Name, err)
			}
			product.SourceGroups = append(product.SourceGroups, &resolvedproject.SourceGroup{
				FileTags: sg.FileTags,
				Files:    sg.Files,
				Overlay:  overlay,
			})
		}

		for _, rs := range ps.Rules {
			builder, ok := registry[rs.ID]
			if !ok {
				return nil, fmt.Errorf("product %q: rule %q has no registered command builder", ps.Name, rs.ID)
			}
			rule := &resolvedproject.Rule{
				ID:                    rs.ID,
				InputTags:             rs.InputTags,
				AuxiliaryInputTags:    rs.AuxiliaryInputTags,
				ExtraDependencyTags:   rs.ExtraDependencyTags,
				OutputTags:            rs.OutputTags,
				Multiplex:             rs.Multiplex,
				InfluentialProperties: rs.InfluentialProperties,
				Pools:                 rs.Pools,
				Weight:                rs.Weight,
				Commands:              builder,
			}
			for _, o := range rs.Outputs {
				rule.Outputs = append(rule.Outputs, resolvedproject.OutputSpec{
					FileTags:     o.FileTags,
					PathTemplate: o.PathTemplate,
				})
			}
			product.Rules = append(product.Rules, rule)
		}

		rp.Products = append(rp.Products, product)
	}

	return rp, nil
}

// convertProperties turns the generic interface{} values toml.Decode
// produces into resolvedproject.PropertyValue, the closed sum type the
// graph resolver and fingerprinting code operate on.
func convertProperties(in map[string]interface{}) (map[string]resolvedproject.PropertyValue, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]resolvedproject.PropertyValue, len(in))
	for k, v := range in {
		pv, err := convertValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = pv
	}
	return out, nil
}

func convertValue(v interface{}) (resolvedproject.PropertyValue, error) {
	switch val := v.(type) {
	case string:
		return resolvedproject.PropertyValue{Kind: resolvedproject.PropertyString, Str: val}, nil
	case bool:
		return resolvedproject.PropertyValue{Kind: resolvedproject.PropertyBool, Bool: val}, nil
	case int64:
		return resolvedproject.PropertyValue{Kind: resolvedproject.PropertyNumber, Num: float64(val)}, nil
	case float64:
		return resolvedproject.PropertyValue{Kind: resolvedproject.PropertyNumber, Num: val}, nil
	case []interface{}:
		list := make([]resolvedproject.PropertyValue, len(val))
		for i, elem := range val {
			pv, err := convertValue(elem)
			if err != nil {
				return resolvedproject.PropertyValue{}, err
			}
			list[i] = pv
		}
		return resolvedproject.PropertyValue{Kind: resolvedproject.PropertyList, List: list}, nil
	default:
		return resolvedproject.PropertyValue{}, fmt.Errorf("unsupported TOML value type %T", v)
	}
}
