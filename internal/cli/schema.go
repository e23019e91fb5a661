package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/lyphgraph/internal/registry"
	"github.com/mesh-intelligence/lyphgraph/internal/schema"
)

type propertyDoc struct {
	Type     string `yaml:"type"`
	Required bool   `yaml:"required,omitempty"`
	Default  any    `yaml:"default,omitempty"`
}

type relationDoc struct {
	Relationship string `yaml:"relationship"`
	Cardinality  string `yaml:"cardinality"`
	Codomain     string `yaml:"codomain"`
	Reverse      string `yaml:"reverse"`
	ReadOnly     bool   `yaml:"readOnly,omitempty"`
	IndexField   string `yaml:"indexFieldName,omitempty"`
}

type classDoc struct {
	Name       string                 `yaml:"name"`
	Abstract   bool                   `yaml:"abstract,omitempty"`
	Extends    string                 `yaml:"extends,omitempty"`
	Path       string                 `yaml:"path"`
	Concrete   []string               `yaml:"concrete,omitempty"`
	Properties map[string]propertyDoc `yaml:"properties,omitempty"`
	Relations  map[string]relationDoc `yaml:"relations,omitempty"`
	Shortcuts  map[string][]string    `yaml:"shortcuts,omitempty"`
}

type relationshipDoc struct {
	Name          string         `yaml:"name"`
	Symmetric     bool           `yaml:"symmetric,omitempty"`
	AntiReflexive bool           `yaml:"antiReflexive,omitempty"`
	Ends          [2]string      `yaml:"ends,flow"`
	SetFields     map[string]any `yaml:"setFields,omitempty"`
}

type schemaDoc struct {
	Classes       []classDoc        `yaml:"classes"`
	Relationships []relationshipDoc `yaml:"relationships"`
}

func newSchemaCmd(f *rootFlags) *cobra.Command {
	var source bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the compiled schema",
		Long:  "Compile the configured schema document and print every class with its derived fields as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(f, cmd)
			if err != nil {
				return err
			}
			if source {
				return printSource(cmd, s.Schema)
			}
			reg, err := loadRegistry(s.Schema)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(describe(reg))
		},
	}
	cmd.Flags().BoolVar(&source, "source", false, "print the schema document instead")
	return cmd
}

func printSource(cmd *cobra.Command, path string) error {
	if path == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), schema.DefaultSource())
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func describe(reg *registry.Registry) schemaDoc {
	var doc schemaDoc
	for _, c := range reg.Classes() {
		cd := classDoc{
			Name:     c.Name,
			Abstract: c.Abstract,
			Extends:  c.Extends,
			Path:     c.Path,
			Concrete: c.Concrete,
		}
		if len(c.Properties) > 0 {
			cd.Properties = map[string]propertyDoc{}
			for name, p := range c.Properties {
				cd.Properties[name] = propertyDoc{Type: string(p.Type), Required: p.Required, Default: p.Default}
			}
		}
		if len(c.Relations) > 0 {
			cd.Relations = map[string]relationDoc{}
			for name, r := range c.Relations {
				cd.Relations[name] = relationDoc{
					Relationship: r.Relationship.Name,
					Cardinality:  r.Cardinality.String(),
					Codomain:     r.Codomain,
					Reverse:      r.Reverse().Name,
					ReadOnly:     r.ReadOnly,
					IndexField:   r.IndexFieldName,
				}
			}
		}
		if len(c.Shortcuts) > 0 {
			cd.Shortcuts = map[string][]string{}
			for name, sc := range c.Shortcuts {
				cd.Shortcuts[name] = sc.Path
			}
		}
		doc.Classes = append(doc.Classes, cd)
	}
	for _, rt := range reg.Relationships() {
		rd := relationshipDoc{
			Name:          rt.Name,
			Symmetric:     rt.Symmetric,
			AntiReflexive: rt.AntiReflexive,
		}
		for i, end := range rt.Ends {
			rd.Ends[i] = end.Class + "." + end.Name
		}
		if fields := rt.SetFields(); len(fields) > 0 {
			rd.SetFields = fields
		}
		doc.Relationships = append(doc.Relationships, rd)
	}
	return doc
}
