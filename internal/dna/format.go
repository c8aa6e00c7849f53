package dna

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"sdna/internal/model"
)

// Format selects the rendering used by Write.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// document is the YAML/JSON view of a model.
type document struct {
	Structs []structDoc `yaml:"structs" json:"structs"`
}

type structDoc struct {
	Name   string     `yaml:"name" json:"name"`
	Size   int32      `yaml:"size" json:"size"`
	Fields []fieldDoc `yaml:"fields" json:"fields"`
}

type fieldDoc struct {
	Name   string `yaml:"name" json:"name"`
	Type   string `yaml:"type" json:"type"`
	Offset int32  `yaml:"offset" json:"offset"`
	Size   int32  `yaml:"size" json:"size"`
	Align  int32  `yaml:"align" json:"align"`
	Array  int32  `yaml:"array" json:"array"`
	Flags  string `yaml:"flags" json:"flags"`
}

// Write renders d to w in the given format.
func Write(w io.Writer, d *model.SDNA, format Format) error {
	switch format {
	case FormatText, "":
		return writeText(w, d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toDocument(d)); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toDocument(d))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func toDocument(d *model.SDNA) document {
	doc := document{Structs: make([]structDoc, 0, len(d.Structs))}
	for _, s := range d.Structs {
		sd := structDoc{Name: s.Name, Size: s.Size, Fields: make([]fieldDoc, 0, len(s.Fields))}
		for _, f := range s.Fields {
			sd.Fields = append(sd.Fields, fieldDoc{
				Name:   f.Name,
				Type:   f.Type,
				Offset: f.Offset,
				Size:   f.Size,
				Align:  f.Align,
				Array:  f.Array,
				Flags:  f.Flags.String(),
			})
		}
		doc.Structs = append(doc.Structs, sd)
	}
	return doc
}

// writeText prints one block per struct with an aligned row per field.
func writeText(w io.Writer, d *model.SDNA) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	if err := writeRows(tw, d); err != nil {
		return err
	}
	return tw.Flush()
}

// writeRows prints the tab-separated rows behind writeText.
func writeRows(w io.Writer, d *model.SDNA) error {
	for _, s := range d.Structs {
		if _, err := fmt.Fprintf(w, "struct %s size=%d fields=%d\n", s.Name, s.Size, len(s.Fields)); err != nil {
			return err
		}
		for _, f := range s.Fields {
			_, err := fmt.Fprintf(w, "\t%s\t%s\toffset=%d\tsize=%d\talign=%d\tarray=%d\t%s\n",
				f.Name, f.Type, f.Offset, f.Size, f.Align, f.Array, f.Flags)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
