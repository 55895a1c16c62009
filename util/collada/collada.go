// Package collada holds the subset of the Collada (.dae) document model
// needed to pull triangle geometry out of a file.
package collada

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// Collada is the top-level Collada object
type Collada struct {
	Geometries []Geometry `xml:"library_geometries>geometry"`
}

// Geometry represents Collada's geometry
type Geometry struct {
	Mesh Mesh   `xml:"mesh"`
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// Mesh contains all the primitive data
type Mesh struct {
	Source    []Source  `xml:"source"`
	Vertices  Vertices  `xml:"vertices"`
	Triangles Triangles `xml:"triangles"`
}

// Lookup finds a source by a "#id" style reference.
func (m *Mesh) Lookup(ref string) (Source, bool) {
	id := strings.TrimPrefix(ref, "#")
	for _, s := range m.Source {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Source links to other sources where data is present
type Source struct {
	ID       string   `xml:"id,attr"`
	Floats   Floats   `xml:"float_array"`
	Accessor Accessor `xml:"technique_common>accessor"`
}

// Element returns the stride sized tuple at idx, or nil when out of range.
func (s Source) Element(idx int) []float32 {
	stride := s.Accessor.Stride
	if stride <= 0 {
		stride = 1
	}
	start := idx * stride
	if idx < 0 || start+stride > len(s.Floats.Data) {
		return nil
	}
	return s.Floats.Data[start : start+stride]
}

// Accessor describes how a source array is split into elements.
type Accessor struct {
	Count  int `xml:"count,attr"`
	Stride int `xml:"stride,attr"`
}

// Floats is the array of floats
type Floats struct {
	ID    string
	Count int
	Data  []float32
}

// UnmarshalXML unmarshals the array of floats
func (f *Floats) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			f.ID = attr.Value
		case "count":
			num, err := strconv.Atoi(attr.Value)
			if err != nil {
				return err
			}
			f.Count = num
		}
	}
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	for _, r := range strings.Fields(raw) {
		num, err := strconv.ParseFloat(r, 32)
		if err != nil {
			return err
		}
		f.Data = append(f.Data, float32(num))
	}
	return nil
}

// Vertices contains the list of vertices
type Vertices struct {
	ID     string  `xml:"id,attr"`
	Inputs []Input `xml:"input"`
}

// Triangles contain the list of triangles
type Triangles struct {
	Count    int     `xml:"count,attr"`
	Material string  `xml:"material,attr"`
	Inputs   []Input `xml:"input"`
	Index    []int
}

// Stride is the number of index entries per triangle corner.
func (t *Triangles) Stride() int {
	var max uint
	for _, in := range t.Inputs {
		if in.Offset > max {
			max = in.Offset
		}
	}
	return int(max) + 1
}

// Input returns the input with the given semantic.
func (t *Triangles) Input(semantic string) (Input, bool) {
	for _, in := range t.Inputs {
		if in.Semantic == semantic {
			return in, true
		}
	}
	return Input{}, false
}

// UnmarshalXML parses the index list
func (t *Triangles) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "count":
			num, err := strconv.Atoi(attr.Value)
			if err != nil {
				return err
			}
			t.Count = num
		case "material":
			t.Material = attr.Value
		}
	}

	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "input":
				var input Input
				if err := d.DecodeElement(&input, &el); err != nil {
					return err
				}
				t.Inputs = append(t.Inputs, input)
			case "p":
				var raw string
				if err := d.DecodeElement(&raw, &el); err != nil {
					return err
				}
				fields := strings.Fields(raw)
				ints := make([]int, 0, len(fields))
				for _, r := range fields {
					num, err := strconv.Atoi(r)
					if err != nil {
						return err
					}
					ints = append(ints, num)
				}
				t.Index = ints
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if el == start.End() {
				return nil
			}
		}
	}
}

// Input is Collada'a input type
type Input struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   uint   `xml:"offset,attr"`
	Set      int    `xml:"set,attr"`
}
