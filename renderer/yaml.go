package renderer

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLRenderer renders reports in YAML format.
type YAMLRenderer struct{}

func NewYAMLRenderer() Renderer {
	return &YAMLRenderer{}
}

func (r *YAMLRenderer) Render(report *Report, output io.Writer) error {
	enc := yaml.NewEncoder(output)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func (r *YAMLRenderer) Format() string {
	return "yaml"
}
