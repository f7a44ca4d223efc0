package export

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLExporter renders a guide as YAML.
type YAMLExporter struct{}

// Export writes the guide to w in YAML format.
func (e *YAMLExporter) Export(g *Guide, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(g)
}

// Extension returns the file extension for this format.
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
