package export

import (
	"encoding/json"
	"io"
)

// JSONExporter renders a guide as indented JSON.
type JSONExporter struct{}

// Export writes the guide to w in JSON format.
func (e *JSONExporter) Export(g *Guide, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

// Extension returns the file extension for this format.
func (e *JSONExporter) Extension() string {
	return "json"
}
