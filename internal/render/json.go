package render

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/originpoint/internal/controller"
)

// JSON writes the snapshot as indented JSON
func JSON(w io.Writer, s controller.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
