package grounding

import (
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// documentTags are the EXIF tags that help date and place a photographed record, in output order
var documentTags = []string{
	"DateTimeOriginal",
	"DateTime",
	"Make",
	"Model",
	"GPSLatitudeRef",
	"GPSLatitude",
	"GPSLongitudeRef",
	"GPSLongitude",
}

// documentMetadata extracts capture metadata from an image. Images
// without EXIF yield nil.
func documentMetadata(data []byte) []string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	found := make(map[string]string, len(documentTags))
	for _, entry := range entries {
		value := strings.TrimSpace(entry.Formatted)
		if value == "" {
			continue
		}
		if _, ok := found[entry.TagName]; !ok {
			found[entry.TagName] = value
		}
	}

	var lines []string
	for _, tag := range documentTags {
		if value, ok := found[tag]; ok {
			lines = append(lines, fmt.Sprintf("%s: %s", tag, value))
		}
	}
	return lines
}

// withMetadata appends the capture metadata block to a scan instruction
func withMetadata(instruction string, metadata []string) string {
	if len(metadata) == 0 {
		return instruction
	}
	return instruction + "\n\nCapture metadata from the image file (use it to date and place the record):\n- " +
		strings.Join(metadata, "\n- ")
}
