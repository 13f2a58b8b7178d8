package scanner

import "strings"

// formatMap maps file extensions to the method document formats gbf reads.
var formatMap = map[string]string{
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
}

// DetectFormat returns the document format for a file extension, or "" when
// the extension does not hold method files.
func DetectFormat(ext string) string {
	return formatMap[strings.ToLower(ext)]
}
