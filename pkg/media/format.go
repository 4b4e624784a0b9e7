package media

import (
	"math"
	"strconv"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// DefaultNameLength is the default length of a shortened filename.
const DefaultNameLength = 20

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// FormatSize returns a human-readable size with at most two decimals,
// for example "1.5 KB" or "10 MB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatName shortens a filename longer than maxLength runes to its first
// maxLength runes, an ellipsis and the extension without the dot.
func FormatName(name string, maxLength int) string {
	runes := []rune(name)
	if len(runes) <= maxLength {
		return name
	}
	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		stem, ext = name[:i], name[i+1:]
	}
	if r := []rune(stem); len(r) > maxLength {
		stem = string(r[:maxLength])
	}
	return stem + "..." + ext
}
