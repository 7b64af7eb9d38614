package export

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	// DefaultTemplate names single exports.
	DefaultTemplate = "{basename}_watermarked"
	// DefaultBatchTemplate names batch exports.
	DefaultBatchTemplate = "{basename}_watermarked_{date}_{index}"
)

// Basename strips directories and the last extension from name.
func Basename(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

// Filename expands template for one output file. Supported tokens are
// {basename}, {date} (YYYYMMDD), {time} (HHMMSS) and {index}, the 1-based
// position padded to three digits. The extension comes from f.
func Filename(original, template string, position int, now time.Time, f Format) string {
	if template == "" {
		template = DefaultTemplate
	}
	r := strings.NewReplacer(
		"{basename}", Basename(original),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
		"{index}", fmt.Sprintf("%03d", max(position, 0)+1),
	)
	return r.Replace(template) + f.Extension()
}
