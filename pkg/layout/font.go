package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultFamily is used when no family is given or the requested one cannot
// be loaded.
const DefaultFamily = "goregular"

var bundled = map[string][]byte{
	"goregular":    goregular.TTF,
	"gobold":       gobold.TTF,
	"goitalic":     goitalic.TTF,
	"gobolditalic": gobolditalic.TTF,
	"gomedium":     gomedium.TTF,
	"gomono":       gomono.TTF,
}

// Fonts resolves font families to parsed fonts and caches them. Parsed fonts
// are shared; faces are not, because a truetype face keeps a glyph cache that
// must not be used from two goroutines.
type Fonts struct {
	mu     sync.Mutex
	cache  map[string]*truetype.Font
	logger zerolog.Logger
}

// NewFonts returns an empty font cache.
func NewFonts(logger zerolog.Logger) *Fonts {
	return &Fonts{
		cache:  make(map[string]*truetype.Font),
		logger: logger,
	}
}

// Face returns a new face of the given family at size pixels.
func (f *Fonts) Face(family string, size float64) (font.Face, error) {
	fnt, err := f.Font(family)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(fnt, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// Font resolves family, falling back to Go Regular when it cannot be loaded.
func (f *Fonts) Font(family string) (*truetype.Font, error) {
	key := strings.TrimSpace(family)
	if key == "" {
		key = DefaultFamily
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if fnt, ok := f.cache[key]; ok {
		return fnt, nil
	}

	fnt, err := loadFamily(key)
	if err != nil {
		f.logger.Warn().Err(err).Str("family", key).Msg("Failed to load font, falling back to Go Regular")
		fnt, err = loadFamily(DefaultFamily)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fallback font: %w", err)
		}
	}
	f.cache[key] = fnt
	return fnt, nil
}

func loadFamily(family string) (*truetype.Font, error) {
	if data, ok := bundled[strings.ToLower(family)]; ok {
		return truetype.Parse(data)
	}

	path := family
	if filepath.Base(path) == path && !filepath.IsAbs(path) {
		if p := findSystemFont(path); p != "" {
			path = p
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return truetype.Parse(data)
}

// findSystemFont searches the usual font directories for filename, ignoring
// case. It returns "" when nothing matches.
func findSystemFont(filename string) string {
	var dirs []string
	switch runtime.GOOS {
	case "windows":
		dirs = []string{"C:\\Windows\\Fonts"}
	case "darwin":
		dirs = []string{"/System/Library/Fonts", "/System/Library/Fonts/Supplemental", "/Library/Fonts", filepath.Join(os.Getenv("HOME"), "Library/Fonts")}
	default:
		dirs = []string{"/usr/share/fonts", "/usr/local/share/fonts", filepath.Join(os.Getenv("HOME"), ".fonts")}
	}

	lower := strings.ToLower(filename)
	for _, d := range dirs {
		p := filepath.Join(d, filename)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.ToLower(e.Name()) == lower {
				return filepath.Join(d, e.Name())
			}
		}
	}
	return ""
}
