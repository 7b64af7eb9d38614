// Package config loads tool settings from YAML and the environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"tilemark/pkg/editor"
	"tilemark/pkg/export"
	"tilemark/pkg/watermark"
)

// Config is the complete tool configuration.
type Config struct {
	LogLevel  string         `yaml:"log_level" env:"LOG_LEVEL" env-description:"trace, debug, info, warn or error" validate:"omitempty,oneof=trace debug info warn error"`
	Watermark watermark.Spec `yaml:"watermark" validate:"-"`
	Image     Image          `yaml:"image"`
	Export    Export         `yaml:"export"`
	Editor    Editor         `yaml:"editor"`
}

// Image controls decoding and surface limits.
type Image struct {
	ApplyExifRotation bool  `yaml:"apply_exif_rotation" env:"IMAGE_APPLY_EXIF_ROTATION" env-description:"honour the EXIF orientation tag"`
	MaxSurfacePixels  int64 `yaml:"max_surface_pixels" env:"IMAGE_MAX_SURFACE_PIXELS" env-description:"largest surface a render may allocate" validate:"gte=0"`
	PreviewSize       int   `yaml:"preview_size" env:"IMAGE_PREVIEW_SIZE" env-description:"bounding box of batch thumbnails" validate:"gte=0"`
}

// Export controls output encoding and naming.
type Export struct {
	Format                string `yaml:"format" env:"EXPORT_FORMAT" env-description:"png, jpeg, gif, tiff or bmp"`
	Quality               int    `yaml:"quality" env:"EXPORT_QUALITY" env-description:"JPEG quality, 1-100" validate:"gte=0,lte=100"`
	FilenameTemplate      string `yaml:"filename_template" env:"EXPORT_FILENAME_TEMPLATE"`
	BatchFilenameTemplate string `yaml:"batch_filename_template" env:"EXPORT_BATCH_FILENAME_TEMPLATE"`
	ArchiveName           string `yaml:"archive_name" env:"EXPORT_ARCHIVE_NAME" validate:"required"`
}

// Editor controls live editing sessions.
type Editor struct {
	Debounce time.Duration `yaml:"debounce" env:"EDITOR_DEBOUNCE" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Watermark: watermark.DefaultSpec(),
		Image: Image{
			ApplyExifRotation: true,
			MaxSurfacePixels:  watermark.DefaultMaxPixels,
			PreviewSize:       200,
		},
		Export: Export{
			Format:                string(export.PNG),
			Quality:               export.DefaultQuality,
			FilenameTemplate:      export.DefaultTemplate,
			BatchFilenameTemplate: export.DefaultBatchTemplate,
			ArchiveName:           export.DefaultArchiveName,
		},
		Editor: Editor{
			Debounce: editor.DefaultDebounce,
		},
	}
}

// Load starts from Default, applies the YAML file at path if one is given,
// then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section, including the watermark settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Watermark.Validate(); err != nil {
		return fmt.Errorf("invalid watermark: %w", err)
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return err
	}
	return nil
}

// Format returns the parsed export format. Validate has already checked it.
func (c *Config) Format() export.Format {
	f, _ := export.ParseFormat(c.Export.Format)
	return f
}

// Usage describes the environment variables Load reads.
func Usage() string {
	desc, err := cleanenv.GetDescription(Default(), nil)
	if err != nil {
		return ""
	}
	return desc
}

// SessionOptions returns the editor settings as options for editor.NewSession.
func (c *Config) SessionOptions() []editor.SessionOption {
	return []editor.SessionOption{editor.WithDebounce(c.Editor.Debounce)}
}
