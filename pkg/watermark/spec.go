package watermark

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"tilemark/pkg/layout"
)

// DefaultStrokeColor outlines text when no stroke colour is given.
const DefaultStrokeColor = "rgba(255, 255, 255, 0.5)"

// Spec describes one watermark. Geometric values are logical pixels; the
// renderer scales them to the image resolution before use.
type Spec struct {
	Text        string  `yaml:"text" env:"WATERMARK_TEXT"`
	Tiled       bool    `yaml:"tiled" env:"WATERMARK_TILED"`
	Spacing     float64 `yaml:"spacing" env:"WATERMARK_SPACING" validate:"gt=0"`
	LineHeight  float64 `yaml:"line_height" env:"WATERMARK_LINE_HEIGHT" validate:"gt=0"`
	FontSize    float64 `yaml:"font_size" env:"WATERMARK_FONT_SIZE" validate:"gt=0"`
	Opacity     float64 `yaml:"opacity" env:"WATERMARK_OPACITY" validate:"gte=0,lte=100"`
	Angle       float64 `yaml:"angle" env:"WATERMARK_ANGLE" validate:"gte=0,lt=360"`
	Color       string  `yaml:"color" env:"WATERMARK_COLOR" validate:"required,wmcolor"`
	StrokeWidth float64 `yaml:"stroke_width" env:"WATERMARK_STROKE_WIDTH" validate:"gte=0"`
	StrokeColor string  `yaml:"stroke_color" env:"WATERMARK_STROKE_COLOR" validate:"omitempty,wmcolor"`
	FontFamily  string  `yaml:"font_family" env:"WATERMARK_FONT"`
}

// DefaultSpec returns the stock watermark settings.
func DefaultSpec() Spec {
	return Spec{
		Text:        "仅供办理XX业务使用,他用无效",
		Tiled:       true,
		Spacing:     70,
		LineHeight:  90,
		FontSize:    60,
		Opacity:     60,
		Angle:       30,
		Color:       "#000000",
		StrokeWidth: 1,
		StrokeColor: DefaultStrokeColor,
		FontFamily:  layout.DefaultFamily,
	}
}

// Params returns the unscaled geometric parameters.
func (s Spec) Params() layout.Params {
	return layout.Params{
		FontSize:    s.FontSize,
		Spacing:     s.Spacing,
		LineHeight:  s.LineHeight,
		StrokeWidth: s.StrokeWidth,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func specValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("wmcolor", func(fl validator.FieldLevel) bool {
			_, err := ParseColor(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks the parameter ranges. Render itself does not validate;
// callers taking user input should call this first.
func (s Spec) Validate() error {
	return specValidator().Struct(s)
}
