package watermark

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for colour strings ParseColor cannot read.
var ErrInvalidColor = errors.New("invalid color")

// ParseColor reads #rgb, #rrggbb, #rrggbbaa, rgb(r, g, b) and
// rgba(r, g, b, a) colours. In the functional forms a is in [0, 1].
func ParseColor(s string) (color.NRGBA, error) {
	str := strings.ToLower(strings.TrimSpace(s))
	if str == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}
	if strings.HasPrefix(str, "rgb") {
		return parseFunctional(str, s)
	}
	return parseHexColor(str, s)
}

func parseHexColor(str, orig string) (color.NRGBA, error) {
	str = strings.TrimPrefix(str, "#")
	switch len(str) {
	case 3:
		str = fmt.Sprintf("%c%c%c%c%c%c", str[0], str[0], str[1], str[1], str[2], str[2])
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
	}

	v, err := strconv.ParseUint(str, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
	}
	if len(str) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parseFunctional(str, orig string) (color.NRGBA, error) {
	open := strings.IndexByte(str, '(')
	if open < 0 || !strings.HasSuffix(str, ")") {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
	}
	name := strings.TrimSpace(str[:open])
	parts := strings.Split(str[open+1:len(str)-1], ",")

	switch {
	case name == "rgb" && len(parts) == 3:
	case name == "rgba" && len(parts) == 4:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
		}
		ch[i] = uint8(math.Round(v))
	}
	a := uint8(255)
	if len(parts) == 4 {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || v < 0 || v > 1 {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, orig)
		}
		a = uint8(math.Round(v * 255))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: a}, nil
}
