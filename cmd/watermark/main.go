package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"tilemark/internal/config"
	"tilemark/internal/logger"
	"tilemark/pkg/batch"
	"tilemark/pkg/export"
	"tilemark/pkg/watermark"
)

var errUsage = errors.New("usage")

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

type options struct {
	configPath string
	inputs     []string
	output     string
	zip        bool
	recursive  bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fset := pflag.NewFlagSet("watermark", pflag.ContinueOnError)
	var opts options
	fset.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	fset.StringArrayVarP(&opts.inputs, "in", "i", nil, "input image or directory (repeatable)")
	fset.StringVarP(&opts.output, "out", "o", "", "output file or directory")
	fset.BoolVar(&opts.zip, "zip", false, "bundle results into a ZIP archive")
	fset.BoolVarP(&opts.recursive, "recursive", "r", false, "recurse into subdirectories")

	def := watermark.DefaultSpec()
	text := fset.StringP("text", "t", def.Text, "watermark text; supports {YYYY-MM-DD}, {HH:mm} and similar tokens")
	tiled := fset.Bool("tiled", def.Tiled, "repeat the text across the image")
	spacing := fset.Float64("spacing", def.Spacing, "gap between tiles")
	lineHeight := fset.Float64("line-height", def.LineHeight, "distance between lines")
	fontSize := fset.Float64("font-size", def.FontSize, "font size")
	opacity := fset.Float64("opacity", def.Opacity, "opacity, 0-100")
	angle := fset.Float64("angle", def.Angle, "rotation in degrees, 0-359")
	color := fset.String("color", def.Color, "text colour")
	strokeWidth := fset.Float64("stroke-width", def.StrokeWidth, "outline width, 0 disables")
	strokeColor := fset.String("stroke-color", def.StrokeColor, "outline colour")
	fontFamily := fset.String("font", def.FontFamily, "bundled family (goregular, gobold, gomono, ...) or .ttf path")

	format := fset.StringP("format", "f", string(export.PNG), "output format: png, jpeg, gif, tiff, bmp")
	quality := fset.IntP("quality", "q", export.DefaultQuality, "JPEG quality, 1-100")
	template := fset.String("template", "", "output name template: {basename} {date} {time} {index}")
	exifRotate := fset.Bool("exif-rotate", true, "honour the EXIF orientation tag")
	logLevel := fset.String("log-level", "info", "log level")

	fset.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --in photo.jpg|dir [--in ...] [--out path] [--zip] [flags]\n\n", fset.Name())
		fset.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n%s\n", config.Usage())
	}
	if err := fset.Parse(args); err != nil {
		return err
	}
	opts.inputs = append(opts.inputs, fset.Args()...)
	if len(opts.inputs) == 0 {
		fmt.Fprintln(os.Stderr, "missing --in")
		fset.Usage()
		return errUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	spec := &cfg.Watermark
	overrides := map[string]func(){
		"text":         func() { spec.Text = *text },
		"tiled":        func() { spec.Tiled = *tiled },
		"spacing":      func() { spec.Spacing = *spacing },
		"line-height":  func() { spec.LineHeight = *lineHeight },
		"font-size":    func() { spec.FontSize = *fontSize },
		"opacity":      func() { spec.Opacity = *opacity },
		"angle":        func() { spec.Angle = *angle },
		"color":        func() { spec.Color = *color },
		"stroke-width": func() { spec.StrokeWidth = *strokeWidth },
		"stroke-color": func() { spec.StrokeColor = *strokeColor },
		"font":         func() { spec.FontFamily = *fontFamily },
		"format":       func() { cfg.Export.Format = *format },
		"quality":      func() { cfg.Export.Quality = *quality },
		"exif-rotate":  func() { cfg.Image.ApplyExifRotation = *exifRotate },
		"log-level":    func() { cfg.LogLevel = *logLevel },
	}
	fset.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, os.Stderr)
	renderer := watermark.NewRenderer(log, watermark.WithMaxPixels(cfg.Image.MaxSurfacePixels))

	files, err := collectInputs(opts.inputs, opts.recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no images found")
	}

	if len(files) == 1 && !opts.zip {
		name := *template
		if name == "" {
			name = cfg.Export.FilenameTemplate
		}
		return single(log, renderer, cfg, files[0], opts.output, name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	name := *template
	if name == "" {
		name = cfg.Export.BatchFilenameTemplate
	}
	return runBatch(ctx, log, renderer, cfg, files, opts, name)
}

// collectInputs expands directories into the image files they contain, in
// lexical order.
func collectInputs(inputs []string, recursive bool) ([]string, error) {
	var files []string
	for _, in := range inputs {
		fi, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("stat input: %w", err)
		}
		if !fi.IsDir() {
			files = append(files, in)
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path == in || recursive {
					return nil
				}
				return filepath.SkipDir
			}
			if imageExts[strings.ToLower(filepath.Ext(d.Name()))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func single(log zerolog.Logger, r *watermark.Renderer, cfg *config.Config, in, out, template string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	img, err := watermark.Decode(data, cfg.Image.ApplyExifRotation)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	surface, err := r.Render(img, cfg.Watermark)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	f := cfg.Format()
	encoded, err := export.Encode(surface, f, cfg.Export.Quality)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	name := export.Filename(in, template, 0, time.Now(), f)
	dest := out
	switch {
	case out == "":
		dest = filepath.Join(filepath.Dir(in), name)
	case isDir(out):
		dest = filepath.Join(out, name)
	}
	if err := export.WriteFile(dest, encoded); err != nil {
		return err
	}
	log.Info().Str("input", in).Str("output", dest).Str("size", humanize.Bytes(uint64(len(encoded)))).Msg("Image written")
	fmt.Printf("wrote %s\n", dest)
	return nil
}

func runBatch(ctx context.Context, log zerolog.Logger, r *watermark.Renderer, cfg *config.Config, files []string, opts options, template string) error {
	b := batch.New(r, batch.Options{
		ApplyExifRotation: cfg.Image.ApplyExifRotation,
		Format:            cfg.Format(),
		Quality:           cfg.Export.Quality,
		Template:          template,
		PreviewSize:       cfg.Image.PreviewSize,
	}, log)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("input", path).Msg("Failed to read input")
			continue
		}
		b.Add(path, data)
	}

	procErr := b.Process(ctx, cfg.Watermark)

	var written int
	if opts.zip {
		dest := opts.output
		if dest == "" || isDir(dest) {
			dest = filepath.Join(dest, cfg.Export.ArchiveName)
		}
		archive, err := b.Archive()
		if err != nil {
			return err
		}
		if err := export.WriteFile(dest, archive); err != nil {
			return err
		}
		written = len(b.Entries())
		fmt.Printf("wrote %s (%s)\n", dest, humanize.Bytes(uint64(len(archive))))
	} else {
		dir := opts.output
		if dir == "" {
			dir = "."
		}
		for _, e := range b.Entries() {
			dest := filepath.Join(dir, e.Filename)
			if err := export.WriteFile(dest, e.Data); err != nil {
				return err
			}
			written++
			fmt.Printf("wrote %s\n", dest)
		}
	}

	c := b.Counts()
	for _, it := range b.Items() {
		if it.State == batch.StateError {
			fmt.Fprintf(os.Stderr, "failed %s: %v\n", it.Filename, it.Err)
		}
	}
	fmt.Println(summary(written, c))

	if procErr != nil {
		return procErr
	}
	return failure(c)
}

// summary is the closing line of a batch run.
func summary(written int, c batch.Counts) string {
	return fmt.Sprintf("%d of %s watermarked, %d failed", written, english.Plural(c.Total, "image", "images"), c.Error)
}

// failure reports failed items as an error so the exit status reflects them.
func failure(c batch.Counts) error {
	if c.Error == 0 {
		return nil
	}
	return fmt.Errorf("%s failed", english.Plural(c.Error, "image", "images"))
}

func isDir(path string) bool {
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(os.PathSeparator)) {
		return true
	}
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
