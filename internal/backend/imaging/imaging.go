// Package imaging is the default image engine, built on
// github.com/disintegration/imaging with WebP support from
// github.com/chai2010/webp.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	dimaging "github.com/disintegration/imaging"

	"github.com/seantiz/thumbnail/internal/backend"
)

// Name is the registry name of this engine.
const Name = "imaging"

// defaultWebPQuality is used for WebP output when no quality was requested.
const defaultWebPQuality = 90

var filters = map[string]dimaging.ResampleFilter{
	"nearest":    dimaging.NearestNeighbor,
	"box":        dimaging.Box,
	"linear":     dimaging.Linear,
	"catmullrom": dimaging.CatmullRom,
	"lanczos":    dimaging.Lanczos,
}

var formats = map[string]dimaging.Format{
	"jpeg": dimaging.JPEG,
	"png":  dimaging.PNG,
	"gif":  dimaging.GIF,
	"tiff": dimaging.TIFF,
	"bmp":  dimaging.BMP,
}

// Config selects the resampling filter and the matte used when transparent
// images are written to a format without alpha.
type Config struct {
	Filter     string
	Background string
}

// Engine opens sessions backed by disintegration/imaging.
type Engine struct {
	filter     dimaging.ResampleFilter
	filterName string
	matte      color.NRGBA
}

// New creates an imaging engine. An empty filter selects Lanczos and an
// empty background selects white.
func New(cfg Config) (*Engine, error) {
	name := strings.ToLower(cfg.Filter)
	if name == "" {
		name = "lanczos"
	}
	f, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("imaging: unknown resample filter %q", cfg.Filter)
	}

	bg := cfg.Background
	if bg == "" {
		bg = "#ffffff"
	}
	matte, err := backend.ParseMatte(bg)
	if err != nil {
		return nil, fmt.Errorf("imaging: %w", err)
	}

	return &Engine{filter: f, filterName: name, matte: matte}, nil
}

// NewSession implements backend.Engine.
func (e *Engine) NewSession() backend.Session {
	return &session{engine: e}
}

// Capabilities implements backend.Engine.
func (e *Engine) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:    Name,
		Formats: []string{"bmp", "gif", "jpeg", "png", "tiff", "webp"},
		Filters: []string{"box", "catmullrom", "lanczos", "linear", "nearest"},
	}
}

// session holds one decoded image. It is used by a single goroutine.
type session struct {
	engine  *Engine
	img     image.Image
	format  string
	quality int
	lastErr error
}

func (s *session) fail(err error) error {
	s.lastErr = err
	return err
}

func (s *session) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return s.fail(err)
	}
	defer f.Close()

	// Decoding keeps pixels only; EXIF and other metadata are dropped.
	img, format, err := image.Decode(f)
	if err != nil {
		return s.fail(fmt.Errorf("decode %s: %w", path, err))
	}
	s.img = img
	s.format = format
	return nil
}

func (s *session) Width() int {
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dx()
}

func (s *session) Height() int {
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dy()
}

func (s *session) ResizeTo(width, height int) error {
	if s.img == nil {
		return s.fail(backend.ErrNoImage)
	}
	if width <= 0 || height <= 0 {
		return s.fail(fmt.Errorf("invalid target size %dx%d", width, height))
	}
	s.img = dimaging.Resize(s.img, width, height, s.engine.filter)
	return nil
}

func (s *session) SetCompressionQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return s.fail(fmt.Errorf("quality %d out of range 1-100", quality))
	}
	s.quality = quality
	return nil
}

func (s *session) SetFormat(name string) error {
	name = normalizeFormat(name)
	if _, ok := formats[name]; !ok && name != "webp" {
		return s.fail(fmt.Errorf("unsupported output format %q", name))
	}
	s.format = name
	return nil
}

func (s *session) Format() string { return s.format }

func (s *session) EncodeToBlob() ([]byte, error) {
	if s.img == nil {
		return nil, s.fail(backend.ErrNoImage)
	}

	var buf bytes.Buffer
	var err error
	switch s.format {
	case "webp":
		q := float32(defaultWebPQuality)
		if s.quality > 0 {
			q = float32(s.quality)
		}
		err = webp.Encode(&buf, s.img, &webp.Options{Quality: q, Exact: true})
	default:
		f, ok := formats[s.format]
		if !ok {
			err = fmt.Errorf("unsupported output format %q", s.format)
			break
		}
		img := s.img
		if f == dimaging.JPEG {
			img = backend.Flatten(img, s.engine.matte)
		}
		err = dimaging.Encode(&buf, img, f, s.encodeOptions()...)
	}
	if err == nil && buf.Len() == 0 {
		err = errors.New("encoder produced no data")
	}
	if err != nil {
		return nil, s.fail(fmt.Errorf("encode %s: %w", s.format, err))
	}
	return buf.Bytes(), nil
}

func (s *session) encodeOptions() []dimaging.EncodeOption {
	if s.quality == 0 {
		return nil
	}
	return []dimaging.EncodeOption{
		dimaging.JPEGQuality(s.quality),
		dimaging.PNGCompressionLevel(pngLevel(s.quality)),
	}
}

func (s *session) LastError() error { return s.lastErr }

func (s *session) Release() {
	s.img = nil
}

// pngLevel maps the tens digit of a quality value onto a zlib effort,
// following the convention that higher PNG quality means harder compression.
func pngLevel(quality int) png.CompressionLevel {
	switch level := quality / 10; {
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

func normalizeFormat(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	switch name {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return name
}
