// Package bild is an alternative image engine built on
// github.com/anthonynsimon/bild. It writes JPEG, PNG and BMP.
package bild

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	"github.com/seantiz/thumbnail/internal/backend"
)

// Name is the registry name of this engine.
const Name = "bild"

var filters = map[string]transform.ResampleFilter{
	"nearest":    transform.NearestNeighbor,
	"box":        transform.Box,
	"linear":     transform.Linear,
	"gaussian":   transform.Gaussian,
	"mitchell":   transform.MitchellNetravali,
	"catmullrom": transform.CatmullRom,
	"lanczos":    transform.Lanczos,
}

// extFormats maps file extensions onto the output formats bild can encode.
var extFormats = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".bmp":  "bmp",
}

// Config mirrors the imaging engine's configuration.
type Config struct {
	Filter     string
	Background string
}

// Engine opens sessions backed by bild.
type Engine struct {
	filter transform.ResampleFilter
	matte  color.NRGBA
}

// New creates a bild engine. An empty filter selects Lanczos.
func New(cfg Config) (*Engine, error) {
	name := strings.ToLower(cfg.Filter)
	if name == "" {
		name = "lanczos"
	}
	f, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("bild: unknown resample filter %q", cfg.Filter)
	}

	bg := cfg.Background
	if bg == "" {
		bg = "#ffffff"
	}
	matte, err := backend.ParseMatte(bg)
	if err != nil {
		return nil, fmt.Errorf("bild: %w", err)
	}
	return &Engine{filter: f, matte: matte}, nil
}

func (e *Engine) NewSession() backend.Session {
	return &session{engine: e}
}

func (e *Engine) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:    Name,
		Formats: []string{"bmp", "jpeg", "png"},
		Filters: []string{"box", "catmullrom", "gaussian", "lanczos", "linear", "mitchell", "nearest"},
	}
}

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

// Load decodes path. bild does not report the decoded format, so the
// output format follows the file extension, falling back to PNG for
// sources bild cannot write.
func (s *session) Load(path string) error {
	img, err := imgio.Open(path)
	if err != nil {
		return s.fail(err)
	}
	s.img = img
	s.format = "png"
	if f, ok := extFormats[strings.ToLower(filepath.Ext(path))]; ok {
		s.format = f
	}
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
	s.img = transform.Resize(s.img, width, height, s.engine.filter)
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
	f, ok := extFormats["."+strings.ToLower(strings.TrimPrefix(name, "."))]
	if !ok {
		return s.fail(fmt.Errorf("unsupported output format %q", name))
	}
	s.format = f
	return nil
}

func (s *session) Format() string { return s.format }

func (s *session) EncodeToBlob() ([]byte, error) {
	if s.img == nil {
		return nil, s.fail(backend.ErrNoImage)
	}

	img := s.img
	var enc imgio.Encoder
	switch s.format {
	case "jpeg":
		q := jpeg.DefaultQuality
		if s.quality > 0 {
			q = s.quality
		}
		enc = imgio.JPEGEncoder(q)
		img = backend.Flatten(img, s.engine.matte)
	case "png":
		enc = imgio.PNGEncoder()
	case "bmp":
		enc = imgio.BMPEncoder()
	default:
		return nil, s.fail(fmt.Errorf("encode: unsupported output format %q", s.format))
	}

	var buf bytes.Buffer
	if err := enc(&buf, img); err != nil {
		return nil, s.fail(fmt.Errorf("encode %s: %w", s.format, err))
	}
	if buf.Len() == 0 {
		return nil, s.fail(errors.New("encoder produced no data"))
	}
	return buf.Bytes(), nil
}

func (s *session) LastError() error { return s.lastErr }

func (s *session) Release() {
	s.img = nil
}
