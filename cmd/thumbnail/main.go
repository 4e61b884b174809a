// thumbnail resizes a single image from the command line.
// Usage: thumbnail [-width N] [-height N] [-quality N] [-engine name] [-format f] [-o out] <image>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/seantiz/thumbnail/internal/backend"
	"github.com/seantiz/thumbnail/internal/backend/bild"
	"github.com/seantiz/thumbnail/internal/backend/imaging"
	"github.com/seantiz/thumbnail/internal/config"
	"github.com/seantiz/thumbnail/internal/engine"
	"github.com/seantiz/thumbnail/internal/loop"
	"github.com/seantiz/thumbnail/internal/model"
	"github.com/seantiz/thumbnail/internal/pool"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("thumbnail", flag.ContinueOnError)
	fs.SetOutput(stderr)
	width := fs.Int("width", 0, "target width in pixels (0 derives it from height)")
	height := fs.Int("height", 0, "target height in pixels (0 derives it from width)")
	quality := fs.Int("quality", 0, "compression quality 1-100 (0 keeps the engine default)")
	engineName := fs.String("engine", "", "image engine (imaging, bild); empty uses THUMB_ENGINE")
	format := fs.String("format", "", "output format override (jpeg, png, gif, bmp, tiff, webp)")
	out := fs.String("o", "", "output file, - for stdout (default <name>_thumb.<ext>)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: thumbnail [flags] <image>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	cfg := config.Load()
	logger := config.NewLogger(stderr, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "thumbnail: %v\n", err)
		return exitError
	}

	reg, err := newRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "thumbnail: %v\n", err)
		return exitError
	}

	var fault *loop.Fault
	l := loop.New(logger, loop.WithFaultHandler(func(f *loop.Fault) { fault = f }))
	sched := pool.NewUnbounded(logger)
	defer sched.Close()
	eng := engine.New(l, sched, reg, logger)

	input := fs.Arg(0)
	req := model.Request{
		Path:    input,
		Width:   *width,
		Height:  *height,
		Quality: *quality,
		Engine:  *engineName,
		Format:  strings.ToLower(*format),
	}

	var jobErr error
	_, err = eng.Submit(req, func(err error, image []byte, info *model.Info) {
		if err != nil {
			jobErr = err
			return
		}
		dest := *out
		if dest == "" {
			dest = defaultOutput(input, info.Format)
		}
		if err := writeOutput(dest, image, stdout); err != nil {
			jobErr = err
			return
		}
		fmt.Fprintf(stderr, "%s: %dx%d %s quality=%d (%d bytes)\n",
			dest, info.Width, info.Height, info.Format, info.Quality, len(image))
	})
	if err != nil {
		fmt.Fprintf(stderr, "thumbnail: %v\n", err)
		if errors.Is(err, model.ErrInvalidArgument) {
			return exitUsage
		}
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := l.RunUntilIdle(ctx); err != nil {
		fmt.Fprintf(stderr, "thumbnail: interrupted: %v\n", err)
		return exitError
	}

	switch {
	case fault != nil:
		fmt.Fprintf(stderr, "thumbnail: %v\n", fault)
		return exitError
	case jobErr != nil:
		fmt.Fprintf(stderr, "thumbnail: %v\n", jobErr)
		return exitError
	}
	return exitOK
}

func newRegistry(cfg config.Config) (*backend.Registry, error) {
	reg := backend.NewRegistry()

	img, err := imaging.New(imaging.Config{Filter: cfg.ResampleFilter, Background: cfg.Background})
	if err != nil {
		return nil, err
	}
	reg.Register(imaging.Name, img)

	b, err := bild.New(bild.Config{Filter: cfg.ResampleFilter, Background: cfg.Background})
	if err != nil {
		return nil, err
	}
	reg.Register(bild.Name, b)

	return reg, reg.SetDefault(cfg.Engine)
}

// defaultOutput names the thumbnail next to its source, e.g.
// photos/cat.png -> photos/cat_thumb.jpg for a JPEG result.
func defaultOutput(input, format string) string {
	ext := "." + format
	if format == "jpeg" {
		ext = ".jpg"
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "_thumb" + ext
}

func writeOutput(dest string, data []byte, stdout io.Writer) error {
	if dest == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
