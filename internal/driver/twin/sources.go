package twin

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/argusobs/telescope-core/internal/driver"
)

const (
	jpegQuality      = 90
	gridSpacing      = 50
	crosshairRadius  = 100
	exposureBarMaxPx = 400
	fallbackExposure = 100_000
	noiseGainDivisor = 10
)

// Image file extensions the file/directory sources accept.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// captureParams carries the per-exposure inputs a source may render.
type captureParams struct {
	exposureUs int64
	gain       int
}

// imageSource produces encoded frames for simulated exposures.
type imageSource interface {
	capture(p captureParams) ([]byte, error)
	close()
}

// newImageSource builds the source selected by cfg for one camera spec.
func newImageSource(cfg Config, spec CameraSpec, logger Logger) (imageSource, error) {
	switch cfg.Source {
	case SourceFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file source requires a path")
		}
		return &fileSource{path: cfg.Path, spec: spec}, nil
	case SourceDirectory:
		if cfg.Path == "" {
			return nil, fmt.Errorf("directory source requires a path")
		}
		return newDirectorySource(cfg, spec, logger)
	default:
		return newSyntheticSource(spec), nil
	}
}

// --- synthetic -------------------------------------------------------------

// syntheticSource rasterises a deterministic test pattern: faint grid,
// centre crosshair and circle, an exposure-proportional bar, a text
// banner naming the camera and exposure parameters, and noise scaled
// by gain. Identical parameters produce identical frames.
type syntheticSource struct {
	spec CameraSpec
}

func newSyntheticSource(spec CameraSpec) *syntheticSource {
	return &syntheticSource{spec: spec}
}

func (s *syntheticSource) capture(p captureParams) ([]byte, error) {
	w, h := s.spec.MaxWidth, s.spec.MaxHeight
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	grid := color.NRGBA{50, 50, 50, 255}
	for y := 0; y < h; y += gridSpacing {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, grid)
		}
	}
	for x := 0; x < w; x += gridSpacing {
		for y := 0; y < h; y++ {
			img.SetNRGBA(x, y, grid)
		}
	}

	// Centre crosshair and alignment circle.
	green := color.NRGBA{0, 255, 0, 255}
	dimGreen := color.NRGBA{0, 100, 0, 255}
	cx, cy := w/2, h/2
	for y := 0; y < h; y++ {
		img.SetNRGBA(cx, y, green)
	}
	for x := 0; x < w; x++ {
		img.SetNRGBA(x, cy, green)
	}
	drawCircle(img, cx, cy, crosshairRadius, dimGreen)

	// Exposure bar: length grows with exposure relative to the sanity
	// maximum, so frames from different exposures are visually distinct.
	barLen := int(int64(exposureBarMaxPx) * p.exposureUs / driver.MaxExposureUs)
	if barLen < 2 {
		barLen = 2
	}
	white := color.NRGBA{255, 255, 255, 255}
	for x := 10; x < 10+barLen && x < w; x++ {
		for y := 10; y < 14 && y < h; y++ {
			img.SetNRGBA(x, y, white)
		}
	}

	// Banner naming the camera and capture parameters, so saved frames
	// identify themselves.
	banner := fmt.Sprintf("%s exp=%dus gain=%d", s.spec.Name, p.exposureUs, p.gain)
	drawText(img, 10, 30, banner, white)

	// Sensor noise scales with gain, seeded from the capture parameters
	// so imagery stays deterministic.
	if p.gain > 0 {
		level := p.gain / noiseGainDivisor
		if level > 0 {
			rng := rand.New(rand.NewSource(p.exposureUs*31 + int64(p.gain)))
			for i := 0; i < len(img.Pix); i += 4 {
				n := uint8(rng.Intn(level + 1))
				img.Pix[i] = addClamp(img.Pix[i], n)
				img.Pix[i+1] = addClamp(img.Pix[i+1], n)
				img.Pix[i+2] = addClamp(img.Pix[i+2], n)
			}
		}
	}

	return encodeJPEG(img)
}

func (s *syntheticSource) close() {}

func addClamp(v, n uint8) uint8 {
	sum := int(v) + int(n)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

// drawText rasterises one line of text with the basicfont face. x, y
// position the baseline.
func drawText(img *image.NRGBA, x, y int, text string, c color.NRGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawCircle plots a midpoint circle outline.
func drawCircle(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	x, y, err := r, 0, 1-r
	for x >= y {
		img.SetNRGBA(cx+x, cy+y, c)
		img.SetNRGBA(cx-x, cy+y, c)
		img.SetNRGBA(cx+x, cy-y, c)
		img.SetNRGBA(cx-x, cy-y, c)
		img.SetNRGBA(cx+y, cy+x, c)
		img.SetNRGBA(cx-y, cy+x, c)
		img.SetNRGBA(cx+y, cy-x, c)
		img.SetNRGBA(cx-y, cy-x, c)
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("%w: %w", driver.ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

// --- file ------------------------------------------------------------------

// fileSource replays one image file on every exposure, resized to the
// sensor resolution. Read failures fall back to synthetic.
type fileSource struct {
	path string
	spec CameraSpec
}

func (s *fileSource) capture(p captureParams) ([]byte, error) {
	img, err := imaging.Open(s.path)
	if err != nil {
		return newSyntheticSource(s.spec).capture(captureParams{exposureUs: fallbackExposure, gain: p.gain})
	}
	return encodeJPEG(resizeToSensor(img, s.spec))
}

func (s *fileSource) close() {}

func resizeToSensor(img image.Image, spec CameraSpec) image.Image {
	b := img.Bounds()
	if b.Dx() == spec.MaxWidth && b.Dy() == spec.MaxHeight {
		return img
	}
	return imaging.Resize(img, spec.MaxWidth, spec.MaxHeight, imaging.Lanczos)
}

// --- directory -------------------------------------------------------------

// directorySource serves the image files of a directory round-robin in
// sorted order. With watching enabled, fsnotify events mark the listing
// dirty and the next capture rescans.
type directorySource struct {
	dir     string
	noCycle bool
	spec    CameraSpec
	logger  Logger

	mu      sync.Mutex
	files   []string
	index   int
	dirty   bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func newDirectorySource(cfg Config, spec CameraSpec, logger Logger) (*directorySource, error) {
	s := &directorySource{
		dir:     cfg.Path,
		noCycle: cfg.NoCycle,
		spec:    spec,
		logger:  logger,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	if cfg.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warn("directory watch unavailable", "error", err)
			return s, nil
		}
		if err := watcher.Add(cfg.Path); err != nil {
			watcher.Close()
			logger.Warn("directory watch unavailable", "path", cfg.Path, "error", err)
			return s, nil
		}
		s.watcher = watcher
		s.done = make(chan struct{})
		go s.watch()
	}
	return s, nil
}

// Reload rescans the directory listing and resets the cycle position if
// the current index fell off the end.
func (s *directorySource) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading image directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	if s.index >= len(files) {
		s.index = 0
	}
	s.dirty = false
	s.mu.Unlock()
	return nil
}

func (s *directorySource) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.mu.Lock()
				s.dirty = true
				s.mu.Unlock()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("directory watch error", "error", err)
		}
	}
}

func (s *directorySource) capture(p captureParams) ([]byte, error) {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if dirty {
		if err := s.Reload(); err != nil {
			s.logger.Warn("directory rescan failed", "error", err)
		}
	}

	s.mu.Lock()
	if len(s.files) == 0 {
		s.mu.Unlock()
		return newSyntheticSource(s.spec).capture(captureParams{exposureUs: fallbackExposure, gain: p.gain})
	}
	path := s.files[s.index]
	s.index++
	if s.index >= len(s.files) {
		if s.noCycle {
			s.index = len(s.files) - 1
		} else {
			s.index = 0
		}
	}
	s.mu.Unlock()

	img, err := imaging.Open(path)
	if err != nil {
		return newSyntheticSource(s.spec).capture(captureParams{exposureUs: fallbackExposure, gain: p.gain})
	}
	return encodeJPEG(resizeToSensor(img, s.spec))
}

func (s *directorySource) close() {
	if s.watcher != nil {
		close(s.done)
		s.watcher.Close()
		s.watcher = nil
	}
}
