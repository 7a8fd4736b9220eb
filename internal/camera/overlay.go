package camera

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/argusobs/telescope-core/internal/driver"
)

// OverlayConfig describes the annotation burned into captured frames
// when a capture asks for it. A nil config on the camera disables
// overlay rendering entirely.
type OverlayConfig struct {
	// Crosshair draws centre lines across the frame.
	Crosshair bool

	// Grid draws alignment grid lines every GridSpacing pixels.
	Grid        bool
	GridSpacing int
}

// Renderer burns an overlay into an encoded frame. Implementations are
// pure: same inputs, same output, no camera state.
type Renderer interface {
	Render(data []byte, cfg OverlayConfig, identity driver.Identity) ([]byte, error)
}

// NullRenderer leaves frames untouched. This is the default renderer.
type NullRenderer struct{}

func (NullRenderer) Render(data []byte, _ OverlayConfig, _ driver.Identity) ([]byte, error) {
	return data, nil
}

// CrosshairRenderer decodes the frame, draws the configured crosshair
// and grid, and re-encodes it as JPEG.
type CrosshairRenderer struct {
	// Quality is the JPEG re-encode quality. Defaults to 90.
	Quality int
}

func (r CrosshairRenderer) Render(data []byte, cfg OverlayConfig, _ driver.Identity) ([]byte, error) {
	if !cfg.Crosshair && !cfg.Grid {
		return data, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame for overlay: %w", err)
	}

	img := imaging.Clone(src)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if cfg.Grid {
		spacing := cfg.GridSpacing
		if spacing <= 0 {
			spacing = 100
		}
		grey := color.NRGBA{128, 128, 128, 255}
		for y := 0; y < h; y += spacing {
			for x := 0; x < w; x++ {
				img.SetNRGBA(x, y, grey)
			}
		}
		for x := 0; x < w; x += spacing {
			for y := 0; y < h; y++ {
				img.SetNRGBA(x, y, grey)
			}
		}
	}

	if cfg.Crosshair {
		green := color.NRGBA{0, 255, 0, 255}
		for y := 0; y < h; y++ {
			img.SetNRGBA(w/2, y, green)
		}
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, h/2, green)
		}
	}

	quality := r.Quality
	if quality <= 0 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encoding overlay frame: %w", err)
	}
	return buf.Bytes(), nil
}
