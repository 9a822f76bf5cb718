package imageservice

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WEBP decoder

	"github.com/MrGangrene/bgg-flashcards/internal/errors"
)

// MIME types of stored images
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

const (
	defaultJPEGQuality = 75

	aggressiveDimension = 200
	fallbackQuality     = 30
)

var (
	aggressiveQualities = []int{60, 50, 40, 30, 20}
	fallbackDimensions  = []int{150, 100, 80}
)

var supportedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

// Process decodes data, fits it within the configured dimension and
// re-encodes it. PNGs with an alpha channel stay PNG, everything else becomes
// JPEG.
func (s *Service) Process(data []byte) ([]byte, string, error) {
	img, format, err := decode(data)
	if err != nil {
		return nil, "", err
	}

	keepPNG := format == "png" && hasAlphaChannel(img)
	img = fit(img, s.config.MaxDimension)

	var buf bytes.Buffer
	if keepPNG {
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, "", processError(err, "encode_png")
		}
		return buf.Bytes(), MimePNG, nil
	}

	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: defaultJPEGQuality}); err != nil {
		return nil, "", processError(err, "encode_jpeg")
	}
	return buf.Bytes(), MimeJPEG, nil
}

// AggressiveCompress shrinks data until it fits the byte budget. It tries
// decreasing JPEG qualities at 200px, then smaller sizes at quality 30, always
// starting from the original data. It fails when nothing fits.
func (s *Service) AggressiveCompress(data []byte) ([]byte, string, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, "", err
	}

	small := flatten(fit(img, aggressiveDimension))
	for _, quality := range aggressiveQualities {
		out, err := encodeJPEG(small, quality)
		if err != nil {
			return nil, "", err
		}
		logger.Debug("Aggressive compression attempt", "dimension", aggressiveDimension, "quality", quality, "bytes", len(out))
		if len(out) <= s.config.MaxSize {
			return out, MimeJPEG, nil
		}
	}

	for _, dim := range fallbackDimensions {
		out, err := encodeJPEG(flatten(fit(img, dim)), fallbackQuality)
		if err != nil {
			return nil, "", err
		}
		logger.Debug("Aggressive compression attempt", "dimension", dim, "quality", fallbackQuality, "bytes", len(out))
		if len(out) <= s.config.MaxSize {
			return out, MimeJPEG, nil
		}
	}

	return nil, "", errors.Newf("image does not fit %d bytes at any compression level", s.config.MaxSize).
		Component("imageservice").
		Category(errors.CategoryImageProcessing).
		Context("max_size", s.config.MaxSize).
		Context("original_size", len(data)).
		Build()
}

func decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", processError(err, "decode")
	}
	if !supportedFormats[format] {
		return nil, "", errors.Newf("unsupported image format %q", format).
			Component("imageservice").
			Category(errors.CategoryImageProcessing).
			Context("format", format).
			Build()
	}
	return img, format, nil
}

// fit scales img down to fit within maxDim x maxDim preserving the aspect
// ratio. Images already within bounds are returned unchanged.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// hasAlphaChannel reports whether a decoded PNG was stored with an alpha
// channel (RGBA or gray with alpha), whatever its pixels hold. Palette
// transparency does not count.
func hasAlphaChannel(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	default:
		return false
	}
}

// flatten composites img over a white background.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, processError(err, "encode_jpeg")
	}
	return buf.Bytes(), nil
}

func processError(err error, op string) error {
	return errors.New(fmt.Errorf("image %s failed: %w", op, err)).
		Component("imageservice").
		Category(errors.CategoryImageProcessing).
		Context("operation", op).
		Build()
}
