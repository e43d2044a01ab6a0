package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"path"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/yuanying/epub2notes/internal/epub"
)

const (
	defaultMaxImageWidth    = 800
	defaultJPEGQuality      = 85
	minJPEGQuality          = 60
	defaultCoverJPEGQuality = 90
	defaultMaxPixels        = 100 * 1000 * 1000 // 100 megapixels
)

// ImageOptimizer shrinks raster images for note attachments.
type ImageOptimizer struct {
	MaxWidth         int
	JPEGQuality      int
	MaxFileSize      int // 0 disables the size limit
	MinJPEGQuality   int
	CoverJPEGQuality int
	MaxPixels        int // Total pixel count limit for decode (width * height)
}

// OptimizedImage holds optimized image data and metadata.
// Warning is set (non-empty) when the image was returned as-is (passthrough)
// or when optimization completed but the size limit was not met.
// In both cases Data is usable.
type OptimizedImage struct {
	Data         []byte
	Width        int
	Height       int
	Format       string
	OriginalPath string
	Warning      string
}

// Extension returns the file extension matching the output format, or the
// original one for passthrough formats.
func (o OptimizedImage) Extension() string {
	switch o.Format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	}
	return strings.ToLower(path.Ext(o.OriginalPath))
}

// NewImageOptimizer creates an image optimizer from the conversion options.
func NewImageOptimizer(opts ConvertOptions) *ImageOptimizer {
	maxWidth := opts.MaxImageWidth
	if maxWidth <= 0 {
		maxWidth = defaultMaxImageWidth
	}

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = defaultJPEGQuality
	}
	quality = min(max(quality, minJPEGQuality), 100)

	return &ImageOptimizer{
		MaxWidth:         maxWidth,
		JPEGQuality:      quality,
		MaxFileSize:      max(opts.MaxImageSizeBytes, 0),
		MinJPEGQuality:   minJPEGQuality,
		CoverJPEGQuality: max(defaultCoverJPEGQuality, quality),
		MaxPixels:        defaultMaxPixels,
	}
}

// Optimize decodes and downsizes image data. JPEG is re-encoded at the
// configured quality; PNG and still GIF stay lossless (GIF becomes PNG);
// animated GIF and unknown formats pass through.
// On decode failure or size constraint violation, it sets Warning on the result
// and returns the best available data.
// Only encoding errors that prevent producing any output return a non-nil error.
func (o *ImageOptimizer) Optimize(path, mediaType string, input []byte, isCover bool) (OptimizedImage, error) {
	out := OptimizedImage{
		Data:         input,
		Format:       mediaTypeToFormat(mediaType),
		OriginalPath: path,
	}

	cfg, cfgFormat, cfgErr := image.DecodeConfig(bytes.NewReader(input))
	if cfgErr == nil {
		out.Width = cfg.Width
		out.Height = cfg.Height
		if out.Format == "" {
			out.Format = strings.ToLower(cfgFormat)
		}
		pixels := uint64(cfg.Width) * uint64(cfg.Height)
		if o.MaxPixels > 0 && pixels > uint64(o.MaxPixels) {
			out.Warning = fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
			return out, nil
		}
	}

	if out.Format == "gif" {
		if animated, err := isAnimatedGIF(input); err == nil && animated {
			return out, nil
		}
	}

	src, decodedFormat, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	if out.Format == "" {
		out.Format = strings.ToLower(decodedFormat)
	}

	processed := src
	resized := o.MaxWidth > 0 && src.Bounds().Dx() > o.MaxWidth
	if resized {
		processed = imaging.Resize(src, o.MaxWidth, 0, imaging.Lanczos)
	}

	var qualityUsed int
	switch out.Format {
	case "jpeg":
		quality := o.JPEGQuality
		if isCover {
			quality = max(quality, o.CoverJPEGQuality)
		}
		out.Data, qualityUsed, err = o.encodeJPEGWithSizeLimit(processed, quality, isCover)
		if err != nil {
			return out, err
		}
	case "png", "gif":
		if out.Format == "png" && !resized {
			// A small PNG keeps its original bytes.
			break
		}
		out.Data, err = encodePNG(processed)
		if err != nil {
			return out, fmt.Errorf("png encode failed: %w", err)
		}
		out.Format = "png"
	default:
		out.Warning = fmt.Sprintf("unsupported image format %q kept as-is", out.Format)
		return out, nil
	}
	out.Width = processed.Bounds().Dx()
	out.Height = processed.Bounds().Dy()

	if o.MaxFileSize > 0 && len(out.Data) > o.MaxFileSize {
		if out.Format == "jpeg" {
			out.Warning = fmt.Sprintf("jpeg size %d exceeds limit %d bytes at quality %d", len(out.Data), o.MaxFileSize, qualityUsed)
		} else {
			out.Warning = fmt.Sprintf("image size %d exceeds limit %d bytes", len(out.Data), o.MaxFileSize)
		}
	}

	return out, nil
}

func (o *ImageOptimizer) encodeJPEGWithSizeLimit(img image.Image, startQuality int, isCover bool) ([]byte, int, error) {
	minQuality := o.MinJPEGQuality
	if isCover {
		minQuality = max(minQuality, o.CoverJPEGQuality)
	}
	quality := min(max(startQuality, minQuality), 100)

	best, err := encodeJPEG(img, quality)
	if err != nil {
		return nil, 0, fmt.Errorf("jpeg encode failed: %w", err)
	}
	if o.MaxFileSize <= 0 || len(best) <= o.MaxFileSize {
		return best, quality, nil
	}

	bestQuality := quality
	for q := quality - 5; q >= minQuality; q -= 5 {
		candidate, encErr := encodeJPEG(img, q)
		if encErr != nil {
			return nil, 0, fmt.Errorf("jpeg re-encode failed at quality %d: %w", q, encErr)
		}
		best = candidate
		bestQuality = q
		if len(candidate) <= o.MaxFileSize {
			return candidate, q, nil
		}
	}

	return best, bestQuality, nil
}

func mediaTypeToFormat(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	default:
		return ""
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAnimatedGIF(data []byte) (bool, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}

// Attachment is an exported image file.
type Attachment struct {
	Name string // file name inside the attachments directory
	Data []byte
}

// Attachments exports each archived image at most once, under a unique
// file name.
type Attachments struct {
	entries   []epub.Entry
	optimizer *ImageOptimizer
	logger    *slog.Logger

	byPath map[string]string // archive path -> attachment name
	names  map[string]bool
	files  []Attachment
}

// NewAttachments creates an attachment store over the archive entries.
func NewAttachments(entries []epub.Entry, optimizer *ImageOptimizer, logger *slog.Logger) *Attachments {
	return &Attachments{
		entries:   entries,
		optimizer: optimizer,
		logger:    logger,
		byPath:    map[string]string{},
		names:     map[string]bool{},
	}
}

// Attach exports the image at the archive path and returns its attachment
// name. It reports false when the image is not in the archive.
func (a *Attachments) Attach(archivePath, mediaType string, isCover bool) (string, bool) {
	resolved, ok := epub.FindEntryPath(a.entries, archivePath)
	if !ok {
		a.logger.Warn("image not found", "href", archivePath)
		return "", false
	}
	if name, ok := a.byPath[resolved]; ok {
		return name, true
	}

	data, _ := epub.FindEntry(a.entries, resolved)
	if mediaType == "" {
		mediaType = mediaTypeFromExt(resolved)
	}
	out, err := a.optimizer.Optimize(resolved, mediaType, data, isCover)
	if err != nil {
		a.logger.Warn("image optimization failed; using original", "href", resolved, "err", err)
		out = OptimizedImage{Data: data, OriginalPath: resolved}
	} else if out.Warning != "" {
		a.logger.Warn(out.Warning, "href", resolved)
	}

	name := a.uniqueName(strings.TrimSuffix(path.Base(resolved), path.Ext(resolved)), out.Extension())
	a.byPath[resolved] = name
	a.files = append(a.files, Attachment{Name: name, Data: out.Data})
	return name, true
}

// Files returns the exported attachments in export order.
func (a *Attachments) Files() []Attachment {
	return a.files
}

func (a *Attachments) uniqueName(stem, ext string) string {
	stem = Slug(stem)
	name := stem + ext
	for n := 2; a.names[name]; n++ {
		name = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	a.names[name] = true
	return name
}

func mediaTypeFromExt(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	}
	return ""
}
