package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EPUBReader provides access to EPUB file contents
type EPUBReader struct {
	zipReader *zip.ReadCloser
	files     map[string]*zip.File
	order     []string // normalized paths in archive order
	opfPath   string
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
	ErrPackageNotFound    = errors.New("package document not found")
	ErrFileNotFound       = errors.New("file not found in archive")
)

// Open opens an EPUB file and locates its package document.
// Mimetype problems are not fatal here; see ValidateMimetype.
func Open(path string) (*EPUBReader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	reader := &EPUBReader{
		zipReader: zr,
		files:     make(map[string]*zip.File),
	}

	// Build file map with normalized paths
	for _, f := range zr.File {
		name := normalizePath(f.Name)
		if _, dup := reader.files[name]; !dup {
			reader.order = append(reader.order, name)
		}
		reader.files[name] = f
	}

	// Parse container.xml to get OPF path
	if err := reader.parseContainer(); err != nil {
		zr.Close()
		return nil, err
	}

	return reader, nil
}

// Close closes the EPUB reader
func (r *EPUBReader) Close() error {
	return r.zipReader.Close()
}

// OPFPath returns the path to the OPF file
func (r *EPUBReader) OPFPath() string {
	return r.opfPath
}

// ReadFile reads the contents of a file from the EPUB
func (r *EPUBReader) ReadFile(path string) ([]byte, error) {
	path = normalizePath(path)
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Entries materializes every archive member in archive order.
// A member that cannot be decompressed is returned with nil Data so that
// lookups against it degrade instead of aborting the whole package.
func (r *EPUBReader) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		f := r.files[name]
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			entries = append(entries, Entry{Path: name, IsDir: true})
			continue
		}
		data, err := r.ReadFile(name)
		if err != nil {
			entries = append(entries, Entry{Path: name})
			continue
		}
		entries = append(entries, Entry{Path: name, Data: data})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty archive")
	}
	return entries, nil
}

// ReadOPF parses the package document named by container.xml.
func (r *EPUBReader) ReadOPF() (*OPF, error) {
	content, err := r.ReadFile(r.opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, r.opfPath)
	}
	return ParseOPF(content, opfDir(r.opfPath))
}

// ValidateMimetype checks that the mimetype file exists and is valid
func (r *EPUBReader) ValidateMimetype() error {
	f, ok := r.files["mimetype"]
	if !ok {
		return ErrMimetypeNotFound
	}

	// Check that mimetype is not compressed
	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	// Read and validate content
	content, err := r.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}

	if strings.TrimSpace(string(content)) != "application/epub+zip" {
		return ErrInvalidMimetype
	}

	return nil
}

// parseContainer parses container.xml to extract OPF path
func (r *EPUBReader) parseContainer() error {
	content, err := r.ReadFile("META-INF/container.xml")
	if err != nil {
		return ErrContainerNotFound
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("failed to parse container.xml: %w", err)
	}

	// Find the OPF file path
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath == "" {
			continue
		}
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			r.opfPath = normalizePath(rf.FullPath)
			return nil
		}
	}

	// If no media-type match, use the first one
	if len(c.Rootfiles.Rootfile) > 0 && c.Rootfiles.Rootfile[0].FullPath != "" {
		r.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return ErrOPFPathNotFound
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	return path
}

// opfDir returns the directory holding the package document, "" at the root.
func opfDir(opfPath string) string {
	i := strings.LastIndex(opfPath, "/")
	if i < 0 {
		return ""
	}
	return opfPath[:i]
}
