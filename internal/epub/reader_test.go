package epub

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:language>en</dc:language>
    <dc:identifier id="uid">urn:uuid:1234</dc:identifier>
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

// writeTestEPUB writes a zip with an optional stored mimetype followed by
// files in the given order.
func writeTestEPUB(t *testing.T, mimetype *zip.FileHeader, files [][2]string) string {
	t.Helper()
	epubPath := filepath.Join(t.TempDir(), "test.epub")
	f, err := os.Create(epubPath)
	if err != nil {
		t.Fatalf("failed to create test epub: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	if mimetype != nil {
		mw, err := w.CreateHeader(mimetype)
		if err != nil {
			t.Fatalf("failed to create mimetype: %v", err)
		}
		mw.Write([]byte("application/epub+zip"))
	}
	for _, file := range files {
		fw, err := w.Create(file[0])
		if err != nil {
			t.Fatalf("failed to create %s: %v", file[0], err)
		}
		fw.Write([]byte(file[1]))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return epubPath
}

func storedMimetype() *zip.FileHeader {
	return &zip.FileHeader{Name: "mimetype", Method: zip.Store}
}

// createTestEPUB creates a minimal valid EPUB file for testing
func createTestEPUB(t *testing.T) string {
	t.Helper()
	return writeTestEPUB(t, storedMimetype(), [][2]string{
		{"META-INF/container.xml", testContainerXML},
		{"OEBPS/content.opf", testOPF},
		{"OEBPS/chapter1.xhtml", `<html><body><h1>Chapter 1</h1><p>Hello, World!</p></body></html>`},
	})
}

func TestOpen(t *testing.T) {
	reader, err := Open(createTestEPUB(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	if reader.OPFPath() != "OEBPS/content.opf" {
		t.Errorf("OPFPath() = %q, want %q", reader.OPFPath(), "OEBPS/content.opf")
	}
	if err := reader.ValidateMimetype(); err != nil {
		t.Errorf("ValidateMimetype() error = %v", err)
	}
}

func TestOpen_FileNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.epub"))
	if err == nil {
		t.Fatal("Open() expected error for missing file")
	}
}

func TestOpen_NoContainer(t *testing.T) {
	path := writeTestEPUB(t, storedMimetype(), [][2]string{
		{"OEBPS/content.opf", testOPF},
	})
	_, err := Open(path)
	if !errors.Is(err, ErrContainerNotFound) {
		t.Fatalf("Open() error = %v, want ErrContainerNotFound", err)
	}
}

func TestOpen_NoRootfile(t *testing.T) {
	path := writeTestEPUB(t, storedMimetype(), [][2]string{
		{"META-INF/container.xml", `<container><rootfiles></rootfiles></container>`},
	})
	_, err := Open(path)
	if !errors.Is(err, ErrOPFPathNotFound) {
		t.Fatalf("Open() error = %v, want ErrOPFPathNotFound", err)
	}
}

func TestValidateMimetype(t *testing.T) {
	tests := []struct {
		name     string
		mimetype *zip.FileHeader
		want     error
	}{
		{name: "missing", mimetype: nil, want: ErrMimetypeNotFound},
		{name: "compressed", mimetype: &zip.FileHeader{Name: "mimetype", Method: zip.Deflate}, want: ErrMimetypeCompressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestEPUB(t, tt.mimetype, [][2]string{
				{"META-INF/container.xml", testContainerXML},
				{"OEBPS/content.opf", testOPF},
			})
			reader, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer reader.Close()

			if err := reader.ValidateMimetype(); !errors.Is(err, tt.want) {
				t.Errorf("ValidateMimetype() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEPUBReader_Entries(t *testing.T) {
	reader, err := Open(createTestEPUB(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	entries, err := reader.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}

	want := []string{"mimetype", "META-INF/container.xml", "OEBPS/content.opf", "OEBPS/chapter1.xhtml"}
	if len(entries) != len(want) {
		t.Fatalf("Entries() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Path != want[i] {
			t.Errorf("entries[%d].Path = %q, want %q", i, e.Path, want[i])
		}
	}
	if string(entries[0].Data) != "application/epub+zip" {
		t.Errorf("mimetype data = %q", entries[0].Data)
	}
}

func TestEPUBReader_ReadOPF(t *testing.T) {
	reader, err := Open(createTestEPUB(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	opf, err := reader.ReadOPF()
	if err != nil {
		t.Fatalf("ReadOPF() error = %v", err)
	}
	if opf.Metadata.Title != "Test Book" {
		t.Errorf("Title = %q, want %q", opf.Metadata.Title, "Test Book")
	}
	if got := opf.Manifest["chapter1"].Href; got != "OEBPS/chapter1.xhtml" {
		t.Errorf("chapter1 href = %q, want %q", got, "OEBPS/chapter1.xhtml")
	}
}

func TestEPUBReader_ReadOPF_Missing(t *testing.T) {
	path := writeTestEPUB(t, storedMimetype(), [][2]string{
		{"META-INF/container.xml", testContainerXML},
	})
	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	if _, err := reader.ReadOPF(); !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("ReadOPF() error = %v, want ErrPackageNotFound", err)
	}
}

func TestEPUBReader_ReadFile_NotFound(t *testing.T) {
	reader, err := Open(createTestEPUB(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	if _, err := reader.ReadFile("OEBPS/missing.xhtml"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("ReadFile() error = %v, want ErrFileNotFound", err)
	}
}

func TestOpen_PathNormalization(t *testing.T) {
	path := writeTestEPUB(t, storedMimetype(), [][2]string{
		{"./META-INF/container.xml", testContainerXML},
		{"./OEBPS/content.opf", testOPF},
	})
	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	if _, err := reader.ReadFile("OEBPS/content.opf"); err != nil {
		t.Errorf("ReadFile() with normalized path error = %v", err)
	}
}
