package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// DefaultArchiveName is the suggested name for a batch archive.
const DefaultArchiveName = "watermarked_images.zip"

const archiveLevel = 6

// Entry is one file inside an archive.
type Entry struct {
	Filename string
	Data     []byte
}

// Archive bundles entries into a ZIP, in order.
func Archive(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteArchive streams a ZIP of entries to w. Every entry is deflated at a
// fixed level. Names are written as given; keeping them unique is up to the
// caller.
func WriteArchive(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmptyArchive
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, archiveLevel)
	})

	now := time.Now()
	for _, e := range entries {
		hdr := &zip.FileHeader{
			Name:     e.Filename,
			Method:   zip.Deflate,
			Modified: now,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", e.Filename, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}
