package pdfextract

import (
	"bytes"
	"image/jpeg"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the entire content of r and extracts plain text from the PDF.
// Returns empty string and nil error if the PDF has no extractable text.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	readerAt := bytes.NewReader(b)
	pdfReader, err := pdf.NewReader(readerAt, int64(len(b)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ExtractPages returns the plain text of every page in order. A page that
// cannot be decoded contributes an empty string instead of aborting the
// whole document.
func ExtractPages(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

const (
	minJPEGSize = 2 << 10  // skip tiny decorative blobs
	maxJPEGSize = 10 << 20 // skip suspicious oversize matches
)

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

// ExtractJPEGImages scans the raw PDF bytes for embedded JPEG streams.
// DCTDecode-filtered image XObjects store the JPEG verbatim, so the blobs
// come out in file order, which approximates page order for common
// generators. Every candidate is validated with a JPEG header decode.
func ExtractJPEGImages(data []byte, maxImages int) [][]byte {
	var images [][]byte
	offset := 0
	for offset < len(data) {
		start := bytes.Index(data[offset:], jpegSOI)
		if start < 0 {
			break
		}
		start += offset
		end := bytes.Index(data[start:], jpegEOI)
		if end < 0 {
			break
		}
		end += start + len(jpegEOI)
		blob := data[start:end]
		offset = end

		if len(blob) < minJPEGSize || len(blob) > maxJPEGSize {
			continue
		}
		if _, err := jpeg.DecodeConfig(bytes.NewReader(blob)); err != nil {
			continue
		}
		img := make([]byte, len(blob))
		copy(img, blob)
		images = append(images, img)
		if maxImages > 0 && len(images) >= maxImages {
			break
		}
	}
	return images
}
