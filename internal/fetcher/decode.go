package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// maxBodySize caps a decoded response body
const maxBodySize = 32 << 20

// decodeBody reads body and undoes its Content-Encoding. Forwarded
// Accept-Encoding headers disable the automatic gzip handling of net/http,
// so the encodings a browser advertises are handled here. Encoding headers
// are removed from header once the body is decoded.
func decodeBody(header http.Header, body io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	encoding := strings.ToLower(strings.TrimSpace(header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" || len(raw) == 0 {
		return raw, nil
	}

	var r io.Reader
	switch encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case "deflate":
		// Servers disagree on whether deflate carries a zlib header.
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(raw))
			defer fr.Close()
			r = fr
		} else {
			defer zr.Close()
			r = zr
		}
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		// br and friends are passed through untouched
		return raw, nil
	}

	decoded, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", encoding, err)
	}
	header.Del("Content-Encoding")
	header.Del("Content-Length")
	return decoded, nil
}
