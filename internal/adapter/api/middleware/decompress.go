package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrMalformedEncoding is returned from a request body whose declared
// Content-Encoding cannot be decoded.
var ErrMalformedEncoding = errors.New("malformed content encoding")

// Decompress transparently inflates gzip request bodies. Decoding is lazy:
// errors surface from Body.Read, so the handler still owns the response shape.
// Handlers that cap body size therefore cap the inflated size.
func Decompress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), "gzip") {
			r.Body = &gzipBody{src: r.Body}
			r.Header.Del("Content-Encoding")
			r.Header.Del("Content-Length")
			r.ContentLength = -1
		}
		next.ServeHTTP(w, r)
	})
}

type gzipBody struct {
	src io.ReadCloser
	zr  *gzip.Reader
	err error
}

func (b *gzipBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.zr == nil {
		zr, err := gzip.NewReader(b.src)
		if err != nil {
			b.err = fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
			return 0, b.err
		}
		b.zr = zr
	}
	n, err := b.zr.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		b.err = err
	}
	return n, err
}

func (b *gzipBody) Close() error {
	if b.zr != nil {
		b.zr.Close()
	}
	return b.src.Close()
}
