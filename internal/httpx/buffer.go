package httpx

import (
	"bytes"
	"net/http"
)

// BufferedWriter holds a complete response in memory so that headers can
// still be added after the wrapped handler returns. Nothing reaches the
// client until Flush.
type BufferedWriter struct {
	dst    http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func NewBufferedWriter(dst http.ResponseWriter) *BufferedWriter {
	return &BufferedWriter{dst: dst, header: make(http.Header)}
}

func (b *BufferedWriter) Header() http.Header { return b.header }

func (b *BufferedWriter) WriteHeader(code int) {
	if b.status != 0 {
		return
	}
	b.status = code
}

func (b *BufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// Status is the buffered status code, 200 if none was written.
func (b *BufferedWriter) Status() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

// Body returns the buffered body bytes.
func (b *BufferedWriter) Body() []byte { return b.body.Bytes() }

// Reset drops everything buffered so far, including headers.
func (b *BufferedWriter) Reset() {
	b.header = make(http.Header)
	b.status = 0
	b.body.Reset()
}

// Commit copies the buffered headers, status and body to the underlying
// writer. Buffered headers replace same-named headers already set there.
func (b *BufferedWriter) Commit() error {
	dh := b.dst.Header()
	for k, v := range b.header {
		dh[k] = v
	}
	b.dst.WriteHeader(b.Status())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := b.dst.Write(b.body.Bytes())
	return err
}
