package log

import (
	"io"
)

// MultiWriter fans each write out to every writer. A failing writer does not
// stop the others; the last error is returned.
type MultiWriter struct {
	writers []io.Writer
	closers []io.Closer // appenders owned by the writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// own adds an appender the writer closes on Close.
func (m *MultiWriter) own(w io.WriteCloser) *MultiWriter {
	m.writers = append(m.writers, w)
	m.closers = append(m.closers, w)
	return m
}

// Close closes the owned appenders, such as log files. Writers passed to Add,
// like os.Stdout, are left open.
func (m *MultiWriter) Close() error {
	var err error
	for _, c := range m.closers {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	m.closers = nil
	return err
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0, 2)}
}
