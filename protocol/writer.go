package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Writer encodes RESP replies onto a buffered stream. Errors from the
// underlying writer are sticky in the bufio layer, so callers may batch
// writes and check the error once on Flush.
type Writer struct {
	bw      *bufio.Writer
	scratch []byte
}

// NewWriter creates a RESP writer around w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw:      bufio.NewWriter(w),
		scratch: make([]byte, 0, 32),
	}
}

// WriteValue encodes one reply value, arrays recursively
func (w *Writer) WriteValue(v Value) error {
	switch v.Type {
	case TypeSimpleString:
		return w.WriteSimpleString(string(v.Data))
	case TypeError:
		return w.WriteError(string(v.Data))
	case TypeInteger:
		return w.WriteInteger(v.Integer)
	case TypeBulkString:
		if v.IsNull {
			return w.WriteNullBulkString()
		}
		return w.WriteBulkString(v.Data)
	case TypeArray:
		if v.IsNull {
			return w.WriteNullArray()
		}
		if err := w.WriteArrayHeader(len(v.Array)); err != nil {
			return err
		}
		for _, elem := range v.Array {
			if err := w.WriteValue(elem); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value type: %c", v.Type)
	}
}

// WriteSimpleString writes +s
func (w *Writer) WriteSimpleString(s string) error {
	return w.writeLine('+', s)
}

// WriteError writes -msg
func (w *Writer) WriteError(msg string) error {
	return w.writeLine('-', msg)
}

// WriteInteger writes :n
func (w *Writer) WriteInteger(n int64) error {
	w.scratch = strconv.AppendInt(w.scratch[:0], n, 10)
	return w.writeLine(':', string(w.scratch))
}

// WriteBulkString writes $len followed by the payload. The payload may
// contain any bytes, CRLF included.
func (w *Writer) WriteBulkString(data []byte) error {
	w.scratch = strconv.AppendInt(w.scratch[:0], int64(len(data)), 10)
	if err := w.writeLine('$', string(w.scratch)); err != nil {
		return err
	}
	w.bw.Write(data)
	_, err := w.bw.WriteString(CRLF)
	return err
}

// WriteNullBulkString writes the $-1 null reply
func (w *Writer) WriteNullBulkString() error {
	return w.writeLine('$', "-1")
}

// WriteArrayHeader writes *n. The next n values written become the
// array's elements; an empty array (*0) is distinct from a null array.
func (w *Writer) WriteArrayHeader(n int) error {
	w.scratch = strconv.AppendInt(w.scratch[:0], int64(n), 10)
	return w.writeLine('*', string(w.scratch))
}

// WriteNullArray writes the *-1 null reply
func (w *Writer) WriteNullArray() error {
	return w.writeLine('*', "-1")
}

// Flush flushes buffered replies to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// writeLine writes one prefixed, CRLF-terminated line
func (w *Writer) writeLine(prefix byte, s string) error {
	w.bw.WriteByte(prefix)
	w.bw.WriteString(s)
	_, err := w.bw.WriteString(CRLF)
	return err
}
