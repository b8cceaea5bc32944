// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrFormat is wrapped by every error caused by malformed input.
var ErrFormat = errors.New("npy: malformed array")

const (
	magic = "\x93NUMPY"

	// headerAlignment is the boundary the payload starts on. NumPy has
	// written 64-byte aligned headers since 1.14 and reads any alignment.
	headerAlignment = 64

	// maxElements bounds the element count a header can declare.
	maxElements = math.MaxInt32
)

// Header is the decoded .npy header dictionary.
type Header struct {
	// Descr is the NumPy dtype string, e.g. "<f8".
	Descr string

	// FortranOrder is true when the payload is column-major.
	FortranOrder bool

	// Shape holds the array dimensions. An empty shape is a scalar.
	Shape []int
}

// Elements returns the number of elements described by the shape.
func (h Header) Elements() int {
	count := 1
	for _, dimension := range h.Shape {
		count *= dimension
	}
	return count
}

// Marshal encodes m into a new byte slice.
func Marshal(m mat.Matrix) ([]byte, error) {
	var buffer bytes.Buffer
	if err := Encode(&buffer, m); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Unmarshal decodes a matrix from data.
func Unmarshal(data []byte) (*mat.Dense, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes m to w as a little-endian float64, C-order array of shape
// (rows, cols).
func Encode(w io.Writer, m mat.Matrix) error {
	rows, cols := m.Dims()
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)

	// magic + 2 version bytes + 2 length bytes + header + trailing newline
	preamble := len(magic) + 4
	padding := (headerAlignment - (preamble+len(header)+1)%headerAlignment) % headerAlignment
	header += strings.Repeat(" ", padding) + "\n"

	writer := bufio.NewWriter(w)
	writer.WriteString(magic)
	writer.Write([]byte{1, 0})
	var length [2]byte
	binary.LittleEndian.PutUint16(length[:], uint16(len(header)))
	writer.Write(length[:])
	writer.WriteString(header)

	row := make([]byte, 8*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			binary.LittleEndian.PutUint64(row[8*j:], math.Float64bits(m.At(i, j)))
		}
		if _, err := writer.Write(row); err != nil {
			return fmt.Errorf("npy: writing row %d: %w", i, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("npy: flushing payload: %w", err)
	}
	return nil
}

// Decode reads a complete array from r and returns it as a dense matrix.
func Decode(r io.Reader) (*mat.Dense, error) {
	reader := bufio.NewReader(r)
	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	var rows, cols int
	switch len(header.Shape) {
	case 1:
		rows, cols = 1, header.Shape[0]
	case 2:
		rows, cols = header.Shape[0], header.Shape[1]
	default:
		return nil, fmt.Errorf("%w: expected 1 or 2 dimensions, got shape %v", ErrFormat, header.Shape)
	}
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: empty array of shape %v", ErrFormat, header.Shape)
	}
	if rows > maxElements/cols {
		return nil, fmt.Errorf("%w: shape %v exceeds %d elements", ErrFormat, header.Shape, maxElements)
	}

	element, err := parseDescr(header.Descr)
	if err != nil {
		return nil, err
	}

	// The buffer grows with the bytes actually present, so a header that
	// overstates its shape fails without allocating the declared size.
	payloadSize := int64(rows) * int64(cols) * int64(element.size)
	var buffer bytes.Buffer
	if copied, err := io.CopyN(&buffer, reader, payloadSize); err != nil {
		return nil, fmt.Errorf("%w: truncated payload: read %d of %d bytes: %v", ErrFormat, copied, payloadSize, err)
	}
	payload := buffer.Bytes()

	data := make([]float64, rows*cols)
	for k := range data {
		value := element.convert(payload[k*element.size : (k+1)*element.size])
		if header.FortranOrder {
			i, j := k%rows, k/rows
			data[i*cols+j] = value
		} else {
			data[k] = value
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

// ReadHeader reads only the magic, version, and header dictionary from r.
// It consumes exactly the preamble, so r is left at the first payload byte.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(r)
}

// ReadFile decodes the array stored at path.
func ReadFile(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	matrix, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return matrix, nil
}

// WriteFile encodes m to path, replacing any existing file.
func WriteFile(path string, m mat.Matrix) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(file, m); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readHeader(r io.Reader) (Header, error) {
	var prefix [len(magic) + 2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Header{}, fmt.Errorf("%w: reading magic: %v", ErrFormat, err)
	}
	if string(prefix[:len(magic)]) != magic {
		return Header{}, fmt.Errorf("%w: missing magic string", ErrFormat)
	}

	var headerLength int
	switch major := prefix[len(magic)]; major {
	case 1:
		var length [2]byte
		if _, err := io.ReadFull(r, length[:]); err != nil {
			return Header{}, fmt.Errorf("%w: reading header length: %v", ErrFormat, err)
		}
		headerLength = int(binary.LittleEndian.Uint16(length[:]))
	case 2, 3:
		var length [4]byte
		if _, err := io.ReadFull(r, length[:]); err != nil {
			return Header{}, fmt.Errorf("%w: reading header length: %v", ErrFormat, err)
		}
		headerLength = int(binary.LittleEndian.Uint32(length[:]))
		if headerLength > 1<<20 {
			return Header{}, fmt.Errorf("%w: header length %d too large", ErrFormat, headerLength)
		}
	default:
		return Header{}, fmt.Errorf("%w: unsupported format version %d.%d", ErrFormat, major, prefix[len(magic)+1])
	}

	text := make([]byte, headerLength)
	if _, err := io.ReadFull(r, text); err != nil {
		return Header{}, fmt.Errorf("%w: reading header: %v", ErrFormat, err)
	}
	return parseHeader(string(text))
}

var (
	descrPattern   = regexp.MustCompile(`['"]descr['"]\s*:\s*['"]([^'"]*)['"]`)
	fortranPattern = regexp.MustCompile(`['"]fortran_order['"]\s*:\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`['"]shape['"]\s*:\s*\(([^)]*)\)`)
)

func parseHeader(text string) (Header, error) {
	var header Header

	match := descrPattern.FindStringSubmatch(text)
	if match == nil {
		return Header{}, fmt.Errorf("%w: header has no descr", ErrFormat)
	}
	header.Descr = match[1]

	match = fortranPattern.FindStringSubmatch(text)
	if match == nil {
		return Header{}, fmt.Errorf("%w: header has no fortran_order", ErrFormat)
	}
	header.FortranOrder = match[1] == "True"

	match = shapePattern.FindStringSubmatch(text)
	if match == nil {
		return Header{}, fmt.Errorf("%w: header has no shape", ErrFormat)
	}
	for _, field := range strings.Split(match[1], ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		dimension, err := strconv.Atoi(strings.TrimSuffix(field, "L"))
		if err != nil || dimension < 0 {
			return Header{}, fmt.Errorf("%w: bad shape entry %q", ErrFormat, field)
		}
		header.Shape = append(header.Shape, dimension)
	}
	return header, nil
}

// elementCodec converts one encoded element to float64.
type elementCodec struct {
	size    int
	convert func([]byte) float64
}

func parseDescr(descr string) (elementCodec, error) {
	if len(descr) < 3 {
		return elementCodec{}, fmt.Errorf("%w: unsupported dtype %q", ErrFormat, descr)
	}

	var order binary.ByteOrder
	switch descr[0] {
	case '<', '|', '=':
		order = binary.LittleEndian
	case '>':
		order = binary.BigEndian
	default:
		return elementCodec{}, fmt.Errorf("%w: unsupported byte order in dtype %q", ErrFormat, descr)
	}

	kind, size := descr[1], descr[2:]
	switch kind {
	case 'f':
		switch size {
		case "8":
			return elementCodec{8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }}, nil
		case "4":
			return elementCodec{4, func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }}, nil
		}
	case 'i':
		switch size {
		case "1":
			return elementCodec{1, func(b []byte) float64 { return float64(int8(b[0])) }}, nil
		case "2":
			return elementCodec{2, func(b []byte) float64 { return float64(int16(order.Uint16(b))) }}, nil
		case "4":
			return elementCodec{4, func(b []byte) float64 { return float64(int32(order.Uint32(b))) }}, nil
		case "8":
			return elementCodec{8, func(b []byte) float64 { return float64(int64(order.Uint64(b))) }}, nil
		}
	case 'u':
		switch size {
		case "1":
			return elementCodec{1, func(b []byte) float64 { return float64(b[0]) }}, nil
		case "2":
			return elementCodec{2, func(b []byte) float64 { return float64(order.Uint16(b)) }}, nil
		case "4":
			return elementCodec{4, func(b []byte) float64 { return float64(order.Uint32(b)) }}, nil
		case "8":
			return elementCodec{8, func(b []byte) float64 { return float64(order.Uint64(b)) }}, nil
		}
	}
	return elementCodec{}, fmt.Errorf("%w: unsupported dtype %q", ErrFormat, descr)
}
