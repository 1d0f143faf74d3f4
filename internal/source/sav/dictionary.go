package sav

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/zeebo/xxh3"
)

// Record types in the dictionary section of a system file.
const (
	recVariable    = 2
	recValueLabels = 3
	recLabelVars   = 4
	recDocument    = 6
	recExtension   = 7
	recDictEnd     = 999
)

// Extension record subtypes the reader interprets.
const (
	extMachineInteger = 3
	extLongNames      = 13
	extEncoding       = 20
)

// Compression codes from the file header.
const (
	compressionNone     = 0
	compressionBytecode = 1
	compressionZlib     = 2
)

const (
	headerLen   = 176
	docLineLen  = 80
	slotLen     = 8
	maxRecCount = 1 << 24 // sanity bound for counts read from the file
)

// header is the fixed-size file header.
type header struct {
	magic        string
	product      string
	layout       int32
	nominalSlots int32
	compression  int32
	weightIndex  int32
	cases        int32
	bias         float64
	creationDate string
	creationTime string
	fileLabel    string
	order        binary.ByteOrder
}

// variable is one logical variable; strings wider than eight bytes span
// several consecutive slots.
type variable struct {
	shortName string
	longName  string
	width     int32 // 0 numeric, >0 string width
	slots     int
	printType int
	label     string
	missing   []float64
	missRange bool
	missLow   float64
	missHigh  float64
}

func (v *variable) name() string {
	if v.longName != "" {
		return v.longName
	}
	return v.shortName
}

// dictionary is everything before the case data.
type dictionary struct {
	header
	vars      []*variable
	caseSlots int
	charCode  int32
	encoding  string
	dataStart int64
	hash      uint64
}

// dictReader reads little- or big-endian fields while counting bytes and
// hashing everything it consumes.
type dictReader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	pos   int64
	h     *xxh3.Hasher
	buf   [8]byte
}

func (d *dictReader) bytes(n int) ([]byte, error) {
	if n < 0 || n > maxRecCount {
		return nil, fmt.Errorf("field length %d out of range", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, err
	}
	d.pos += int64(n)
	_, _ = d.h.Write(b)
	return b, nil
}

func (d *dictReader) skip(n int64) error {
	for n > 0 {
		chunk := int64(4096)
		if n < chunk {
			chunk = n
		}
		if _, err := d.bytes(int(chunk)); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func (d *dictReader) int32() (int32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
		return 0, err
	}
	d.pos += 4
	_, _ = d.h.Write(d.buf[:4])
	return int32(d.order.Uint32(d.buf[:4])), nil
}

func (d *dictReader) float64() (float64, error) {
	if _, err := io.ReadFull(d.r, d.buf[:8]); err != nil {
		return 0, err
	}
	d.pos += 8
	_, _ = d.h.Write(d.buf[:8])
	return math.Float64frombits(d.order.Uint64(d.buf[:8])), nil
}

func (d *dictReader) text(n int) (string, error) {
	b, err := d.bytes(n)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), " \x00"), nil
}

// readDictionary parses the header and dictionary from r, which must be
// positioned at the start of the file.
func readDictionary(r io.Reader) (*dictionary, error) {
	d := &dictReader{r: bufio.NewReaderSize(r, 64<<10), h: xxh3.New()}

	raw, err := d.bytes(headerLen)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dict := &dictionary{}
	if err := parseHeader(raw, &dict.header); err != nil {
		return nil, err
	}
	d.order = dict.order

	for {
		recType, err := d.int32()
		if err != nil {
			return nil, fmt.Errorf("read record type at %d: %w", d.pos, err)
		}
		switch recType {
		case recVariable:
			if err := readVariable(d, dict); err != nil {
				return nil, fmt.Errorf("variable record: %w", err)
			}
		case recValueLabels:
			if err := skipValueLabels(d); err != nil {
				return nil, fmt.Errorf("value labels: %w", err)
			}
		case recDocument:
			n, err := d.int32()
			if err != nil {
				return nil, err
			}
			if err := d.skip(int64(n) * docLineLen); err != nil {
				return nil, fmt.Errorf("document record: %w", err)
			}
		case recExtension:
			if err := readExtension(d, dict); err != nil {
				return nil, fmt.Errorf("extension record: %w", err)
			}
		case recDictEnd:
			if _, err := d.int32(); err != nil {
				return nil, fmt.Errorf("dictionary terminator: %w", err)
			}
			dict.dataStart = d.pos
			dict.hash = d.h.Sum64()
			if len(dict.vars) == 0 {
				return nil, fmt.Errorf("no variables defined")
			}
			return dict, nil
		default:
			return nil, fmt.Errorf("unknown record type %d at offset %d", recType, d.pos-4)
		}
	}
}

func parseHeader(b []byte, h *header) error {
	h.magic = string(b[0:4])
	switch h.magic {
	case "$FL2":
	case "$FL3":
		return fmt.Errorf("zlib-compressed system files (.zsav) are not supported")
	default:
		return fmt.Errorf("bad magic %q", h.magic)
	}

	layout := b[64:68]
	switch {
	case isLayout(binary.LittleEndian.Uint32(layout)):
		h.order = binary.LittleEndian
	case isLayout(binary.BigEndian.Uint32(layout)):
		h.order = binary.BigEndian
	default:
		return fmt.Errorf("unrecognized layout code % x", layout)
	}

	o := h.order
	h.product = strings.TrimRight(string(b[4:64]), " \x00")
	h.layout = int32(o.Uint32(b[64:68]))
	h.nominalSlots = int32(o.Uint32(b[68:72]))
	h.compression = int32(o.Uint32(b[72:76]))
	h.weightIndex = int32(o.Uint32(b[76:80]))
	h.cases = int32(o.Uint32(b[80:84]))
	h.bias = math.Float64frombits(o.Uint64(b[84:92]))
	h.creationDate = string(b[92:101])
	h.creationTime = string(b[101:109])
	h.fileLabel = strings.TrimRight(string(b[109:173]), " \x00")

	switch h.compression {
	case compressionNone, compressionBytecode:
	case compressionZlib:
		return fmt.Errorf("zlib compression is not supported")
	default:
		return fmt.Errorf("unknown compression code %d", h.compression)
	}
	return nil
}

func isLayout(v uint32) bool { return v == 2 || v == 3 }

func readVariable(d *dictReader, dict *dictionary) error {
	width, err := d.int32()
	if err != nil {
		return err
	}
	hasLabel, err := d.int32()
	if err != nil {
		return err
	}
	nMissing, err := d.int32()
	if err != nil {
		return err
	}
	printFmt, err := d.int32()
	if err != nil {
		return err
	}
	if _, err := d.int32(); err != nil { // write format
		return err
	}
	name, err := d.text(8)
	if err != nil {
		return err
	}

	var label string
	if hasLabel == 1 {
		n, err := d.int32()
		if err != nil {
			return err
		}
		padded := (int(n) + 3) &^ 3
		b, err := d.bytes(padded)
		if err != nil {
			return err
		}
		if int(n) <= len(b) {
			label = string(b[:n])
		}
	}

	count := nMissing
	if count < 0 {
		count = -count
	}
	if count > 3 {
		return fmt.Errorf("variable %s: %d missing values", name, nMissing)
	}
	missing := make([]float64, count)
	for i := range missing {
		if missing[i], err = d.float64(); err != nil {
			return err
		}
	}

	dict.caseSlots++

	if width == -1 {
		if len(dict.vars) == 0 {
			return fmt.Errorf("continuation record before any variable")
		}
		dict.vars[len(dict.vars)-1].slots++
		return nil
	}
	if width < 0 || width > 255 {
		return fmt.Errorf("variable %s: width %d out of range", name, width)
	}

	v := &variable{
		shortName: name,
		width:     width,
		slots:     1,
		printType: int(printFmt>>16) & 0xff,
		label:     label,
	}
	if width == 0 {
		switch nMissing {
		case -2:
			v.missRange, v.missLow, v.missHigh = true, missing[0], missing[1]
		case -3:
			v.missRange, v.missLow, v.missHigh = true, missing[0], missing[1]
			v.missing = missing[2:]
		default:
			v.missing = missing
		}
	}
	dict.vars = append(dict.vars, v)
	return nil
}

func skipValueLabels(d *dictReader) error {
	n, err := d.int32()
	if err != nil {
		return err
	}
	if n < 0 || n > maxRecCount {
		return fmt.Errorf("label count %d out of range", n)
	}
	for i := int32(0); i < n; i++ {
		if _, err := d.bytes(slotLen); err != nil {
			return err
		}
		lb, err := d.bytes(1)
		if err != nil {
			return err
		}
		// label length byte + label text are padded to a multiple of 8.
		rest := (int(lb[0])+1+7)/8*8 - 1
		if _, err := d.bytes(rest); err != nil {
			return err
		}
	}

	recType, err := d.int32()
	if err != nil {
		return err
	}
	if recType != recLabelVars {
		return fmt.Errorf("value labels not followed by variable index record (got %d)", recType)
	}
	nv, err := d.int32()
	if err != nil {
		return err
	}
	return d.skip(int64(nv) * 4)
}

func readExtension(d *dictReader, dict *dictionary) error {
	subtype, err := d.int32()
	if err != nil {
		return err
	}
	size, err := d.int32()
	if err != nil {
		return err
	}
	count, err := d.int32()
	if err != nil {
		return err
	}
	if size < 0 || count < 0 || int64(size)*int64(count) > maxRecCount {
		return fmt.Errorf("subtype %d: size %d count %d out of range", subtype, size, count)
	}
	data, err := d.bytes(int(size * count))
	if err != nil {
		return err
	}

	switch subtype {
	case extMachineInteger:
		if size == 4 && count >= 8 {
			dict.charCode = int32(dict.order.Uint32(data[28:32]))
		}
	case extLongNames:
		applyLongNames(dict.vars, data)
	case extEncoding:
		dict.encoding = strings.TrimSpace(string(bytes.TrimRight(data, "\x00")))
	}
	return nil
}

// applyLongNames parses "SHORT=Long Name\tSHORT2=Other" pairs.
func applyLongNames(vars []*variable, data []byte) {
	byShort := make(map[string]*variable, len(vars))
	for _, v := range vars {
		byShort[strings.ToUpper(v.shortName)] = v
	}
	for _, pair := range strings.Split(string(data), "\t") {
		short, long, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if v, found := byShort[strings.ToUpper(strings.TrimSpace(short))]; found {
			v.longName = strings.TrimRight(long, " \x00")
		}
	}
}
