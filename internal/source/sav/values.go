package sav

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"savload/internal/schema"
)

// sysmisBits is the bit pattern of the system-missing value (-DBL_MAX).
const sysmisBits = 0xffefffffffffffff

// gregorianOffset is the number of seconds between the system file epoch
// (1582-10-14 00:00:00) and the Unix epoch.
const gregorianOffset = 12219292800

// Print format types that carry calendar values.
var (
	dateFormats = map[int]bool{
		20: true, // DATE
		23: true, // ADATE
		24: true, // JDATE
		28: true, // MOYR
		29: true, // QYR
		30: true, // WKYR
		38: true, // EDATE
		39: true, // SDATE
	}
	dateTimeFormats = map[int]bool{
		22: true, // DATETIME
		41: true, // YMDHMS
	}
)

func columnKind(v *variable) schema.Kind {
	switch {
	case v.width > 0:
		return schema.KindString
	case dateFormats[v.printType]:
		return schema.KindDate
	case dateTimeFormats[v.printType]:
		return schema.KindDateTime
	default:
		return schema.KindFloat
	}
}

// epochTime converts seconds since 1582-10-14 to UTC time.
func epochTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole)-gregorianOffset, int64(frac*1e9)).UTC()
}

func (v *variable) isMissing(f float64) bool {
	if v.missRange && f >= v.missLow && f <= v.missHigh {
		return true
	}
	for _, m := range v.missing {
		if f == m {
			return true
		}
	}
	return false
}

// valueDecoder turns the raw slots of one case into typed values.
type valueDecoder struct {
	order binary.ByteOrder
	vars  []*variable
	kinds []schema.Kind
	text  *encoding.Decoder // nil means bytes are already UTF-8
}

func (d *valueDecoder) decode(raw []byte) ([]any, error) {
	row := make([]any, len(d.vars))
	off := 0
	for i, v := range d.vars {
		end := off + v.slots*slotLen
		if end > len(raw) {
			return nil, fmt.Errorf("case shorter than dictionary (%d < %d bytes)", len(raw), end)
		}
		cell := raw[off:end]
		off = end

		if v.width > 0 {
			w := int(v.width)
			if w > len(cell) {
				w = len(cell)
			}
			s := strings.TrimRight(string(cell[:w]), " \x00")
			if d.text != nil && s != "" {
				decoded, err := d.text.String(s)
				if err != nil {
					return nil, fmt.Errorf("variable %s: decode text: %w", v.name(), err)
				}
				s = decoded
			}
			row[i] = s
			continue
		}

		bits := d.order.Uint64(cell[:slotLen])
		if bits == sysmisBits {
			row[i] = nil
			continue
		}
		f := math.Float64frombits(bits)
		if math.IsNaN(f) || v.isMissing(f) {
			row[i] = nil
			continue
		}
		switch d.kinds[i] {
		case schema.KindDate:
			t := epochTime(f)
			y, m, day := t.Date()
			row[i] = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		case schema.KindDateTime:
			row[i] = epochTime(f)
		default:
			row[i] = f
		}
	}
	return row, nil
}

// textDecoder resolves the file's character encoding. The encoding record
// wins over the code page in the machine integer record. UTF-8 and
// unknown encodings return nil.
func textDecoder(name string, codePage int32) *encoding.Decoder {
	if name == "" {
		name = codePageName(codePage)
	}
	if name == "" {
		return nil
	}
	if n := strings.ToUpper(name); n == "UTF-8" || n == "UTF8" {
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil
	}
	return enc.NewDecoder()
}

func codePageName(cp int32) string {
	switch {
	case cp == 65001 || cp == 0:
		return ""
	case cp == 2 || cp == 20127:
		return "US-ASCII"
	case cp == 874 || (cp >= 1250 && cp <= 1258):
		return fmt.Sprintf("windows-%d", cp)
	case cp >= 28591 && cp <= 28605:
		return fmt.Sprintf("ISO-8859-%d", cp-28590)
	case cp == 932:
		return "Shift_JIS"
	case cp == 936:
		return "GBK"
	case cp == 949:
		return "EUC-KR"
	case cp == 950:
		return "Big5"
	default:
		return ""
	}
}

// Bytecode compression opcodes.
const (
	opPadding = 0
	opEOF     = 252
	opRaw     = 253
	opSpaces  = 254
	opSysmis  = 255
)

// bcState is a resumable position inside a bytecode stream: the offset of
// the next unread byte plus the opcodes left in the current block.
type bcState struct {
	pos   int64
	codes [8]byte
	next  int
}

// bytecode decodes a compressed case stream one slot at a time.
type bytecode struct {
	r     *bufio.Reader
	order binary.ByteOrder
	bias  float64
	st    bcState
	done  bool
}

func newBytecode(ra io.ReaderAt, size int64, order binary.ByteOrder, bias float64, st bcState) *bytecode {
	return &bytecode{
		r:     bufio.NewReaderSize(io.NewSectionReader(ra, st.pos, size-st.pos), 256<<10),
		order: order,
		bias:  bias,
		st:    st,
	}
}

// slot decodes the next slot into dst. It returns false at end of data.
func (b *bytecode) slot(dst []byte) (bool, error) {
	for !b.done {
		if b.st.next >= len(b.st.codes) {
			n, err := io.ReadFull(b.r, b.st.codes[:])
			b.st.pos += int64(n)
			if err == io.EOF {
				b.done = true
				return false, nil
			}
			if err != nil {
				return false, fmt.Errorf("read opcode block: %w", err)
			}
			b.st.next = 0
		}
		code := b.st.codes[b.st.next]
		b.st.next++

		switch code {
		case opPadding:
			continue
		case opEOF:
			b.done = true
			return false, nil
		case opRaw:
			n, err := io.ReadFull(b.r, dst[:slotLen])
			b.st.pos += int64(n)
			if err != nil {
				return false, fmt.Errorf("read raw slot: %w", err)
			}
		case opSpaces:
			copy(dst[:slotLen], "        ")
		case opSysmis:
			b.order.PutUint64(dst[:slotLen], sysmisBits)
		default:
			b.order.PutUint64(dst[:slotLen], math.Float64bits(float64(code)-b.bias))
		}
		return true, nil
	}
	return false, nil
}

// readCase fills raw (caseSlots*8 bytes) with the next case. It returns
// false when the stream ended cleanly before the case started.
func (b *bytecode) readCase(raw []byte) (bool, error) {
	for off := 0; off < len(raw); off += slotLen {
		ok, err := b.slot(raw[off : off+slotLen])
		if err != nil {
			return false, err
		}
		if !ok {
			if off == 0 {
				return false, nil
			}
			return false, fmt.Errorf("stream ended inside a case (slot %d of %d)", off/slotLen, len(raw)/slotLen)
		}
	}
	return true, nil
}
