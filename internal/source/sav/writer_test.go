package sav

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testVar describes one variable of a synthetic system file.
type testVar struct {
	name      string
	long      string
	width     int // 0 numeric
	printType int
	label     string
	missing   []float64 // discrete user-missing values
	missRange *[2]float64
}

// testFile is the input to writeSav.
type testFile struct {
	vars        []testVar
	rows        [][]any // float64, nil (sysmis) or string
	compressed  bool
	unknownRows bool
	order       binary.ByteOrder
	encoding    string
	valueLabels bool
	documents   int
	zsav        bool
}

const testBias = 100.0

// writeSav writes tf to a temp file and returns its path.
func writeSav(t *testing.T, tf testFile) string {
	t.Helper()

	o := tf.order
	if o == nil {
		o = binary.LittleEndian
	}
	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, o, v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	pad := func(s string, n int) []byte {
		b := []byte(s)
		if len(b) > n {
			b = b[:n]
		}
		return append(b, bytes.Repeat([]byte{' '}, n-len(b))...)
	}

	slots := 0
	for _, v := range tf.vars {
		slots += slotCount(v)
	}

	magic := "$FL2"
	if tf.zsav {
		magic = "$FL3"
	}
	buf.WriteString(magic)
	buf.Write(pad("@(#) SPSS DATA FILE synthetic", 60))
	w(int32(2))
	w(int32(slots))
	if tf.compressed {
		w(int32(1))
	} else {
		w(int32(0))
	}
	w(int32(0))
	if tf.unknownRows {
		w(int32(-1))
	} else {
		w(int32(len(tf.rows)))
	}
	w(testBias)
	buf.Write(pad("01 Jan 24", 9))
	buf.Write(pad("10:00:00", 8))
	buf.Write(pad("synthetic test file", 64))
	buf.Write([]byte{0, 0, 0})

	for _, v := range tf.vars {
		w(int32(2))
		w(int32(v.width))
		if v.label != "" {
			w(int32(1))
		} else {
			w(int32(0))
		}
		nMiss := int32(len(v.missing))
		if v.missRange != nil {
			nMiss = -2
			if len(v.missing) > 0 {
				nMiss = -3
			}
		}
		w(nMiss)
		pf := int32(v.printType<<16 | 8<<8 | 2)
		w(pf)
		w(pf)
		buf.Write(pad(v.name, 8))
		if v.label != "" {
			w(int32(len(v.label)))
			buf.WriteString(v.label)
			buf.Write(make([]byte, (len(v.label)+3)&^3-len(v.label)))
		}
		if v.missRange != nil {
			w(v.missRange[0])
			w(v.missRange[1])
		}
		for _, m := range v.missing {
			w(m)
		}
		for i := 1; i < slotCount(v); i++ {
			w(int32(2))
			w(int32(-1))
			w(int32(0))
			w(int32(0))
			w(int32(0))
			w(int32(0))
			buf.Write(pad("", 8))
		}
	}

	if tf.valueLabels {
		w(int32(3))
		w(int32(1))
		w(1.0)
		buf.WriteByte(3)
		buf.Write(pad("yes", 7))
		w(int32(4))
		w(int32(1))
		w(int32(1))
	}
	if tf.documents > 0 {
		w(int32(6))
		w(int32(tf.documents))
		buf.Write(bytes.Repeat([]byte{' '}, docLineLen*tf.documents))
	}

	// machine integer info: character code 65001 (UTF-8)
	w(int32(7))
	w(int32(3))
	w(int32(4))
	w(int32(8))
	for _, v := range []int32{20, 0, 0, -1, 1, 1, 2, 65001} {
		w(v)
	}

	var longNames []string
	for _, v := range tf.vars {
		if v.long != "" {
			longNames = append(longNames, strings.ToUpper(v.name)+"="+v.long)
		}
	}
	if len(longNames) > 0 {
		data := strings.Join(longNames, "\t")
		w(int32(7))
		w(int32(13))
		w(int32(1))
		w(int32(len(data)))
		buf.WriteString(data)
	}
	if tf.encoding != "" {
		w(int32(7))
		w(int32(20))
		w(int32(1))
		w(int32(len(tf.encoding)))
		buf.WriteString(tf.encoding)
	}

	w(int32(999))
	w(int32(0))

	if tf.compressed {
		writeBytecode(t, &buf, o, tf)
	} else {
		for _, row := range tf.rows {
			for i, v := range tf.vars {
				buf.Write(cellBytes(t, o, v, row[i]))
			}
		}
	}

	path := filepath.Join(t.TempDir(), "synthetic.sav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func slotCount(v testVar) int {
	if v.width == 0 {
		return 1
	}
	return (v.width + 7) / 8
}

// cellBytes renders one value as its uncompressed slots.
func cellBytes(t *testing.T, o binary.ByteOrder, v testVar, val any) []byte {
	t.Helper()
	out := make([]byte, slotCount(v)*slotLen)
	if v.width > 0 {
		s, _ := val.(string)
		copy(out, bytes.Repeat([]byte{' '}, len(out)))
		copy(out, s)
		return out
	}
	switch x := val.(type) {
	case nil:
		o.PutUint64(out, sysmisBits)
	case float64:
		o.PutUint64(out, math.Float64bits(x))
	default:
		t.Fatalf("numeric variable %s: unsupported value %T", v.name, val)
	}
	return out
}

// writeBytecode emits rows in the bytecode-compressed layout: a block of 8
// opcodes followed by the raw slots those opcodes refer to.
func writeBytecode(t *testing.T, buf *bytes.Buffer, o binary.ByteOrder, tf testFile) {
	t.Helper()
	var codes []byte
	var raws bytes.Buffer
	emit := func(code byte, raw []byte) {
		codes = append(codes, code)
		raws.Write(raw)
		if len(codes) == 8 {
			buf.Write(codes)
			buf.Write(raws.Bytes())
			codes = codes[:0]
			raws.Reset()
		}
	}

	for _, row := range tf.rows {
		for i, v := range tf.vars {
			cell := cellBytes(t, o, v, row[i])
			for s := 0; s < len(cell); s += slotLen {
				slot := cell[s : s+slotLen]
				switch {
				case v.width > 0 && bytes.Equal(slot, []byte("        ")):
					emit(opSpaces, nil)
				case v.width > 0:
					emit(opRaw, slot)
				case row[i] == nil:
					emit(opSysmis, nil)
				default:
					f := row[i].(float64)
					if f == math.Trunc(f) && f+testBias >= 1 && f+testBias <= 251 {
						emit(byte(f+testBias), nil)
					} else {
						emit(opRaw, slot)
					}
				}
			}
		}
	}
	emit(opEOF, nil)
	for len(codes) != 0 {
		emit(opPadding, nil)
	}
}
