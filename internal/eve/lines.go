package eve

import "bytes"

// Line is one complete log line and the file offset it starts at.
type Line struct {
	Offset int64
	Data   []byte
}

// SplitLines splits buf into complete newline-terminated lines and the trailing
// bytes of an unterminated line. Returned lines have the terminator (and a
// preceding '\r') removed and alias buf.
func SplitLines(buf []byte) (lines [][]byte, rest []byte) {
	located, rest := SplitLinesAt(buf, 0)
	for _, l := range located {
		lines = append(lines, l.Data)
	}
	return lines, rest
}

// SplitLinesAt is SplitLines for a buf that starts at offset base in the file.
// Each line carries the offset of its first byte.
func SplitLinesAt(buf []byte, base int64) (lines []Line, rest []byte) {
	var pos int64
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			return lines, buf
		}
		lines = append(lines, Line{
			Offset: base + pos,
			Data:   bytes.TrimSuffix(buf[:i], []byte{'\r'}),
		})
		buf = buf[i+1:]
		pos += int64(i + 1)
	}
}
