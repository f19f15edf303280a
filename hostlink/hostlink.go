// Package hostlink implements the line-buffered framing protocol
// between the host computer and the motion-control core: assembling
// raw bytes into complete G-code lines, and writing back status frames
// (ok, position reports, capabilities, resend requests, error lines).
// A status with Halt set ends Serve; the machine's fatal flag is not
// written to the host.
// It corresponds to get_and_do_command and talkToHost in the original
// firmware, generalized from a fixed serial ISR buffer to any
// io.ReadWriter.
package hostlink

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pleasantmill/millctl/gcode"
)

// MaxLineLength bounds one assembled line, matching COMMAND_SIZE in
// configuration.h. A line exceeding it is discarded without a reply.
const MaxLineLength = 128

// LineHandler processes one complete, framed line of input and returns
// the Status to report back to the host.
type LineHandler func(line string) (gcode.Status, error)

// Link owns the byte stream to the host and the line-assembly state.
type Link struct {
	r     *bufio.Reader
	w     *bufio.Writer
	debug gcode.DebugMask
}

// New wraps rw for line framing.
func New(rw io.ReadWriter) *Link {
	return &Link{
		r: bufio.NewReaderSize(rw, MaxLineLength*2),
		w: bufio.NewWriter(rw),
	}
}

// SetDebug controls whether Serve echoes each accepted line back to
// the host, the equivalent of the DEBUG_ECHO bit in SendDebug.
func (l *Link) SetDebug(mask gcode.DebugMask) {
	l.debug = mask
}

// Serve reads lines until the stream ends or handle returns an error
// it considers fatal, calling handle once per complete line and
// writing the appropriate status frame after each.
func (l *Link) Serve(handle LineHandler) error {
	for {
		line, err := l.readLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("hostlink: %w", err)
		}
		if line == "" {
			continue
		}
		if l.debug&gcode.DebugEcho != 0 {
			l.writeLine(fmt.Sprintf("Echo: %s", line))
		}
		st, err := handle(line)
		if err != nil {
			l.reportError(err)
			continue
		}
		l.reportStatus(st)
		if st.Halt {
			return nil
		}
	}
}

// readLine reads up to a newline. A line longer than MaxLineLength is
// dropped whole (returned as ""), the way the original firmware's fixed
// COMMAND_SIZE buffer would overflow and resynchronize on the next line.
func (l *Link) readLine() (string, error) {
	raw, err := l.r.ReadString('\n')
	if err != nil && raw == "" {
		return "", err
	}
	raw = strings.TrimRight(raw, "\r\n")
	if len(raw) > MaxLineLength {
		return "", nil
	}
	return raw, nil
}

func (l *Link) writeLine(s string) {
	fmt.Fprintln(l.w, s)
	l.w.Flush()
}

// reportStatus writes the frame corresponding to one successfully
// executed line: "ok", plus any position/capabilities payload the
// executor attached.
func (l *Link) reportStatus(st gcode.Status) {
	if st.Position != nil {
		p := st.Position
		l.writeLine(fmt.Sprintf("X:%.3f Y:%.3f Z:%.3f A:%.3f B:%.3f", p.X, p.Y, p.Z, p.A, p.B))
	}
	if st.Capabilities != nil {
		c := st.Capabilities
		l.writeLine(fmt.Sprintf("FIRMWARE_NAME:%s PROTOCOL_VERSION:%s", c.FirmwareName, c.Protocol))
	}
	l.writeLine("ok")
}

// reportError writes a resend request, or a plain error line if the
// failure wasn't a protocol-level resend condition.
func (l *Link) reportError(err error) {
	if rr, ok := err.(*gcode.ResendRequest); ok {
		l.writeLine(fmt.Sprintf("rs %d", rr.LineNo))
		return
	}
	l.writeLine(fmt.Sprintf("error: %v", err))
}
