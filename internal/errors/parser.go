package errors

import (
	"regexp"
	"strconv"
	"strings"
)

// locationPatterns match the common "file:line:col: message" shapes emitted
// by asset pipelines and the compilers they drive.
var locationPatterns = []*regexp.Regexp{
	// path/to/file.js:12:4: message
	regexp.MustCompile(`^(?:Error: )?([^\s:][^:]*\.[A-Za-z0-9]+):(\d+):(\d+):?\s*(.*)$`),
	// path/to/file.js:12: message
	regexp.MustCompile(`^(?:Error: )?([^\s:][^:]*\.[A-Za-z0-9]+):(\d+):?\s+(.*)$`),
	// path/to/file.js (12:4) message
	regexp.MustCompile(`^(?:Error: )?(\S+\.[A-Za-z0-9]+)\s*\((\d+):(\d+)\)\s*(.*)$`),
}

// ParseBuildOutput extracts the first located error from pipeline output.
// When no location can be found the whole trimmed output becomes the message.
func ParseBuildOutput(output []byte, cause error) *Error {
	text := strings.TrimSpace(string(output))
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if e := parseLocatedLine(line, cause); e != nil {
			return e
		}
	}

	msg := "Build failed"
	if text != "" {
		msg = lastLines(text, 20)
	}

	return NewBuildError(ErrCodeBuildFailed, msg, cause)
}

func parseLocatedLine(line string, cause error) *Error {
	for i, re := range locationPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[2])
		col, msg := 0, ""
		if i == 1 {
			msg = m[3]
		} else {
			col, _ = strconv.Atoi(m[3])
			msg = m[4]
		}
		if msg == "" {
			msg = "Build failed"
		}

		return NewBuildError(ErrCodeBuildFailed, msg, cause).WithLocation(m[1], lineNum, col)
	}

	return nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}

	return strings.Join(lines[len(lines)-n:], "\n")
}
