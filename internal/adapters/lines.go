package adapters

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/codespectre/internal/models"
)

// lineFields is the number of colon-delimited fields after the path in
// `file:line:col:rest`.
const lineFields = 3

// lineRecord is one parsed `file:line:col: rest` line.
type lineRecord struct {
	Line   int
	Column *int
	Rest   string
}

// splitLine splits a colon-delimited diagnostic line for file. Lines with
// fewer fields or a non-numeric line number are rejected.
func splitLine(text, file string) (lineRecord, bool) {
	after, ok := cutPath(text, file)
	if !ok {
		return lineRecord{}, false
	}
	parts := strings.SplitN(after, ":", lineFields)
	if len(parts) < lineFields {
		return lineRecord{}, false
	}

	line, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return lineRecord{}, false
	}

	rec := lineRecord{Line: line, Rest: strings.TrimSpace(parts[2])}
	if col, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
		rec.Column = models.IntPtr(col)
	}
	return rec, true
}

// cutPath returns what follows the path and its colon. A known path is
// removed as a prefix, so colons inside it are kept. Otherwise the path
// ends before the first field made only of digits.
func cutPath(text, file string) (string, bool) {
	if file != "" {
		slashed := filepath.ToSlash(file)
		for _, prefix := range []string{file, slashed, "./" + slashed} {
			if strings.HasPrefix(text, prefix+":") {
				return text[len(prefix)+1:], true
			}
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != ':' {
			continue
		}
		j := i + 1
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			j++
		}
		if j > i+1 && j < len(text) && text[j] == ':' {
			return text[i+1:], true
		}
	}
	return "", false
}

// splitLevel separates the level token from the message in the remainder of
// a diagnostic line. Accepted forms are `[level] message`, `CODE: message`
// and `CODE message`. The level is the bracketed word, or the first
// character of the code.
func splitLevel(rest string) (level, code, message string) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end > 0 {
			return rest[1:end], "", strings.TrimSpace(rest[end+1:])
		}
	}

	token, remainder, _ := strings.Cut(rest, " ")
	if strings.HasSuffix(token, ":") {
		code = strings.TrimSuffix(token, ":")
		message = strings.TrimPrefix(rest, code+": ")
	} else {
		code = token
		message = remainder
	}
	if code == "" {
		return "", "", strings.TrimSpace(message)
	}
	return code[:1], code, strings.TrimSpace(message)
}

// decodeLines applies fn to every well-formed line of raw, which reports on
// file. Output that has content but not a single recognizable line is an
// error.
func decodeLines(raw []byte, file string, fn func(lineRecord) models.Finding) ([]models.Finding, error) {
	findings := []models.Finding{}
	nonBlank := 0

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		nonBlank++
		rec, ok := splitLine(text, file)
		if !ok {
			continue
		}
		findings = append(findings, fn(rec))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tool output: %w", err)
	}
	if nonBlank > 0 && len(findings) == 0 {
		return nil, fmt.Errorf("no recognizable diagnostic lines in %d line(s) of output", nonBlank)
	}
	return findings, nil
}
