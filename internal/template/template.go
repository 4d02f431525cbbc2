// Package template implements the template-expansion engine shared by both
// MAC backends (spec §4.4 C4). Grounded on selinux-template.c's parse_line
// / template_to_module and smack-template.c's parse_line, but rewritten per
// the §9 DESIGN NOTE: substitution produces a *new* buffer instead of
// rewriting the template line in place with repeated strstr/strcpy, which
// is undefined behavior in C once the replacement is longer than the
// token.
package template

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

const fileCreateTruncFlags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC

// DefaultMaxLineLength is the default bound on template line length (spec
// §4.4).
const DefaultMaxLineLength = 2048

// Replacements to apply, in order. Order matters: §9's DESIGN NOTE
// requires ~ID~ to be substituted before ~APP~ so that a selinux_id
// textually containing "~ID~" (impossible today, but part of the
// contract) is never re-substituted.
type Replacement struct {
	Token string
	Value string
}

// Engine expands template files. Fs lets tests run against
// afero.NewMemMapFs(); MaxLineLength defaults to DefaultMaxLineLength when
// zero.
type Engine struct {
	Fs            afero.Fs
	MaxLineLength int
}

func New(fs afero.Fs) *Engine {
	return &Engine{Fs: fs, MaxLineLength: DefaultMaxLineLength}
}

func (e *Engine) maxLine() int {
	if e.MaxLineLength <= 0 {
		return DefaultMaxLineLength
	}
	return e.MaxLineLength
}

// ExpandLine applies every replacement in order, left-to-right, repeated,
// to a single line (spec §4.4: "literal, repeated, left-to-right").
func ExpandLine(line string, replacements []Replacement) (string, error) {
	for _, r := range replacements {
		line = strings.ReplaceAll(line, r.Token, r.Value)
	}
	return line, nil
}

// PassThrough is the per-backend policy deciding what happens to comment
// and blank lines: SELinux passes them through unchanged, SMACK skips them
// entirely (spec §4.4).
type PassThrough int

const (
	// KeepLine passes comment/blank lines through unchanged.
	KeepLine PassThrough = iota
	// SkipLine drops comment/blank lines entirely (not added as rules).
	SkipLine
)

// LineHandler is invoked once per non-skipped source line (already
// substituted). Returning an error aborts expansion with that error.
type LineHandler func(line string) error

// IsComment reports whether line starts with the given comment character
// (0 disables comment detection, used by SELinux templates).
func IsComment(line string, commentChar byte) bool {
	return commentChar != 0 && len(line) > 0 && line[0] == commentChar
}

// IsBlank reports whether line, once trailing newline is stripped, is
// empty.
func IsBlank(line string) bool {
	return strings.TrimRight(line, "\r\n") == ""
}

// Expand reads templatePath line by line, substitutes replacements, and
// calls handle for each resulting line according to onCommentOrBlank.
// commentChar == 0 disables comment detection (SELinux templates have no
// concept of a comment character per spec §4.4, only SMACK's '#').
func (e *Engine) Expand(templatePath string, replacements []Replacement, commentChar byte, onCommentOrBlank PassThrough, handle LineHandler) error {
	f, err := e.Fs.Open(templatePath)
	if err != nil {
		return apperr.Wrap(apperr.IO, "open template "+templatePath, err)
	}
	defer f.Close()

	maxLine := e.maxLine()
	scanner := bufio.NewScanner(f)
	// Room for a maxLine-byte line plus its "\r\n", so the length checks
	// below (not the scanner) decide which lines are too long.
	scanner.Buffer(make([]byte, maxLine+2), maxLine+2)

	for scanner.Scan() {
		raw := scanner.Text()
		if len(raw) > maxLine {
			return apperr.New(apperr.LineTooLong, "template line exceeds max length")
		}

		if IsComment(raw, commentChar) || IsBlank(raw) {
			if onCommentOrBlank == SkipLine {
				continue
			}
			if err := handle(raw); err != nil {
				return err
			}
			continue
		}

		expanded, err := ExpandLine(raw, replacements)
		if err != nil {
			return err
		}
		if len(expanded) > maxLine {
			return apperr.New(apperr.LineTooLong, "expanded template line exceeds max length")
		}
		if err := handle(expanded); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return apperr.New(apperr.LineTooLong, "template line exceeds max length")
		}
		return apperr.Wrap(apperr.IO, "read template "+templatePath, err)
	}
	return nil
}

// ExpandToFile expands templatePath into outPath, writing the handled
// lines (each handler call appends a line) to a freshly truncated file at
// mode 0644.
func (e *Engine) ExpandToFile(templatePath, outPath string, replacements []Replacement, commentChar byte, onCommentOrBlank PassThrough) error {
	out, err := e.Fs.OpenFile(outPath, fileCreateTruncFlags, 0644)
	if err != nil {
		return apperr.Wrap(apperr.IO, "create "+outPath, err)
	}
	w := bufio.NewWriter(out)

	writeErr := e.Expand(templatePath, replacements, commentChar, onCommentOrBlank, func(line string) error {
		if _, err := w.WriteString(line); err != nil {
			return apperr.Wrap(apperr.IO, "write "+outPath, err)
		}
		if _, err := w.WriteString("\n"); err != nil {
			return apperr.Wrap(apperr.IO, "write "+outPath, err)
		}
		return nil
	})

	flushErr := w.Flush()
	closeErr := out.Close()

	if writeErr != nil {
		return writeErr
	}
	if flushErr != nil {
		return apperr.Wrap(apperr.IO, "flush "+outPath, flushErr)
	}
	if closeErr != nil {
		return apperr.Wrap(apperr.IO, "close "+outPath, closeErr)
	}
	return nil
}
