package logger

import (
	"io"
	"regexp"
)

const redactedMark = "[REDACTED]"

// defaultSecretPatterns covers the credentials this process actually handles:
// Anthropic and OpenAI API keys from config or environment, plus the usual
// bearer/password/token shapes that show up in request dumps.
var defaultSecretPatterns = []string{
	`sk-ant-[a-zA-Z0-9_-]{20,}`,
	`sk-[a-zA-Z0-9_-]{20,}`,
	`Bearer\s+[a-zA-Z0-9._-]+`,
	`password["\s:=]+[^\s"]+`,
	`token["\s:=]+[a-zA-Z0-9._-]{20,}`,
	`secret["\s:=]+[^\s"]+`,
}

// Redactor strips credentials out of log lines before they hit a sink.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor builds a redactor with the default credential patterns.
func NewRedactor() *Redactor {
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(defaultSecretPatterns))}
	for _, p := range defaultSecretPatterns {
		r.patterns = append(r.patterns, regexp.MustCompile(p))
	}
	return r
}

// AddPattern registers an extra redaction pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact replaces every pattern match with a fixed marker.
func (r *Redactor) Redact(s string) string {
	for _, pattern := range r.patterns {
		s = pattern.ReplaceAllString(s, redactedMark)
	}
	return s
}

// Wrap returns a writer that redacts everything passing through it.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{next: w, redactor: r}
}

type redactingWriter struct {
	next     io.Writer
	redactor *Redactor
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	return w.next.Write([]byte(w.redactor.Redact(string(p))))
}
