package config

import (
	"errors"
	"io"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// ErrorPos returns the position carried by an error from any stage.
func ErrorPos(err error) (Pos, bool) {
	var (
		le *LexError
		pe *ParseError
		re *RegistryError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &le):
		return le.Pos, true
	case errors.As(err, &pe):
		return pe.Pos, true
	case errors.As(err, &re):
		return re.Pos, true
	case errors.As(err, &ve):
		return ve.Pos, true
	}
	return Pos{}, false
}

// Stage names the pipeline stage an error came from: lex, parse, register,
// validate, or io for anything else.
func Stage(err error) string {
	var (
		le *LexError
		pe *ParseError
		re *RegistryError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &le):
		return "lex"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &re):
		return "register"
	case errors.As(err, &ve):
		return "validate"
	}
	return "io"
}

func summary(err error) string {
	var (
		le *LexError
		pe *ParseError
		ve *ValidationError
		re *RegistryError
	)
	switch {
	case errors.As(err, &le):
		return "Invalid token: " + le.Kind.String()
	case errors.As(err, &pe):
		return "Invalid declaration: " + pe.Kind.String()
	case errors.As(err, &re):
		return "Duplicate " + re.Record.String() + " name"
	case errors.As(err, &ve):
		return "Invalid configuration: " + ve.Kind.String()
	}
	return "Configuration error"
}

// Diagnostic converts an error from Parse into an hcl diagnostic whose
// subject points into filename.
func Diagnostic(filename string, err error) *hcl.Diagnostic {
	d := &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary(err),
		Detail:   err.Error(),
	}
	if pos, ok := ErrorPos(err); ok {
		// drop the "line:col: " prefix, the subject carries it
		d.Detail = strings.TrimPrefix(d.Detail, pos.String()+": ")
		start := hcl.Pos{Line: pos.Line, Column: pos.Column, Byte: pos.Offset}
		end := hcl.Pos{Line: pos.Line, Column: pos.Column + 1, Byte: pos.Offset + 1}
		d.Subject = &hcl.Range{Filename: filename, Start: start, End: end}
	}
	return d
}

// WriteDiagnostic renders err against src, with a source snippet when the
// error has a position.
func WriteDiagnostic(w io.Writer, filename string, src []byte, err error) error {
	d := Diagnostic(filename, err)
	if d.Subject != nil && d.Subject.End.Byte > len(src) {
		d.Subject.End = d.Subject.Start
	}
	files := map[string]*hcl.File{
		filename: {Bytes: src},
	}
	wr := hcl.NewDiagnosticTextWriter(w, files, 78, false)
	return wr.WriteDiagnostic(d)
}
