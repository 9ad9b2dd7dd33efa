package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK      bool           `json:"ok"`
	Data    any            `json:"data,omitempty"`
	Summary string         `json:"summary,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorResponse is the error envelope for JSON output.
type ErrorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Code   string `json:"code"`
	Kind   string `json:"kind,omitempty"`
	Status int    `json:"status,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto Format = iota // Auto-detect: TTY → Text, non-TTY → JSON
	FormatJSON
	FormatText
	FormatQuiet // Data only, no envelope
)

// ParseFormat maps a config or flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "quiet":
		return FormatQuiet, nil
	default:
		return FormatAuto, ErrUsageHint(fmt.Sprintf("unknown format %q", s), "Use auto, json, text or quiet")
	}
}

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer
	// JQ filters the data of success responses before they are written.
	JQ string
}

// DefaultOptions returns options for standard output.
func DefaultOptions() Options {
	return Options{
		Format: FormatAuto,
		Writer: os.Stdout,
	}
}

// Writer handles all output formatting.
type Writer struct {
	opts   Options
	filter *Filter
}

// New creates a new output writer. An invalid jq expression is reported
// as a usage error.
func New(opts Options) (*Writer, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	w := &Writer{opts: opts}
	if opts.JQ != "" {
		f, err := NewFilter(opts.JQ)
		if err != nil {
			return nil, err
		}
		w.filter = f
	}
	return w, nil
}

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}
	if w.filter != nil {
		filtered, err := w.filter.Apply(resp.Data)
		if err != nil {
			return err
		}
		resp.Data = filtered
	}
	return w.write(resp)
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	resp := &ErrorResponse{
		OK:     false,
		Error:  e.Message,
		Code:   e.Code,
		Kind:   e.Kind,
		Status: e.HTTPStatus,
		Hint:   e.Hint,
	}
	return w.write(resp)
}

func (w *Writer) write(v any) error {
	format := w.opts.Format

	// Auto-detect format: TTY → Text, non-TTY → JSON
	if format == FormatAuto {
		if isTTY(w.opts.Writer) {
			format = FormatText
		} else {
			format = FormatJSON
		}
	}

	switch format {
	case FormatQuiet:
		if resp, ok := v.(*Response); ok {
			return w.writeJSON(resp.Data)
		}
		return w.writeJSON(v)
	case FormatText:
		return w.writeText(v)
	default:
		return w.writeJSON(v)
	}
}

// isTTY checks if the writer is a terminal.
func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return false
		}
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (w *Writer) writeText(v any) error {
	out := w.opts.Writer
	switch resp := v.(type) {
	case *Response:
		if resp.Summary != "" {
			fmt.Fprintln(out, resp.Summary)
		}
		switch d := resp.Data.(type) {
		case nil:
			return nil
		case string:
			_, err := fmt.Fprintln(out, d)
			return err
		case []byte:
			_, err := out.Write(d)
			return err
		default:
			return w.writeJSON(d)
		}
	case *ErrorResponse:
		if resp.Status > 0 {
			fmt.Fprintf(out, "Error: %s [%s, HTTP %d]\n", resp.Error, resp.Kind, resp.Status)
		} else if resp.Kind != "" {
			fmt.Fprintf(out, "Error: %s [%s]\n", resp.Error, resp.Kind)
		} else {
			fmt.Fprintf(out, "Error: %s\n", resp.Error)
		}
		if resp.Hint != "" {
			fmt.Fprintf(out, "Hint: %s\n", resp.Hint)
		}
		return nil
	default:
		return w.writeJSON(v)
	}
}

// ResponseOption modifies a Response.
type ResponseOption func(*Response)

// WithSummary adds a summary to the response.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// WithMeta adds metadata to the response.
func WithMeta(key string, value any) ResponseOption {
	return func(r *Response) {
		if r.Meta == nil {
			r.Meta = make(map[string]any)
		}
		r.Meta[key] = value
	}
}
