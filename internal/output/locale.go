package output

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale formats numbers for human-readable summaries.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
}

// DetectLocale resolves the locale from LC_ALL, LC_NUMERIC or LANG.
func DetectLocale() Locale {
	for _, env := range []string{"LC_ALL", "LC_NUMERIC", "LANG"} {
		if raw := os.Getenv(env); raw != "" {
			return NewLocale(raw)
		}
	}
	return NewLocale("")
}

// NewLocale accepts a POSIX locale ("de_DE.UTF-8") or a BCP 47 tag
// ("de-DE"). Empty or unparseable input gives en-US.
func NewLocale(raw string) Locale {
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, _ := language.Parse(raw)
	if tag == language.Und {
		tag = language.AmericanEnglish
	}
	return Locale{tag: tag, printer: message.NewPrinter(tag)}
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n with a binary unit, e.g. "1.5 MB" or "1,5 MB".
func (l Locale) FormatBytes(n int64) string {
	if n < 1024 {
		return l.printer.Sprintf("%v B", number.Decimal(n))
	}
	v := float64(n)
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return l.printer.Sprintf("%v %s", number.Decimal(v, number.MaxFractionDigits(1)), byteUnits[unit])
}

// FormatCount renders n with grouping separators.
func (l Locale) FormatCount(n int64) string {
	return l.printer.Sprint(number.Decimal(n))
}
