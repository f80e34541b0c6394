// Package calendar renders a single appointment as an iCalendar document and
// hands it to the client as a file download.
package calendar

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	contentType = "text/calendar; charset=utf-8"
	dateLayout  = "20060102T1504"
	maxLineLen  = 75
)

// Event is one schedulable appointment.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
}

// Encoder produces VCALENDAR documents with process-unique UIDs.
type Encoder struct {
	prodID string
	domain string
	now    func() time.Time

	mu      sync.Mutex
	lastUID int64
}

func NewEncoder(prodID, domain string) *Encoder {
	return &Encoder{prodID: prodID, domain: domain, now: time.Now}
}

// WithClock replaces the clock used for DTSTAMP and UIDs.
func (e *Encoder) WithClock(now func() time.Time) *Encoder {
	e.now = now
	return e
}

// FormatTime renders t in UTC with seconds forced to zero.
func FormatTime(t time.Time) string {
	return t.UTC().Format(dateLayout) + "00Z"
}

// nextUID derives the UID from the current instant; successive calls within
// the same nanosecond still get distinct values.
func (e *Encoder) nextUID(now time.Time) string {
	e.mu.Lock()
	n := now.UnixNano()
	if n <= e.lastUID {
		n = e.lastUID + 1
	}
	e.lastUID = n
	e.mu.Unlock()
	return strconv.FormatInt(n, 10) + "@" + e.domain
}

// Encode renders ev as a CRLF-delimited iCalendar document.
func (e *Encoder) Encode(ev Event) []byte {
	now := e.now()

	var buf bytes.Buffer
	write := func(name, value string) {
		writeLine(&buf, name+":"+value)
	}

	write("BEGIN", "VCALENDAR")
	write("VERSION", "2.0")
	write("PRODID", e.prodID)
	write("CALSCALE", "GREGORIAN")
	write("BEGIN", "VEVENT")
	write("UID", e.nextUID(now))
	write("DTSTAMP", FormatTime(now))
	write("DTSTART", FormatTime(ev.Start))
	write("DTEND", FormatTime(ev.End))
	write("SUMMARY", escapeText(ev.Title))
	write("DESCRIPTION", escapeText(ev.Description))
	write("LOCATION", escapeText(ev.Location))
	write("END", "VEVENT")
	write("END", "VCALENDAR")

	return buf.Bytes()
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// writeLine folds content lines longer than 75 octets without splitting runes.
func writeLine(buf *bytes.Buffer, line string) {
	first := true
	for len(line) > 0 {
		limit := maxLineLen
		if !first {
			limit-- // continuation lines start with a space
		}
		if len(line) <= limit {
			if !first {
				buf.WriteByte(' ')
			}
			buf.WriteString(line)
			break
		}
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if !first {
			buf.WriteByte(' ')
		}
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n")
		line = line[cut:]
		first = false
	}
	buf.WriteString("\r\n")
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[/\\:*?"<>|#\x00-\x1f]`)
)

// Filename derives a download name from a title: whitespace runs become
// underscores and path or shell-hostile characters are dropped.
func Filename(title string) string {
	name := whitespaceRun.ReplaceAllString(strings.TrimSpace(title), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	if name == "" {
		name = "appointment"
	}
	return name + ".ics"
}

// Download writes the rendered event as an attachment. Failures are logged and
// never reported back: the export is a convenience.
func (e *Encoder) Download(w http.ResponseWriter, ev Event, filename string, logger *zerolog.Logger) {
	if filename == "" {
		filename = Filename(ev.Title)
	}
	doc := e.Encode(ev)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(doc)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil && logger != nil {
		logger.Warn().Err(err).Str("filename", filename).Msg("calendar download interrupted")
	}
}
