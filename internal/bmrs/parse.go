package bmrs

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/bmrs/pkg/models"
	"github.com/seenimoa/bmrs/pkg/utils"
)

var (
	// ErrUnparsable is returned for a response body that is neither a
	// report CSV nor an API error envelope.
	ErrUnparsable = errors.New("unparsable response body")
	// ErrHeaderMismatch is returned when a window's columns differ from the
	// columns of the windows before it.
	ErrHeaderMismatch = errors.New("header mismatch")
)

// DateTimeColumn is appended to reports keyed by settlement date and period.
const DateTimeColumn = "datetime"

const (
	headerLine    = 4
	firstDataLine = 5
	eofMarker     = "<EOF>"
	noContent     = "no content"
)

// APIError is an error envelope returned by the API in place of a report.
type APIError struct {
	HTTPCode    string
	Type        string
	Description string
}

func (e *APIError) Error() string {
	msg := "api error"
	if e.HTTPCode != "" {
		msg += " " + e.HTTPCode
	}
	if e.Type != "" {
		msg += ": " + e.Type
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// ParseBody parses one report response. An envelope reporting "No Content"
// yields an empty table with no columns.
//
// The CSV layout has four preamble lines, the header on the fifth line and
// data from the sixth. Header and data lines may carry leading "*" markers
// and the data ends with an "<EOF>" line.
func ParseBody(body []byte) (*models.Table, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("<")) {
		if err := parseEnvelope(trimmed); err != nil {
			return nil, err
		}
		return &models.Table{}, nil
	}

	lines := strings.Split(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n")
	if len(lines) < firstDataLine {
		return nil, fmt.Errorf("%w: %d lines, header expected on line %d", ErrUnparsable, len(lines), headerLine+1)
	}

	header := strings.Split(strings.ReplaceAll(cleanLine(lines[headerLine]), " ", ""), ",")
	if len(header) == 0 || (len(header) == 1 && header[0] == "") {
		return nil, fmt.Errorf("%w: empty header", ErrUnparsable)
	}
	t := models.NewTable(header...)

	var data []string
	for _, l := range lines[firstDataLine:] {
		if l = cleanLine(l); l != "" {
			data = append(data, l)
		}
	}
	if len(data) > 0 {
		r := csv.NewReader(strings.NewReader(strings.Join(data, "\n")))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
			}
			if len(rec) > len(header) {
				return nil, fmt.Errorf("%w: row %d has %d fields, header has %d",
					ErrUnparsable, t.Len()+1, len(rec), len(header))
			}
			for len(rec) < len(header) {
				rec = append(rec, "")
			}
			t.Rows = append(t.Rows, rec)
		}
	}

	addSettlementTime(t)
	return t, nil
}

func cleanLine(l string) string {
	l = strings.TrimSpace(l)
	l = strings.TrimPrefix(l, "*")
	l = strings.TrimSuffix(l, eofMarker)
	if strings.HasPrefix(l, eofMarker) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(l, "*"))
}

// parseEnvelope reads an XML error envelope. It returns nil when the
// envelope only reports that the window has no data.
func parseEnvelope(body []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	// The HTML parser lower-cases element names.
	meta := doc.Find("responsemetadata").First()
	if meta.Length() == 0 {
		meta = doc.Selection
	}
	apiErr := &APIError{
		HTTPCode:    strings.TrimSpace(meta.Find("httpcode").First().Text()),
		Type:        strings.TrimSpace(meta.Find("errortype").First().Text()),
		Description: strings.TrimSpace(meta.Find("description").First().Text()),
	}
	if strings.EqualFold(apiErr.Type, noContent) {
		return nil
	}
	if apiErr.Type == "" && apiErr.Description == "" {
		return fmt.Errorf("%w: xml body without error details", ErrUnparsable)
	}
	return apiErr
}

// addSettlementTime appends the UTC start of each row's settlement period.
// Rows whose date or period cannot be read get an empty value.
func addSettlementTime(t *models.Table) {
	if !t.HasColumns("SettlementDate", "SettlementPeriod") || t.Column(DateTimeColumn) >= 0 {
		return
	}
	di, pi := t.Column("SettlementDate"), t.Column("SettlementPeriod")
	t.Columns = append(t.Columns, DateTimeColumn)
	for i, row := range t.Rows {
		v := ""
		if ts, err := utils.SettlementPeriodTime(row[di], row[pi]); err == nil {
			v = ts.Format(time.RFC3339)
		}
		t.Rows[i] = append(row, v)
	}
}
