package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownType      = errors.New("unknown document type")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidField     = errors.New("invalid field value")
)

const (
	TypeReceipt = "receipt"
	TypeReport  = "report"
	TypeLabel   = "label"

	timestampLayout = "02.01.2006 15:04"
	dateLayout      = "02.01.2006"
	timeLayout      = "15:04"
)

// Profile describes the shop and paper a Renderer lays documents out for.
type Profile struct {
	ShopName string
	Brand    string
	Currency string
	ThankYou string
	Width    int
}

type Renderer struct {
	profile Profile
	now     func() time.Time
}

// NewRenderer returns a Renderer for p. A nil now uses time.Now.
func NewRenderer(p Profile, now func() time.Time) *Renderer {
	if p.Width <= 0 {
		p.Width = DefaultWidth
	}
	if now == nil {
		now = time.Now
	}
	return &Renderer{profile: p, now: now}
}

func (r *Renderer) Width() int {
	return r.profile.Width
}

// Render decodes payload for the given document type and lays it out.
func (r *Renderer) Render(docType string, payload json.RawMessage) (string, error) {
	switch docType {
	case TypeReceipt:
		var p ReceiptPayload
		if err := decode(payload, &p); err != nil {
			return "", err
		}
		return r.Receipt(&p)
	case TypeReport:
		var p ReportPayload
		if err := decode(payload, &p); err != nil {
			return "", err
		}
		return r.Report(&p)
	case TypeLabel:
		var p LabelPayload
		if err := decode(payload, &p); err != nil {
			return "", err
		}
		return r.Label(&p)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, docType)
	}
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func (r *Renderer) money(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 0, 64) + r.profile.Currency
}

func (r *Renderer) header(title string) *document {
	w := r.profile.Width
	doc := &document{}
	doc.add(Center(r.profile.ShopName, w))
	doc.add(Center(title, w))
	doc.add(Line(DefaultRule, w))
	return doc
}

func (r *Renderer) footer(doc *document) {
	w := r.profile.Width
	doc.add(Center(r.now().Format(timestampLayout), w))
	doc.add(Center(bold(r.profile.Brand), w))
	doc.add(Center(r.profile.ThankYou, w))
}

type document struct {
	lines []string
}

func (d *document) add(line string) {
	d.lines = append(d.lines, line)
}

func (d *document) String() string {
	var sb strings.Builder
	for _, line := range d.lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
