package render

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestRenderer(width int) *Renderer {
	clock := func() time.Time {
		return time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	}
	return NewRenderer(Profile{
		ShopName: "STREET WEAR",
		Brand:    "SW",
		Currency: "₸",
		ThankYou: "Thank you!",
		Width:    width,
	}, clock)
}

func linesWith(doc, substr string) []string {
	var out []string
	for _, line := range strings.Split(doc, "\n") {
		if strings.Contains(line, substr) {
			out = append(out, line)
		}
	}
	return out
}

func TestReceipt_CashSale(t *testing.T) {
	r := newTestRenderer(32)
	payload := json.RawMessage(`{
		"seller": "Aigerim",
		"items": [{"name": "T-Shirt", "size": "M", "price": 5000, "quantity": 2}],
		"payment_method": "Cash",
		"total": 10000,
		"received": 10000,
		"change": 0
	}`)

	doc, err := r.Render(TypeReceipt, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasSuffix(doc, "\n") {
		t.Error("expected document to end with a newline")
	}
	if len(linesWith(doc, "T-Shirt")) != 1 {
		t.Errorf("expected one product name line, got:\n%s", doc)
	}
	if got := linesWith(doc, "Qty: 2"); len(got) != 1 || !strings.HasPrefix(got[0], "Size: M") {
		t.Errorf("expected size/quantity line, got %q", got)
	}
	itemTotal := Justify("5000₸ x 2", "10000₸", 32)
	if len(linesWith(doc, itemTotal)) != 1 {
		t.Errorf("expected item total line %q in:\n%s", itemTotal, doc)
	}
	total := linesWith(doc, "TOTAL:")
	if len(total) != 1 || !strings.Contains(total[0], "10000₸") {
		t.Errorf("expected total line with 10000₸, got %q", total)
	}
	if !strings.HasPrefix(total[0], BoldOn) || !strings.HasSuffix(total[0], BoldOff) {
		t.Errorf("expected bold total line, got %q", total[0])
	}
	received := linesWith(doc, "Received:")
	if len(received) != 1 || !strings.HasSuffix(received[0], "10000₸") {
		t.Errorf("expected received line with 10000₸, got %q", received)
	}
	if len(linesWith(doc, "Change:")) != 0 {
		t.Errorf("expected no change line, got:\n%s", doc)
	}
	if len(linesWith(doc, "14.03.2026 18:30")) != 1 {
		t.Errorf("expected timestamp line, got:\n%s", doc)
	}
	if len(linesWith(doc, bold("SW"))) != 1 {
		t.Errorf("expected bold brand footer, got:\n%s", doc)
	}
}

func TestReceipt_ChangeLine(t *testing.T) {
	r := newTestRenderer(32)
	p := &ReceiptPayload{
		Items:         []ReceiptItem{{Name: "Hoodie", Price: 12000, Quantity: 1}},
		PaymentMethod: "Cash",
		Total:         12000,
		Received:      15000,
		Change:        3000,
	}

	doc, err := r.Receipt(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := linesWith(doc, "Change:"); len(got) != 1 || !strings.HasSuffix(got[0], "3000₸") {
		t.Errorf("expected change line with 3000₸, got %q", got)
	}
	if got := linesWith(doc, "Size: -"); len(got) != 1 {
		t.Errorf("expected placeholder size, got %q", got)
	}
	if got := linesWith(doc, "Seller:"); len(got) != 1 {
		t.Errorf("expected seller line even when empty, got %q", got)
	}
}

func TestReceipt_LongNameTruncated(t *testing.T) {
	r := newTestRenderer(16)
	p := &ReceiptPayload{
		Items:         []ReceiptItem{{Name: "Джинсы классические синие", Size: "32", Price: 20000, Quantity: 1}},
		PaymentMethod: "Kaspi",
		Total:         20000,
	}

	doc, err := r.Receipt(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc, "\nДжинсы классичес\n") {
		t.Errorf("expected name cut to 16 characters, got:\n%s", doc)
	}
}

func TestReceipt_Validation(t *testing.T) {
	r := newTestRenderer(32)
	cases := []struct {
		name    string
		payload string
		want    error
	}{
		{"no items", `{"items": [], "payment_method": "Cash"}`, ErrMissingField},
		{"no payment method", `{"items": [{"name": "Cap", "price": 1, "quantity": 1}]}`, ErrMissingField},
		{"unnamed item", `{"items": [{"price": 1, "quantity": 1}], "payment_method": "Cash"}`, ErrMissingField},
		{"zero quantity", `{"items": [{"name": "Cap", "price": 1, "quantity": 0}], "payment_method": "Cash"}`, ErrInvalidField},
		{"negative total", `{"items": [{"name": "Cap", "price": 1, "quantity": 1}], "payment_method": "Cash", "total": -5}`, ErrInvalidField},
		{"not json", `{"items": [`, ErrMalformedPayload},
		{"wrong shape", `{"items": "Cap"}`, ErrMalformedPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Render(TypeReceipt, json.RawMessage(tc.payload))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReport_SkipsEmptyChannels(t *testing.T) {
	r := newTestRenderer(32)
	payload := json.RawMessage(`{"kaspi": 0, "halyk": 15000, "cash": 5000, "grand_total": 20000}`)

	doc, err := r.Render(TypeReport, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(linesWith(doc, "DAILY REPORT")) != 1 {
		t.Errorf("expected report title, got:\n%s", doc)
	}
	if len(linesWith(doc, "Kaspi:")) != 0 {
		t.Errorf("expected no Kaspi line, got:\n%s", doc)
	}

	channels := 0
	for _, name := range []string{"Kaspi:", "Halyk/card:", "Cash:"} {
		channels += len(linesWith(doc, name))
	}
	if channels != 2 {
		t.Errorf("expected 2 channel lines, got %d", channels)
	}
	if got := linesWith(doc, "Halyk/card:"); len(got) != 1 || !strings.HasSuffix(got[0], "15000₸") {
		t.Errorf("expected halyk line with 15000₸, got %q", got)
	}
	if got := linesWith(doc, "TOTAL:"); len(got) != 1 || got[0] != Justify("TOTAL:", "20000₸", 32) {
		t.Errorf("expected grand total line, got %q", got)
	}
	if len(linesWith(doc, "Seller:")) != 0 {
		t.Errorf("expected no seller line, got:\n%s", doc)
	}
	if got := linesWith(doc, "Date:"); len(got) != 1 || !strings.HasSuffix(got[0], "14.03.2026") {
		t.Errorf("expected date from clock, got %q", got)
	}
	if got := linesWith(doc, "Time:"); len(got) != 1 || !strings.HasSuffix(got[0], "18:30") {
		t.Errorf("expected time from clock, got %q", got)
	}
}

func TestReport_PayloadDateAndSeller(t *testing.T) {
	r := newTestRenderer(32)
	doc, err := r.Report(&ReportPayload{Seller: "Dana", Date: "13.03.2026", Kaspi: 1000, GrandTotal: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := linesWith(doc, "Date:"); len(got) != 1 || !strings.HasSuffix(got[0], "13.03.2026") {
		t.Errorf("expected payload date, got %q", got)
	}
	if got := linesWith(doc, "Seller:"); len(got) != 1 || !strings.HasSuffix(got[0], "Dana") {
		t.Errorf("expected seller line, got %q", got)
	}

	if _, err := r.Report(&ReportPayload{Cash: -1}); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected ErrInvalidField, got %v", err)
	}
}

func TestLabel(t *testing.T) {
	r := newTestRenderer(32)
	payload := json.RawMessage(`{"name": "Cargo Pants", "barcode": "4870001234567", "size": "L", "price": 18500}`)

	doc, err := r.Render(TypeLabel, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(doc, "\n"), "\n")
	want := []string{
		Center("STREET WEAR", 32),
		Center("Cargo Pants", 32),
		DefaultLine(),
		Center("4870001234567", 32),
		DefaultLine(),
		Justify("Size: L", "18500₸", 32),
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), doc)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestLabel_RequiresBarcode(t *testing.T) {
	r := newTestRenderer(32)
	_, err := r.Render(TypeLabel, json.RawMessage(`{"name": "Cap"}`))
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestRender_UnknownType(t *testing.T) {
	r := newTestRenderer(32)
	if _, err := r.Render("invoice", json.RawMessage(`{}`)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if _, err := r.Render(TypeLabel, nil); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestBoldFooter_CutOnNarrowPaper(t *testing.T) {
	r := NewRenderer(Profile{ShopName: "S", Brand: "ABCDEFG", Width: 10}, nil)
	doc, err := r.Report(&ReportPayload{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	footer := BoldOn + "ABCDEFG"
	if len(linesWith(doc, footer)) != 1 {
		t.Fatalf("expected footer %q in:\n%s", footer, doc)
	}
	if strings.Contains(doc, BoldOff) {
		t.Errorf("expected bold-off to be cut from the footer, got %q", doc)
	}
}
