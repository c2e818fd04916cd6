package render

import "fmt"

// ReportPayload carries the end-of-day totals per payment channel.
// Halyk covers all card payments through the Halyk terminal.
type ReportPayload struct {
	Seller     string  `json:"seller"`
	Date       string  `json:"date"`
	Kaspi      float64 `json:"kaspi"`
	Halyk      float64 `json:"halyk"`
	Cash       float64 `json:"cash"`
	GrandTotal float64 `json:"grand_total"`
}

func (p *ReportPayload) Validate() error {
	if p.Kaspi < 0 || p.Halyk < 0 || p.Cash < 0 || p.GrandTotal < 0 {
		return fmt.Errorf("%w: amounts must be non-negative", ErrInvalidField)
	}
	return nil
}

func (r *Renderer) Report(p *ReportPayload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	w := r.profile.Width
	now := r.now()
	date := p.Date
	if date == "" {
		date = now.Format(dateLayout)
	}

	doc := r.header("DAILY REPORT")
	if p.Seller != "" {
		doc.add(Justify("Seller:", p.Seller, w))
	}
	doc.add(Justify("Date:", date, w))
	doc.add(Justify("Time:", now.Format(timeLayout), w))
	doc.add(Line(DefaultRule, w))

	channels := []struct {
		name   string
		amount float64
	}{
		{"Kaspi:", p.Kaspi},
		{"Halyk/card:", p.Halyk},
		{"Cash:", p.Cash},
	}
	for _, ch := range channels {
		if ch.amount > 0 {
			doc.add(Justify(ch.name, r.money(ch.amount), w))
		}
	}

	doc.add(Line(DefaultRule, w))
	doc.add(Justify("TOTAL:", r.money(p.GrandTotal), w))
	doc.add(Line(DefaultRule, w))
	r.footer(doc)

	return doc.String(), nil
}
