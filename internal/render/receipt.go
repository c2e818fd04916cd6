package render

import (
	"fmt"
	"strconv"
)

type ReceiptItem struct {
	Name     string  `json:"name"`
	Size     string  `json:"size"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type ReceiptPayload struct {
	Seller        string        `json:"seller"`
	Items         []ReceiptItem `json:"items"`
	PaymentMethod string        `json:"payment_method"`
	Total         float64       `json:"total"`
	Received      float64       `json:"received"`
	Change        float64       `json:"change"`
}

func (p *ReceiptPayload) Validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: items", ErrMissingField)
	}
	for i, item := range p.Items {
		if item.Name == "" {
			return fmt.Errorf("%w: items[%d].name", ErrMissingField, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d].quantity must be positive", ErrInvalidField, i)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: items[%d].price must be non-negative", ErrInvalidField, i)
		}
	}
	if p.PaymentMethod == "" {
		return fmt.Errorf("%w: payment_method", ErrMissingField)
	}
	if p.Total < 0 || p.Received < 0 || p.Change < 0 {
		return fmt.Errorf("%w: amounts must be non-negative", ErrInvalidField)
	}
	return nil
}

// Receipt lays out a sales receipt. Received and change lines are printed
// only for amounts above zero.
func (r *Renderer) Receipt(p *ReceiptPayload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	w := r.profile.Width
	doc := r.header("SALES RECEIPT")
	doc.add(Justify("Seller:", p.Seller, w))
	doc.add(Line(DefaultRule, w))

	for _, item := range p.Items {
		qty := strconv.Itoa(item.Quantity)
		size := item.Size
		if size == "" {
			size = "-"
		}
		doc.add(truncate(item.Name, w))
		doc.add(Justify("Size: "+size, "Qty: "+qty, w))
		doc.add(Justify(r.money(item.Price)+" x "+qty, r.money(item.Price*float64(item.Quantity)), w))
	}

	doc.add(Justify("Payment:", p.PaymentMethod, w))
	doc.add(Line(DefaultRule, w))
	doc.add(Justify(BoldOn+"TOTAL:", r.money(p.Total)+BoldOff, w))
	if p.Received > 0 {
		doc.add(Justify("Received:", r.money(p.Received), w))
	}
	if p.Change > 0 {
		doc.add(Justify("Change:", r.money(p.Change), w))
	}
	doc.add(Line(DefaultRule, w))
	r.footer(doc)

	return doc.String(), nil
}
