package render

import "fmt"

type LabelPayload struct {
	Name    string  `json:"name"`
	Barcode string  `json:"barcode"`
	Size    string  `json:"size"`
	Price   float64 `json:"price"`
}

func (p *LabelPayload) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if p.Barcode == "" {
		return fmt.Errorf("%w: barcode", ErrMissingField)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must be non-negative", ErrInvalidField)
	}
	return nil
}

// Label lays out a product tag. The barcode is printed as text; the
// device font does the rest.
func (r *Renderer) Label(p *LabelPayload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	w := r.profile.Width
	size := p.Size
	if size == "" {
		size = "-"
	}

	doc := &document{}
	doc.add(Center(r.profile.ShopName, w))
	doc.add(Center(truncate(p.Name, w), w))
	doc.add(Line(DefaultRule, w))
	doc.add(Center(p.Barcode, w))
	doc.add(Line(DefaultRule, w))
	doc.add(Justify("Size: "+size, r.money(p.Price), w))

	return doc.String(), nil
}
