package quote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
)

var (
	// ErrNoShippingCountry means the cart has nothing to quote against.
	ErrNoShippingCountry = errors.New("quote: cart has no shipping country")
	// ErrCountryRestricted means the shipping country is outside the taxed countries.
	ErrCountryRestricted = errors.New("quote: shipping country is not taxed")
)

// Address is a provider address.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// Addresses holds the transaction addresses.
type Addresses struct {
	ShipTo Address `json:"shipTo"`
}

// Line is one taxable line of a quote request.
type Line struct {
	Number      string          `json:"number"`
	ItemCode    string          `json:"itemCode"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
	TaxCode     string          `json:"taxCode,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Request is a quote request. Date is stamped at dispatch and is not part of
// the cache hash.
type Request struct {
	Type         string    `json:"type"`
	CompanyCode  string    `json:"companyCode"`
	CustomerCode string    `json:"customerCode"`
	CurrencyCode string    `json:"currencyCode"`
	TaxIncluded  bool      `json:"isTaxIncluded"`
	Addresses    Addresses `json:"addresses"`
	Lines        []Line    `json:"lines"`
	Date         string    `json:"date,omitempty"`
}

// Builder turns an expanded, merged cart into a Request.
type Builder struct {
	CompanyCode     string
	ShippingTaxCode string
	DefaultTaxCode  string
	// TaxCountries restricts quoting to these ISO3 codes. Empty means all.
	TaxCountries []string
}

// TaxCodeField is the product custom field holding a provider tax code.
const TaxCodeField = "avalaraTaxCode"

// Build returns ErrNoShippingCountry or ErrCountryRestricted when no quote
// should be made.
func (b Builder) Build(c *cart.Cart, sc cart.SalesContext) (Request, error) {
	country := c.ShippingCountry()
	if country == nil {
		return Request{}, ErrNoShippingCountry
	}
	if !b.allowsCountry(country.ISO3) {
		return Request{}, fmt.Errorf("%w: %s", ErrCountryRestricted, country.ISO3)
	}

	req := Request{
		Type:         "SalesOrder",
		CompanyCode:  b.CompanyCode,
		CurrencyCode: sc.CurrencyISO,
		Addresses:    Addresses{ShipTo: shipTo(c)},
	}
	if sc.Customer != nil {
		req.CustomerCode = sc.Customer.CustomerNumber
		if req.CustomerCode == "" {
			req.CustomerCode = sc.Customer.ID
		}
	}

	for _, li := range c.LineItems {
		switch li.Type {
		case cart.TypeCredit, cart.TypeLoyaltyRedeem:
			continue
		case cart.TypeProduct:
			sku := li.SKU()
			if sku == "" {
				continue
			}
			req.Lines = append(req.Lines, Line{
				Number:      li.ID,
				ItemCode:    sku,
				Quantity:    li.Quantity,
				Amount:      li.TotalPrice(),
				TaxCode:     b.taxCode(li),
				Description: li.Label,
			})
		case cart.TypePromotion:
			id := li.Payload.String(cart.KeyPromotionID)
			if id == "" {
				continue
			}
			req.Lines = append(req.Lines, Line{
				Number:      li.ID,
				ItemCode:    id,
				Quantity:    1,
				Amount:      li.TotalPrice(),
				Description: li.Label,
			})
		}
	}

	if d := c.FirstDelivery(); d != nil {
		req.Lines = append(req.Lines, Line{
			Number:      "shipping",
			ItemCode:    ShippingKey,
			Quantity:    1,
			Amount:      d.ShippingCosts.UnitPrice,
			TaxCode:     b.ShippingTaxCode,
			Description: d.ShippingMethod,
		})
	}
	return req, nil
}

func (b Builder) allowsCountry(iso3 string) bool {
	if len(b.TaxCountries) == 0 {
		return true
	}
	for _, c := range b.TaxCountries {
		if strings.EqualFold(strings.TrimSpace(c), iso3) {
			return true
		}
	}
	return false
}

func (b Builder) taxCode(li *cart.LineItem) string {
	if code, ok := li.CustomFields()[TaxCodeField].(string); ok && code != "" {
		return code
	}
	return b.DefaultTaxCode
}

func shipTo(c *cart.Cart) Address {
	for _, d := range c.Deliveries {
		a := d.Address
		if a.Country == nil {
			continue
		}
		return Address{
			Line1:      a.Street,
			City:       a.City,
			Region:     a.Region,
			PostalCode: a.Zipcode,
			Country:    a.Country.ISO,
		}
	}
	return Address{}
}

// Disambiguate suffixes every line number with _bundleItem_N so lines sharing
// a source id stay distinct at the provider.
func Disambiguate(req *Request) {
	for i := range req.Lines {
		req.Lines[i].Number = fmt.Sprintf("%s_bundleItem_%d", req.Lines[i].Number, i+1)
	}
}
