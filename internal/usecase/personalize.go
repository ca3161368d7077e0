package usecase

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

// Fallbacks used when a contact field is missing.
const (
	fallbackName     = "there"
	fallbackLocation = "your area"
	fallbackBudget   = "your budget"
)

// Personalizer fills campaign templates with contact details.
type Personalizer struct {
	currencySymbol string
	printer        *message.Printer
}

// NewPersonalizer creates a personalizer that formats money with the given symbol.
func NewPersonalizer(currencySymbol string) *Personalizer {
	return &Personalizer{
		currencySymbol: currencySymbol,
		printer:        message.NewPrinter(language.English),
	}
}

// Apply substitutes {name}, {first_name}, {phone}, {location} and {budget}.
func (p *Personalizer) Apply(template string, contact *model.Contact) string {
	name := strings.TrimSpace(contact.Name)
	firstName := fallbackName
	if fields := strings.Fields(name); len(fields) > 0 {
		firstName = fields[0]
	}
	if name == "" {
		name = fallbackName
	}
	location := strings.TrimSpace(contact.PreferredLocation)
	if location == "" {
		location = fallbackLocation
	}

	return strings.NewReplacer(
		"{name}", name,
		"{first_name}", firstName,
		"{phone}", contact.Phone,
		"{location}", location,
		"{budget}", p.Budget(contact.BudgetMin, contact.BudgetMax),
	).Replace(template)
}

// Budget formats a budget range, e.g. "₦20,000,000 - ₦50,000,000".
func (p *Personalizer) Budget(low, high *int64) string {
	switch {
	case low != nil && high != nil && *low != *high:
		return p.Money(*low) + " - " + p.Money(*high)
	case low != nil:
		return p.Money(*low)
	case high != nil:
		return "up to " + p.Money(*high)
	}
	return fallbackBudget
}

// Money formats an amount with digit grouping and the currency symbol.
func (p *Personalizer) Money(amount int64) string {
	return p.currencySymbol + p.printer.Sprintf("%d", amount)
}
