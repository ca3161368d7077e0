package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

func TestPersonalizer_Apply(t *testing.T) {
	p := NewPersonalizer("₦")

	tests := []struct {
		name     string
		template string
		contact  model.Contact
		want     string
	}{
		{
			name:     "missing budget falls back",
			template: "Hi {name}, budget {budget}",
			contact:  model.Contact{Name: "Amara"},
			want:     "Hi Amara, budget your budget",
		},
		{
			name:     "budget formatted as currency",
			template: "Hi {name}, budget {budget}",
			contact:  model.Contact{Name: "Amara", BudgetMin: int64Ptr(20000000)},
			want:     "Hi Amara, budget ₦20,000,000",
		},
		{
			name:     "budget range",
			template: "{budget}",
			contact:  model.Contact{BudgetMin: int64Ptr(5000000), BudgetMax: int64Ptr(12500000)},
			want:     "₦5,000,000 - ₦12,500,000",
		},
		{
			name:     "upper bound only",
			template: "{budget}",
			contact:  model.Contact{BudgetMax: int64Ptr(900000)},
			want:     "up to ₦900,000",
		},
		{
			name:     "first name and location",
			template: "Hello {first_name}, homes in {location} for {name} ({phone})",
			contact:  model.Contact{Name: "Amara Okafor", PreferredLocation: "Lekki", Phone: "2348012345678"},
			want:     "Hello Amara, homes in Lekki for Amara Okafor (2348012345678)",
		},
		{
			name:     "all fallbacks",
			template: "Hi {name}/{first_name}, {location}, {budget}",
			contact:  model.Contact{},
			want:     "Hi there/there, your area, your budget",
		},
		{
			name:     "unknown placeholders untouched",
			template: "Hi {nickname}",
			contact:  model.Contact{Name: "Amara"},
			want:     "Hi {nickname}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.contact
			assert.Equal(t, tt.want, p.Apply(tt.template, &c))
		})
	}
}

func TestPersonalizer_Money(t *testing.T) {
	assert.Equal(t, "$1,234", NewPersonalizer("$").Money(1234))
	assert.Equal(t, "₦0", NewPersonalizer("₦").Money(0))
}
