package jurisdiction

import (
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func newTestParser() *Parser {
	return NewParser([]models.Jurisdiction{
		{Name: "Springfield", Code: "SP", IsActive: true},
		{Name: "Dubai", Code: "DU", IsActive: true},
		{Name: "Abu Dhabi", Code: "AZ", IsActive: true},
		{Name: "Ras Al Khaimah", Code: "RK", IsActive: false},
	}, []string{"United Arab Emirates", "UAE"}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestExtract(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		address string
		want    Result
	}{
		{name: "hyphen separated name", address: "Main St - Downtown - Springfield - Country X", want: Result{Code: "SP", IsValid: true}},
		{name: "comma separated name", address: "Office 4, Al Wasl Rd, Dubai, United Arab Emirates", want: Result{Code: "DU", IsValid: true}},
		{name: "case insensitive name", address: "Corniche, ABU DHABI", want: Result{Code: "AZ", IsValid: true}},
		{name: "code segment", address: "12 Elm St, du", want: Result{Code: "DU", IsValid: true}},
		{name: "code with postal", address: "12 Elm St, Downtown, SP 12345", want: Result{Code: "SP", IsValid: true}},
		{name: "first match wins", address: "Dubai - Abu Dhabi", want: Result{Code: "DU", IsValid: true}},
		{name: "inactive jurisdiction falls back to marker", address: "Al Nakheel, Ras Al Khaimah, UAE", want: Result{IsValid: true}},
		{name: "inactive jurisdiction without marker", address: "Al Nakheel, Ras Al Khaimah", want: Result{}},
		{name: "hyphen inside a word is not a separator", address: "Al-Barsha, Somewhere", want: Result{}},
		{name: "empty", address: "   ", want: Result{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Extract(tt.address))
		})
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	p := newTestParser()
	address := "Villa 3 - Jumeirah - Dubai - United Arab Emirates"
	first := p.Extract(address)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, p.Extract(address))
	}
}
