// Package jurisdiction extracts a first-level region code from free-text addresses.
package jurisdiction

import (
	"regexp"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

var (
	segmentSeparator = regexp.MustCompile(`\s*,\s*|\s+-\s+`)
	// codeWithPostal matches a segment like "NY 10001".
	codeWithPostal = regexp.MustCompile(`^([A-Za-z]{2,3})\s+\d{4,6}$`)
)

// Result is the outcome of an extraction. Code is empty when the address was
// accepted by country marker only.
type Result struct {
	Code    string
	IsValid bool
}

// Parser matches address segments against the active jurisdictions. It is
// immutable after construction.
type Parser struct {
	byName  map[string]string
	byCode  map[string]string
	markers []string
	logger  ectologger.Logger
}

// NewParser builds a parser over active jurisdictions. countryMarkers are
// substrings that accept an address whose region cannot be resolved.
func NewParser(jurisdictions []models.Jurisdiction, countryMarkers []string, logger ectologger.Logger) *Parser {
	p := &Parser{
		byName: make(map[string]string),
		byCode: make(map[string]string),
		logger: logger,
	}
	for _, j := range jurisdictions {
		if !j.IsActive {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(j.Code))
		p.byName[strings.ToLower(strings.TrimSpace(j.Name))] = code
		p.byCode[code] = code
	}
	for _, marker := range countryMarkers {
		if marker = strings.ToLower(strings.TrimSpace(marker)); marker != "" {
			p.markers = append(p.markers, marker)
		}
	}
	return p
}

// Extract returns the first jurisdiction named or coded in address.
func (p *Parser) Extract(address string) Result {
	address = strings.TrimSpace(address)
	if address == "" {
		return Result{}
	}

	for _, segment := range segmentSeparator.Split(address, -1) {
		if code, ok := p.matchSegment(strings.TrimSpace(segment)); ok {
			return Result{Code: code, IsValid: true}
		}
	}

	lowered := strings.ToLower(address)
	for _, marker := range p.markers {
		if strings.Contains(lowered, marker) {
			return Result{IsValid: true}
		}
	}

	p.logger.WithField("address", address).Warn("address did not match any active jurisdiction")
	return Result{}
}

func (p *Parser) matchSegment(segment string) (string, bool) {
	if segment == "" {
		return "", false
	}
	if code, ok := p.byName[strings.ToLower(segment)]; ok {
		return code, true
	}
	if code, ok := p.byCode[strings.ToUpper(segment)]; ok {
		return code, true
	}
	if m := codeWithPostal.FindStringSubmatch(segment); m != nil {
		if code, ok := p.byCode[strings.ToUpper(m[1])]; ok {
			return code, true
		}
	}
	return "", false
}
