package importertest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/places"
)

// Provider serves canned places keyed by external id.
type Provider struct {
	mu sync.Mutex

	Places map[string]*places.Place
	// Errors returned by GetDetails for an id, taking precedence over Places.
	Errors      map[string]error
	SearchPages map[string]*places.SearchPage
	SearchErr   error
	PhotoErr    error

	Queries      []string
	DetailCalls  []string
	PhotoWidths  []int
	detailsMasks []string
}

func NewProvider(ps ...*places.Place) *Provider {
	p := &Provider{
		Places:      make(map[string]*places.Place),
		Errors:      make(map[string]error),
		SearchPages: make(map[string]*places.SearchPage),
	}
	for _, place := range ps {
		p.Places[place.ExternalID] = place
	}
	return p
}

func (p *Provider) SearchText(_ context.Context, query, pageToken string) (*places.SearchPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Queries = append(p.Queries, query)
	if p.SearchErr != nil {
		return nil, p.SearchErr
	}
	if page, ok := p.SearchPages[pageToken]; ok {
		return page, nil
	}
	return &places.SearchPage{}, nil
}

func (p *Provider) GetDetails(_ context.Context, externalID, fieldMask string) (*places.Place, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetailCalls = append(p.DetailCalls, externalID)
	p.detailsMasks = append(p.detailsMasks, fieldMask)
	if err, ok := p.Errors[externalID]; ok {
		return nil, err
	}
	place, ok := p.Places[externalID]
	if !ok {
		return nil, &places.ProviderError{StatusCode: http.StatusNotFound, Status: "NOT_FOUND", Message: "Place not found"}
	}
	copied := *place
	return &copied, nil
}

// Masks returns the field masks of every GetDetails call.
func (p *Provider) Masks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.detailsMasks...)
}

func (p *Provider) FetchPhotoBytes(_ context.Context, photoRef string, maxWidthPx int) ([]byte, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PhotoWidths = append(p.PhotoWidths, maxWidthPx)
	if p.PhotoErr != nil {
		return nil, "", p.PhotoErr
	}
	return []byte("photo:" + photoRef), "image/jpeg", nil
}

// PhotoStore records persisted photos and returns deterministic URLs.
type PhotoStore struct {
	mu sync.Mutex

	Fail   map[int]error
	Stored []string
}

func NewPhotoStore() *PhotoStore {
	return &PhotoStore{Fail: make(map[int]error)}
}

func (s *PhotoStore) PersistPhoto(_ context.Context, data []byte, _ string, slugHint string, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail[index]; err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://cdn.test/clinics/%s/%d.jpg", slugHint, index)
	s.Stored = append(s.Stored, url)
	return url, nil
}

// Events captures published directory events.
type Events struct {
	mu     sync.Mutex
	Err    error
	Events []kafka.DirectoryEvent
}

func (e *Events) Publish(_ context.Context, evt *kafka.DirectoryEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.Events = append(e.Events, *evt)
	return nil
}

// Types returns the event types in publish order.
func (e *Events) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.Events))
	for _, evt := range e.Events {
		out = append(out, evt.Type)
	}
	return out
}
