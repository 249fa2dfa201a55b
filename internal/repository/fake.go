package repository

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Fake is an in-memory Client used by tests. Collections are registered
// up front by handle; items and bitstreams are assigned sequential fake
// UUIDs as they are created, and deleted items/bitstreams are tracked so
// tests can assert on compensation ordering.
type Fake struct {
	mu sync.Mutex

	Collections map[string]Collection
	// CollectionHTTPErrors maps a collection handle to the HTTPError that
	// CreateItem should return instead of succeeding.
	CollectionHTTPErrors map[string]*HTTPError
	// TimeoutCollections names collections whose CreateItem calls should
	// return a TimeoutError. AttachBitstream does not consult it.
	TimeoutCollections map[string]bool
	// FailBitstreamNames maps a bitstream name to the error AttachBitstream
	// should return for it.
	FailBitstreamNames map[string]error

	Items            map[string]CreatedItem
	Bitstreams       map[string]CreatedBitstream
	DeletedItems     []string
	DeletedBitstreams []string

	nextItemN      int
	nextBitstreamN int
}

// NewFake returns an empty Fake repository.
func NewFake() *Fake {
	return &Fake{
		Collections:          make(map[string]Collection),
		CollectionHTTPErrors: make(map[string]*HTTPError),
		TimeoutCollections:   make(map[string]bool),
		FailBitstreamNames:   make(map[string]error),
		Items:                make(map[string]CreatedItem),
		Bitstreams:           make(map[string]CreatedBitstream),
	}
}

func (f *Fake) Login(_, _ string) error { return nil }

func (f *Fake) GetCollectionByHandle(handle string) (Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.Collections[handle]
	if !ok {
		return Collection{}, &HTTPError{StatusCode: 404, Body: fmt.Sprintf("collection '%s' not found", handle)}
	}
	return c, nil
}

func (f *Fake) CreateItem(collectionUUID string, item ItemPayload) (CreatedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for handle, c := range f.Collections {
		if c.UUID != collectionUUID {
			continue
		}
		if f.TimeoutCollections[handle] {
			return CreatedItem{}, &TimeoutError{Err: errors.New("simulated timeout")}
		}
		if httpErr, ok := f.CollectionHTTPErrors[handle]; ok {
			return CreatedItem{}, httpErr
		}
	}

	f.nextItemN++
	created := CreatedItem{
		UUID:         fmt.Sprintf("item%02d", f.nextItemN),
		Handle:       fmt.Sprintf("0000/item%02d", f.nextItemN),
		LastModified: "2024-01-01T00:00:00Z",
	}
	f.Items[created.UUID] = created
	_ = item
	return created, nil
}

func (f *Fake) AttachBitstream(itemUUID, name, description string, stream io.Reader) (CreatedBitstream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.Items[itemUUID]; !ok {
		return CreatedBitstream{}, &HTTPError{StatusCode: 404, Body: fmt.Sprintf("item '%s' not found", itemUUID)}
	}

	if err, ok := f.FailBitstreamNames[name]; ok {
		return CreatedBitstream{}, err
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return CreatedBitstream{}, err
	}

	f.nextBitstreamN++
	created := CreatedBitstream{
		UUID:     fmt.Sprintf("bitstream%02d", f.nextBitstreamN),
		Checksum: fmt.Sprintf("%x", len(data)),
	}
	f.Bitstreams[created.UUID] = created
	_ = description
	return created, nil
}

func (f *Fake) DeleteBitstream(bitstreamUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.Bitstreams, bitstreamUUID)
	f.DeletedBitstreams = append(f.DeletedBitstreams, bitstreamUUID)
	return nil
}

func (f *Fake) DeleteItem(itemUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.Items, itemUUID)
	f.DeletedItems = append(f.DeletedItems, itemUUID)
	return nil
}
