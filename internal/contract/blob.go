package contract

import (
	"sync"
	"sync/atomic"
	"time"

	"camrent/internal/metrics"

	"github.com/google/uuid"
)

// Blob is a locally addressable copy of a binary payload, the server-side
// equivalent of a browser object URL.
type Blob struct {
	URL         string
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Registry owns every live blob. Blobs stay addressable until revoked.
type Registry struct {
	mu      sync.RWMutex
	blobs   map[string]*Blob
	revoked atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]*Blob)}
}

func (r *Registry) Allocate(data []byte, filename, contentType string) *Blob {
	b := &Blob{
		URL:         "blob:" + uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now(),
	}
	r.mu.Lock()
	r.blobs[b.URL] = b
	n := len(r.blobs)
	r.mu.Unlock()
	metrics.SetLiveBlobs(n)
	return b
}

func (r *Registry) Get(url string) (*Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[url]
	return b, ok
}

// Revoke frees the blob. It reports false when url was not live.
func (r *Registry) Revoke(url string) bool {
	r.mu.Lock()
	_, ok := r.blobs[url]
	delete(r.blobs, url)
	n := len(r.blobs)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.revoked.Add(1)
	metrics.SetLiveBlobs(n)
	return true
}

func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// Revoked is the total number of successful revocations.
func (r *Registry) Revoked() int64 {
	return r.revoked.Load()
}

// Preview is a scoped handle on one blob. Release is safe to call from every
// exit path; only the first call revokes.
type Preview struct {
	blob *Blob
	reg  *Registry
	once sync.Once
}

func (p *Preview) URL() string      { return p.blob.URL }
func (p *Preview) Filename() string { return p.blob.Filename }
func (p *Preview) Size() int        { return len(p.blob.Data) }

func (p *Preview) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() { p.reg.Revoke(p.blob.URL) })
}
