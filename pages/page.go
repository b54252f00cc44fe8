package pages

import (
	"sync"
	"time"

	"pricecmp/coordinator"
	"pricecmp/model"
)

// Page is one open page context: a coordinator plus the last thing it
// published. It is the coordinator's render and status sink.
type Page struct {
	ID string

	coord *coordinator.Coordinator

	mu         sync.Mutex
	url        string
	pageType   model.PageType
	vendorCode string
	results    []model.Hit
	empty      bool
	status     string
	renders    uint64
	createdAt  time.Time
	lastUsed   time.Time
}

type View struct {
	ID         string               `json:"id"`
	URL        string               `json:"url"`
	PageType   model.PageType       `json:"page_type"`
	VendorCode string               `json:"vendor_code,omitempty"`
	VendorInfo *model.VendorMapping `json:"vendor_info,omitempty"`
	Stats      model.DirectoryStats `json:"stats"`
	Session    coordinator.Snapshot `json:"session"`
	Results    []model.Hit          `json:"-"`
	Empty      bool                 `json:"empty"`
	Status     string               `json:"status"`
	Renders    uint64               `json:"renders"`
	CreatedAt  time.Time            `json:"created_at"`
	LastUsed   time.Time            `json:"last_used"`
}

func (p *Page) Render(results []model.Hit, empty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = results
	p.empty = empty
	p.renders++
}

func (p *Page) Status(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = text
}

func (p *Page) Coordinator() *coordinator.Coordinator { return p.coord }

func (p *Page) PageType() model.PageType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageType
}

// View snapshots the page. The coordinator is read before the page lock is
// taken; Render runs under the coordinator lock and takes the page lock.
func (p *Page) View() View {
	snap := p.coord.Snapshot()
	ds := p.coord.Dataset()

	p.mu.Lock()
	defer p.mu.Unlock()
	v := View{
		ID:         p.ID,
		URL:        p.url,
		PageType:   p.pageType,
		VendorCode: p.vendorCode,
		Session:    snap,
		Results:    append([]model.Hit(nil), p.results...),
		Empty:      p.empty,
		Status:     p.status,
		Renders:    p.renders,
		CreatedAt:  p.createdAt,
		LastUsed:   p.lastUsed,
	}
	if ds != nil {
		v.VendorInfo = ds.VendorInfo
		v.Stats = ds.Stats
	}
	return v
}

func (p *Page) touch(now time.Time) {
	p.mu.Lock()
	p.lastUsed = now
	p.mu.Unlock()
}

func (p *Page) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUsed
}

func (p *Page) navigate(url string, pt model.PageType, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.pageType = pt
	p.vendorCode = code
	p.results = nil
	p.empty = false
	p.status = ""
}
