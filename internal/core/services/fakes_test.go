package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
)

// Ensure fakePortal implements the driven ports.
var (
	_ driven.Portal            = (*fakePortal)(nil)
	_ driven.VocabularyFetcher = (*fakePortal)(nil)
	_ driven.Spreadsheet       = (*fakeSheets)(nil)
	_ driven.RunStore          = (*mockRunStore)(nil)
	_ driven.LinkProber        = (*fakeProber)(nil)
	_ driven.Downloader        = (*fakeProber)(nil)
)

// fakePortal is an in-memory DKAN used by service tests.
type fakePortal struct {
	mu sync.Mutex

	nodes    map[string]domain.Document
	packages []domain.Document
	vocabs   map[string]map[string]string
	nextID   int

	fetchErr  map[string]error
	loginErr  error
	createErr error
	updateErr error

	vocabCalls map[string]int
	loggedIn   bool

	created  []domain.Document
	updated  map[string]domain.Document
	deleted  []string
	attached []string
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		nodes:      make(map[string]domain.Document),
		vocabs:     make(map[string]map[string]string),
		nextID:     1000,
		fetchErr:   make(map[string]error),
		vocabCalls: make(map[string]int),
		updated:    make(map[string]domain.Document),
	}
}

func (p *fakePortal) addNode(nid string, doc domain.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc["nid"] = nid
	p.nodes[nid] = doc
}

func (p *fakePortal) Login(_ context.Context) error {
	if p.loginErr != nil {
		return p.loginErr
	}
	p.loggedIn = true
	return nil
}

func (p *fakePortal) ListPackages(_ context.Context) ([]domain.Document, error) {
	return p.packages, nil
}

func (p *fakePortal) FetchPackage(_ context.Context, id string) (domain.Document, error) {
	for _, pkg := range p.packages {
		if pkg.String(domain.Path{domain.Key("id")}) == id || pkg.String(domain.Path{domain.Key("name")}) == id {
			return pkg, nil
		}
	}
	return nil, fmt.Errorf("package %s: %w", id, domain.ErrNotFound)
}

func (p *fakePortal) FetchNode(_ context.Context, nid string) (domain.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.fetchErr[nid]; ok {
		return nil, err
	}
	doc, ok := p.nodes[nid]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nid, domain.ErrNotFound)
	}
	return doc, nil
}

func (p *fakePortal) FindNodeIDByPackageID(_ context.Context, packageID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.nodes))
	for nid := range p.nodes {
		ids = append(ids, nid)
	}
	sort.Strings(ids)
	for _, nid := range ids {
		if p.nodes[nid].String(domain.Path{domain.Key("uuid")}) == packageID {
			return nid, nil
		}
	}
	return "", fmt.Errorf("package %s: %w", packageID, domain.ErrNotFound)
}

func (p *fakePortal) CreateNode(_ context.Context, doc domain.Document) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	p.nextID++
	nid := strconv.Itoa(p.nextID)
	stored := domain.Document{}
	for k, v := range doc {
		stored[k] = v
	}
	stored["nid"] = nid
	p.nodes[nid] = stored
	p.created = append(p.created, doc)
	return nid, nil
}

func (p *fakePortal) UpdateNode(_ context.Context, nid string, doc domain.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updated[nid] = doc
	existing := p.nodes[nid]
	if existing == nil {
		existing = domain.Document{"nid": nid}
	}
	for k, v := range doc {
		existing[k] = v
	}
	p.nodes[nid] = existing
	return nil
}

func (p *fakePortal) DeleteNode(_ context.Context, nid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, nid)
	p.deleted = append(p.deleted, nid)
	return nil
}

func (p *fakePortal) AttachFile(_ context.Context, nid, field, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = append(p.attached, nid+":"+field+":"+path)
	return nil
}

func (p *fakePortal) FetchVocabulary(_ context.Context, name string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vocabCalls[name]++
	terms, ok := p.vocabs[name]
	if !ok {
		return nil, fmt.Errorf("vocabulary %s: %w", name, domain.ErrNotFound)
	}
	return terms, nil
}

// groupNode builds a group node as the portal returns it.
func groupNode(title string) domain.Document {
	return domain.Document{"type": "group", "title": title}
}

// resourceNode builds a resource node linked through field_link_api.
func resourceNode(title, url string) domain.Document {
	return domain.Document{
		"type":  "resource",
		"title": title,
		"uuid":  "uuid-" + title,
		domain.FieldLinkAPI: map[string]any{
			"und": []any{map[string]any{"url": url}},
		},
	}
}

// fakeSheets keeps spreadsheets in memory by path.
type fakeSheets struct {
	sheets  map[string]*domain.Sheet
	written map[string]*domain.Sheet
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		sheets:  make(map[string]*domain.Sheet),
		written: make(map[string]*domain.Sheet),
	}
}

func (f *fakeSheets) Read(path string) (*domain.Sheet, error) {
	sheet, ok := f.sheets[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, domain.ErrNotFound)
	}
	return sheet, nil
}

func (f *fakeSheets) Write(path string, sheet *domain.Sheet) error {
	f.written[path] = sheet
	f.sheets[path] = sheet
	return nil
}

// mockRunStore records saved runs.
type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) Save(ctx context.Context, run *domain.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRunStore) Get(ctx context.Context, id string) (*domain.Run, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*domain.Run)
	return run, args.Error(1)
}

func (m *mockRunStore) List(ctx context.Context, limit int) ([]domain.Run, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]domain.Run)
	return runs, args.Error(1)
}

// fakeProber answers probes from a table; unknown urls are unreachable.
type fakeProber struct {
	mu         sync.Mutex
	status     map[string]driven.LinkStatus
	probed     []string
	downloaded map[string]string
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		status:     make(map[string]driven.LinkStatus),
		downloaded: make(map[string]string),
	}
}

func (p *fakeProber) Probe(_ context.Context, url string) driven.LinkStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, url)
	if st, ok := p.status[url]; ok {
		return st
	}
	return driven.LinkStatus{OK: false, Code: "404"}
}

func (p *fakeProber) Download(_ context.Context, url, dest string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloaded[dest] = url
	return nil
}

// sheetOf builds a sheet whose rows carry every header column.
func sheetOf(header []string, rows ...[]string) *domain.Sheet {
	sheet := &domain.Sheet{Header: header}
	for _, pairs := range rows {
		row := domain.RowFromCells(header, nil)
		for i := 0; i+1 < len(pairs); i += 2 {
			row.Set(pairs[i], pairs[i+1])
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// fullHeader is the header of a complete export.
func fullHeader() []string {
	return append(append([]string{}, domain.DatasetColumns...), domain.ResourceColumns...)
}
