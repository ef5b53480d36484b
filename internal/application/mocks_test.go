package application_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockJobClient answers status calls from a script of status values, repeating
// the last one. Each response's Raw payload is unique per call.
type mockJobClient struct {
	mu        sync.Mutex
	statuses  []string
	statusErr error
	calls     []model.JobRef

	submitted []model.ExportRequest
	submitJob model.ExportJob
	submitErr error
}

func (m *mockJobClient) SubmitExport(_ context.Context, req model.ExportRequest) (model.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, req)
	return m.submitJob, m.submitErr
}

func (m *mockJobClient) JobStatus(_ context.Context, ref model.JobRef) (model.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ref)
	if m.statusErr != nil {
		return model.JobStatus{}, m.statusErr
	}
	n := len(m.calls)
	s := m.statuses[len(m.statuses)-1]
	if n <= len(m.statuses) {
		s = m.statuses[n-1]
	}
	return model.JobStatus{
		Ref:    ref,
		Status: s,
		Raw:    statusPayload(s, n),
	}, nil
}

func (m *mockJobClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// statusPayload is the raw body the mock returns for call n.
func statusPayload(status string, n int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"status":%q,"statusMessage":"call %d"}`, status, n))
}

type addItemCall struct {
	Item     model.NewItem
	FolderID string
	DataPath string
}

type mockContentClient struct {
	items      map[string][]model.Item // keyed by item type
	searchErr  error
	folderID   string
	addItemErr error
	added      []addItemCall
	updated    []string
	publishes  []model.PublishRequest
	publishRes model.PublishResult
	publishErr error
}

func (m *mockContentClient) Search(_ context.Context, q model.ItemQuery) ([]model.Item, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.items[string(q.Type)], nil
}

func (m *mockContentClient) EnsureFolder(_ context.Context, _ string) (string, error) {
	return m.folderID, nil
}

func (m *mockContentClient) AddItem(_ context.Context, item model.NewItem, folderID, dataPath string) (model.Item, error) {
	m.added = append(m.added, addItemCall{Item: item, FolderID: folderID, DataPath: dataPath})
	if m.addItemErr != nil {
		return model.Item{}, m.addItemErr
	}
	return model.Item{ID: "gdb-new", Title: item.Title, Type: item.Type}, nil
}

func (m *mockContentClient) UpdateItemData(_ context.Context, itemID, _ string) error {
	m.updated = append(m.updated, itemID)
	return nil
}

func (m *mockContentClient) Publish(_ context.Context, req model.PublishRequest) (model.PublishResult, error) {
	m.publishes = append(m.publishes, req)
	return m.publishRes, m.publishErr
}

type mockRunStore struct {
	mu       sync.Mutex
	created  []model.SyncRun
	finished []model.SyncRun
}

func (m *mockRunStore) Create(_ context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, run)
	return nil
}

func (m *mockRunStore) Finish(_ context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, run)
	return nil
}

func (m *mockRunStore) Get(_ context.Context, id string) (*model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.finished {
		if m.finished[i].ID == id {
			r := m.finished[i]
			return &r, nil
		}
	}
	return nil, driven.ErrRunNotFound
}

func (m *mockRunStore) ListRecent(_ context.Context, _ int) ([]model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SyncRun(nil), m.finished...), nil
}

func (m *mockRunStore) finishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.finished)
}

type mockJobStore struct {
	mu      sync.Mutex
	records []model.JobRecord
}

func (m *mockJobStore) Record(_ context.Context, rec model.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockJobStore) ListByRun(_ context.Context, runID string) ([]model.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.JobRecord
	for _, r := range m.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockFeedFetcher struct {
	calls   int
	results []model.FeedResult
	err     error
}

func (m *mockFeedFetcher) Fetch(_ context.Context, _ string) ([]model.FeedResult, error) {
	m.calls++
	return m.results, m.err
}

type mockPackageBuilder struct {
	calls int
	err   error
}

func (m *mockPackageBuilder) Build(_ context.Context, _, _ string) error {
	m.calls++
	return m.err
}

type mockCredentialStore struct {
	values map[string]map[string]string
	err    error
}

func (m *mockCredentialStore) Set(_ context.Context, service, key, value string) error {
	if m.values == nil {
		m.values = map[string]map[string]string{}
	}
	if m.values[service] == nil {
		m.values[service] = map[string]string{}
	}
	m.values[service][key] = value
	return nil
}

func (m *mockCredentialStore) Get(_ context.Context, service, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[service][key], nil
}

func (m *mockCredentialStore) GetAll(_ context.Context, service string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]string{}
	for k, v := range m.values[service] {
		out[k] = v
	}
	return out, nil
}

func (m *mockCredentialStore) Delete(_ context.Context, service, key string) error {
	delete(m.values[service], key)
	return nil
}
