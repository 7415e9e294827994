package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/odvcencio/confedit/autocomplete"
	"github.com/odvcencio/confedit/client"
	"github.com/odvcencio/confedit/editor"
	"github.com/odvcencio/confedit/filetree"
	"github.com/odvcencio/confedit/state"
)

type fakeAPI struct {
	mu       sync.Mutex
	files    []*filetree.Node
	filesErr error
	entities []autocomplete.Entity
	entErr   error
	contents map[string]string
	readErr  error
	saveErr  error
	saved    map[string]string
	saveHold chan struct{}
	reads    []string
}

func (f *fakeAPI) FetchFiles(ctx context.Context) ([]*filetree.Node, error) {
	return f.files, f.filesErr
}

func (f *fakeAPI) FetchEntities(ctx context.Context) ([]autocomplete.Entity, error) {
	return f.entities, f.entErr
}

func (f *fakeAPI) ReadFile(ctx context.Context, path string) (*client.FileContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, path)
	if f.readErr != nil {
		return nil, f.readErr
	}
	content, ok := f.contents[path]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Message: "Failed to read file: Not Found"}
	}
	return &client.FileContent{Filename: path, Content: content, Size: int64(len(content))}, nil
}

func (f *fakeAPI) SaveFile(ctx context.Context, path, content string) (*client.SaveResult, error) {
	if f.saveHold != nil {
		<-f.saveHold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[path] = content
	return &client.SaveResult{Success: true, Filename: path, Size: int64(len(content))}, nil
}

func sampleAPI() *fakeAPI {
	return &fakeAPI{
		files: []*filetree.Node{
			{Name: "automations", Path: "automations", Kind: filetree.KindDirectory, Children: []*filetree.Node{
				{Name: "lights.yaml", Path: "automations/lights.yaml", Kind: filetree.KindFile},
			}},
			{Name: "configuration.yaml", Path: "configuration.yaml", Kind: filetree.KindFile},
		},
		entities: []autocomplete.Entity{
			{EntityID: "light.kitchen", FriendlyName: "Kitchen", Domain: "light", State: "on"},
			{EntityID: "switch.fan", Domain: "switch", State: "off"},
		},
		contents: map[string]string{
			"configuration.yaml":      "homeassistant:\n  name: Home\n",
			"automations/lights.yaml": "- alias: Lights\n",
		},
	}
}

type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) record(s Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.Message
	}
	return out
}

func (r *recorder) last() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}
	}
	return r.statuses[len(r.statuses)-1]
}

func newController(t *testing.T, api API, store state.Store) (*Controller, *recorder) {
	t.Helper()
	c := New(Config{API: api, Store: store, RevertDelay: 10 * time.Millisecond})
	t.Cleanup(c.Close)
	rec := &recorder{}
	c.Subscribe(rec.record)
	return c, rec
}

func TestStartLoadsTreeAndEntities(t *testing.T) {
	c, rec := newController(t, sampleAPI(), nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(c.Rows()); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
	if got := c.Index().Len(); got != 2 {
		t.Errorf("entities = %d, want 2", got)
	}
	if rec.last().Message != "Ready" {
		t.Errorf("final status = %+v, want Ready", rec.last())
	}
	if c.State().CurrentFile != "" {
		t.Errorf("current file = %q, want none", c.State().CurrentFile)
	}
}

func TestStartEntityFailureIsNonFatal(t *testing.T) {
	api := sampleAPI()
	api.entErr = errors.New("connection refused")
	c, rec := newController(t, api, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.Index().Len() != 0 {
		t.Error("index should be empty")
	}
	if rec.last().Message != "Ready" {
		t.Errorf("final status = %+v, want Ready", rec.last())
	}
}

func TestStartFileFailureSkipsRestore(t *testing.T) {
	api := sampleAPI()
	api.filesErr = errors.New("boom")
	store := state.NewMemoryStore()
	store.Set(state.KeyCurrentFile, "configuration.yaml")

	c, rec := newController(t, api, store)
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start should fail")
	}
	if s := rec.last(); s.Message != "Failed to load files" || s.Level != LevelError {
		t.Errorf("status = %+v", s)
	}
	if len(api.reads) != 0 {
		t.Errorf("reads = %v, want none", api.reads)
	}
	if _, ok, _ := store.Get(state.KeyCurrentFile); !ok {
		t.Error("stored file should be kept when the listing failed")
	}
}

func TestStartRestoresLastFile(t *testing.T) {
	store := state.NewMemoryStore()
	store.Set(state.KeyCurrentFile, "automations/lights.yaml")

	c, _ := newController(t, sampleAPI(), store)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.State().CurrentFile; got != "automations/lights.yaml" {
		t.Errorf("current file = %q", got)
	}
	if got := c.Session().Content(); got != "- alias: Lights\n" {
		t.Errorf("content = %q", got)
	}
	rows := c.Rows()
	if len(rows) != 3 || rows[1].Path != "automations/lights.yaml" || rows[1].Level != 1 {
		t.Errorf("rows = %+v, want the parent expanded", rows)
	}
	dirs, _ := state.GetStrings(store, state.KeyExpandedDirs)
	if len(dirs) != 1 || dirs[0] != "automations" {
		t.Errorf("persisted dirs = %v", dirs)
	}
}

func TestStartClearsStaleLastFile(t *testing.T) {
	store := state.NewMemoryStore()
	store.Set(state.KeyCurrentFile, "gone.yaml")

	api := sampleAPI()
	c, rec := newController(t, api, store)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok, _ := store.Get(state.KeyCurrentFile); ok {
		t.Error("stale file should be removed")
	}
	if len(api.reads) != 0 {
		t.Errorf("reads = %v, want none", api.reads)
	}
	for _, s := range rec.statuses {
		if s.Level == LevelError {
			t.Errorf("unexpected error status %+v", s)
		}
	}
}

func TestOpenLoadsWithoutHistory(t *testing.T) {
	c, rec := newController(t, sampleAPI(), nil)
	c.Start(context.Background())

	if err := c.Open(context.Background(), "configuration.yaml"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	c.Session().Edit(0, 0, "# edited\n")
	if !c.State().Modified {
		t.Fatal("edit should mark modified")
	}

	if err := c.Open(context.Background(), "automations/lights.yaml"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	st := c.State()
	if st.Modified {
		t.Error("freshly opened file should be clean")
	}
	if c.Session().CanUndo() {
		t.Error("freshly opened file should have no undo history")
	}
	if s := rec.last(); s.Message != "Ready" || s.Info != "0.0 KB" {
		t.Errorf("status = %+v, want Ready with size", s)
	}
}

func TestOpenSizeInfo(t *testing.T) {
	api := sampleAPI()
	api.contents["big.yaml"] = string(make([]byte, 2560))
	c, rec := newController(t, api, nil)
	if err := c.Open(context.Background(), "big.yaml"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := rec.last().Info; got != "2.5 KB" {
		t.Errorf("info = %q, want 2.5 KB", got)
	}
}

func TestOpenFailureKeepsState(t *testing.T) {
	c, rec := newController(t, sampleAPI(), nil)
	c.Open(context.Background(), "configuration.yaml")
	c.Session().Edit(0, 0, "x")

	if err := c.Open(context.Background(), "missing.yaml"); err == nil {
		t.Fatal("Open of a missing file should fail")
	}
	if s := rec.last(); s.Message != "Failed to load missing.yaml" || s.Level != LevelError {
		t.Errorf("status = %+v", s)
	}
	st := c.State()
	if st.CurrentFile != "configuration.yaml" || !st.Modified {
		t.Errorf("state changed by failed open: %+v", st)
	}
}

func TestSaveFlow(t *testing.T) {
	api := sampleAPI()
	c, rec := newController(t, api, nil)
	c.Open(context.Background(), "configuration.yaml")

	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save of clean file: %v", err)
	}
	if api.saved != nil {
		t.Fatal("clean document should not be saved")
	}

	c.Session().Edit(0, 0, "# top\n")
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := api.saved["configuration.yaml"]; got != "# top\nhomeassistant:\n  name: Home\n" {
		t.Errorf("saved content = %q", got)
	}
	if c.State().Modified {
		t.Error("document should be clean after save")
	}
	if s := rec.last(); s.Message != "Saved successfully" || s.Level != LevelSuccess {
		t.Errorf("status = %+v", s)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.last().Message != "Ready" {
		if time.Now().After(deadline) {
			t.Fatal("status never reverted to Ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSaveRevertSkippedWhenModified(t *testing.T) {
	c, rec := newController(t, sampleAPI(), nil)
	c.Open(context.Background(), "configuration.yaml")
	c.Session().Edit(0, 0, "a")
	c.Save(context.Background())
	c.Session().Edit(0, 0, "b")

	time.Sleep(50 * time.Millisecond)
	if got := rec.last().Message; got != "Modified" {
		t.Errorf("status = %q, want Modified", got)
	}
}

func TestSaveNoFile(t *testing.T) {
	c, rec := newController(t, sampleAPI(), nil)
	if err := c.Save(context.Background()); !errors.Is(err, ErrNoFile) {
		t.Fatalf("Save err = %v, want ErrNoFile", err)
	}
	if s := rec.last(); s.Message != "No file selected" || s.Level != LevelError {
		t.Errorf("status = %+v", s)
	}
}

func TestSaveFailureSurfacesBackendMessage(t *testing.T) {
	api := sampleAPI()
	api.saveErr = &client.APIError{StatusCode: 500, Message: "disk full"}
	c, rec := newController(t, api, nil)
	c.Open(context.Background(), "configuration.yaml")
	c.Session().Edit(0, 0, "x")

	err := c.Save(context.Background())
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Save err = %v, want APIError", err)
	}
	if s := rec.last(); s.Message != "disk full" || s.Level != LevelError {
		t.Errorf("status = %+v, want disk full", s)
	}
	if !c.State().Modified {
		t.Error("failed save should leave the document dirty")
	}
}

func TestSaveInFlightGuard(t *testing.T) {
	api := sampleAPI()
	api.saveHold = make(chan struct{})
	c, _ := newController(t, api, nil)
	c.Open(context.Background(), "configuration.yaml")
	c.Session().Edit(0, 0, "x")

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !c.State().Saving {
		if time.Now().After(deadline) {
			t.Fatal("first save never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := c.Save(context.Background()); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("second Save err = %v, want ErrSaveInFlight", err)
	}
	close(api.saveHold)
	if err := <-done; err != nil {
		t.Fatalf("first Save: %v", err)
	}
}

func TestRefreshEntities(t *testing.T) {
	api := sampleAPI()
	c, rec := newController(t, api, nil)
	if err := c.RefreshEntities(context.Background()); err != nil {
		t.Fatalf("RefreshEntities: %v", err)
	}
	msgs := rec.messages()
	if len(msgs) < 2 || msgs[0] != "Refreshing entities..." || msgs[1] != "Refreshed 2 entities" {
		t.Errorf("statuses = %v", msgs)
	}

	res := c.Complete(autocomplete.Context{Text: "light", Pos: 5})
	if res == nil || len(res.Options) != 1 || res.Options[0].Label != "light.kitchen" {
		t.Errorf("Complete = %+v", res)
	}

	api.entErr = errors.New("down")
	if err := c.RefreshEntities(context.Background()); err == nil {
		t.Fatal("RefreshEntities should fail")
	}
	if s := rec.last(); s.Message != "Failed to refresh entities" {
		t.Errorf("status = %+v", s)
	}
	if c.Index().Len() != 2 {
		t.Error("failed refresh should keep the previous entities")
	}
}

func TestToggleAndRefreshFiles(t *testing.T) {
	api := sampleAPI()
	c, _ := newController(t, api, nil)
	c.Start(context.Background())

	p := c.Toggle("automations")
	if !p.Expanded || p.Index != 0 || len(p.Insert) != 1 {
		t.Errorf("patch = %+v", p)
	}

	api.files = append(api.files, &filetree.Node{Name: "scripts.yaml", Path: "scripts.yaml", Kind: filetree.KindFile})
	rows, err := c.RefreshFiles(context.Background())
	if err != nil {
		t.Fatalf("RefreshFiles: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("rows = %d, want 4", len(rows))
	}
}

func TestThemeSwitchDoesNotDirty(t *testing.T) {
	session := editor.NewSession(false)
	c := New(Config{API: sampleAPI(), Session: session})
	defer c.Close()
	c.Open(context.Background(), "configuration.yaml")
	session.SetTheme(true)
	if c.State().Modified {
		t.Error("theme switch marked the document modified")
	}
}
