// Package app sequences loading, editing and saving of one configuration
// file at a time on top of the editor session, the file tree and the
// entity index.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/confedit/autocomplete"
	"github.com/odvcencio/confedit/client"
	"github.com/odvcencio/confedit/editor"
	"github.com/odvcencio/confedit/filetree"
	"github.com/odvcencio/confedit/state"
)

var (
	// ErrNoFile is returned by Save when no file is open.
	ErrNoFile = errors.New("no file selected")
	// ErrSaveInFlight is returned by Save while another save is running.
	ErrSaveInFlight = errors.New("save already in progress")
)

// DefaultRevertDelay is how long a success status stays up before it
// reverts to "Ready".
const DefaultRevertDelay = 2 * time.Second

// API is the backend surface the controller needs. *client.Client
// implements it.
type API interface {
	FetchFiles(ctx context.Context) ([]*filetree.Node, error)
	FetchEntities(ctx context.Context) ([]autocomplete.Entity, error)
	ReadFile(ctx context.Context, path string) (*client.FileContent, error)
	SaveFile(ctx context.Context, path, content string) (*client.SaveResult, error)
}

// Level classifies a status message.
type Level string

const (
	LevelInfo    Level = ""
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Status is the status bar content.
type Status struct {
	Message string `json:"message"`
	Info    string `json:"info"`
	Level   Level  `json:"level,omitempty"`
}

// State is a snapshot of the controller.
type State struct {
	CurrentFile string `json:"currentFile"`
	Modified    bool   `json:"modified"`
	Saving      bool   `json:"saving"`
	Status      Status `json:"status"`
	Entities    int    `json:"entities"`
}

// Config holds the controller's collaborators.
type Config struct {
	API     API
	Session *editor.Session
	Store   state.Store
	Logger  *zap.Logger
	// RevertDelay defaults to DefaultRevertDelay.
	RevertDelay time.Duration
}

// Controller owns the application state for one editing session.
//
// Tree and state fields are guarded by mu. The editor session is not
// locked; callers drive it from a single goroutine. mu is never held
// while session events or status callbacks run.
type Controller struct {
	api         API
	session     *editor.Session
	store       state.Store
	index       *autocomplete.Index
	log         *zap.Logger
	revertDelay time.Duration
	unsubscribe func()

	mu          sync.Mutex
	tree        *filetree.Tree
	currentFile string
	modified    bool
	loading     bool
	saving      bool
	status      Status
	revert      *time.Timer
	subs        map[int]func(Status)
	nextSub     int
}

// New creates a controller and subscribes it to session changes.
func New(cfg Config) *Controller {
	if cfg.Store == nil {
		cfg.Store = state.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RevertDelay == 0 {
		cfg.RevertDelay = DefaultRevertDelay
	}
	if cfg.Session == nil {
		cfg.Session = editor.NewSession(false)
	}
	c := &Controller{
		api:         cfg.API,
		session:     cfg.Session,
		store:       cfg.Store,
		index:       autocomplete.NewIndex(),
		log:         cfg.Logger,
		revertDelay: cfg.RevertDelay,
		tree:        filetree.New(cfg.Store, cfg.Logger),
		subs:        make(map[int]func(Status)),
	}
	c.unsubscribe = c.session.Subscribe(c.onSessionEvent)
	return c
}

// Close detaches the controller from its session and stops pending
// status timers.
func (c *Controller) Close() {
	c.unsubscribe()
	c.mu.Lock()
	if c.revert != nil {
		c.revert.Stop()
	}
	c.mu.Unlock()
}

// Session returns the editor session.
func (c *Controller) Session() *editor.Session { return c.session }

// Index returns the entity index backing autocomplete.
func (c *Controller) Index() *autocomplete.Index { return c.index }

// Subscribe registers fn for status changes and returns a function that
// removes it.
func (c *Controller) Subscribe(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	fns := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// revertLater puts the status back to "Ready" after the revert delay
// unless the document was modified in the meantime.
func (c *Controller) revertLater() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revert != nil {
		c.revert.Stop()
	}
	c.revert = time.AfterFunc(c.revertDelay, func() {
		c.mu.Lock()
		modified := c.modified
		c.mu.Unlock()
		if !modified {
			c.setStatus(Status{Message: "Ready"})
		}
	})
}

func (c *Controller) onSessionEvent(ev editor.Event) {
	if ev.Kind != editor.EventChanged {
		return
	}
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return
	}
	c.modified = true
	c.mu.Unlock()
	c.setStatus(Status{Message: "Modified"})
}

// Start restores the expanded directories, fetches the file tree and the
// entities concurrently and reopens the last file if it still exists.
// Failing to fetch entities leaves autocomplete empty; failing to fetch
// files is returned and skips the reopen.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.tree.Restore()
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		return c.loadFiles(ctx)
	})
	g.Go(func() error {
		if err := c.loadEntities(ctx); err != nil {
			c.log.Warn("load entities", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		c.setStatus(Status{Message: "Failed to load files", Level: LevelError})
		return err
	}

	saved, ok, err := c.store.Get(state.KeyCurrentFile)
	if err != nil {
		c.log.Error("read last opened file", zap.Error(err))
		c.setStatus(Status{Message: "Initialization failed", Level: LevelError})
		return fmt.Errorf("restore state: %w", err)
	}
	if ok && saved != "" {
		c.mu.Lock()
		exists := c.tree.Exists(saved)
		if exists {
			c.tree.ExpandAncestors(saved)
		}
		c.mu.Unlock()

		if !exists {
			if err := c.store.Delete(state.KeyCurrentFile); err != nil {
				c.log.Warn("clear stale last opened file", zap.String("path", saved), zap.Error(err))
			}
		} else if err := c.Open(ctx, saved); err != nil {
			// Open already surfaced the failure.
			return nil
		}
	}

	c.setStatus(Status{Message: "Ready"})
	return nil
}

func (c *Controller) loadFiles(ctx context.Context) error {
	nodes, err := c.api.FetchFiles(ctx)
	if err != nil {
		c.log.Error("load files", zap.Error(err))
		return fmt.Errorf("load files: %w", err)
	}
	c.mu.Lock()
	c.tree.Load(nodes)
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadEntities(ctx context.Context) error {
	ents, err := c.api.FetchEntities(ctx)
	if err != nil {
		return err
	}
	c.index.SetEntities(ents)
	if n := c.index.Len(); n > 0 {
		c.log.Info("loaded entities for autocomplete", zap.Int("count", n))
	} else {
		c.log.Info("no entities available")
	}
	return nil
}

// Open reads path and loads it into the session without undo history. On
// failure the current document is left as it was.
func (c *Controller) Open(ctx context.Context, path string) error {
	c.setStatus(Status{Message: "Loading..."})

	fc, err := c.api.ReadFile(ctx, path)
	if err != nil {
		c.log.Error("load file", zap.String("path", path), zap.Error(err))
		c.setStatus(Status{Message: "Failed to load " + path, Level: LevelError})
		return fmt.Errorf("open %s: %w", path, err)
	}

	c.mu.Lock()
	c.currentFile = path
	c.modified = false
	c.loading = true
	c.mu.Unlock()

	c.session.SetContent(fc.Content, true)

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()

	if err := c.store.Set(state.KeyCurrentFile, path); err != nil {
		c.log.Warn("persist last opened file", zap.String("path", path), zap.Error(err))
	}

	c.setStatus(Status{
		Message: "Ready",
		Info:    fmt.Sprintf("%.1f KB", float64(fc.Size)/1024),
	})
	return nil
}

// Save writes the session content to the current file. It is a no-op for
// an unmodified document.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.currentFile == "":
		c.mu.Unlock()
		c.setStatus(Status{Message: "No file selected", Level: LevelError})
		return ErrNoFile
	case !c.modified:
		c.mu.Unlock()
		return nil
	case c.saving:
		c.mu.Unlock()
		return ErrSaveInFlight
	}
	c.saving = true
	path := c.currentFile
	c.mu.Unlock()

	c.setStatus(Status{Message: "Saving..."})
	_, err := c.api.SaveFile(ctx, path, c.session.Content())

	c.mu.Lock()
	c.saving = false
	if err == nil {
		c.modified = false
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Error("save file", zap.String("path", path), zap.Error(err))
		c.setStatus(Status{Message: saveErrorMessage(err), Level: LevelError})
		return fmt.Errorf("save %s: %w", path, err)
	}

	c.log.Info("saved file", zap.String("path", path))
	c.setStatus(Status{Message: "Saved successfully", Level: LevelSuccess})
	c.revertLater()
	return nil
}

// saveErrorMessage prefers the backend's own message.
func saveErrorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// RefreshEntities re-fetches the entity list.
func (c *Controller) RefreshEntities(ctx context.Context) error {
	c.setStatus(Status{Message: "Refreshing entities..."})
	if err := c.loadEntities(ctx); err != nil {
		c.log.Error("refresh entities", zap.Error(err))
		c.setStatus(Status{Message: "Failed to refresh entities", Level: LevelError})
		return err
	}
	c.setStatus(Status{
		Message: fmt.Sprintf("Refreshed %d entities", c.index.Len()),
		Level:   LevelSuccess,
	})
	c.revertLater()
	return nil
}

// RefreshFiles re-fetches the listing and replaces the tree.
func (c *Controller) RefreshFiles(ctx context.Context) ([]filetree.Row, error) {
	if err := c.loadFiles(ctx); err != nil {
		c.setStatus(Status{Message: "Failed to load files", Level: LevelError})
		return nil, err
	}
	return c.Rows(), nil
}

// Rows returns the visible tree rows.
func (c *Controller) Rows() []filetree.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Rows()
}

// Toggle expands or collapses a directory and returns the row patch.
func (c *Controller) Toggle(path string) filetree.Patch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Toggle(path)
}

// Complete runs autocomplete against the current entity index.
func (c *Controller) Complete(ctx autocomplete.Context) *autocomplete.Result {
	return c.index.Complete(ctx)
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		CurrentFile: c.currentFile,
		Modified:    c.modified,
		Saving:      c.saving,
		Status:      c.status,
		Entities:    c.index.Len(),
	}
}
