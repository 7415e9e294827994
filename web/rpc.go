package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/odvcencio/confedit/autocomplete"
	"github.com/odvcencio/confedit/commands"
	"github.com/odvcencio/confedit/editor"
)

type rpcHandler func(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error)

// paramsError marks a request whose params could not be decoded.
type paramsError struct{ err error }

func (e paramsError) Error() string { return "invalid params: " + e.err.Error() }

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return paramsError{err}
	}
	return nil
}

var rpcMethods map[string]rpcHandler

func init() {
	rpcMethods = map[string]rpcHandler{
		"start":           rpcStart,
		"state":           rpcState,
		"rows":            rpcRows,
		"toggle":          rpcToggle,
		"refreshFiles":    rpcRefreshFiles,
		"open":            rpcOpen,
		"save":            rpcSave,
		"refreshEntities": rpcRefreshEntities,
		"services":        rpcServices,
		"content":         rpcContent,
		"setContent":      rpcSetContent,
		"edit":            rpcEdit,
		"undo":            rpcUndo,
		"redo":            rpcRedo,
		"indent":          rpcIndent,
		"dedent":          rpcDedent,
		"deleteLines":     rpcDeleteLines,
		"duplicateLines":  rpcDuplicateLines,
		"moveLines":       rpcMoveLines,
		"folds":           rpcFolds,
		"toggleFold":      rpcToggleFold,
		"key":             rpcKey,
		"matchBracket":    rpcMatchBracket,
		"complete":        rpcComplete,
		"viewport":        rpcViewport,
		"decorations":     rpcDecorations,
		"diagnostics":     rpcDiagnostics,
		"highlight":       rpcHighlight,
		"theme":           rpcTheme,
	}
}

type pathParams struct {
	Path string `json:"path"`
}

type selectionParams struct {
	Selection editor.Selection `json:"selection"`
}

type changedResult struct {
	Changed bool `json:"changed"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

func changed(c *wsClient, ok bool) changedResult {
	return changedResult{Changed: ok, CanUndo: c.session.CanUndo(), CanRedo: c.session.CanRedo()}
}

type themeResult struct {
	Preference editor.Preference `json:"preference"`
	Palette    editor.Palette    `json:"palette"`
}

func rpcStart(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		SystemDark bool `json:"systemDark"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	c.systemDark = p.SystemDark
	pref := editor.LoadPreference(s.store)
	c.session.SetTheme(pref.Resolve(c.systemDark))

	if err := c.ctrl.Start(ctx); err != nil {
		return nil, err
	}
	return map[string]any{
		"state":   c.ctrl.State(),
		"rows":    c.ctrl.Rows(),
		"content": c.session.Content(),
		"theme":   themeResult{Preference: pref, Palette: c.session.Palette()},
	}, nil
}

func rpcState(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	return c.ctrl.State(), nil
}

func rpcRows(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	return c.ctrl.Rows(), nil
}

func rpcToggle(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p pathParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return c.ctrl.Toggle(p.Path), nil
}

func rpcRefreshFiles(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	return c.ctrl.RefreshFiles(ctx)
}

func rpcOpen(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p pathParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := c.ctrl.Open(ctx, p.Path); err != nil {
		return nil, err
	}
	return map[string]any{"content": c.session.Content(), "state": c.ctrl.State()}, nil
}

func rpcSave(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c.ctrl.State(), nil
}

func rpcRefreshEntities(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	if err := c.ctrl.RefreshEntities(ctx); err != nil {
		return nil, err
	}
	return map[string]int{"count": c.ctrl.Index().Len()}, nil
}

func rpcContent(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	return map[string]string{"text": c.session.Content()}, nil
}

func rpcSetContent(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Text        string `json:"text"`
		SkipHistory bool   `json:"skipHistory"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	c.session.SetContent(p.Text, p.SkipHistory)
	return changed(c, true), nil
}

func rpcEdit(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		From   int    `json:"from"`
		To     int    `json:"to"`
		Insert string `json:"insert"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return changed(c, c.session.Edit(p.From, p.To, p.Insert)), nil
}

func rpcUndo(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	return changed(c, c.session.Undo()), nil
}

func rpcRedo(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	return changed(c, c.session.Redo()), nil
}

func rpcIndent(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p selectionParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return changed(c, c.session.Indent(p.Selection)), nil
}

func rpcDedent(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p selectionParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return changed(c, c.session.Dedent(p.Selection)), nil
}

func rpcDeleteLines(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p selectionParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return changed(c, c.session.DeleteLines(p.Selection)), nil
}

func rpcDuplicateLines(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p selectionParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return changed(c, c.session.DuplicateLines(p.Selection)), nil
}

func rpcMoveLines(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Selection editor.Selection `json:"selection"`
		Delta     int              `json:"delta"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Delta == 0 {
		return nil, paramsError{errors.New("delta must be non-zero")}
	}
	return changed(c, c.session.MoveLines(p.Selection, p.Delta)), nil
}

func rpcServices(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	src, ok := s.api.(ServiceSource)
	if !ok {
		return json.RawMessage("{}"), nil
	}
	return src.FetchServices(ctx)
}

func rpcFolds(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	folds := c.session.Folds()
	if folds == nil {
		folds = []editor.FoldRegion{}
	}
	return folds, nil
}

func rpcToggleFold(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Line int `json:"line"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return map[string]bool{"toggled": c.session.ToggleFold(p.Line)}, nil
}

func rpcKey(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Event     commands.KeyEvent `json:"event"`
		Selection editor.Selection  `json:"selection"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	handled := c.session.HandleKey(p.Event, p.Selection)
	return map[string]bool{"handled": handled}, nil
}

func rpcMatchBracket(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Pos int `json:"pos"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	pos, ok := c.session.MatchBracket(p.Pos)
	return map[string]any{"pos": pos, "ok": ok}, nil
}

func rpcComplete(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Pos int `json:"pos"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	res := c.ctrl.Complete(autocomplete.Context{Text: c.session.Content(), Pos: p.Pos})
	if res == nil {
		return map[string]any{"options": []autocomplete.Suggestion{}}, nil
	}
	return res, nil
}

func rpcViewport(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Ranges []editor.Range `json:"ranges"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	c.session.SetViewport(p.Ranges)
	return c.session.Decorations(), nil
}

func rpcDecorations(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	return c.session.Decorations(), nil
}

func rpcDiagnostics(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	d := c.session.Diagnostics()
	if d == nil {
		d = []editor.Diagnostic{}
	}
	return d, nil
}

func rpcHighlight(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	spans, err := c.session.Highlight()
	if err != nil {
		return nil, fmt.Errorf("highlight: %w", err)
	}
	if spans == nil {
		spans = []editor.Span{}
	}
	return spans, nil
}

// rpcTheme sets an explicit preference or toggles the stored one. With
// neither it only re-resolves "auto", for when the system theme changed.
func rpcTheme(ctx context.Context, s *Server, c *wsClient, params json.RawMessage) (any, error) {
	var p struct {
		Preference editor.Preference `json:"preference"`
		Toggle     bool              `json:"toggle"`
		SystemDark *bool             `json:"systemDark"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.SystemDark != nil {
		c.systemDark = *p.SystemDark
	}

	pref := p.Preference
	switch {
	case p.Toggle:
		pref = editor.LoadPreference(s.store).Toggle(c.systemDark)
	case pref == "":
		pref = editor.LoadPreference(s.store)
	case !pref.Valid():
		return nil, paramsError{fmt.Errorf("unknown theme %q", pref)}
	}
	if p.Toggle || p.Preference != "" {
		editor.SavePreference(s.store, pref, themeRetryDelay, c.log)
	}
	c.session.SetTheme(pref.Resolve(c.systemDark))
	return themeResult{Preference: pref, Palette: c.session.Palette()}, nil
}
