package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/odvcencio/confedit/filetree"
	"github.com/odvcencio/confedit/logging"
	"github.com/odvcencio/confedit/metrics"
)

// BackupSuffix is appended to a file's name for the copy made before it
// is overwritten.
const BackupSuffix = ".backup"

// maxFileSize bounds a PUT body.
const maxFileSize = 16 << 20

var (
	// ErrAccessDenied is returned for paths that escape the config dir.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotText is returned for files that are not valid UTF-8.
	ErrNotText = errors.New("not a text file")
)

// Files reads and writes configuration files under one root directory.
type Files struct {
	root string
	log  *zap.Logger
}

// FileContent is the response of a file read.
type FileContent struct {
	Filename string             `json:"filename"`
	Content  string             `json:"content"`
	Size     int64              `json:"size"`
	Modified filetree.Timestamp `json:"modified"`
}

// SaveResult is the response of a file write.
type SaveResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// NewFiles creates a file service rooted at root.
func NewFiles(root string, log *zap.Logger) *Files {
	return &Files{root: root, log: log}
}

// Resolve maps a slash-separated request path to a filesystem path under
// the root. Paths containing ".." or starting with "/" are rejected, as
// is anything whose symlink-resolved location leaves the root. The file
// itself need not exist.
func (f *Files) Resolve(name string) (string, error) {
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", ErrAccessDenied
	}
	p := filepath.Join(f.root, filepath.FromSlash(name))

	root, err := resolveExisting(f.root)
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	resolved, err := resolveExisting(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrAccessDenied
	}
	return p, nil
}

// resolveExisting evaluates symlinks along p, tolerating a missing tail.
func resolveExisting(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(abs)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", err
		}
		missing = append([]string{filepath.Base(abs)}, missing...)
		abs = parent
	}
}

// List scans the root.
func (f *Files) List() ([]*filetree.Node, error) {
	return filetree.Scan(f.root)
}

// Read returns the content of a file.
func (f *Files) Read(name string) (*FileContent, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, ErrNotText
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return &FileContent{
		Filename: name,
		Content:  string(data),
		Size:     info.Size(),
		Modified: filetree.Timestamp{Time: info.ModTime()},
	}, nil
}

// Write replaces a file's content. An existing file is first copied to
// name+BackupSuffix; a failed backup is logged and does not stop the
// write.
func (f *Files) Write(name, content string, log *zap.Logger) (*SaveResult, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}

	perm := fs.FileMode(0o644)
	if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
		perm = info.Mode().Perm()
		backup := p + BackupSuffix
		err := copyFile(p, backup, info)
		metrics.RecordBackup(err)
		if err != nil {
			log.Warn("create backup failed", zap.String("path", name), zap.Error(err))
		} else {
			log.Info("created backup", zap.String("backup", backup))
		}
	}

	err = os.WriteFile(p, []byte(content), perm)
	metrics.RecordFileSave(len(content), err)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	log.Info("saved file", zap.String("path", p))
	return &SaveResult{Success: true, Filename: name, Size: info.Size()}, nil
}

// copyFile copies src to dst keeping the mode and modification time.
func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)
	nodes, err := s.files.List()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.sendError(w, http.StatusNotFound, "Config directory not found")
		return
	case errors.Is(err, fs.ErrPermission):
		log.Error("permission denied listing files", zap.Error(err))
		s.sendError(w, http.StatusForbidden, "Permission denied")
		return
	case err != nil:
		log.Error("list files", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}
	metrics.SetFileTreeSize(countNodes(nodes))
	s.sendJSON(w, http.StatusOK, nodes)
}

func countNodes(nodes []*filetree.Node) int {
	n := 0
	for _, node := range nodes {
		n += 1 + countNodes(node.Children)
	}
	return n
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)
	name := r.PathValue("path")
	fc, err := s.files.Read(name)
	metrics.RecordFileRead(err)
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusOK, fc)
	case errors.Is(err, ErrAccessDenied):
		s.sendError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, fs.ErrNotExist):
		s.sendError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, fs.ErrPermission):
		log.Error("permission denied reading file", zap.String("path", name))
		s.sendError(w, http.StatusForbidden, "Permission denied")
	case errors.Is(err, ErrNotText):
		s.sendError(w, http.StatusBadRequest, "File is not a text file")
	default:
		log.Error("read file", zap.String("path", name), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "Failed to read file")
	}
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)
	name := r.PathValue("path")
	if _, err := s.files.Resolve(name); errors.Is(err, ErrAccessDenied) {
		s.sendError(w, http.StatusForbidden, "Access denied")
		return
	}

	var body struct {
		Content *string `json:"content"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFileSize)).Decode(&body); err != nil || body.Content == nil {
		s.sendError(w, http.StatusBadRequest, "No content provided")
		return
	}

	res, err := s.files.Write(name, *body.Content, log)
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusOK, res)
	case errors.Is(err, ErrAccessDenied):
		s.sendError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, fs.ErrPermission):
		log.Error("permission denied writing file", zap.String("path", name))
		s.sendError(w, http.StatusForbidden, "Permission denied")
	default:
		log.Error("write file", zap.String("path", name), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "Failed to write file")
	}
}
