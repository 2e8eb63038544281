// Package manifest persists per-workflow resolution state: the deduplicated
// node-pack set and pinned model bindings.
package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jkoski/flowdeps/internal/errors"
	"github.com/jkoski/flowdeps/internal/logging"
)

// ErrWorkflowNotFound indicates the manifest has no state for a workflow.
var ErrWorkflowNotFound = errors.NewStd("workflow not found in manifest")

// ModelPin records the resolved identity of one model widget reference.
type ModelPin struct {
	NodeID       string `yaml:"node_id"`
	WidgetIndex  int    `yaml:"widget_index"`
	Hash         string `yaml:"hash"`
	RelativePath string `yaml:"path"`
}

// workflowState is the persisted state for one workflow.
type workflowState struct {
	NodePacks []string   `yaml:"node_packs"`
	Models    []ModelPin `yaml:"models,omitempty"`
}

type manifestFile struct {
	Workflows map[string]*workflowState `yaml:"workflows"`
}

// Manifest is the persisted store. Every mutation is written through to disk
// immediately (temp file + rename) so a crash mid-batch loses nothing
// already recorded.
type Manifest struct {
	path string
	mu   sync.Mutex
	data manifestFile
	log  *slog.Logger
}

// Load reads the manifest at path, treating a missing file as empty.
func Load(path string) (*Manifest, error) {
	m := &Manifest{
		path: path,
		data: manifestFile{Workflows: make(map[string]*workflowState)},
		log:  logging.ForService("manifest"),
	}
	if m.log == nil {
		m.log = slog.Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, errors.New(err).
			Component("manifest").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	if err := yaml.Unmarshal(raw, &m.data); err != nil {
		return nil, errors.New(err).
			Component("manifest").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	if m.data.Workflows == nil {
		m.data.Workflows = make(map[string]*workflowState)
	}
	return m, nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return m.path
}

// GetExisting returns the set of pack ids already persisted for a workflow.
// Unknown workflows yield an empty set.
func (m *Manifest) GetExisting(workflow string) map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[string]struct{})
	if ws, ok := m.data.Workflows[workflow]; ok {
		for _, id := range ws.NodePacks {
			set[id] = struct{}{}
		}
	}
	return set
}

// GetNodePacks returns the sorted pack ids persisted for a workflow.
func (m *Manifest) GetNodePacks(workflow string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.data.Workflows[workflow]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflow)).
			Component("manifest").
			Category(errors.CategoryNotFound).
			Build()
	}
	packs := make([]string, len(ws.NodePacks))
	copy(packs, ws.NodePacks)
	return packs, nil
}

// AddNodePack persists one pack id for a workflow. Set semantics: adding an
// id already present is a no-op and does not rewrite the file.
func (m *Manifest) AddNodePack(workflow, packID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws := m.workflowLocked(workflow)
	for _, id := range ws.NodePacks {
		if id == packID {
			return nil
		}
	}
	ws.NodePacks = append(ws.NodePacks, packID)
	sort.Strings(ws.NodePacks)
	return m.saveLocked()
}

// RemoveNodePack removes one pack id; an explicit operation, never performed
// by a resolution pass. Reports whether the id was present.
func (m *Manifest) RemoveNodePack(workflow, packID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.data.Workflows[workflow]
	if !ok {
		return false, nil
	}
	for i, id := range ws.NodePacks {
		if id == packID {
			ws.NodePacks = append(ws.NodePacks[:i], ws.NodePacks[i+1:]...)
			return true, m.saveLocked()
		}
	}
	return false, nil
}

// PinModel persists the resolved identity of one model widget reference,
// replacing any previous pin for the same (node id, widget index).
func (m *Manifest) PinModel(workflow string, pin ModelPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws := m.workflowLocked(workflow)
	for i, existing := range ws.Models {
		if existing.NodeID == pin.NodeID && existing.WidgetIndex == pin.WidgetIndex {
			ws.Models[i] = pin
			return m.saveLocked()
		}
	}
	ws.Models = append(ws.Models, pin)
	return m.saveLocked()
}

// Models returns the pinned model bindings for a workflow.
func (m *Manifest) Models(workflow string) []ModelPin {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.data.Workflows[workflow]
	if !ok {
		return nil
	}
	pins := make([]ModelPin, len(ws.Models))
	copy(pins, ws.Models)
	return pins
}

// Workflows returns all workflow names present in the manifest, sorted.
func (m *Manifest) Workflows() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.data.Workflows))
	for name := range m.data.Workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manifest) workflowLocked(workflow string) *workflowState {
	ws, ok := m.data.Workflows[workflow]
	if !ok {
		ws = &workflowState{}
		m.data.Workflows[workflow] = ws
	}
	return ws
}

// saveLocked writes the manifest atomically. Callers hold m.mu.
func (m *Manifest) saveLocked() error {
	out, err := yaml.Marshal(&m.data)
	if err != nil {
		return errors.New(err).
			Component("manifest").
			Category(errors.CategoryManifest).
			Build()
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("manifest").
				Category(errors.CategoryFileIO).
				Build()
		}
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return errors.New(err).
			Component("manifest").
			Category(errors.CategoryFileIO).
			Context("path", tmp).
			Build()
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return errors.New(err).
			Component("manifest").
			Category(errors.CategoryFileIO).
			Context("path", m.path).
			Build()
	}
	return nil
}
