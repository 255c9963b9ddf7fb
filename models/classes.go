// Package models - Label tables and the model registry.
package models

import (
	"bufio"
	_ "embed"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/pkg/errors"
)

//go:embed assets/imagenet_labels.txt
var imagenetLabelsData string

// LabelTable maps class indices of a model output to human-readable labels.
type LabelTable struct {
	// Label set identifier.
	Family model.Family
	// Labels indexed by class.
	Labels []string
}

// NewLabelTable creates a label table.
//
// Arguments:
//   - family: The label set identifier.
//   - labels: The labels, indexed by class. The slice is not copied.
//
// Returns:
//   - *LabelTable: The table.
func NewLabelTable(family model.Family, labels []string) *LabelTable {
	return &LabelTable{Family: family, Labels: labels}
}

// Len returns the number of labels.
func (t *LabelTable) Len() int {
	return len(t.Labels)
}

// Name returns the label for a class index.
func (t *LabelTable) Name(idx int) (string, bool) {
	if idx < 0 || idx >= len(t.Labels) {
		return "", false
	}
	return t.Labels[idx], true
}

var (
	imagenetOnce   sync.Once
	imagenetLabels []string
)

// ImageNetLabels returns the embedded 1000-class ImageNet label table.
//
// Returns:
//   - *LabelTable: A fresh table; callers may modify it freely.
func ImageNetLabels() *LabelTable {
	imagenetOnce.Do(func() {
		table, err := LoadLabels(model.ModelFamilyImageNet, strings.NewReader(imagenetLabelsData))
		if err != nil {
			panic(errors.Wrap(err, "embedded imagenet labels are invalid"))
		}
		imagenetLabels = table.Labels
	})
	return NewLabelTable(model.ModelFamilyImageNet, append([]string(nil), imagenetLabels...))
}

// LoadLabels reads a newline-separated label file. Surrounding whitespace is
// trimmed and blank lines are ignored.
//
// Arguments:
//   - family: The label set identifier.
//   - r: The label file contents.
//
// Returns:
//   - *LabelTable: The table, in file order.
//   - error: An error wrapping common.ErrInvalidArgument if the file holds no labels.
//
// @example
// table, err := LoadLabels("food101", strings.NewReader("apple pie\nbaby back ribs\n"))
func LoadLabels(family model.Family, r io.Reader) (*LabelTable, error) {
	var labels []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	if len(labels) == 0 {
		return nil, errors.Wrap(common.ErrInvalidArgument, "label file is empty")
	}

	return NewLabelTable(family, labels), nil
}

// LoadLabelsFile reads a label file from disk.
//
// Arguments:
//   - family: The label set identifier.
//   - path: The file path.
//
// Returns:
//   - *LabelTable: The table.
//   - error: An error if the file cannot be opened or holds no labels.
func LoadLabelsFile(family model.Family, path string) (*LabelTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open labels %s", path)
	}
	defer f.Close()

	return LoadLabels(family, f)
}

// ClassManager holds all registered label tables.
type ClassManager struct {
	mu   sync.RWMutex
	sets map[model.Family]*LabelTable
}

// NewClassManager initializes and registers the given tables.
func NewClassManager(tables ...*LabelTable) *ClassManager {
	mgr := &ClassManager{sets: make(map[model.Family]*LabelTable)}
	for _, t := range tables {
		mgr.Register(t)
	}
	return mgr
}

// Register adds or replaces the table for its family.
func (m *ClassManager) Register(t *LabelTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[t.Family] = t
}

// Get returns the table registered for a family.
func (m *ClassManager) Get(family model.Family) (*LabelTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.sets[family]
	if !ok {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "family %q not registered", family)
	}
	return t, nil
}

// DefaultClassManager knows the embedded ImageNet labels.
var DefaultClassManager = NewClassManager(ImageNetLabels())
