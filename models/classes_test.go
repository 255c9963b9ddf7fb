package models

import (
	"strings"
	"testing"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageNetLabels(t *testing.T) {
	table := ImageNetLabels()
	require.Equal(t, 1000, table.Len(), "ImageNet should have 1000 classes")

	known := map[int]string{
		0:   "tench",
		281: "tabby cat",
		924: "guacamole",
		948: "Granny Smith",
		963: "pizza",
		999: "toilet paper",
	}
	for idx, want := range known {
		name, ok := table.Name(idx)
		require.True(t, ok)
		assert.Equal(t, want, name, "label %d", idx)
	}

	_, ok := table.Name(1000)
	assert.False(t, ok)
}

func TestImageNetLabelsReturnsCopy(t *testing.T) {
	first := ImageNetLabels()
	first.Labels[0] = "changed"

	second := ImageNetLabels()
	assert.Equal(t, "tench", second.Labels[0], "Callers must not be able to mutate the embedded table")
}

func TestLoadLabels(t *testing.T) {
	table, err := LoadLabels("food", strings.NewReader("apple pie\n\n  baby back ribs \r\nbaklava\n"))
	require.NoError(t, err)

	assert.Equal(t, model.Family("food"), table.Family)
	assert.Equal(t, []string{"apple pie", "baby back ribs", "baklava"}, table.Labels)

	_, err = LoadLabels("food", strings.NewReader("\n \n"))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestClassManager(t *testing.T) {
	mgr := NewClassManager(NewLabelTable("animals", []string{"cat", "dog"}))

	table, err := mgr.Get("animals")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, table.Labels)

	_, err = mgr.Get("plants")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{Name: model.ModelNameResNet50, Path: "resnet50.onnx"})
	require.NoError(t, err)

	opts := m.Options()
	assert.Equal(t, model.ModelFamilyImageNet, opts.Family)
	assert.Equal(t, "resnet50.onnx", opts.Path)
	assert.Equal(t, []int64{1, 3, 224, 224}, opts.InputShape())
	assert.Len(t, m.Labels(), 1000)

	custom, err := NewModel(model.NewModelArgs{Name: model.ModelNameMobileNetV2, Labels: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, custom.Labels())

	_, err = NewModel(model.NewModelArgs{Name: "yolov4"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = NewModel(model.NewModelArgs{Name: model.ModelNameResNet50, Family: "unregistered"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}
