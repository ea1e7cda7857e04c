package main

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	mu       sync.Mutex
	photos   []shutter.Record
	captures int
	deleted  []int
}

func (f *fakeLibrary) Load(context.Context) error { return nil }

func (f *fakeLibrary) Capture(context.Context) (shutter.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	rec := shutter.Record{FilePath: "1730000000009.jpeg", DisplayPath: "/photos/1730000000009.jpeg"}
	f.photos = append([]shutter.Record{rec}, f.photos...)
	return rec, nil
}

func (f *fakeLibrary) Delete(_ context.Context, _ shutter.Record, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, position)
	f.photos = append(f.photos[:position:position], f.photos[position+1:]...)
	return nil
}

func (f *fakeLibrary) Snapshot() []shutter.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shutter.Record(nil), f.photos...)
}

func newTestModel(t *testing.T) (Model, *fakeLibrary, *controller.Controller) {
	t.Helper()
	lib := &fakeLibrary{photos: []shutter.Record{
		{FilePath: "1730000000002.jpeg", DisplayPath: "/photos/1730000000002.jpeg"},
		{FilePath: "1730000000001.jpeg", DisplayPath: "/photos/1730000000001.jpeg"},
		{FilePath: shutter.PendingPath, DisplayPath: "file:///inbox/a.jpg", State: shutter.Pending},
	}}
	ctrl := controller.New(lib)
	t.Cleanup(func() { ctrl.Close() })
	require.NoError(t, ctrl.Activate(context.Background()))
	return NewModel(ctrl, time.Second), lib, ctrl
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestNavigation(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = press(m, tea.KeyMsg{Type: tea.KeyDown}, runes("j"), runes("j"))
	assert.Equal(t, 2, m.cursor)

	m = press(m, tea.KeyMsg{Type: tea.KeyUp}, runes("k"), runes("k"))
	assert.Equal(t, 0, m.cursor)
}

func TestCapture(t *testing.T) {
	m, lib, ctrl := newTestModel(t)

	m = press(m, runes("c"))
	ctrl.Wait()
	assert.Equal(t, 1, lib.captures)

	m = press(m, refreshMsg{})
	assert.Len(t, m.photos, 4)
	assert.Contains(t, m.View(), "1730000000009.jpeg")
}

func TestDeleteConfirmed(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.Msg
	}{
		{name: "y", keys: []tea.Msg{runes("y")}},
		{name: "enter on focused delete", keys: []tea.Msg{tea.KeyMsg{Type: tea.KeyEnter}}},
		{name: "tab around to delete", keys: []tea.Msg{tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyEnter}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, lib, ctrl := newTestModel(t)

			m = press(m, runes("j"), runes("d"))
			require.True(t, m.prompting)
			view := m.View()
			assert.Contains(t, view, controller.OptionDelete)
			assert.Contains(t, view, controller.OptionCancel)

			m = press(m, tt.keys...)
			ctrl.Wait()

			assert.False(t, m.prompting)
			assert.Equal(t, []int{1}, lib.deleted)
			assert.Equal(t, "deleting 1730000000001.jpeg", m.status)
		})
	}
}

func TestDeleteCancelled(t *testing.T) {
	for _, k := range []tea.Msg{runes("n"), tea.KeyMsg{Type: tea.KeyEsc}} {
		m, lib, ctrl := newTestModel(t)

		m = press(m, runes("d"), k)
		ctrl.Wait()

		assert.False(t, m.prompting)
		assert.Empty(t, lib.deleted)
		_, shown := ctrl.Prompt()
		assert.False(t, shown)
	}
}

func TestDeletePendingRefused(t *testing.T) {
	m, _, ctrl := newTestModel(t)

	m = press(m, runes("j"), runes("j"), runes("d"))
	assert.False(t, m.prompting)
	assert.Error(t, m.err)
	_, shown := ctrl.Prompt()
	assert.False(t, shown)
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}

func TestViewEmpty(t *testing.T) {
	ctrl := controller.New(&fakeLibrary{})
	t.Cleanup(func() { ctrl.Close() })

	m := NewModel(ctrl, time.Second)
	assert.Contains(t, m.View(), "No photos yet")
	assert.Contains(t, m.View(), "Photos (0)")

	// deleting with nothing selected does nothing
	m = press(m, runes("d"))
	assert.False(t, m.prompting)
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "short", abbreviate("short", 10))
	assert.Equal(t, "data:im...", abbreviate("data:image/jpeg;base64,AAAA", 10))
}
