package cliui

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	bubbletea "github.com/charmbracelet/bubbletea"
)

// ErrPickCancelled is returned by PickModel when the user quits without
// choosing.
var ErrPickCancelled = errors.New("model selection cancelled")

// ErrNoModels is returned by PickModel for an empty model list.
var ErrNoModels = errors.New("no models available")

const currentMarker = "current"

type modelItem struct {
	name    string
	current bool
}

func (i modelItem) Title() string { return i.name }

func (i modelItem) Description() string {
	if i.current {
		return currentMarker
	}
	return ""
}

func (i modelItem) FilterValue() string { return i.name }

type pickerKeyMap struct {
	Choose key.Binding
	Quit   key.Binding
}

func defaultPickerKeyMap() pickerKeyMap {
	return pickerKeyMap{
		Choose: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "load")),
		Quit:   key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type pickerModel struct {
	list   list.Model
	keys   pickerKeyMap
	choice string
	done   bool
}

func newPickerModel(models []string, current string) pickerModel {
	items := make([]list.Item, len(models))
	selected := 0
	for i, name := range models {
		items[i] = modelItem{name: name, current: name == current}
		if name == current {
			selected = i
		}
	}

	keys := defaultPickerKeyMap()
	l := list.New(items, list.NewDefaultDelegate(), 60, 20)
	l.Title = "Select a model"
	l.Styles.Title = NameStyle
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.Choose} }
	l.Select(selected)

	return pickerModel{list: l, keys: keys}
}

func (m pickerModel) Init() bubbletea.Cmd {
	return nil
}

func (m pickerModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case bubbletea.KeyMsg:
		// While filtering, keys belong to the filter input.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Choose):
			if item, ok := m.list.SelectedItem().(modelItem); ok {
				m.choice = item.name
			}
			m.done = true
			return m, bubbletea.Quit
		case key.Matches(msg, m.keys.Quit):
			m.done = true
			return m, bubbletea.Quit
		}
	}

	var cmd bubbletea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.done {
		return ""
	}
	return m.list.View()
}

// PickModel shows an interactive list of models with current preselected
// and returns the chosen name.
func PickModel(models []string, current string, opts ...bubbletea.ProgramOption) (string, error) {
	if len(models) == 0 {
		return "", ErrNoModels
	}

	final, err := bubbletea.NewProgram(newPickerModel(models, current), opts...).Run()
	if err != nil {
		return "", err
	}

	m, ok := final.(pickerModel)
	if !ok || m.choice == "" {
		return "", ErrPickCancelled
	}
	return m.choice, nil
}
