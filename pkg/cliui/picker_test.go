package cliui

import (
	bubbletea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func press(m bubbletea.Model, msg bubbletea.KeyMsg) (pickerModel, bubbletea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(pickerModel), cmd
}

var _ = Describe("model picker", func() {
	models := []string{"a.gguf", "b.gguf", "c.gguf"}

	It("preselects the current model", func() {
		m := newPickerModel(models, "b.gguf")
		Expect(m.list.Index()).To(Equal(1))
		Expect(m.list.SelectedItem().(modelItem).Description()).To(Equal("current"))
	})

	It("chooses the highlighted model on enter", func() {
		m := newPickerModel(models, "a.gguf")

		m, _ = press(m, bubbletea.KeyMsg{Type: bubbletea.KeyDown})
		m, cmd := press(m, bubbletea.KeyMsg{Type: bubbletea.KeyEnter})

		Expect(m.choice).To(Equal("b.gguf"))
		Expect(m.done).To(BeTrue())
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(Equal(bubbletea.Quit()))
		Expect(m.View()).To(BeEmpty())
	})

	It("quits without a choice on esc", func() {
		m := newPickerModel(models, "")

		m, cmd := press(m, bubbletea.KeyMsg{Type: bubbletea.KeyEsc})
		Expect(m.choice).To(BeEmpty())
		Expect(m.done).To(BeTrue())
		Expect(cmd()).To(Equal(bubbletea.Quit()))
	})

	It("resizes the list with the window", func() {
		m := newPickerModel(models, "")

		next, _ := m.Update(bubbletea.WindowSizeMsg{Width: 100, Height: 30})
		Expect(next.(pickerModel).list.Width()).To(Equal(100))
	})

	It("refuses an empty model list", func() {
		_, err := PickModel(nil, "")
		Expect(err).To(MatchError(ErrNoModels))
	})
})
