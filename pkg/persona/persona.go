// Package persona is the built-in library of system prompts.
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPersona is returned by Get for names not in the library.
var ErrUnknownPersona = errors.New("unknown persona")

// Persona is a named system prompt.
type Persona struct {
	Name        string
	Description string
	Prompt      string
}

var library = []Persona{
	{
		Name:        "Assistant",
		Description: "General purpose helper",
		Prompt:      "You are a helpful, accurate assistant. Answer clearly and concisely, and say so when you are unsure.",
	},
	{
		Name:        "Coder",
		Description: "Programming help with working code",
		Prompt:      "You are an expert software engineer. Give correct, idiomatic code in fenced Markdown blocks with the language named, and explain only what is not obvious from the code.",
	},
	{
		Name:        "Teacher",
		Description: "Step by step explanations",
		Prompt:      "You are a patient teacher. Explain concepts step by step, check understanding with a short question at the end, and use simple examples.",
	},
	{
		Name:        "Writer",
		Description: "Drafting and editing prose",
		Prompt:      "You are a skilled writer and editor. Improve clarity and flow, keep the author's voice, and point out the changes you made.",
	},
	{
		Name:        "Translator",
		Description: "Faithful translation between languages",
		Prompt:      "You are a professional translator. Translate the user's text faithfully, preserving tone and formatting. If the target language is not stated, translate into English.",
	},
}

// List returns the built-in personas in display order.
func List() []Persona {
	out := make([]Persona, len(library))
	copy(out, library)
	return out
}

// Get looks up a persona by name, ignoring case.
func Get(name string) (Persona, error) {
	for _, p := range library {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownPersona, name, strings.Join(Names(), ", "))
}

// Names returns the persona names in display order.
func Names() []string {
	names := make([]string, len(library))
	for i, p := range library {
		names[i] = strings.ToLower(p.Name)
	}
	return names
}
