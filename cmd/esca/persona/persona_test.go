package personacmder_test

import (
	"bytes"
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	escacmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/persona"
)

var _ = Describe("esca persona", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "esca-persona-test-*")
		Expect(err).NotTo(HaveOccurred())
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		os.RemoveAll(configDir)
	})

	execute := func(args ...string) error {
		cmd := escacmder.NewEscaCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd.Execute()
	}

	It("lists every persona", func() {
		Expect(execute("persona", "list")).To(Succeed())
		for _, name := range persona.Names() {
			Expect(out.String()).To(ContainSubstring(name))
		}
	})

	It("stores the persona prompt as the system prompt", func() {
		Expect(execute("persona", "apply", "Coder")).To(Succeed())

		cfger, err := config.NewConfiger(configDir)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())

		coder, err := persona.Get("coder")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Generation.SystemPrompt).To(Equal(coder.Prompt))
	})

	It("rejects unknown personas", func() {
		err := execute("persona", "apply", "pirate")
		Expect(errors.Is(err, persona.ErrUnknownPersona)).To(BeTrue())
	})
})
