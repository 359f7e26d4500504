package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).NotTo(BeNil())

		Expect(v.GetString("backend.target")).To(Equal("http://localhost:5000"))
		Expect(v.GetInt("model.ctx")).To(Equal(8192))
		Expect(v.GetFloat64("generation.temperature")).To(Equal(0.7))
		Expect(v.GetString("appearance.theme")).To(Equal("dark"))
	})

	It("reads config file values over defaults", func() {
		data := `[generation]
max_tokens = 300
system_prompt = "Be brief."
`
		err := os.WriteFile(filepath.Join(tmpDir, "settings.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetInt("generation.max_tokens")).To(Equal(300))
		Expect(v.GetString("generation.system_prompt")).To(Equal("Be brief."))
		// Unset fields should still get defaults
		Expect(v.GetFloat64("generation.top_p")).To(Equal(0.95))
	})

	It("respects environment variables with ESCA_ prefix", func() {
		GinkgoT().Setenv("ESCA_BACKEND_TARGET", "http://remote:5000")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("backend.target")).To(Equal("http://remote:5000"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[generation]
top_p = 0.5
`
		err := os.WriteFile(filepath.Join(tmpDir, "settings.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("ESCA_GENERATION_TOP_P", "0.8")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetFloat64("generation.top_p")).To(Equal(0.8))
	})

	It("picks up file edits on Reload", func() {
		path := filepath.Join(tmpDir, "settings.toml")
		Expect(os.WriteFile(path, []byte("[appearance]\ntheme = \"light\"\n"), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("appearance.theme")).To(Equal("light"))

		Expect(os.WriteFile(path, []byte("[appearance]\ntheme = \"dracula\"\n"), 0o600)).To(Succeed())
		Expect(config.Reload(v)).To(Succeed())
		Expect(v.GetString("appearance.theme")).To(Equal("dracula"))
	})
})

var _ = Describe("FromViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "fromviper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("assembles defaults into a Config", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("rejects invalid merged values", func() {
		GinkgoT().Setenv("ESCA_GENERATION_TEMPERATURE", "9")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		_, err = config.FromViper(v)
		Expect(err).To(MatchError(ContainSubstring("generation.temperature")))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		var temperature float64
		cmd := &cobra.Command{Use: "test"}
		config.AddFloatFlag(cmd, config.Flags, config.FlagTemperature, &temperature)

		Expect(cmd.Flags().Set("temperature", "1.3")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagTemperature})

		Expect(v.GetFloat64("generation.temperature")).To(Equal(1.3))
	})

	It("falls through to config when flag not set", func() {
		data := `[generation]
max_tokens = 42
`
		err := os.WriteFile(filepath.Join(tmpDir, "settings.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		var maxTokens int
		cmd := &cobra.Command{Use: "test"}
		config.AddIntFlag(cmd, config.Flags, config.FlagMaxTokens, &maxTokens)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagMaxTokens})

		Expect(v.GetInt("generation.max_tokens")).To(Equal(42))
	})

	It("finds persistent flags inherited from a parent", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		var backend string
		root := &cobra.Command{Use: "root"}
		config.AddPersistentStringFlag(root, config.Flags, config.FlagBackend, &backend)
		child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
		root.AddCommand(child)

		Expect(root.PersistentFlags().Set("backend", "http://other:5000")).To(Succeed())
		config.BindRegisteredFlags(v, child, config.Flags, []string{config.FlagBackend})

		Expect(v.GetString("backend.target")).To(Equal("http://other:5000"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("backend.target")).To(Equal("http://localhost:5000"))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		var target string
		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &target)

		f := cmd.Flags().Lookup("system-prompt")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("s"))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagSystemPrompt].Description))
		Expect(f.DefValue).To(BeEmpty())
	})

	It("AddIntFlag takes its default from NewDefaultConfig", func() {
		var ctx int
		cmd := &cobra.Command{Use: "test"}
		config.AddIntFlag(cmd, config.Flags, config.FlagCtx, &ctx)

		f := cmd.Flags().Lookup("ctx")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("8192"))
		Expect(ctx).To(Equal(8192))
	})
})
