package backend_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	testutils "github.com/Esca-Byte/ESCA-GGUF/pkg/utils/test"
)

var _ = Describe("Client", func() {
	var (
		fake   *testutils.FakeBackend
		server *httptest.Server
		client *backend.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		fake = testutils.NewFakeBackend()
		server = httptest.NewServer(fake.Handler())
		client = backend.NewClient(server.URL + "/")
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	It("trims the trailing slash of the base URL", func() {
		Expect(client.BaseURL()).To(Equal(server.URL))
	})

	Describe("models", func() {
		It("lists models", func() {
			fake.Models = []string{"a.gguf", "b.gguf"}

			models, err := client.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(Equal([]string{"a.gguf", "b.gguf"}))
		})

		It("loads a model with context and GPU settings", func() {
			fake.Models = []string{"a.gguf"}

			err := client.LoadModel(ctx, backend.LoadModelRequest{Model: "a.gguf", NCtx: 4096, NGPULayers: 20})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.Loaded()).To(Equal("a.gguf"))
			Expect(fake.LoadRequests).To(ConsistOf(backend.LoadModelRequest{Model: "a.gguf", NCtx: 4096, NGPULayers: 20}))
		})

		It("surfaces backend error messages as APIError", func() {
			err := client.LoadModel(ctx, backend.LoadModelRequest{Model: "missing.gguf"})
			Expect(err).To(HaveOccurred())

			var apiErr *backend.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Status).To(Equal(http.StatusNotFound))
			Expect(apiErr.Message).To(Equal("Model file not found"))
			Expect(err.Error()).To(ContainSubstring("loading model missing.gguf"))
		})
	})

	Describe("sessions", func() {
		It("assigns an id on first save and keeps it on update", func() {
			id, err := client.SaveSession(ctx, backend.SaveSessionRequest{
				Title:   "Hi",
				History: []backend.Turn{{User: "Hi", Bot: "Hello"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(uuid.Validate(id)).To(Succeed())

			again, err := client.SaveSession(ctx, backend.SaveSessionRequest{ID: id, Title: "Hi"})
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(id))
			Expect(fake.SessionCount()).To(Equal(1))
		})

		It("fetches a stored session", func() {
			id, err := client.SaveSession(ctx, backend.SaveSessionRequest{
				Title:   "Question",
				History: []backend.Turn{{User: "Question", Bot: "Answer"}},
			})
			Expect(err).NotTo(HaveOccurred())

			session, err := client.GetSession(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.ID).To(Equal(id))
			Expect(session.Title).To(Equal("Question"))
			Expect(session.History).To(Equal([]backend.Turn{{User: "Question", Bot: "Answer"}}))
		})

		It("lists sessions newest first", func() {
			first, err := client.SaveSession(ctx, backend.SaveSessionRequest{Title: "first"})
			Expect(err).NotTo(HaveOccurred())
			second, err := client.SaveSession(ctx, backend.SaveSessionRequest{Title: "second"})
			Expect(err).NotTo(HaveOccurred())

			summaries, err := client.ListSessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(HaveLen(2))
			Expect(summaries[0].ID).To(Equal(second))
			Expect(summaries[1].ID).To(Equal(first))
			Expect(summaries[0].Updated().After(summaries[1].Updated())).To(BeTrue())
		})

		It("wraps ErrSessionNotFound for missing sessions", func() {
			_, err := client.GetSession(ctx, "nope")
			Expect(errors.Is(err, backend.ErrSessionNotFound)).To(BeTrue())

			var apiErr *backend.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Message).To(Equal("Session not found"))

			err = client.DeleteSession(ctx, "nope")
			Expect(errors.Is(err, backend.ErrSessionNotFound)).To(BeTrue())
		})

		It("deletes sessions", func() {
			id, err := client.SaveSession(ctx, backend.SaveSessionRequest{Title: "bye"})
			Expect(err).NotTo(HaveOccurred())

			Expect(client.DeleteSession(ctx, id)).To(Succeed())
			Expect(fake.SessionCount()).To(BeZero())
		})
	})

	Describe("downloads", func() {
		It("starts a download and reports progress", func() {
			fake.ProgressSteps = []backend.DownloadStatus{{Downloading: true, Progress: 40}}

			name, err := client.StartDownload(ctx, "https://example.com/m/tiny.gguf")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("tiny.gguf"))

			status, err := client.DownloadProgress(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(&backend.DownloadStatus{Downloading: true, Progress: 40, Filename: "tiny.gguf"}))
		})

		It("rejects a second download while one is running", func() {
			_, err := client.StartDownload(ctx, "https://example.com/a.gguf")
			Expect(err).NotTo(HaveOccurred())

			_, err = client.StartDownload(ctx, "https://example.com/b.gguf")
			var apiErr *backend.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Message).To(Equal("Download in progress"))
		})
	})

	Describe("Chat", func() {
		It("returns the reply stream", func() {
			fake.Reply = []string{"Hello ", "world<|METADATA|>", `{"tokens":5,"duration":1.2,"tps":4.1}`}

			body, err := client.Chat(ctx, backend.ChatRequest{
				Message:     "hi",
				MaxTokens:   100,
				Temperature: 0,
				TopP:        0.9,
			})
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			data, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(`Hello world<|METADATA|>{"tokens":5,"duration":1.2,"tps":4.1}`))

			Expect(fake.ChatRequests).To(HaveLen(1))
			Expect(fake.ChatRequests[0].Message).To(Equal("hi"))
			Expect(fake.ChatRequests[0].History).To(BeEmpty())
			Expect(fake.ChatRequests[0].TopP).To(Equal(0.9))
		})

		It("fails before streaming on a non-2xx status", func() {
			fake.FailChat = true

			body, err := client.Chat(ctx, backend.ChatRequest{Message: "hi"})
			Expect(body).To(BeNil())

			var apiErr *backend.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Status).To(Equal(http.StatusBadRequest))
			Expect(apiErr.Message).To(Equal("Model not loaded"))
		})
	})

	It("sends a request id with every request", func() {
		_, err := client.ListModels(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = client.ListSessions(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(fake.RequestIDs).To(HaveLen(2))
		Expect(fake.RequestIDs[0]).NotTo(Equal(fake.RequestIDs[1]))
		for _, id := range fake.RequestIDs {
			Expect(uuid.Validate(id)).To(Succeed())
		}
	})
})

var _ = Describe("Client timeouts", func() {
	It("bounds JSON calls but not the chat stream", func() {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/chat" {
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-release
				_, _ = io.WriteString(w, "late")
				return
			}
			<-release
		}))
		defer server.Close()
		defer close(release)

		client := backend.NewClient(server.URL, backend.WithTimeout(50*time.Millisecond))

		_, err := client.ListModels(context.Background())
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())

		body, err := client.Chat(context.Background(), backend.ChatRequest{Message: "hi"})
		Expect(err).NotTo(HaveOccurred())
		body.Close()
	})
})

var _ = Describe("APIError", func() {
	It("formats with and without a message", func() {
		Expect((&backend.APIError{Status: 500}).Error()).To(Equal("backend returned status 500"))
		Expect((&backend.APIError{Status: 400, Message: "bad"}).Error()).To(Equal("backend returned status 400: bad"))
	})
})

var _ = Describe("SessionSummary", func() {
	It("parses backend timestamps", func() {
		s := backend.SessionSummary{UpdatedAt: "2026-03-04T05:06:07.123456"}
		Expect(s.Updated()).To(Equal(time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)))

		Expect(backend.SessionSummary{UpdatedAt: "garbage"}.Updated().IsZero()).To(BeTrue())
	})
})
