package conversation_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/conversation"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/stream"
)

var params = conversation.Params{MaxTokens: 1500, Temperature: 0.7, TopP: 0.95}

type renders struct {
	mu    sync.Mutex
	calls []string
}

func (r *renders) render(body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, body)
}

func (r *renders) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1]
}

var _ = Describe("Conversation", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Send", func() {
		It("streams a reply, records the turn and saves the session", func() {
			fake := newFakeBackend(replyChunks("Hello ", "world<|METADATA|>", `{"tokens":5,"duration":1.2,"tps":4.1}`))
			conv := conversation.New(fake, conversation.WithInterval(0))
			r := &renders{}

			reply, err := conv.Send(ctx, "  Hi there  ", params, r.render)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.State).To(Equal(stream.Completed))
			Expect(reply.Text).To(Equal("Hello world"))
			Expect(reply.Metadata).To(Equal(&stream.Metadata{Tokens: 5, Duration: 1.2, TPS: 4.1}))
			Expect(r.last()).To(Equal("Hello world"))

			Expect(conv.History()).To(Equal([]backend.Turn{{User: "Hi there", Bot: "Hello world"}}))
			Expect(conv.SessionID()).To(Equal("session-1"))
			Expect(conv.Busy()).To(BeFalse())

			saves := fake.Saves()
			Expect(saves).To(HaveLen(1))
			Expect(saves[0].ID).To(BeEmpty())
			Expect(saves[0].Title).To(Equal("Hi there"))
		})

		It("sends prior turns and generation params with the next message", func() {
			var got []backend.ChatRequest
			var mu sync.Mutex
			fake := newFakeBackend(func(_ context.Context, _ int, req backend.ChatRequest) (io.ReadCloser, error) {
				mu.Lock()
				got = append(got, req)
				mu.Unlock()
				return io.NopCloser(strings.NewReader("ok")), nil
			})
			conv := conversation.New(fake)

			p := conversation.Params{MaxTokens: 64, Temperature: 0, TopP: 0.5, SystemPrompt: "Be terse."}
			_, err := conv.Send(ctx, "one", p, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = conv.Send(ctx, "two", p, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(got).To(HaveLen(2))
			Expect(got[1].Message).To(Equal("two"))
			Expect(got[1].History).To(Equal([]backend.Turn{{User: "one", Bot: "ok"}}))
			Expect(got[1].MaxTokens).To(Equal(64))
			Expect(got[1].Temperature).To(BeZero())
			Expect(got[1].TopP).To(Equal(0.5))
			Expect(got[1].SystemPrompt).To(Equal("Be terse."))

			// The second save reuses the id assigned by the first.
			saves := fake.Saves()
			Expect(saves[1].ID).To(Equal("session-1"))
			Expect(saves[1].History).To(HaveLen(2))
		})

		It("rejects blank messages without calling the backend", func() {
			fake := newFakeBackend(replyChunks("unused"))
			conv := conversation.New(fake)

			_, err := conv.Send(ctx, " \n\t", params, nil)
			Expect(err).To(MatchError(conversation.ErrEmptyMessage))
			Expect(fake.Events()).To(BeEmpty())
		})

		It("leaves the history untouched when the transport fails", func() {
			fake := newFakeBackend(func(context.Context, int, backend.ChatRequest) (io.ReadCloser, error) {
				return nil, &backend.APIError{Status: 400, Message: "Model not loaded"}
			})
			conv := conversation.New(fake)

			reply, err := conv.Send(ctx, "hello", params, nil)
			Expect(stream.IsTransport(err)).To(BeTrue())

			var apiErr *backend.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(reply.State).To(Equal(stream.Failed))

			Expect(conv.History()).To(BeEmpty())
			Expect(fake.Saves()).To(BeEmpty())
		})

		It("fails when the stream breaks mid-reply", func() {
			fake := newFakeBackend(func(context.Context, int, backend.ChatRequest) (io.ReadCloser, error) {
				r, w := io.Pipe()
				go func() {
					_, _ = io.WriteString(w, "partial")
					_ = w.CloseWithError(errors.New("connection reset"))
				}()
				return r, nil
			})
			conv := conversation.New(fake)

			reply, err := conv.Send(ctx, "hello", params, nil)
			Expect(stream.IsTransport(err)).To(BeTrue())
			Expect(reply.Text).To(Equal("partial"))
			Expect(conv.History()).To(BeEmpty())
		})

		It("keeps the turn when saving the session fails", func() {
			fake := newFakeBackend(replyChunks("fine"))
			fake.failSave = true
			conv := conversation.New(fake)

			_, err := conv.Send(ctx, "hello", params, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.History()).To(HaveLen(1))
			Expect(conv.SessionID()).To(BeEmpty())
		})
	})

	Describe("Stop", func() {
		It("ends the reply with the stopped marker and saves it", func() {
			s := newOpenStream()
			fake := newFakeBackend(func(context.Context, int, backend.ChatRequest) (io.ReadCloser, error) {
				return s.r, nil
			})
			conv := conversation.New(fake, conversation.WithInterval(0))
			r := &renders{}

			result := make(chan *conversation.Reply, 1)
			go func() {
				defer GinkgoRecover()
				reply, err := conv.Send(ctx, "tell me a story", params, r.render)
				Expect(err).NotTo(HaveOccurred())
				result <- reply
			}()

			s.write("Once ")
			s.write("upon")
			Eventually(r.last).Should(Equal("Once upon"))
			Expect(conv.Busy()).To(BeTrue())

			conv.Stop()
			conv.Stop()

			var reply *conversation.Reply
			Eventually(result).Should(Receive(&reply))
			Expect(reply.State).To(Equal(stream.Cancelled))
			Expect(reply.Text).To(Equal("Once upon *[Stopped]*"))
			Expect(r.last()).To(Equal("Once upon *[Stopped]*"))

			Expect(conv.History()).To(Equal([]backend.Turn{{User: "tell me a story", Bot: "Once upon *[Stopped]*"}}))
			Expect(fake.Saves()).To(HaveLen(1))
			Expect(conv.Busy()).To(BeFalse())
		})

		It("records a stopped turn when stopped before the backend answers", func() {
			fake := newFakeBackend(func(ctx context.Context, _ int, _ backend.ChatRequest) (io.ReadCloser, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
			conv := conversation.New(fake)

			result := make(chan *conversation.Reply, 1)
			go func() {
				defer GinkgoRecover()
				reply, err := conv.Send(ctx, "hello", params, nil)
				Expect(err).NotTo(HaveOccurred())
				result <- reply
			}()

			Eventually(conv.Busy).Should(BeTrue())
			conv.Stop()

			var reply *conversation.Reply
			Eventually(result).Should(Receive(&reply))
			Expect(reply.State).To(Equal(stream.Cancelled))
			Expect(reply.Text).To(Equal(stream.StoppedMarker))
			Expect(conv.History()).To(Equal([]backend.Turn{{User: "hello", Bot: " *[Stopped]*"}}))
		})

		It("is a no-op when nothing is streaming", func() {
			conv := conversation.New(newFakeBackend(replyChunks("x")))
			Expect(conv.Stop).NotTo(Panic())
			Expect(conv.Busy()).To(BeFalse())
		})
	})

	It("cancels the active reply before issuing the next request", func() {
		first := newOpenStream()
		fake := newFakeBackend(func(_ context.Context, n int, _ backend.ChatRequest) (io.ReadCloser, error) {
			if n == 1 {
				return first.r, nil
			}
			return io.NopCloser(strings.NewReader("second answer")), nil
		})
		conv := conversation.New(fake, conversation.WithInterval(0))
		r := &renders{}

		firstDone := make(chan *conversation.Reply, 1)
		go func() {
			defer GinkgoRecover()
			reply, err := conv.Send(ctx, "first", params, r.render)
			Expect(err).NotTo(HaveOccurred())
			firstDone <- reply
		}()

		first.write("partial")
		Eventually(r.last).Should(Equal("partial"))

		reply, err := conv.Send(ctx, "second", params, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Text).To(Equal("second answer"))

		var stopped *conversation.Reply
		Eventually(firstDone).Should(Receive(&stopped))
		Expect(stopped.State).To(Equal(stream.Cancelled))

		Expect(fake.Events()).To(Equal([]string{"chat:1", "closed:1", "save", "chat:2", "closed:2", "save"}))
		Expect(conv.History()).To(Equal([]backend.Turn{
			{User: "first", Bot: "partial *[Stopped]*"},
			{User: "second", Bot: "second answer"},
		}))
	})

	Describe("Title", func() {
		It("is New Chat before the first message", func() {
			conv := conversation.New(newFakeBackend(replyChunks("x")))
			Expect(conv.Title()).To(Equal("New Chat"))
		})

		It("truncates the first message to 30 characters", func() {
			conv := conversation.New(newFakeBackend(replyChunks("x")))
			_, err := conv.Send(ctx, "What is the airspeed velocity of an unladen swallow?", params, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title()).To(Equal("What is the airspeed velocity ..."))
		})

		It("keeps short first messages whole", func() {
			conv := conversation.New(newFakeBackend(replyChunks("x")))
			_, err := conv.Send(ctx, "Hi", params, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = conv.Send(ctx, "A much longer second question that is ignored", params, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title()).To(Equal("Hi"))
		})
	})

	Describe("sessions", func() {
		It("loads a stored session", func() {
			fake := newFakeBackend(replyChunks("x"))
			fake.sessions["abc"] = &backend.Session{
				ID:      "abc",
				Title:   "Old",
				History: []backend.Turn{{User: "Old question", Bot: "Old answer"}},
			}
			conv := conversation.New(fake)

			Expect(conv.Load(ctx, "abc")).To(Succeed())
			Expect(conv.SessionID()).To(Equal("abc"))
			Expect(conv.History()).To(Equal([]backend.Turn{{User: "Old question", Bot: "Old answer"}}))
			Expect(conv.Title()).To(Equal("Old question"))
		})

		It("keeps the current chat when loading fails", func() {
			conv := conversation.New(newFakeBackend(replyChunks("x")))
			_, err := conv.Send(ctx, "hi", params, nil)
			Expect(err).NotTo(HaveOccurred())

			err = conv.Load(ctx, "missing")
			Expect(errors.Is(err, backend.ErrSessionNotFound)).To(BeTrue())
			Expect(conv.History()).To(HaveLen(1))
		})

		It("stops the active reply before loading", func() {
			s := newOpenStream()
			fake := newFakeBackend(func(context.Context, int, backend.ChatRequest) (io.ReadCloser, error) {
				return s.r, nil
			})
			fake.sessions["abc"] = &backend.Session{ID: "abc"}
			conv := conversation.New(fake, conversation.WithInterval(0))
			r := &renders{}

			go func() {
				defer GinkgoRecover()
				_, _ = conv.Send(ctx, "hi", params, r.render)
			}()
			s.write("streaming")
			Eventually(r.last).Should(Equal("streaming"))

			Expect(conv.Load(ctx, "abc")).To(Succeed())
			Expect(conv.Busy()).To(BeFalse())
			Expect(conv.SessionID()).To(Equal("abc"))
			Expect(conv.History()).To(BeEmpty())
		})

		It("starts a new chat", func() {
			conv := conversation.New(newFakeBackend(replyChunks("x")))
			_, err := conv.Send(ctx, "hi", params, nil)
			Expect(err).NotTo(HaveOccurred())

			conv.NewChat()
			Expect(conv.SessionID()).To(BeEmpty())
			Expect(conv.History()).To(BeEmpty())
			Expect(conv.Title()).To(Equal("New Chat"))
		})

		It("resets when the current session is deleted", func() {
			fake := newFakeBackend(replyChunks("x"))
			conv := conversation.New(fake)
			_, err := conv.Send(ctx, "hi", params, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(conv.Delete(ctx, conv.SessionID())).To(Succeed())
			Expect(conv.SessionID()).To(BeEmpty())
			Expect(conv.History()).To(BeEmpty())
			Expect(fake.Events()).To(ContainElement("delete:session-1"))
		})

		It("keeps the current chat when another session is deleted", func() {
			fake := newFakeBackend(replyChunks("x"))
			fake.sessions["other"] = &backend.Session{ID: "other"}
			conv := conversation.New(fake)
			_, err := conv.Send(ctx, "hi", params, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(conv.Delete(ctx, "other")).To(Succeed())
			Expect(conv.SessionID()).To(Equal("session-1"))
			Expect(conv.History()).To(HaveLen(1))
		})
	})
})
