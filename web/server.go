package web

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sweetpotato0/reasonchain/chain"
	"github.com/sweetpotato0/reasonchain/session"
	"github.com/valyala/fasthttp"
)

//go:embed index.html
var indexHTML string

// Examples are the canned prompts offered by the chat widget.
var Examples = []string{
	"How many r's are in strawberry",
	"Which is greater 9.11 or 9.9",
	"Best way to learn Rust in 2024?",
}

// Config holds server configuration.
type Config struct {
	Listen string
}

// Server exposes the chat widget and its JSON/SSE API.
type Server struct {
	config Config
	orch   *chain.Orchestrator
	sess   *session.Session
	logger *slog.Logger
	app    *fiber.App
}

// chatRequest is the POST /chat body. The key fields are the UI-supplied
// values; environment keys take precedence over them.
type chatRequest struct {
	Message        string `json:"message"`
	DeepSeekKey    string `json:"deepseek_key"`
	SynthesizerKey string `json:"groq_key"`
}

// NewServer creates the API server. The session is injected so its trace
// history is owned by the caller, not by the server.
func NewServer(config Config, orch *chain.Orchestrator, sess *session.Session, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		orch:   orch,
		sess:   sess,
		logger: logger,
		app:    app,
	}

	app.Get("/", s.handleIndex)
	app.Get("/ping", s.handlePing)
	app.Get("/examples", s.handleExamples)
	app.Get("/reasoning", s.handleReasoning)
	app.Post("/chat", s.handleChat)

	return s
}

// App exposes the fiber app; mainly useful for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting server", "listen", s.config.Listen)
	return s.app.Listen(s.config.Listen)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(indexHTML)
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleExamples(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"examples": Examples})
}

func (s *Server) handleReasoning(c *fiber.Ctx) error {
	reasoning, err := s.sess.LastTrace(c.UserContext())
	if err != nil {
		s.logger.Error("reading last trace", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read reasoning history",
		})
	}
	return c.JSON(fiber.Map{"reasoning": reasoning})
}

// handleChat runs one turn and streams answer snapshots as server-sent
// events. Every event carries the full accumulated answer so far; the stream
// ends with a literal [DONE] sentinel. Error turns deliver the human-readable
// message as a normal snapshot.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message cannot be empty",
		})
	}

	turn := s.orch.NewTurn(s.sess, &chain.TurnRequest{
		Message:        req.Message,
		ReasonerKey:    req.DeepSeekKey,
		SynthesizerKey: req.SynthesizerKey,
	})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The stream writer runs after this handler returns; only values
	// captured here may be used inside it.
	logger := s.logger
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for snapshot := range turn.Run(context.Background()) {
			data, err := json.Marshal(fiber.Map{
				"role":    snapshot.Role,
				"content": snapshot.Content,
			})
			if err != nil {
				logger.Error("encoding snapshot", "error", err)
				break
			}
			if _, err := w.WriteString("data: " + string(data) + "\n\n"); err != nil {
				// Client went away; stopping the loop cancels the turn.
				break
			}
			if err := w.Flush(); err != nil {
				break
			}
		}
		w.WriteString("data: [DONE]\n\n")
		w.Flush()
	}))

	return nil
}
