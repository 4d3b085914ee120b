package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ytgrab/backend"
)

const AppVersion = "0.3.0"

type urlRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit,omitempty"`
}

func parseURLRequest(c *fiber.Ctx) (urlRequest, error) {
	var req urlRequest
	if err := c.BodyParser(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := backend.ValidateMediaURL(req.URL); err != nil {
		return req, fmt.Errorf("invalid URL: %w", err)
	}
	return req, nil
}

// Health check
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": AppVersion,
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.status == nil {
		return c.Status(503).JSON(fiber.Map{"error": "Status checks unavailable"})
	}
	return c.JSON(fiber.Map{"tools": s.status.Check(c.UserContext())})
}

// ============== URL Handlers ==============

func (s *Server) handleClassify(c *fiber.Ctx) error {
	req, err := parseURLRequest(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	kind, matched := backend.MatchKind(req.URL)
	if !matched && s.classifier != nil {
		kind = s.classifier.Classify(c.UserContext(), req.URL)
	}
	return c.JSON(fiber.Map{"url": req.URL, "kind": kind, "probed": !matched})
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	req, err := parseURLRequest(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if s.analyzer == nil {
		return c.Status(503).JSON(fiber.Map{"error": "Analyzer unavailable"})
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.PlaylistLimit
	}

	analysis, err := s.analyzer.Analyze(c.UserContext(), req.URL, limit)
	if err != nil {
		status := 502
		if errors.Is(err, backend.ErrClassificationIndeterminate) || errors.Is(err, backend.ErrPlaylistNotFound) {
			status = 422
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(analysis)
}

// ============== Queue Handlers ==============

func (s *Server) handleGetQueue(c *fiber.Ctx) error {
	return c.JSON(s.queue.GetQueue())
}

func (s *Server) handleAddToQueue(c *fiber.Ctx) error {
	var req backend.QueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	id, err := s.queue.Add(req)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"id": id})
}

func (s *Server) handleGetQueueEntry(c *fiber.Ctx) error {
	entry := s.queue.GetEntry(c.Params("id"))
	if entry == nil {
		return c.Status(404).JSON(fiber.Map{"error": "Item not found"})
	}
	return c.JSON(entry)
}

func (s *Server) handleRemoveFromQueue(c *fiber.Ctx) error {
	if err := s.queue.Remove(c.Params("id")); err != nil {
		return c.Status(queueErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleMoveQueueEntry(c *fiber.Ctx) error {
	id := c.Params("id")
	var body struct {
		NewPosition int `json:"newPosition"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := s.queue.Move(id, body.NewPosition); err != nil {
		return c.Status(queueErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleMoveUp(c *fiber.Ctx) error {
	if err := s.queue.MoveUp(c.Params("id")); err != nil {
		return c.Status(queueErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleMoveDown(c *fiber.Ctx) error {
	if err := s.queue.MoveDown(c.Params("id")); err != nil {
		return c.Status(queueErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func queueErrorStatus(err error) int {
	if errors.Is(err, backend.ErrEntryNotFound) {
		return 404
	}
	return 400
}

func (s *Server) handleGetQueueStats(c *fiber.Ctx) error {
	return c.JSON(s.queue.Stats())
}

func (s *Server) handleClearFinished(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cleared": s.queue.ClearFinished()})
}

func (s *Server) handleRetryFailed(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"retried": s.queue.RetryFailed()})
}

// ============== History Handlers ==============

func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	if s.history == nil {
		return c.JSON([]backend.HistoryEntry{})
	}

	var entries []backend.HistoryEntry
	switch {
	case c.Query("q") != "":
		entries = s.history.Search(c.Query("q"))
	case c.Query("status") != "":
		entries = s.history.FilterByStatus(c.Query("status"))
	default:
		entries = s.history.GetRecent(c.QueryInt("limit", -1))
	}
	if entries == nil {
		entries = []backend.HistoryEntry{}
	}
	return c.JSON(entries)
}

func (s *Server) handleGetHistoryStats(c *fiber.Ctx) error {
	if s.history == nil {
		return c.JSON(backend.HistoryStats{})
	}
	return c.JSON(s.history.GetStats())
}
