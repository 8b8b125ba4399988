package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/abhisek/codecoach/internal/llm"
	"github.com/abhisek/codecoach/internal/sse"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) completionRequest(message string) llm.Request {
	req := llm.UserRequest(s.cfg.SystemPrompt, message)
	req.MaxTokens = s.cfg.MaxTokens
	req.Temperature = s.cfg.Temperature
	return req
}

func (s *Server) chat(c echo.Context) error {
	var in chatRequest
	if err := s.bind(c, schemaChat, &in); err != nil {
		return err
	}
	if s.provider == nil {
		return llm.ErrNotConfigured
	}

	ctx := llm.WithPurpose(c.Request().Context(), llm.PurposeChat)
	if s.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ChatTimeout)
		defer cancel()
	}

	resp, err := s.provider.Generate(ctx, s.completionRequest(in.Message))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chatResponse{Reply: resp.Content})
}

// chatStream relays provider deltas as data records, flushing each one,
// and always finishes with the [DONE] record once headers are out.
func (s *Server) chatStream(c echo.Context) error {
	var in chatRequest
	if err := s.bind(c, schemaChat, &in); err != nil {
		return err
	}
	if s.provider == nil {
		return llm.ErrNotConfigured
	}

	ctx := llm.WithPurpose(c.Request().Context(), llm.PurposeChatStream)
	stream, err := s.provider.Stream(ctx, s.completionRequest(in.Message))
	if err != nil {
		return err
	}
	defer stream.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	enc := sse.NewEncoder(res)
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("completion stream ended early", "error", err)
			break
		}
		if err := enc.Delta(delta); err != nil {
			s.logger.Debug("client went away", "error", err)
			return nil
		}
	}
	if err := enc.Done(); err != nil {
		s.logger.Debug("client went away", "error", err)
	}
	return nil
}
