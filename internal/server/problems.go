package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/abhisek/codecoach/internal/problem"
)

type createResponse struct {
	ID string `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type reorderRequest struct {
	Problems []problem.RankUpdate `json:"problems"`
}

type reorderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type patchRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	SolutionCode *string `json:"solution_code"`
	Order        *int    `json:"order"`
}

func (s *Server) listProblems(c echo.Context) error {
	list, err := s.problems.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createProblem(c echo.Context) error {
	var in problem.CreateInput
	if err := s.bind(c, schemaProblemCreate, &in); err != nil {
		return err
	}

	p, err := s.problems.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, createResponse{ID: p.ID})
}

func (s *Server) getProblem(c echo.Context) error {
	p, err := s.problems.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) updateProblem(c echo.Context) error {
	var in patchRequest
	if err := s.bind(c, schemaProblemPatch, &in); err != nil {
		return err
	}

	patch := problem.Patch{
		Title:        in.Title,
		Description:  in.Description,
		SolutionCode: in.SolutionCode,
		Order:        in.Order,
	}
	if err := s.problems.Update(c.Request().Context(), c.Param("id"), patch); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Updated successfully"})
}

func (s *Server) deleteProblem(c echo.Context) error {
	if err := s.problems.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Deleted successfully"})
}

func (s *Server) reorderProblems(c echo.Context) error {
	var in reorderRequest
	if err := s.bind(c, schemaReorder, &in); err != nil {
		return err
	}

	err := s.problems.Reorder(c.Request().Context(), in.Problems)
	switch {
	case errors.Is(err, problem.ErrNotFound):
		return c.JSON(http.StatusNotFound, reorderResponse{Message: "Failed to update order: problem not found"})
	case err != nil:
		s.logger.Error("reorder failed", "count", len(in.Problems), "error", err)
		return c.JSON(http.StatusInternalServerError, reorderResponse{Message: "Failed to update order"})
	}
	return c.JSON(http.StatusOK, reorderResponse{Success: true, Message: "Order updated successfully"})
}
