package api

import (
	"net/http"
	"strconv"

	"golopo/domain/core"
	"golopo/internal/errors"
	"golopo/internal/report"
	"golopo/ports"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

// RunHandler handles stored run requests
type RunHandler struct {
	reader ports.RunReader
}

// NewRunHandler creates a new run handler
func NewRunHandler(reader ports.RunReader) *RunHandler {
	return &RunHandler{reader: reader}
}

// ListRuns returns run summaries, newest first.
// Query: limit (default 50), offset, fingerprint.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errors.CodeValidationError})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errors.CodeValidationError})
		return
	}

	runs, err := h.reader.ListRuns(c.Request.Context(), ports.RunFilters{
		Fingerprint: core.Hash(c.Query("fingerprint")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns the manifest and the full aggregate
func (h *RunHandler) GetRun(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	manifest, agg, err := h.reader.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": manifest, "aggregate": agg})
}

// GetCells returns the per-cell summary and the best cell, if any
func (h *RunHandler) GetCells(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	_, agg, err := h.reader.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	cells, err := report.Summarize(agg)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"run_id": runID.String(), "cells": cells}
	if best, found := report.Best(cells); found {
		body["best"] = best
	}
	c.JSON(http.StatusOK, body)
}

// GetReport renders the run report. Query: format=markdown|html.
func (h *RunHandler) GetReport(c *gin.Context) {
	format := c.DefaultQuery("format", "markdown")
	if format != "markdown" && format != "html" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be markdown or html", "code": errors.CodeValidationError})
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	manifest, agg, err := h.reader.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	md, err := report.Markdown(manifest, agg)
	if err != nil {
		respondError(c, err)
		return
	}

	if format == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(md))
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

func runIDParam(c *gin.Context) (core.RunID, bool) {
	runID, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errors.CodeValidationError})
		return "", false
	}
	return runID, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(errors.CodeValidationError, key+" must be a non-negative integer")
	}
	return v, nil
}

// respondError maps the error code onto an HTTP status
func respondError(c *gin.Context, err error) {
	code := errors.Classify(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeValidationError:
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
