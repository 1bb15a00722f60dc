package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/minios-linux/tskit/provider"
	"github.com/minios-linux/tskit/session"
	"github.com/minios-linux/tskit/translate"
	"github.com/minios-linux/tskit/tsfile"
)

const msgNoCatalog = "No catalog loaded"

type catalogResponse struct {
	Path           string                  `json:"path"`
	Version        string                  `json:"version"`
	Language       string                  `json:"language"`
	SourceLanguage string                  `json:"source_language,omitempty"`
	Dirty          bool                    `json:"dirty"`
	Stats          tsfile.Stats            `json:"stats"`
	Contexts       []tsfile.ContextSummary `json:"contexts"`
}

type entryItem struct {
	Index       int      `json:"index"`
	Context     string   `json:"context"`
	Source      string   `json:"source"`
	Translation string   `json:"translation"`
	State       string   `json:"state"`
	Comments    []string `json:"comments,omitempty"`
	Locations   []string `json:"locations,omitempty"`
}

type updateEntryRequest struct {
	Context     string  `json:"context"`
	Source      string  `json:"source"`
	Translation *string `json:"translation"`
	State       *string `json:"state"`
}

type translateRequest struct {
	Text string `json:"text"`
}

type providerItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	Configured bool   `json:"configured"`
}

func toEntryItem(i int, e tsfile.Entry) entryItem {
	return entryItem{
		Index:       i,
		Context:     e.Context,
		Source:      e.Source,
		Translation: e.Translation,
		State:       e.State.String(),
		Comments:    e.Comments,
		Locations:   e.Locations,
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service":  "tskit",
		"provider": s.tr.ActiveProvider(),
		"loaded":   s.sess.Catalog() != nil,
	})
}

func (s *Server) handleCatalog(c echo.Context) error {
	cat := s.sess.Catalog()
	if cat == nil {
		return notFound(c, msgNoCatalog)
	}
	return success(c, catalogResponse{
		Path:           s.sess.Path(),
		Version:        cat.Version(),
		Language:       cat.Language(),
		SourceLanguage: cat.SourceLanguage(),
		Dirty:          s.sess.Dirty(),
		Stats:          cat.Statistics(),
		Contexts:       cat.Contexts(),
	})
}

func (s *Server) handleEntries(c echo.Context) error {
	cat := s.sess.Catalog()
	if cat == nil {
		return notFound(c, msgNoCatalog)
	}

	filter := strings.ToLower(strings.TrimSpace(c.QueryParam("filter")))
	var indices []int
	switch filter {
	case "", "all":
		indices = make([]int, cat.Len())
		for i := range indices {
			indices[i] = i
		}
	case "untranslated":
		indices = cat.Untranslated()
	case "review":
		indices = cat.NeedsReview()
	default:
		return invalid(c, map[string]string{"filter": "must be one of all, untranslated, review"})
	}

	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		indices = intersect(indices, cat.Search(q, true, true))
	}
	ctxName := c.QueryParam("context")

	entries := cat.Entries()
	items := make([]entryItem, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(entries) {
			continue
		}
		if ctxName != "" && entries[i].Context != ctxName {
			continue
		}
		items = append(items, toEntryItem(i, entries[i]))
	}
	return success(c, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (s *Server) handleEntry(c echo.Context) error {
	cat := s.sess.Catalog()
	if cat == nil {
		return notFound(c, msgNoCatalog)
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return invalid(c, map[string]string{"index": "must be a non-negative integer"})
	}
	e := cat.EntryAt(index)
	if e.IsZero() {
		return notFound(c, "Entry not found")
	}
	return success(c, toEntryItem(index, e))
}

func (s *Server) handleUpdateEntry(c echo.Context) error {
	cat := s.sess.Catalog()
	if cat == nil {
		return notFound(c, msgNoCatalog)
	}

	var req updateEntryRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid JSON body", nil)
	}
	fieldErrors := map[string]string{}
	if req.Source == "" {
		fieldErrors["source"] = "is required"
	}
	var state tsfile.State
	if req.State != nil {
		switch *req.State {
		case "finished", "unfinished", "vanished", "obsolete":
			state = tsfile.ParseState(*req.State)
		default:
			fieldErrors["state"] = "must be one of finished, unfinished, vanished, obsolete"
		}
	}
	if req.Translation == nil && req.State == nil {
		fieldErrors["translation"] = "translation or state is required"
	}
	if len(fieldErrors) > 0 {
		return invalid(c, fieldErrors)
	}

	if cat.Find(req.Context, req.Source).IsZero() {
		return notFound(c, "Entry not found")
	}
	if req.Translation != nil {
		cat.UpdateTranslation(req.Context, req.Source, *req.Translation)
	}
	if req.State != nil {
		cat.UpdateState(req.Context, req.Source, state)
	}

	e := cat.Find(req.Context, req.Source)
	return success(c, toEntryItem(indexOf(cat, req.Context, req.Source), e))
}

func (s *Server) handleTranslate(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid JSON body", nil)
	}
	if req.Text == "" {
		return invalid(c, map[string]string{"text": "is required"})
	}

	translated, err := s.tr.Translate(c.Request().Context(), req.Text)
	if err != nil {
		return s.translationError(c, err)
	}
	return success(c, map[string]string{
		"original":   req.Text,
		"translated": translated,
	})
}

func (s *Server) handleBatchStatus(c echo.Context) error {
	return success(c, s.tr.BatchStatus())
}

func (s *Server) handleBatchStart(c echo.Context) error {
	if s.sess.Catalog() == nil {
		return notFound(c, msgNoCatalog)
	}
	// The batch outlives the request.
	n, err := s.sess.TranslateUntranslated(context.WithoutCancel(c.Request().Context()))
	if err != nil {
		if errors.Is(err, translate.ErrBatchRunning) {
			return fail(c, http.StatusConflict, "A batch translation is already running", nil)
		}
		return s.translationError(c, err)
	}
	return accepted(c, map[string]any{
		"submitted": n,
		"status":    s.tr.BatchStatus(),
	})
}

func (s *Server) handleBatchCancel(c echo.Context) error {
	return success(c, map[string]bool{"canceled": s.tr.CancelBatch()})
}

func (s *Server) handleSave(c echo.Context) error {
	if err := s.sess.Save(); err != nil {
		if errors.Is(err, session.ErrNoCatalog) {
			return notFound(c, msgNoCatalog)
		}
		s.logger.Error().Err(err).Str("path", s.sess.Path()).Msg("save failed")
		return internalError(c, "Failed to save catalog")
	}
	return success(c, map[string]string{"path": s.sess.Path()})
}

func (s *Server) handleProviders(c echo.Context) error {
	active := s.tr.ActiveProvider()
	ids := s.tr.SupportedProviders()
	items := make([]providerItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, providerItem{
			ID:         id,
			Name:       s.tr.ProviderDisplayName(id),
			Active:     id == active,
			Configured: s.tr.Config(id).Credential != "",
		})
	}
	return success(c, map[string]any{"items": items})
}

// translationError maps the provider error taxonomy to HTTP responses.
func (s *Server) translationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, provider.ErrConfig):
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	case isUpstream(err):
		s.logger.Warn().Err(err).Msg("provider request failed")
		return upstreamError(c, err)
	}
	s.logger.Error().Err(err).Msg("translation failed")
	return internalError(c, "Translation failed")
}

func intersect(a, b []int) []int {
	in := make(map[int]bool, len(b))
	for _, i := range b {
		in[i] = true
	}
	out := a[:0:0]
	for _, i := range a {
		if in[i] {
			out = append(out, i)
		}
	}
	return out
}

func indexOf(cat *tsfile.Catalog, ctxName, source string) int {
	for i, e := range cat.Entries() {
		if e.Context == ctxName && e.Source == source {
			return i
		}
	}
	return -1
}
