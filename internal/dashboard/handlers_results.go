package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/project"
	"github.com/zulandar/testyard/internal/results"
)

// importOpts reads the form fields of a results upload.
func importOpts(c *gin.Context) (results.ImportOpts, error) {
	opts := results.ImportOpts{Version: c.PostForm("version")}
	if opts.Version == "" {
		return opts, fmt.Errorf("dashboard: version is required: %w", apperr.ErrMissingField)
	}
	runDate, err := results.ParseRunDate(c.PostForm("result_date"))
	if err != nil {
		return opts, err
	}
	opts.RunDate = runDate

	if raw := c.PostForm("is_partial"); raw != "" {
		opts.IsPartial, err = strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("dashboard: is_partial %q: %w", raw, apperr.ErrMalformedInput)
		}
	}
	if raw := c.PostForm("campaign_occurrence"); raw != "" {
		occ, err := strconv.Atoi(raw)
		if err != nil || occ <= 0 {
			return opts, fmt.Errorf("dashboard: campaign_occurrence %q: %w", raw, apperr.ErrMalformedInput)
		}
		opts.CampaignOccurrence = &occ
	}
	return opts, nil
}

func handleResultsUpload(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		opts, err := importOpts(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		ctx := c.Request.Context()
		if _, err := results.Check(s.DB.WithContext(ctx), p, opts); err != nil {
			s.renderError(c, err)
			return
		}

		f, err := openUpload(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		defer f.Close()
		rows, err := results.ParseCSV(f)
		if err != nil {
			s.renderError(c, err)
			return
		}

		campaignID := ""
		if opts.CampaignOccurrence != nil {
			campaignID = strconv.Itoa(*opts.CampaignOccurrence)
		}
		key, err := s.Board.Start(ctx, p.Alias, opts.Version, campaignID, opts.IsPartial)
		if err != nil {
			s.renderError(c, err)
			return
		}
		err = s.dispatch(ctx, importJob{
			kind:    "results",
			project: p.Alias,
			version: opts.Version,
			key:     key,
			run: func(ctx context.Context) (fmt.Stringer, error) {
				return results.Ingest(ctx, s.DB, s.Logger, p, opts, rows)
			},
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.Header(statusKeyHeader, key)
		c.Status(http.StatusNoContent)
	}
}

func handleQueryResults(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		opts := results.QueryOpts{
			Category:  c.DefaultQuery("category", results.CategoryScenarios),
			Rendering: c.DefaultQuery("rendering", results.RenderingStacked),
		}
		if version := c.Query("version"); version != "" {
			v, err := project.GetVersion(s.DB.WithContext(ctx), p, version)
			if err != nil {
				s.renderError(c, err)
				return
			}
			opts.VersionID = v.ID
		}
		accept := c.DefaultQuery("accept", results.FormatJSON)
		if !slices.Contains(results.Formats, accept) {
			s.renderError(c, fmt.Errorf("dashboard: accept %q: %w", accept, apperr.ErrIncorrectFieldsRequest))
			return
		}

		rep, err := results.Query(ctx, s.DB, p, opts)
		if err != nil {
			s.renderError(c, err)
			return
		}

		switch accept {
		case results.FormatCSV:
			c.Header("Content-Type", "text/csv; charset=utf-8")
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s-%s.csv", p.Alias, opts.Category, opts.Rendering))
			c.Status(http.StatusOK)
			if err := rep.WriteCSV(c.Writer); err != nil {
				s.Logger.Error("write csv report", "project", p.Alias, "error", err)
			}
		case results.FormatHTML:
			c.Header("Content-Type", "text/html; charset=utf-8")
			c.Status(http.StatusOK)
			if err := rep.WriteHTML(c.Writer); err != nil {
				s.Logger.Error("write html report", "project", p.Alias, "error", err)
			}
		default:
			c.JSON(http.StatusOK, rep.Value())
		}
	}
}
