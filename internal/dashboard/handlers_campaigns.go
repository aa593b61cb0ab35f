package dashboard

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/campaign"
	"github.com/zulandar/testyard/internal/models"
)

// occurrenceParam parses the ":occurrence" path parameter.
func occurrenceParam(c *gin.Context) (int, error) {
	occ, err := strconv.Atoi(c.Param("occurrence"))
	if err != nil || occ <= 0 {
		return 0, fmt.Errorf("dashboard: occurrence %q: %w", c.Param("occurrence"), apperr.ErrMalformedInput)
	}
	return occ, nil
}

// campaignItem is a campaign row with its version name.
type campaignItem struct {
	models.Campaign
	Version string `json:"version"`
}

func newCampaignItem(c models.Campaign) campaignItem {
	return campaignItem{Campaign: c, Version: c.Version.Version}
}

func handleListCampaigns(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		campaigns, err := campaign.List(s.DB.WithContext(c.Request.Context()), p, c.Query("version"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		items := make([]campaignItem, 0, len(campaigns))
		for _, cp := range campaigns {
			items = append(items, newCampaignItem(cp))
		}
		c.JSON(http.StatusOK, items)
	}
}

func handleCreateCampaign(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		var body struct {
			Version     string `json:"version" binding:"required"`
			Description string `json:"description"`
			Status      string `json:"status"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		ctx := c.Request.Context()
		created, err := campaign.Create(s.DB.WithContext(ctx), p, body.Version, campaign.CreateOpts{
			Description: body.Description,
			Status:      body.Status,
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		view, err := campaign.GetView(ctx, s.DB, p, body.Version, created.Occurrence)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func handleGetCampaign(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		occ, err := occurrenceParam(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		view, err := campaign.GetView(c.Request.Context(), s.DB, p, c.Param("version"), occ)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// scenarioSelect names scenarios of one feature to attach to a ticket.
type scenarioSelect struct {
	Epic        string   `json:"epic"`
	FeatureName string   `json:"feature_name"`
	ScenarioIDs []string `json:"scenario_ids"`
}

func handleFillCampaign(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		occ, err := occurrenceParam(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		var body struct {
			TicketReference string          `json:"ticket_reference" binding:"required"`
			Scenarios       *scenarioSelect `json:"scenarios"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		opts := campaign.FillOpts{TicketReference: body.TicketReference}
		if sel := body.Scenarios; sel != nil {
			opts.Epic, opts.Feature, opts.ScenarioIDs = sel.Epic, sel.FeatureName, sel.ScenarioIDs
		}
		res, err := campaign.Fill(s.DB.WithContext(c.Request.Context()), p, c.Param("version"), occ, opts)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"inserted": res.Inserted,
			"raw_data": gin.H{"not_found_scenario": res.NotFound},
		})
	}
}

func handlePatchCampaign(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		occ, err := occurrenceParam(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		var body struct {
			Status      *string `json:"status"`
			Description *string `json:"description"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		updated, err := campaign.Update(s.DB.WithContext(c.Request.Context()), p, c.Param("version"), occ, campaign.UpdateOpts{
			Status:      body.Status,
			Description: body.Description,
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, newCampaignItem(*updated))
	}
}

func handleExecutionStatus(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		occ, err := occurrenceParam(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		scenario, err := strconv.ParseUint(c.Param("scenario"), 10, 64)
		if err != nil {
			s.renderError(c, fmt.Errorf("dashboard: scenario %q: %w", c.Param("scenario"), apperr.ErrMalformedInput))
			return
		}
		newStatus := c.Query("new_status")
		if newStatus == "" {
			s.renderError(c, fmt.Errorf("dashboard: new_status is required: %w", apperr.ErrMissingField))
			return
		}
		got, err := campaign.SetExecutionStatus(s.DB.WithContext(c.Request.Context()), p,
			c.Param("version"), occ, c.Param("reference"), uint(scenario), newStatus)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": got})
	}
}
