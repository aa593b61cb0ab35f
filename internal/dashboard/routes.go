package dashboard

import (
	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/metrics"
)

// registerRoutes sets up every API route on the gin router.
func registerRoutes(router *gin.Engine, s *Server) {
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api/v1")

	session := auth.Require(s.Auth, s.Projects)
	admin := auth.Require(s.Auth, s.Projects, auth.RightAdmin)
	member := auth.Require(s.Auth, s.Projects, auth.AnyRight...)

	api.POST("/token", handleLogin(s))
	api.DELETE("/token", session, handleLogout(s))

	api.GET("/status", session, handleStatus(s))
	api.GET("/status/events", session, handleStatusEvents(s))

	settings := api.Group("/settings")
	settings.GET("/projects", session, handleListProjects(s))
	settings.POST("/projects", admin, handleCreateProject(s))
	settings.POST("/users", admin, handleCreateUser(s))
	settings.PUT("/users/:username/scopes", admin, handleSetScope(s))

	p := api.Group("/projects/:project")

	p.GET("/versions", member, handleListVersions(s))
	p.POST("/versions", admin, handleCreateVersion(s))
	p.GET("/versions/:version", member, handleGetVersion(s))
	p.PUT("/versions/:version", member, handleUpdateVersion(s))

	p.GET("/versions/:version/tickets", member, handleListTickets(s))
	p.POST("/versions/:version/tickets", admin, handleCreateTicket(s))
	p.POST("/versions/:version/tickets/", admin, handleCreateTicket(s))
	p.GET("/versions/:version/tickets/:reference", member, handleGetTicket(s))
	p.PUT("/versions/:version/tickets/:reference", member, handleUpdateTicket(s))

	p.POST("/repository", member, handleRepositoryUpload(s))
	p.GET("/epics", member, handleListEpics(s))
	p.GET("/epics/:epic/features", member, handleListFeatures(s))
	p.GET("/epics/:epic/features/:feature/scenarios", member, handleListScenarios(s))
	p.DELETE("/epics/:epic/features/:feature/scenarios/:scenario", admin, handleDeleteScenario(s))

	p.GET("/campaigns", member, handleListCampaigns(s))
	p.POST("/campaigns", admin, handleCreateCampaign(s))
	p.GET("/campaigns/:version/:occurrence", member, handleGetCampaign(s))
	p.PUT("/campaigns/:version/:occurrence", admin, handleFillCampaign(s))
	p.PATCH("/campaigns/:version/:occurrence", admin, handlePatchCampaign(s))
	p.PUT("/campaigns/:version/:occurrence/tickets/:reference/scenarios/:scenario/status", member, handleExecutionStatus(s))

	p.POST("/testResults", member, handleResultsUpload(s))
	p.GET("/testResults", member, handleQueryResults(s))

	p.GET("/bugs", member, handleListBugs(s))
	p.POST("/bugs", member, handleCreateBug(s))
	p.GET("/bugs/:id", member, handleGetBug(s))
	p.PUT("/bugs/:id", member, handleUpdateBug(s))
}
