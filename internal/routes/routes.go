package routes

import (
	"github.com/gin-gonic/gin"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/handlers"
	"recordsdesk/internal/middleware"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth           *handlers.AuthHandler
	Requests       *handlers.RequestHandler
	Communications *handlers.CommunicationHandler
	Tasks          *handlers.TaskHandler
	Crowdfunds     *handlers.CrowdfundHandler
	Integrations   *handlers.IntegrationsHandler // nil when Telegram is off
}

type Options struct {
	JWTSecret     []byte
	DeliveryToken string
}

func SetupRoutes(r *gin.Engine, h Handlers, opt Options) *gin.Engine {
	// ---- public
	r.POST("/login", h.Auth.Login)
	r.POST("/delivery/events", middleware.RequireSharedToken(opt.DeliveryToken), h.Communications.DeliveryEvent)
	if h.Integrations != nil {
		r.POST("/integrations/telegram/webhook", h.Integrations.Webhook)
	}

	// ---- anonymous allowed; access keys and public requests
	open := r.Group("/", middleware.OptionalAuth(opt.JWTSecret))
	{
		open.GET("/requests", h.Requests.List)
		open.GET("/requests/:id", h.Requests.Get)
		open.GET("/crowdfunds/:id", h.Crowdfunds.Get)
		open.POST("/crowdfunds/:id/contribute", h.Crowdfunds.Contribute)
	}

	// ---- protected
	auth := r.Group("/", middleware.AuthMiddleware(opt.JWTSecret))

	auth.GET("/me", h.Auth.Me)

	users := auth.Group("/users")
	{
		users.POST("", h.Auth.CreateUser)
		users.POST("/:user_id/entitlements", h.Auth.Grant)
	}

	reqs := auth.Group("/requests")
	{
		reqs.POST("", h.Requests.Create)
		reqs.POST("/submit", h.Requests.SubmitMulti)
		reqs.PATCH("/:id", h.Requests.UpdateDraft)
		reqs.DELETE("/:id", h.Requests.Delete)
		reqs.POST("/:id/clone", h.Requests.Clone)
		reqs.POST("/:id/submit", h.Requests.Submit)
		reqs.POST("/:id/status", h.Requests.ChangeStatus)
		reqs.POST("/:id/agency-reply", h.Requests.AgencyReply)
		reqs.POST("/:id/follow-up", h.Requests.FollowUp)
		reqs.POST("/:id/thanks", h.Requests.Thank)
		reqs.POST("/:id/appeal", h.Requests.Appeal)
		reqs.POST("/:id/flag", h.Requests.Flag)
		reqs.POST("/:id/notes", h.Requests.AddNote)
		reqs.PUT("/:id/agency", h.Requests.UpdatePendingAgency)
		reqs.POST("/:id/contact-user", h.Requests.ContactUser)
		reqs.PUT("/:id/embargo", h.Requests.Embargo)
		reqs.PUT("/:id/estimate", h.Requests.Estimate)
		reqs.POST("/:id/access-key", h.Requests.AccessKey)
		reqs.POST("/:id/access", h.Requests.GrantAccess)
		reqs.DELETE("/:id/access/:user_id", h.Requests.RevokeAccess)
		reqs.POST("/:id/access/:user_id/promote", h.Requests.Promote)
		reqs.POST("/:id/access/:user_id/demote", h.Requests.Demote)
		reqs.POST("/:id/crowdfund", h.Crowdfunds.Create)
	}

	comms := auth.Group("/communications")
	{
		comms.POST("/:id/resend", h.Communications.Resend)
		comms.POST("/:id/move", h.Communications.Move)
		comms.PUT("/:id/status", h.Communications.SetStatus)
		comms.DELETE("/:id", h.Communications.Delete)
	}

	// TASKS (staff; checked again in the service)
	tasks := auth.Group("/tasks", middleware.RequireRoles(authz.RoleStaff))
	{
		tasks.GET("", h.Tasks.List)
		tasks.GET("/stream", h.Tasks.Stream)
		tasks.GET("/:id", h.Tasks.GetByID)
		tasks.POST("/:id/resolve", h.Tasks.Resolve)
		tasks.PUT("/:id/assignee", h.Tasks.Assign)
	}

	return r
}
