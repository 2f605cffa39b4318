// Package routes defines HTTP route constants for the application.
package routes

// Public pages
const (
	RobotsPath = "/robots.txt"
	RootPath   = "/"
	BlogIndex  = "/blog"
	BlogPost   = "/blog/{slug}"
)

// SSE
const (
	SSEPath = "/sse"
)

// Admin JSON API
const (
	APIPosts  = "/api/posts"
	APIPostID = "/api/posts/{id}"
	APILeads  = "/api/leads"
	APIMedia  = "/api/media"
)

// Public JSON API
const (
	APIContact  = "/api/contact"
	APIPageView = "/api/analytics/pageview"
	APISummary  = "/api/analytics/summary"
	APIHealth   = "/api/health"
)

// Cache invalidation
const (
	APIRevalidate     = "/api/revalidate"
	APIRevalidatePath = "/api/revalidate/path"
)
