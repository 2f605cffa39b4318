package main

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/skyroutes/flightdeck/internal/analytics"
	"github.com/skyroutes/flightdeck/internal/auth"
	"github.com/skyroutes/flightdeck/internal/cache"
	"github.com/skyroutes/flightdeck/internal/cms"
	"github.com/skyroutes/flightdeck/internal/config"
	"github.com/skyroutes/flightdeck/internal/content"
	"github.com/skyroutes/flightdeck/internal/db"
	"github.com/skyroutes/flightdeck/internal/leads"
	"github.com/skyroutes/flightdeck/internal/logger"
	"github.com/skyroutes/flightdeck/internal/media"
	"github.com/skyroutes/flightdeck/internal/model"
	"github.com/skyroutes/flightdeck/internal/render"
	"github.com/skyroutes/flightdeck/internal/revalidate"
	"github.com/skyroutes/flightdeck/internal/routes"
	"github.com/skyroutes/flightdeck/internal/sse"
	"github.com/skyroutes/flightdeck/internal/util"
)

var mainLogger zerolog.Logger

var (
	database       db.DB
	store          *content.Store
	pageCache      = cache.NewPageCache()
	clients        = sse.NewClients()
	notifier       *revalidate.Notifier
	adminAuth      auth.Provider
	leadStore      *leads.Store
	analyticsStore *analytics.Store
	uploader       media.Uploader
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	configPath := os.Getenv("FLIGHTDECK_CONFIG")
	if configPath == "" {
		configPath = "./config.yaml"
	}
	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	l := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	setLoggers(l)
	mainLogger = l.With().Str("component", "main").Logger()

	database = db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		mainLogger.Fatal().Err(err).Msg("Error initializing database")
	}
	defer database.Close()

	cmsClient := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Dataset, cfg.CMS.APIVersion, cfg.CMSToken())
	store = content.NewStore(cmsClient)

	adminAuth = auth.NewTokenProvider(cfg.CMSToken())

	notifier = revalidate.NewNotifier(pageCache, clients, auth.NewTokenProvider(cfg.RevalidateSecret()))
	store.SetCommitNotifier(notifier.HandleCommit)

	leadStore = leads.NewStore(database)
	analyticsStore = analytics.NewStore(database)
	if cfg.Analytics.Kafka.Enabled {
		publisher := analytics.NewKafkaPublisher(cfg.Analytics.Kafka.Brokers, cfg.Analytics.Kafka.Topic)
		defer publisher.Close()
		analyticsStore.SetPublisher(publisher)
	}

	if cfg.Media.Enabled {
		uploader = media.NewS3Store(
			os.Getenv(cfg.Media.AccessKeyEnv),
			os.Getenv(cfg.Media.SecretKeyEnv),
			cfg.Media.BaseEndpoint,
			cfg.Media.Bucket,
			cfg.Media.PublicBaseURL,
		)
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	mainLogger.Info().Str("addr", addr).Str("site", cfg.Site.Name).Msg("Starting server")
	if err := http.ListenAndServe(addr, newMux()); err != nil {
		mainLogger.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	cms.SetLogger(l.With().Str("component", "cms").Logger())
	content.SetLogger(l.With().Str("component", "content").Logger())
	revalidate.SetLogger(l.With().Str("component", "revalidate").Logger())
	leads.SetLogger(l.With().Str("component", "leads").Logger())
	analytics.SetLogger(l.With().Str("component", "analytics").Logger())
	media.SetLogger(l.With().Str("component", "media").Logger())
	render.SetLogger(l.With().Str("component", "render").Logger())
}

func newMux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow:"))
	})

	mux.HandleFunc(routes.RootPath, serveRoot)
	mux.HandleFunc(routes.BlogIndex, serveBlogIndex)
	mux.HandleFunc(routes.BlogPost, serveBlogPost)
	mux.HandleFunc(routes.SSEPath, eventsHandler)

	mux.HandleFunc(routes.APIPosts, handlePosts)
	mux.HandleFunc(routes.APIPostID, handlePostByID)
	mux.HandleFunc(routes.APILeads, handleLeads)
	mux.HandleFunc(routes.APIMedia, handleMedia)

	mux.HandleFunc(routes.APIContact, handleContact)
	mux.HandleFunc(routes.APIPageView, handlePageView)
	mux.HandleFunc(routes.APISummary, handleSummary)
	mux.HandleFunc(routes.APIHealth, handleHealth)

	mux.HandleFunc(routes.APIRevalidate, func(w http.ResponseWriter, r *http.Request) {
		notifier.ServeRevalidate(w, r)
	})
	mux.HandleFunc(routes.APIRevalidatePath, func(w http.ResponseWriter, r *http.Request) {
		notifier.ServeRevalidatePath(w, r)
	})

	return secureHeaders(mux.ServeHTTP)
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		h(w, r)
	}
}

func serveRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routes.RootPath {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, routes.BlogIndex, http.StatusFound)
}

// writeCached sends a cached page, honoring If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, body []byte, entry *cache.PageEntry) {
	w.Header().Set(config.HCType, entry.ContentType)
	w.Header().Set(config.HETag, entry.ETag)
	w.Header().Set(config.HCacheControl, "no-cache")

	if r.Header.Get("If-None-Match") == entry.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Write(body)
}

// renderPage executes the page template, stores the result under the
// given tags and sends it.
func renderPage(w http.ResponseWriter, r *http.Request, path string, data any, tags ...string) {
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "layout", data); err != nil {
		mainLogger.Error().Err(err).Str("path", path).Msg("Error rendering page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	body := buf.Bytes()
	if config.AppConfig.Cache.Enabled {
		if err := pageCache.Put(path, config.CTypeHTML, body, tags...); err != nil {
			mainLogger.Warn().Err(err).Str("path", path).Msg("Error caching page")
		}
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.Header().Set(config.HETag, util.ContentHash(body))
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Write(body)
}

type pageData struct {
	SiteName string
	Tagline  string
	Title    string

	Posts []model.PostPreview

	Post *model.Post
	Body template.HTML
}

func serveBlogIndex(w http.ResponseWriter, r *http.Request) {
	if body, entry, ok := pageCache.Get(routes.BlogIndex); ok {
		writeCached(w, r, body, entry)
		return
	}

	list := store.List()
	if list.LastUpdated.IsZero() {
		if err := store.LoadList(r.Context()); err != nil {
			mainLogger.Error().Err(err).Msg("Error loading posts for listing")
			http.Error(w, "Posts are temporarily unavailable", http.StatusBadGateway)
			return
		}
		list = store.List()
	}

	cfg := config.AppConfig
	data := &pageData{
		SiteName: cfg.Site.Name,
		Tagline:  cfg.Site.Tagline,
		Title:    "Blog",
		Posts:    list.Data,
	}
	renderPage(w, r, routes.BlogIndex, data, revalidate.TagPosts)
}

func serveBlogPost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		http.NotFound(w, r)
		return
	}

	path := routes.BlogIndex + "/" + slug
	if body, entry, ok := pageCache.Get(path); ok {
		writeCached(w, r, body, entry)
		return
	}

	if err := store.LoadDetail(r.Context(), slug); err != nil {
		http.NotFound(w, r)
		return
	}
	detail := store.Detail()
	if detail.Data == nil {
		http.NotFound(w, r)
		return
	}

	post := detail.Data
	html := render.RenderMarkdownCached([]byte(post.Body), util.ContentHashString(post.Body), render.DefaultHighlightTheme)

	data := &pageData{
		SiteName: config.AppConfig.Site.Name,
		Title:    post.DisplayTitle(),
		Post:     post,
		Body:     template.HTML(html),
	}
	renderPage(w, r, path, data, revalidate.PostTags(slug)...)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := &sse.Client{
		Msg:  make(chan string, 4),
		Path: path,
	}
	clients.Add(client)
	mainLogger.Debug().Str("path", path).Msg("SSE client connected")

	defer func() {
		clients.Delete(client)
		mainLogger.Debug().Str("path", path).Msg("SSE client disconnected")
	}()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	notify := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

var pageTemplate = template.Must(template.New("layout").Parse(`{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} | {{.SiteName}}</title>
{{if .Post}}{{with .Post.SEO.MetaDescription}}<meta name="description" content="{{.}}">{{end}}{{end}}
</head>
<body>
<header><a href="/blog">{{.SiteName}}</a>{{with .Tagline}}<p>{{.}}</p>{{end}}</header>
<main>
{{if .Post}}{{template "post" .}}{{else}}{{template "index" .}}{{end}}
</main>
</body>
</html>{{end}}

{{define "index"}}<h1>{{.Title}}</h1>
<ul class="post-list">
{{range .Posts}}<li{{if .Featured}} class="featured"{{end}}>
<a href="{{.URLPath}}">{{.DisplayTitle}}</a>
<span class="meta">{{.Category.Title}} · {{.Author.Name}} · {{.PublishedAt.Format "2006-01-02"}}</span>
{{with .Excerpt}}<p>{{.}}</p>{{end}}
</li>
{{end}}</ul>{{end}}

{{define "post"}}<article>
<h1>{{.Post.DisplayTitle}}</h1>
<p class="meta">{{.Post.Category.Title}} · {{.Post.Author.Name}} · {{.Post.PublishedAt.Format "2006-01-02"}}</p>
{{with .Post.CoverImageURL}}<img src="{{.}}" alt="">{{end}}
{{.Body}}
</article>{{end}}`))
