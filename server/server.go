package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-delegated-auth/delegated"
	"github.com/jrsteele09/go-delegated-auth/downstream"
	"github.com/jrsteele09/go-delegated-auth/internal/config"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config

	manager         *delegated.Manager
	partnerCenter   *downstream.Client
	graph           *downstream.Client
	resourceManager *downstream.Client
	subscriptions   *downstream.SubscriptionLister

	partnerCenterOps map[string]operation
	azureOps         map[string]operation
}

func New(config config.Config, deps Dependencies) (*Server, error) {
	if deps.Repo == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("[Server New] token store and token client are required")
	}
	if deps.PartnerCenter == nil || deps.Graph == nil || deps.ResourceManager == nil || deps.Subscriptions == nil {
		return nil, fmt.Errorf("[Server New] downstream clients are required")
	}

	s := &Server{
		env:             config.GetEnv(),
		mux:             http.NewServeMux(),
		config:          config,
		manager:         delegated.NewManager(deps.Repo, deps.Tokens, deps.Locker, delegated.SettingsFromConfig(config)),
		partnerCenter:   deps.PartnerCenter,
		graph:           deps.Graph,
		resourceManager: deps.ResourceManager,
		subscriptions:   deps.Subscriptions,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("*", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return strings.TrimSpace(strings.SplitN(scheme, ",", 2)[0])
	}
	return "http"
}
