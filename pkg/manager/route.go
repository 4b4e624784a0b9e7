package manager

import (
	"fmt"
	"maps"
	"strings"

	// Packages
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Failure selects how a batch with failed files is reported.
type Failure string

const (
	// FailAll reports the whole batch as failed when any file fails.
	FailAll Failure = "all"

	// FailPartial reports the stored files alongside the failed ones.
	FailPartial Failure = "partial"
)

// Route binds an upload endpoint to its intake policy and destination.
type Route struct {
	Policy       policy.Policy       `json:"policy"`
	Folder       string              `json:"folder"`
	ResourceType schema.ResourceType `json:"resourceType"`
	Failure      Failure             `json:"failure"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Route names for the built-in endpoints
const (
	RouteUpload         = "upload"
	RouteMultipleUpload = "multiple-upload"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// DefaultRoutes returns the built-in routes: a single image stored in the
// "images" folder, and up to five documents stored in the "invoices" folder
// with the resource type detected from content.
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		RouteUpload: {
			Policy:       policy.Image(),
			Folder:       "images",
			ResourceType: schema.ResourceImage,
			Failure:      FailAll,
		},
		RouteMultipleUpload: {
			Policy:       policy.Document(),
			Folder:       "invoices",
			ResourceType: schema.ResourceAuto,
			Failure:      FailAll,
		},
	}
}

// Route returns a named route
func (manager *Manager) Route(name string) (Route, bool) {
	route, ok := manager.routes[name]
	return route, ok
}

// Routes returns a copy of all routes
func (manager *Manager) Routes() map[string]Route {
	return maps.Clone(manager.routes)
}

// Policies returns the intake policy of each route
func (manager *Manager) Policies() map[string]policy.Policy {
	result := make(map[string]policy.Policy, len(manager.routes))
	for name, route := range manager.routes {
		result[name] = route.Policy
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (route *Route) check() error {
	if err := route.Policy.Check(); err != nil {
		return err
	}
	if strings.Contains(route.Folder, "..") {
		return fmt.Errorf("invalid folder %q", route.Folder)
	}
	switch route.ResourceType {
	case "":
		route.ResourceType = schema.ResourceAuto
	case schema.ResourceAuto, schema.ResourceImage, schema.ResourceVideo, schema.ResourceRaw:
	default:
		return fmt.Errorf("unknown resource type %q", route.ResourceType)
	}
	switch route.Failure {
	case "":
		route.Failure = FailAll
	case FailAll, FailPartial:
	default:
		return fmt.Errorf("unknown failure mode %q", route.Failure)
	}
	return nil
}
