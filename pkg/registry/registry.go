// Package registry maintains the action catalog: the mapping from an
// action-type identifier to its static definition and its implementation
// factory.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

// RegisterAction adds an action factory to the catalog, replacing any
// factory previously registered under the same ID.
func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.ID()] = factory
}

// CreateAction instantiates the implementation for an action type.
func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(config)
}

// IsActionRegistered checks if an action type is in the catalog.
func (r *Registry) IsActionRegistered(actionType string) bool {
	_, exists := r.actionFactories[actionType]

	return exists
}

// ValidateNode checks a workflow node against the catalog: the action type
// must be registered and every required schema parameter must have an input
// mapping. Value types cannot be checked here; mappings resolve at run time.
func (r *Registry) ValidateNode(node *models.WorkflowNode) error {
	factory, ok := r.actionFactories[node.ActionType]
	if !ok {
		return fmt.Errorf("node %s: action type '%s' not registered", node.ID, node.ActionType)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	for _, key := range schema.Required {
		if _, ok := node.InputMappings[key]; !ok {
			return fmt.Errorf("node %s: required parameter '%s' has no input mapping", node.ID, key)
		}
	}

	return nil
}

// Components returns the static catalog entries for every registered action,
// sorted by type for stable output.
func (r *Registry) Components() []*models.RegisteredComponent {
	components := make([]*models.RegisteredComponent, 0, len(r.actionFactories))
	for _, factory := range r.actionFactories {
		components = append(components, &models.RegisteredComponent{
			Type:        factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Type < components[j].Type
	})

	return components
}

// LoadActionPlugins loads action factories from .so files under
// pluginsPath/actions. Missing directories are not an error.
func (r *Registry) LoadActionPlugins(pluginsPath string) ([]protocol.ActionFactory, error) {
	rootPath := pluginsPath + "/actions"
	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		return nil, nil
	}

	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := r.logger.With(slog.String("path", pluginsPath))
	l.Info("Loading action plugins")

	pluginList := make([]protocol.ActionFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup("Action")
		if err != nil {
			return nil, fmt.Errorf("plugin %s does not export Action: %w", p, err)
		}

		factory, ok := v.(protocol.ActionFactory)
		if !ok {
			return nil, fmt.Errorf("plugin %s Action symbol is not an ActionFactory", p)
		}

		pluginList = append(pluginList, factory)

		l.Info("Loaded action plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
