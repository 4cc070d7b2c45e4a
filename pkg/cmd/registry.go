// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/operand/pkg/actions/addlog"
	"github.com/dukex/operand/pkg/actions/askllm"
	"github.com/dukex/operand/pkg/actions/confirm"
	"github.com/dukex/operand/pkg/actions/foreach"
	"github.com/dukex/operand/pkg/actions/gitcheckout"
	"github.com/dukex/operand/pkg/actions/runcommand"
	"github.com/dukex/operand/pkg/actions/setdescription"
	"github.com/dukex/operand/pkg/actions/splitstring"
	"github.com/dukex/operand/pkg/actions/tempfolder"
	"github.com/dukex/operand/pkg/actions/userinput"
	"github.com/dukex/operand/pkg/registry"
)

func registerActionPlugins(reg *registry.Registry, pluginsPath string) {
	actionPlugins, err := reg.LoadActionPlugins(pluginsPath)
	if err != nil {
		panic(err)
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}
}

func registerNativeActions(reg *registry.Registry) {
	reg.RegisterAction(gitcheckout.NewActionFactory())
	reg.RegisterAction(runcommand.NewActionFactory())
	reg.RegisterAction(tempfolder.NewActionFactory())
	reg.RegisterAction(splitstring.NewActionFactory())
	reg.RegisterAction(foreach.NewListActionFactory())
	reg.RegisterAction(foreach.NewFolderActionFactory())
	reg.RegisterAction(confirm.NewActionFactory())
	reg.RegisterAction(userinput.NewActionFactory())
	reg.RegisterAction(setdescription.NewActionFactory())
	reg.RegisterAction(addlog.NewActionFactory())
	reg.RegisterAction(askllm.NewActionFactory())
}

// NewRegistry builds the action catalog from the native actions plus any
// compiled plugins under pluginsPath.
func NewRegistry(log *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeActions(reg)

	if pluginsPath != "" {
		registerActionPlugins(reg, pluginsPath)
	}

	return reg
}
