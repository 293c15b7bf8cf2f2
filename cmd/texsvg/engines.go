package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"texsvg/internal/pipeline"
	"texsvg/internal/settings"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List supported engines and whether they are installed",
	Args:  cobra.NoArgs,
	RunE:  enginesExecution,
}

func enginesExecution(cmd *cobra.Command, args []string) error {
	configDir, err := settings.ConfigDir()
	if err != nil {
		return err
	}
	cfg, err := settings.Load(configDir)
	if err != nil {
		return err
	}
	cacheDir, err := settings.CacheDir()
	if err != nil {
		return err
	}
	cache := settings.LoadCache(cacheDir)

	found, missing, cache := pipeline.DetectAll(cfg, cache)

	tools := make([]string, 0, len(found)+len(missing))
	for tool := range found {
		tools = append(tools, tool)
	}
	for tool := range missing {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	okColor := color.New(color.FgGreen)
	missColor := color.New(color.FgRed)
	out := cmd.OutOrStdout()
	for _, tool := range tools {
		if path, ok := found[tool]; ok {
			okColor.Fprintf(out, "%-10s", tool)
			fmt.Fprintf(out, " %s\n", path)
		} else {
			missColor.Fprintf(out, "%-10s", tool)
			fmt.Fprintln(out, " not found")
		}
	}

	if err := settings.SaveCache(cacheDir, cache); err != nil {
		return err
	}
	return nil
}
