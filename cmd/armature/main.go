package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/armature/internal/log"
	"github.com/mattjoyce/armature/orderstore"
	"github.com/mattjoyce/armature/plugin"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "doctor":
		os.Exit(runDoctor(args))
	case "inspect":
		os.Exit(runInspect(args))
	case "order":
		os.Exit(runOrderNoun(args))
	case "version":
		fmt.Printf("armature version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`armature - hook dispatch engine tooling

Usage:
  armature doctor [--config PATH] [--json] [--strict]
  armature inspect [--config PATH] [--json]
  armature order <get|set|clear> ...
  armature version
  armature help

Commands:
  doctor    Validate plugin manifests under the configured roots
  inspect   Show discovered plugins and persisted call orders
  order     Read or modify a hook's persisted call order
  version   Print the version
  help      Show this message
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func loadConfigArg(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "armature.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log.Setup(cfg.LogLevel)
	return cfg, nil
}

func runDoctor(args []string) int {
	var configPath string
	var jsonOut, strict bool

	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigArg(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := NewDoctor(cfg).Validate()
	if strict && len(result.Warnings) > 0 {
		result.Valid = false
	}

	if jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		printDoctorResult(result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printDoctorResult(r *DoctorResult) {
	for _, issue := range r.Errors {
		if issue.Field != "" {
			fmt.Printf("ERROR [%s] %s: %s\n", issue.Category, issue.Field, issue.Message)
		} else {
			fmt.Printf("ERROR [%s] %s\n", issue.Category, issue.Message)
		}
	}
	for _, issue := range r.Warnings {
		if issue.Field != "" {
			fmt.Printf("WARN  [%s] %s: %s\n", issue.Category, issue.Field, issue.Message)
		} else {
			fmt.Printf("WARN  [%s] %s\n", issue.Category, issue.Message)
		}
	}
	if r.Valid {
		fmt.Println("OK")
	} else {
		fmt.Printf("%d error(s), %d warning(s)\n", len(r.Errors), len(r.Warnings))
	}
}

// inspectReport is the CLI's static view: plugins come from manifests on
// disk and call orders from the persistence database, not from a live
// registry.
type inspectReport struct {
	Plugins []inspectPlugin     `json:"plugins"`
	Orders  map[string][]string `json:"call_orders,omitempty"`
}

type inspectPlugin struct {
	Name        string   `json:"name"`
	Ref         string   `json:"ref"`
	Path        string   `json:"path"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Hooks       []string `json:"hooks"`
}

func runInspect(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output report in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigArg(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	available, err := plugin.IterAvailable(cfg.PluginRoots)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
		return 1
	}

	report := inspectReport{}
	for _, av := range available {
		report.Plugins = append(report.Plugins, inspectPlugin{
			Name:        av.Name,
			Ref:         av.Ref,
			Path:        av.Path,
			Version:     av.Manifest.Version,
			Description: av.Manifest.Description,
			Hooks:       av.Manifest.Hooks,
		})
	}

	if cfg.OrderDB != "" {
		if _, statErr := os.Stat(cfg.OrderDB); statErr == nil {
			store, err := orderstore.Open(context.Background(), cfg.OrderDB)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to open order store: %v\n", err)
				return 1
			}
			defer store.Close()
			orders, errs := store.LoadAll(context.Background())
			for _, loadErr := range errs {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", loadErr)
			}
			report.Orders = orders
		}
	}

	if jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode report: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if len(report.Plugins) == 0 {
		fmt.Println("No plugins discovered.")
	}
	for _, p := range report.Plugins {
		fmt.Printf("Plugin:      %s\n", p.Name)
		fmt.Printf("  Ref:       %s\n", p.Ref)
		if p.Version != "" {
			fmt.Printf("  Version:   %s\n", p.Version)
		}
		if p.Description != "" {
			fmt.Printf("  About:     %s\n", p.Description)
		}
		fmt.Printf("  Hooks:     %s\n", strings.Join(p.Hooks, ", "))
		fmt.Printf("  Manifest:  %s\n", p.Path)
	}
	for hook, order := range report.Orders {
		fmt.Printf("Order:       %s -> %s\n", hook, strings.Join(order, ", "))
	}
	return 0
}

func runOrderNoun(args []string) int {
	if len(args) == 0 {
		printOrderNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printOrderNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "get":
		if hasHelpFlag(actionArgs) {
			printOrderGetHelp()
			return 0
		}
		return runOrderGet(actionArgs)
	case "set":
		if hasHelpFlag(actionArgs) {
			printOrderSetHelp()
			return 0
		}
		return runOrderSet(actionArgs)
	case "clear":
		if hasHelpFlag(actionArgs) {
			printOrderClearHelp()
			return 0
		}
		return runOrderClear(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown order action: %s\n", action)
		printOrderNounHelp(os.Stderr)
		return 1
	}
}

func printOrderNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: armature order <action> [flags]")
	fmt.Fprintln(w, "Actions: get, set, clear")
}

func printOrderGetHelp() {
	fmt.Println("Usage: armature order get <hook> [--config PATH]")
	fmt.Println("Print the persisted call order for a hook.")
}

func printOrderSetHelp() {
	fmt.Println("Usage: armature order set <hook> <plugin>[,<plugin>...] [--config PATH]")
	fmt.Println("Persist a call order for a hook. Listed plugins dispatch first, in list order.")
}

func printOrderClearHelp() {
	fmt.Println("Usage: armature order clear <hook> [--config PATH]")
	fmt.Println("Remove the persisted call order for a hook.")
}

// splitOrderArgs separates positional arguments from flags so that
// 'armature order set my_hook a,b --config PATH' parses cleanly.
func splitOrderArgs(args []string) ([]string, []string) {
	var positional, flags []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, arg)
	}
	return positional, flags
}

func openStoreArg(flagArgs []string, name string) (*orderstore.Store, error) {
	var configPath string
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}
	cfg, err := loadConfigArg(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.OrderDB == "" {
		return nil, fmt.Errorf("order_db not configured")
	}
	return orderstore.Open(context.Background(), cfg.OrderDB)
}

func runOrderGet(args []string) int {
	positional, flagArgs := splitOrderArgs(args)
	if len(positional) != 1 {
		printOrderGetHelp()
		return 1
	}

	store, err := openStoreArg(flagArgs, "order-get")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open order store: %v\n", err)
		return 1
	}
	defer store.Close()

	order, err := store.Load(context.Background(), positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load order: %v\n", err)
		return 1
	}
	if order == nil {
		fmt.Printf("No call order stored for %s\n", positional[0])
		return 0
	}
	fmt.Println(strings.Join(order, ","))
	return 0
}

func runOrderSet(args []string) int {
	positional, flagArgs := splitOrderArgs(args)
	if len(positional) != 2 {
		printOrderSetHelp()
		return 1
	}

	hookName := positional[0]
	var order []string
	for _, name := range strings.Split(positional[1], ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		fmt.Fprintln(os.Stderr, "Order must name at least one plugin")
		return 1
	}

	store, err := openStoreArg(flagArgs, "order-set")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open order store: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := store.Save(context.Background(), hookName, order); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save order: %v\n", err)
		return 1
	}
	fmt.Printf("Saved call order for %s: %s\n", hookName, strings.Join(order, ","))
	return 0
}

func runOrderClear(args []string) int {
	positional, flagArgs := splitOrderArgs(args)
	if len(positional) != 1 {
		printOrderClearHelp()
		return 1
	}

	store, err := openStoreArg(flagArgs, "order-clear")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open order store: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := store.Delete(context.Background(), positional[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to clear order: %v\n", err)
		return 1
	}
	fmt.Printf("Cleared call order for %s\n", positional[0])
	return 0
}
