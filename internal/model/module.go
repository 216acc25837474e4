package model

import (
	"fmt"
	"strings"
)

// Module is one of the fixed user-facing query modes
type Module string

const (
	ModuleSearch    Module = "search"
	ModuleAnalyze   Module = "analyze"
	ModuleMap       Module = "map"
	ModuleScan      Module = "scan"
	ModuleConflicts Module = "conflicts"
	ModuleVisualize Module = "visualize"
	ModuleAudit     Module = "audit"
)

// Modules returns all modules in navigation order
func Modules() []Module {
	return []Module{
		ModuleSearch,
		ModuleAudit,
		ModuleConflicts,
		ModuleVisualize,
		ModuleAnalyze,
		ModuleMap,
		ModuleScan,
	}
}

// Label returns the human-readable module name
func (m Module) Label() string {
	switch m {
	case ModuleSearch:
		return "record inquiry"
	case ModuleAudit:
		return "grounding audit"
	case ModuleConflicts:
		return "discrepancy engine"
	case ModuleVisualize:
		return "connection map"
	case ModuleAnalyze:
		return "deep synthesis"
	case ModuleMap:
		return "cartography"
	case ModuleScan:
		return "document digitization"
	default:
		return string(m)
	}
}

// ParseModule parses a module name; "maps" is accepted for map
func ParseModule(s string) (Module, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "maps" {
		name = string(ModuleMap)
	}
	for _, m := range Modules() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown module: %q (supported: search, analyze, map, scan, conflicts, visualize, audit)", s)
}
