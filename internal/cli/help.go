package cli

import (
	"encoding/json"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/adeelakhani/swing-sdk/internal/output"
)

// HelpCmd outputs machine-readable CLI documentation
type HelpCmd struct{}

type flagDoc struct {
	Name    string   `json:"name"`
	Short   string   `json:"short,omitempty"`
	Help    string   `json:"help,omitempty"`
	Enum    []string `json:"enum,omitempty"`
	Default string   `json:"default,omitempty"`
}

type commandDoc struct {
	Name     string       `json:"name"`
	Help     string       `json:"help,omitempty"`
	Flags    []flagDoc    `json:"flags,omitempty"`
	Commands []commandDoc `json:"commands,omitempty"`
}

type helpOutput struct {
	Type          string       `json:"type"`
	SchemaVersion int          `json:"schemaVersion"`
	Name          string       `json:"name"`
	GlobalFlags   []flagDoc    `json:"global_flags,omitempty"`
	Commands      []commandDoc `json:"commands"`
}

// Run executes the help command.
//
// Like completion, this reads the live Kong model so the documentation can
// never drift from the actual flags.
func (c *HelpCmd) Run(globals *Globals, ctx *kong.Context) error {
	out := helpOutput{
		Type:          "help",
		SchemaVersion: output.SchemaVersion,
		Name:          "swing",
	}
	if ctx != nil && ctx.Kong != nil && ctx.Model != nil {
		root := ctx.Model.Node
		out.Name = ctx.Model.Name
		out.GlobalFlags = flagDocs(root.Flags)
		out.Commands = commandDocs(root)
	}

	encoder := json.NewEncoder(globals.Stdout)
	if globals.Format != "ndjson" {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(out)
}

func commandDocs(n *kong.Node) []commandDoc {
	var docs []commandDoc
	for _, child := range n.Children {
		if child == nil || child.Type != kong.CommandNode || child.Hidden {
			continue
		}
		docs = append(docs, commandDoc{
			Name:     child.Name,
			Help:     child.Help,
			Flags:    flagDocs(child.Flags),
			Commands: commandDocs(child),
		})
	}
	return docs
}

func flagDocs(flags []*kong.Flag) []flagDoc {
	var docs []flagDoc
	for _, f := range flags {
		if f == nil || f.Hidden {
			continue
		}
		doc := flagDoc{
			Name:    f.Name,
			Help:    f.Help,
			Default: f.Default,
		}
		if f.Short != 0 {
			doc.Short = string(f.Short)
		}
		if enum := strings.TrimSpace(f.Enum); enum != "" {
			for _, v := range strings.Split(enum, ",") {
				if v = strings.TrimSpace(v); v != "" {
					doc.Enum = append(doc.Enum, v)
				}
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
