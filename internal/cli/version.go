package cli

import (
	"encoding/json"
	"fmt"
)

// VersionCmd shows version information
type VersionCmd struct{}

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		b, err := json.Marshal(map[string]string{
			"type":    "version",
			"version": Version,
			"commit":  Commit,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(globals.Stdout, string(b))
		return nil
	}

	fmt.Fprintf(globals.Stdout, "swing version %s (%s)\n", Version, Commit)
	return nil
}
