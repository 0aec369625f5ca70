package cli

// validateFlags centralizes common flag combinations to keep behavior
// consistent across commands.
func validateFlags(globals *Globals, instant bool, speed float64) error {
	// instant replay ignores pacing, so a custom speed is a contradiction
	if instant && speed != 0 && speed != 1 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--instant cannot be combined with --speed", "drop --speed or remove --instant")
	}
	if speed < 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--speed must be positive", "use a multiplier like 2 or 0.5")
	}
	// quiet + text leaves nothing useful on either stream; steer to ndjson
	if globals != nil && globals.Format == "text" && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	return nil
}
