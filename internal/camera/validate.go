package camera

// ValidateStreamConfig checks kind/format/resolution/fps each belong to
// their closed enumeration. It does not check that kinds are unique within
// a camera; ValidateStreamConfigs and Open do that.
func ValidateStreamConfig(c StreamConfig) error {
	if !validKind(c.Kind) {
		return newConfigError("unknown stream type %q", c.Kind)
	}
	if !validFormats[c.Format] {
		return newConfigError("unknown stream format %q", c.Format)
	}
	if !isValidResolution(c.Resolution) {
		return newConfigError("unsupported resolution %s", c.Resolution)
	}
	if !validFPS[c.FPS] {
		return newConfigError("unsupported fps %d", c.FPS)
	}
	return nil
}

// ValidateStreamConfigs validates each config and enforces the
// non-empty / unique-kind invariant for a whole camera.
func ValidateStreamConfigs(configs []StreamConfig) error {
	if len(configs) == 0 {
		return newConfigError("at least one stream configuration must be specified")
	}
	seen := map[Kind]bool{}
	for _, c := range configs {
		if err := ValidateStreamConfig(c); err != nil {
			return err
		}
		if seen[c.Kind] {
			return newConfigError("repeated stream type %s", c.Kind)
		}
		seen[c.Kind] = true
	}
	return nil
}

// ValidateAlignment checks that alignment, if non-nil, names a Kind
// present among configs.
func ValidateAlignment(alignment *Kind, configs []StreamConfig) error {
	if alignment == nil {
		return nil
	}
	for _, c := range configs {
		if c.Kind == *alignment {
			return nil
		}
	}
	return newConfigError("alignment to %s stream is not possible as it is not enabled", *alignment)
}
