package features

// MergedFeatureProperties is the union of every resolved feature's
// container-level properties, combined in installation order. It is
// the input to compose-override synthesis (see internal/composeoverride)
// and to container-create argument assembly.
type MergedFeatureProperties struct {
	CapAdd      []string
	SecurityOpt []string
	Privileged  bool
	Init        bool
	Entrypoint  string
	Mounts      []FeatureMount
	ContainerEnv map[string]string

	OnCreateCommands       []interface{}
	UpdateContentCommands  []interface{}
	PostCreateCommands     []interface{}
	PostStartCommands      []interface{}
}

// FeatureCommand attributes a lifecycle command to the feature that
// declared it, for callers (internal/lifecycle) that need to report
// which feature a hook failure came from. Named distinctly from
// lifecycle.FeatureHook to avoid an import cycle between the two
// packages.
type FeatureCommand struct {
	FeatureID   string
	FeatureName string
	Command     interface{}
}

func collectCommands(ordered []*Feature, pick func(*FeatureMetadata) interface{}) []FeatureCommand {
	var cmds []FeatureCommand
	for _, f := range ordered {
		if f.Metadata == nil {
			continue
		}
		cmd := pick(f.Metadata)
		if cmd == nil {
			continue
		}
		cmds = append(cmds, FeatureCommand{
			FeatureID:   f.ID,
			FeatureName: f.Metadata.Name,
			Command:     cmd,
		})
	}
	return cmds
}

// CollectOnCreateCommands returns each feature's onCreateCommand, in
// installation order, attributed to its feature.
func CollectOnCreateCommands(ordered []*Feature) []FeatureCommand {
	return collectCommands(ordered, func(m *FeatureMetadata) interface{} { return m.OnCreateCommand })
}

// CollectUpdateContentCommands returns each feature's updateContentCommand.
func CollectUpdateContentCommands(ordered []*Feature) []FeatureCommand {
	return collectCommands(ordered, func(m *FeatureMetadata) interface{} { return m.UpdateContentCommand })
}

// CollectPostCreateCommands returns each feature's postCreateCommand.
func CollectPostCreateCommands(ordered []*Feature) []FeatureCommand {
	return collectCommands(ordered, func(m *FeatureMetadata) interface{} { return m.PostCreateCommand })
}

// CollectPostStartCommands returns each feature's postStartCommand.
func CollectPostStartCommands(ordered []*Feature) []FeatureCommand {
	return collectCommands(ordered, func(m *FeatureMetadata) interface{} { return m.PostStartCommand })
}

// CollectPostAttachCommands returns each feature's postAttachCommand.
func CollectPostAttachCommands(ordered []*Feature) []FeatureCommand {
	return collectCommands(ordered, func(m *FeatureMetadata) interface{} { return m.PostAttachCommand })
}

// HasContainerProperties reports whether any property that a compose
// override could express is set. Mounts and lifecycle commands are
// deliberately excluded: they're applied through other means (the
// container-create call and the lifecycle manager), not the compose
// override file.
func (m MergedFeatureProperties) HasContainerProperties() bool {
	return len(m.CapAdd) > 0 || len(m.SecurityOpt) > 0 || m.Privileged || m.Init
}

// MergeProperties folds every resolved feature's metadata into one
// MergedFeatureProperties value, in the given installation order.
// Capabilities and security options are deduplicated while preserving
// first-seen order; booleans are OR'd across features.
func MergeProperties(ordered []*Feature) MergedFeatureProperties {
	var merged MergedFeatureProperties
	seenCap := make(map[string]struct{})
	seenSecOpt := make(map[string]struct{})
	merged.ContainerEnv = make(map[string]string)

	for _, f := range ordered {
		if f.Metadata == nil {
			continue
		}
		m := f.Metadata

		for _, c := range m.CapAdd {
			if _, ok := seenCap[c]; ok {
				continue
			}
			seenCap[c] = struct{}{}
			merged.CapAdd = append(merged.CapAdd, c)
		}
		for _, o := range m.SecurityOpt {
			if _, ok := seenSecOpt[o]; ok {
				continue
			}
			seenSecOpt[o] = struct{}{}
			merged.SecurityOpt = append(merged.SecurityOpt, o)
		}

		merged.Privileged = merged.Privileged || m.Privileged
		merged.Init = merged.Init || m.Init

		if m.Entrypoint != "" {
			merged.Entrypoint = m.Entrypoint
		}
		merged.Mounts = append(merged.Mounts, m.Mounts...)
		for k, v := range m.ContainerEnv {
			merged.ContainerEnv[k] = v
		}

		if m.OnCreateCommand != nil {
			merged.OnCreateCommands = append(merged.OnCreateCommands, m.OnCreateCommand)
		}
		if m.UpdateContentCommand != nil {
			merged.UpdateContentCommands = append(merged.UpdateContentCommands, m.UpdateContentCommand)
		}
		if m.PostCreateCommand != nil {
			merged.PostCreateCommands = append(merged.PostCreateCommands, m.PostCreateCommand)
		}
		if m.PostStartCommand != nil {
			merged.PostStartCommands = append(merged.PostStartCommands, m.PostStartCommand)
		}
	}

	return merged
}
