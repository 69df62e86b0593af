package credentials

// FromPreset builds the default EffectiveConfig for a preset with no
// project-level overrides applied.
func FromPreset(p AgentPreset) EffectiveConfig {
	return EffectiveConfig{
		Kind:                p.Kind,
		HostConfigPath:      p.DefaultHostConfigPath,
		ContainerConfigPath: p.DefaultContainerConfigPath,
		ExtraSyncPaths:      p.DefaultExtraSyncPaths,
		NpmPackage:          p.NpmPackage,
		RequiredEnvKeys:     p.RequiredEnvKeys,
		BinaryProbe:         p.BinaryProbe,
		InstallCommand:      p.DefaultInstallCommand,
	}
}

// DetectAndProject validates host prerequisites for every known agent
// preset and returns a Projection for each one whose host config path
// actually exists. Agents the developer never configured on the host
// are silently skipped rather than reported as blocking.
func DetectAndProject(containerHome string) []Projection {
	var projections []Projection
	for _, kind := range AllAgentKinds {
		cfg := FromPreset(PresetFor(kind))
		if !pathExists(expandHomePath(cfg.HostConfigPath)) {
			continue
		}
		validation := ValidateHostPrerequisites(cfg)
		if !validation.Valid {
			continue
		}
		projections = append(projections, Project(cfg, containerHome, validation))
	}
	return projections
}
