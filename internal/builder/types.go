package builder

// BuildArtifact represents the output of a build operation
type BuildArtifact struct {
	// Image is the reference the result was tagged with
	Image string

	// ID is the image ID when the engine reports one
	ID string

	// Builder is the name of the builder that produced the image
	Builder string
}
