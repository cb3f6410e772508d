package vectara

// UnknownMetadata is returned for metadata that is not present.
const UnknownMetadata = "Unknown"

// MetadataValue returns the value of the first entry called name, or
// UnknownMetadata when there is none.
func MetadataValue(metadata []Metadata, name string) string {
	for _, m := range metadata {
		if m.Name == name {
			return m.Value
		}
	}
	return UnknownMetadata
}
