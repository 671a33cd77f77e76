package loam

// MacroMetadata is the frontmatter of a macro document.
//
//	---
//	name: fireball
//	formula: 8d6[fire]
//	tags: [spell, evocation]
//	---
//	Deals fire damage in a 20-foot radius.
//
// The body is used as the description when the frontmatter has none.
type MacroMetadata struct {
	Name        string   `json:"name" mapstructure:"name"`
	Formula     string   `json:"formula" mapstructure:"formula"`
	Description string   `json:"description,omitempty" mapstructure:"description"`
	Tags        []string `json:"tags,omitempty" mapstructure:"tags"`
}
