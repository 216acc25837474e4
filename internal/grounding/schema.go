package grounding

import "github.com/ppiankov/originpoint/internal/llm"

func str(desc string) *llm.Schema {
	return &llm.Schema{Type: llm.TypeString, Description: desc}
}

// conflictSchema declares the conflict batch: an array of discrepancy objects
var conflictSchema = &llm.Schema{
	Type: llm.TypeArray,
	Items: &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"id":          str("Unique identifier of the conflict within this list"),
			"recordClass": {Type: llm.TypeString, Description: "ancestry or land", Enum: []string{"ancestry", "land"}},
			"description": str("The connection or claim that is in dispute"),
			"summary":     str("One-line summary of the discrepancy"),
			"evidenceA":   str("First piece of evidence"),
			"evidenceB":   str("Second, contradicting piece of evidence"),
			"reason":      str("Why the two pieces of evidence cannot both be true"),
		},
		Required: []string{"id", "recordClass", "description", "evidenceA", "evidenceB", "reason"},
	},
}

// visualizationSchema declares the timeline and lineage object
var visualizationSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"timeline": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"year":      str("Year or date of the event"),
					"event":     str("What happened"),
					"actor":     str("Who was involved"),
					"eventType": {Type: llm.TypeString, Enum: []string{"ownership", "birth", "death", "legal"}},
				},
				Required: []string{"year", "event"},
			},
		},
		"lineageNodes": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"name":         str("Person name"),
					"role":         str("Role in the lineage, such as owner or heir"),
					"propertyLink": str("Property this person is linked to"),
				},
				Required: []string{"name"},
			},
		},
	},
	Required: []string{"timeline", "lineageNodes"},
}
