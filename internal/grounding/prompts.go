package grounding

import "fmt"

// Prompts holds the instruction templates for one revision. Every
// template takes the user input through a single %s verb, except
// Challenge which takes the target then the evidence.
type Prompts struct {
	System    string
	Search    string
	Map       string
	Audit     string
	Conflicts string
	Visualize string
	Challenge string
	Scan      string
	Summarize string
}

var classicPrompts = Prompts{
	Search:    "Locate and verify historical ancestry and land documents for: %s. You MUST use Google Search to ground your response in factual, documented records.",
	Map:       "Verify the geographic existence and history of this land parcel or property: %s. Provide links to maps and reviews if relevant.",
	Audit:     "Perform an advanced grounding audit of this claim: %q. Specifically check for discrepancies against recent news, digital archives, and official land registry data via Google Search.",
	Conflicts: "Examine ancestry and land records for: %s. Specifically identify inconsistencies in ownership dates, lineage discrepancies, or property markers. Return the results as a list of detailed conflicts.",
	Visualize: "Generate a structured timeline and property-linked family tree for: %s. Focus on ownership transitions and key life events of owners.",
	Challenge: "Challenge the existing connection: %q with this new evidence: %q. Re-analyze the factual chain. If the evidence is compelling, explain why the connection is flawed and propose a correction.",
	Scan:      "Extract all factual details from this historical record. Analyze how it fits into a larger genealogical or property chain.",
	Summarize: "Summarize these findings briefly for a quick review: %s",
}

var archivalPrompts = Prompts{
	System:    "You are a forensic archivist for genealogical and land records. Cite only documents you can ground, name the record series and repository for each claim, and state plainly when evidence is missing or contradictory.",
	Search:    classicPrompts.Search,
	Map:       classicPrompts.Map,
	Audit:     classicPrompts.Audit,
	Conflicts: "Examine ancestry and land records for: %s. Specifically identify inconsistencies in ownership dates, lineage discrepancies, or property markers. Return the results as a list of detailed conflicts, each with a unique id, a one-line summary, the two conflicting pieces of evidence and the reason they cannot both be true.",
	Visualize: classicPrompts.Visualize,
	Challenge: classicPrompts.Challenge,
	Scan:      classicPrompts.Scan,
	Summarize: classicPrompts.Summarize,
}

func render(template, input string) string {
	return fmt.Sprintf(template, input)
}
